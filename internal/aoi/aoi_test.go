package aoi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareWithHole = `{
  "type": "Polygon",
  "coordinates": [
    [[0,0],[0.1,0],[0.1,0.1],[0,0.1],[0,0]],
    [[0.04,0.04],[0.06,0.04],[0.06,0.06],[0.04,0.06],[0.04,0.04]]
  ]
}`

func TestFromBBox(t *testing.T) {
	a, err := FromBBox([4]float64{-70.5, -33.5, -70.4, -33.4}, 0)
	require.NoError(t, err)

	s := a.Summary()
	assert.Equal(t, "bbox", s.Source)
	assert.Equal(t, [4]float64{-70.5, -33.5, -70.4, -33.4}, s.BBox)
	assert.InDelta(t, -70.45, s.Centroid[0], 1e-9)
	assert.InDelta(t, -33.45, s.Centroid[1], 1e-9)
	// 0.1 deg x 0.1 deg at 33.45S is roughly 11.1 km x 9.3 km.
	assert.InDelta(t, 10340, s.AreaHa, 150)
	assert.Len(t, a.Ref().Fingerprint, 64)
	assert.NotEmpty(t, a.Ref().GeoJSON)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := FromBBox([4]float64{1, 1, 2, 2}, 0)
	require.NoError(t, err)
	b, err := FromBBox([4]float64{1, 1, 2, 2}, 0)
	require.NoError(t, err)
	c, err := FromBBox([4]float64{1, 1, 2, 2.5}, 0)
	require.NoError(t, err)
	d, err := FromBBox([4]float64{1, 1, 2, 2}, 500)
	require.NoError(t, err)

	assert.Equal(t, a.Ref().Fingerprint, b.Ref().Fingerprint)
	assert.NotEqual(t, a.Ref().Fingerprint, c.Ref().Fingerprint)
	assert.NotEqual(t, a.Ref().Fingerprint, d.Ref().Fingerprint)
}

func TestBufferGrowsEnvelope(t *testing.T) {
	a, err := FromBBox([4]float64{0, 0, 0.01, 0.01}, 1113.2)
	require.NoError(t, err)
	bbox := a.Summary().BBox
	want := [4]float64{-0.01, -0.01, 0.02, 0.02}
	assert.True(t, cmp.Equal(want, bbox, cmpopts.EquateApprox(0, 1e-6)), cmp.Diff(want, bbox))
}

func TestDecodeGeoJSONShapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "bare polygon", input: squareWithHole},
		{name: "feature", input: `{"type":"Feature","properties":{},"geometry":` + squareWithHole + `}`},
		{
			name: "feature collection of two",
			input: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
				{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,2]]]}}
			]}`,
		},
		{name: "point", input: `{"type":"Point","coordinates":[0,0]}`, wantErr: true},
		{name: "empty collection", input: `{"type":"FeatureCollection","features":[]}`, wantErr: true},
		{name: "not json", input: `polygon`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := DecodeGeoJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, g.Empty())
		})
	}
}

func TestLoadGeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	require.NoError(t, os.WriteFile(path, []byte(squareWithHole), 0o600))

	a, err := LoadGeoJSONFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "geojson", a.Summary().Source)

	_, err = LoadGeoJSONFile(filepath.Join(t.TempDir(), "missing.geojson"), 0)
	assert.True(t, contract.IsConfiguration(err))
}

func TestMatcherRespectsHoles(t *testing.T) {
	a, err := FromGeoJSON([]byte(squareWithHole), 0)
	require.NoError(t, err)
	m, err := NewMatcher(a.Ref())
	require.NoError(t, err)

	assert.True(t, m.Contains(0.01, 0.01))
	assert.False(t, m.Contains(0.05, 0.05), "inside the hole")
	assert.False(t, m.Contains(0.2, 0.05), "outside the shell")
}

func TestResolveFromOSMWay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":-33.50,"lon":-70.50},
			{"type":"node","id":2,"lat":-33.50,"lon":-70.40},
			{"type":"node","id":3,"lat":-33.40,"lon":-70.40},
			{"type":"node","id":4,"lat":-33.40,"lon":-70.50},
			{"type":"way","id":42,"nodes":[1,2,3,4,1],"tags":{"leisure":"park"}}
		]}`))
	}))
	defer srv.Close()

	a, err := Resolve(context.Background(), contract.AreaSpec{OSMWayID: 42}, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "osm-way:42", a.Summary().Source)
	assert.InDelta(t, -70.45, a.Summary().Centroid[0], 1e-9)

	_, err = Resolve(context.Background(), contract.AreaSpec{OSMWayID: 7}, srv.URL)
	assert.True(t, contract.IsConfiguration(err))
}
