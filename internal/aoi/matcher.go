package aoi

import (
	"fmt"

	"github.com/huangsam/vegchange/schema"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// Matcher answers point-in-area queries for an AreaRef. Engines use it to clip
// reductions and histograms to the area.
type Matcher struct {
	bbox  [4]float64
	polys []*geom.Polygon
}

// NewMatcher decodes the reference geometry. A reference without GeoJSON matches its bbox.
func NewMatcher(ref schema.AreaRef) (*Matcher, error) {
	m := &Matcher{bbox: ref.BBox}
	if len(ref.GeoJSON) == 0 {
		return m, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(ref.GeoJSON, &g); err != nil {
		return nil, fmt.Errorf("decode area %s: %w", ref.Fingerprint, err)
	}
	switch t := g.(type) {
	case *geom.Polygon:
		m.polys = []*geom.Polygon{t}
	case *geom.MultiPolygon:
		for i := range t.NumPolygons() {
			m.polys = append(m.polys, t.Polygon(i))
		}
	default:
		return nil, fmt.Errorf("area %s is %T, not polygonal", ref.Fingerprint, g)
	}
	return m, nil
}

// BBox returns minLon,minLat,maxLon,maxLat.
func (m *Matcher) BBox() [4]float64 { return m.bbox }

// Contains reports whether lon,lat falls inside the area. Holes are excluded.
func (m *Matcher) Contains(lon, lat float64) bool {
	if lon < m.bbox[0] || lon > m.bbox[2] || lat < m.bbox[1] || lat > m.bbox[3] {
		return false
	}
	if len(m.polys) == 0 {
		return true
	}
	p := geom.Coord{lon, lat}
	for _, poly := range m.polys {
		if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < poly.NumLinearRings(); i++ {
			if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
