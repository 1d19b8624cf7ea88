// Package aoi resolves an area of interest from a bounding box, a GeoJSON file or an
// OpenStreetMap way, and derives its fingerprint, bounds, centroid and hectare area.
package aoi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// metresPerDegree is the length of one degree of latitude on the mean Earth sphere.
const metresPerDegree = 111320.0

// maxGeoJSONBytes bounds the size of area files read from disk.
const maxGeoJSONBytes = 32 << 20

// Area is a resolved, immutable area of interest.
type Area struct {
	geometry geom.T
	ref      schema.AreaRef
	summary  schema.AreaSummary
}

var _ contract.AreaOfInterest = (*Area)(nil)

// Ref returns the engine-facing handle with the stable fingerprint.
func (a *Area) Ref() schema.AreaRef { return a.ref }

// Summary returns derived metadata for display.
func (a *Area) Summary() schema.AreaSummary { return a.summary }

// Geometry returns the polygonal geometry in EPSG:4326.
func (a *Area) Geometry() geom.T { return a.geometry }

// Resolve loads the single area source configured in spec.
func Resolve(ctx context.Context, spec contract.AreaSpec, overpassEndpoint string) (*Area, error) {
	switch {
	case spec.BBox != nil:
		return FromBBox(*spec.BBox, spec.BufferMeters)
	case len(spec.GeoJSON) > 0:
		return FromGeoJSON(spec.GeoJSON, spec.BufferMeters)
	case spec.GeoJSONPath != "":
		return LoadGeoJSONFile(spec.GeoJSONPath, spec.BufferMeters)
	case spec.OSMWayID != 0:
		return FromOSMWay(ctx, overpassEndpoint, spec.OSMWayID, spec.BufferMeters)
	default:
		return nil, contract.NewConfigurationError("area", "no area source configured")
	}
}

// FromBBox builds a rectangular area from minLon,minLat,maxLon,maxLat.
func FromBBox(bbox [4]float64, bufferMeters float64) (*Area, error) {
	bounds := geom.NewBounds(geom.XY).Set(bbox[0], bbox[1], bbox[2], bbox[3])
	return newArea(bounds.Polygon(), "bbox", bufferMeters)
}

// LoadGeoJSONFile reads a Geometry, Feature or FeatureCollection file.
func LoadGeoJSONFile(path string, bufferMeters float64) (*Area, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, contract.NewConfigurationError("geojson", "cannot read %s: %v", path, err)
	}
	if info.Size() > maxGeoJSONBytes {
		return nil, contract.NewConfigurationError("geojson", "%s is larger than %d bytes", path, maxGeoJSONBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contract.NewConfigurationError("geojson", "cannot read %s: %v", path, err)
	}
	g, err := DecodeGeoJSON(data)
	if err != nil {
		return nil, contract.NewConfigurationError("geojson", "%s: %v", path, err)
	}
	return newArea(g, "geojson", bufferMeters)
}

// FromGeoJSON builds an area from GeoJSON bytes.
func FromGeoJSON(data []byte, bufferMeters float64) (*Area, error) {
	g, err := DecodeGeoJSON(data)
	if err != nil {
		return nil, contract.NewConfigurationError("geojson", "%v", err)
	}
	return newArea(g, "geojson", bufferMeters)
}

// DecodeGeoJSON accepts a Polygon or MultiPolygon, either bare or wrapped in a Feature
// or FeatureCollection, and returns a single polygonal geometry.
func DecodeGeoJSON(data []byte) (geom.T, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var geoms []geom.T
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := fc.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("invalid FeatureCollection: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		var f geojson.Feature
		if err := f.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("invalid Feature: %w", err)
		}
		geoms = append(geoms, f.Geometry)
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("invalid geometry: %w", err)
		}
		geoms = append(geoms, g)
	}
	return mergePolygons(geoms)
}

// mergePolygons flattens polygons and multipolygons into one geometry.
func mergePolygons(geoms []geom.T) (geom.T, error) {
	var polys []*geom.Polygon
	for _, g := range geoms {
		switch t := g.(type) {
		case *geom.Polygon:
			polys = append(polys, t)
		case *geom.MultiPolygon:
			for i := range t.NumPolygons() {
				polys = append(polys, t.Polygon(i))
			}
		case nil:
			continue
		default:
			return nil, fmt.Errorf("unsupported geometry %T: only Polygon and MultiPolygon areas are accepted", g)
		}
	}
	switch len(polys) {
	case 0:
		return nil, errors.New("no polygon geometry found")
	case 1:
		return flatten2D(polys[0]), nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, p := range polys {
		if err := mp.Push(flatten2D(p)); err != nil {
			return nil, err
		}
	}
	return mp, nil
}

// flatten2D drops Z and M ordinates so every polygon shares the XY layout.
func flatten2D(p *geom.Polygon) *geom.Polygon {
	if p.Layout() == geom.XY {
		return p
	}
	coords := p.Coords()
	for i, ring := range coords {
		for j, c := range ring {
			coords[i][j] = geom.Coord{c.X(), c.Y()}
		}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords(coords)
}

// newArea derives the reference and summary of a polygonal geometry. A positive buffer
// replaces the geometry with its envelope grown by that many metres.
func newArea(g geom.T, source string, bufferMeters float64) (*Area, error) {
	if g == nil || g.Empty() {
		return nil, contract.NewConfigurationError("area", "geometry is empty")
	}
	bounds := g.Bounds()
	if bufferMeters > 0 {
		midLat := (bounds.Min(1) + bounds.Max(1)) / 2
		dLat := bufferMeters / metresPerDegree
		dLon := bufferMeters / (metresPerDegree * math.Max(math.Cos(midLat*math.Pi/180), 1e-6))
		bounds = geom.NewBounds(geom.XY).Set(
			math.Max(bounds.Min(0)-dLon, -180), math.Max(bounds.Min(1)-dLat, -90),
			math.Min(bounds.Max(0)+dLon, 180), math.Min(bounds.Max(1)+dLat, 90),
		)
		g = bounds.Polygon()
	}

	raw, err := geojson.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode area geometry: %w", err)
	}

	centroid, err := xy.Centroid(g)
	if err != nil {
		return nil, fmt.Errorf("area centroid: %w", err)
	}

	bbox := [4]float64{bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)}
	ref := schema.AreaRef{
		Fingerprint: fingerprint(raw),
		BBox:        bbox,
		GeoJSON:     raw,
	}
	return &Area{
		geometry: g,
		ref:      ref,
		summary: schema.AreaSummary{
			Fingerprint: ref.Fingerprint,
			BBox:        bbox,
			Centroid:    [2]float64{centroid.X(), centroid.Y()},
			AreaHa:      hectares(g, centroid.Y()),
			Source:      source,
		},
	}, nil
}

// fingerprint is a stable digest of the canonical GeoJSON encoding.
func fingerprint(raw []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}

// hectares approximates the surface area of a lon/lat geometry with an equirectangular
// projection at the centroid latitude. Accurate to well under a percent for areas a few
// tens of kilometres across.
func hectares(g geom.T, lat float64) float64 {
	var deg2 float64
	switch t := g.(type) {
	case *geom.Polygon:
		deg2 = t.Area()
	case *geom.MultiPolygon:
		deg2 = t.Area()
	}
	m2 := deg2 * metresPerDegree * metresPerDegree * math.Cos(lat*math.Pi/180)
	return math.Abs(m2) / 10000
}
