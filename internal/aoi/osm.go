package aoi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
)

// overpassTimeout bounds a single Overpass query.
const overpassTimeout = 60 * time.Second

// FromOSMWay fetches a closed OpenStreetMap way (a park, a reserve boundary) through the
// Overpass API and uses its outline as the area.
func FromOSMWay(ctx context.Context, endpoint string, wayID int64, bufferMeters float64) (*Area, error) {
	if endpoint == "" {
		endpoint = contract.DefaultOverpassEndpoint
	}
	client := overpass.NewWithSettings(endpoint, 1, &http.Client{Timeout: overpassTimeout})

	query := fmt.Sprintf("[out:json];way(%d);(._;>;);out body;", wayID)
	type queryResult struct {
		res overpass.Result
		err error
	}
	done := make(chan queryResult, 1)
	go func() {
		res, err := client.Query(query)
		done <- queryResult{res, err}
	}()

	var res overpass.Result
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &contract.TimeoutError{Operation: fmt.Sprintf("overpass way %d", wayID), Limit: overpassTimeout}
		}
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("overpass query for way %d failed: %w", wayID, r.err)
		}
		res = r.res
	}

	way, ok := res.Ways[wayID]
	if !ok || way == nil {
		return nil, contract.NewConfigurationError("osm-way", "way %d not found", wayID)
	}
	ring, err := wayRing(way)
	if err != nil {
		return nil, contract.NewConfigurationError("osm-way", "way %d: %v", wayID, err)
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return nil, fmt.Errorf("build polygon for way %d: %w", wayID, err)
	}
	return newArea(poly, fmt.Sprintf("osm-way:%d", wayID), bufferMeters)
}

// wayRing converts way nodes into a closed lon/lat ring.
func wayRing(way *overpass.Way) ([]geom.Coord, error) {
	ring := make([]geom.Coord, 0, len(way.Nodes)+1)
	for _, n := range way.Nodes {
		if n == nil {
			continue
		}
		ring = append(ring, geom.Coord{n.Lon, n.Lat})
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("needs at least 3 nodes, got %d", len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		ring = append(ring, first)
	}
	return ring, nil
}
