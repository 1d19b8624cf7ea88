package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/schema"
)

// Reflectance is a canonical surface reflectance per band role.
type Reflectance map[schema.BandRole]float64

// ReflectanceForNDVI returns a plausible pixel with the given NDVI, keeping nir+red fixed.
func ReflectanceForNDVI(ndvi float64) Reflectance {
	const sum = 0.4
	nir := sum * (1 + ndvi) / 2
	red := sum - nir
	return Reflectance{
		schema.Blue:  0.04,
		schema.Green: 0.07,
		schema.Red:   red,
		schema.NIR:   nir,
		schema.SWIR1: 0.18,
		schema.SWIR2: 0.10,
	}
}

// UniformScene builds a scene with the same reflectance everywhere and a clear QA band.
func UniformScene(s registry.SensorSchema, meta schema.Scene, r Reflectance) SyntheticScene {
	return PatternScene(s, meta, func(int, int) (Reflectance, uint64) { return r, 0 })
}

// PatternScene builds a scene whose reflectance and QA bits vary per grid cell.
func PatternScene(s registry.SensorSchema, meta schema.Scene, pixel func(col, row int) (Reflectance, uint64)) SyntheticScene {
	meta.Sensor = s.ID
	return SyntheticScene{
		Scene: meta,
		Pixel: func(col, row int) map[string]float64 {
			r, qa := pixel(col, row)
			native := make(map[string]float64, len(s.Bands)+1)
			for role, band := range s.Bands {
				native[band] = s.ToNative(r[role])
			}
			native[s.QABand] = float64(qa)
			return native
		},
	}
}

// DemoScenes generates a few scenes per sensor and period with vegetation thinning over
// time, a cloudy scene per sensor that the cloud filter should drop, and a band of
// cloud-flagged pixels in every scene that the mask should drop.
func DemoScenes(reg *registry.Registry, periods []schema.PeriodWindow) ([]SyntheticScene, error) {
	var out []SyntheticScene
	for pi, p := range periods {
		for _, sensorID := range p.Sensors {
			s, err := reg.Sensor(sensorID)
			if err != nil {
				return nil, err
			}
			var cloudBit uint64
			if len(s.MaskBits) > 0 {
				cloudBit = uint64(1) << s.MaskBits[min(1, len(s.MaskBits)-1)]
			}
			span := p.End.Sub(p.Start)
			for k := range 5 {
				date := p.Start.Add(time.Duration(float64(span) * (float64(k) + 0.5) / 5))
				cloud := 5.0 + float64(k)*3
				if k == 4 {
					cloud = 80
				}
				meta := schema.Scene{
					ID:         fmt.Sprintf("%s/%s_%d", sensorID, date.Format("20060102"), k),
					Date:       date,
					CloudCover: cloud,
				}
				period := pi
				out = append(out, PatternScene(s, meta, func(col, row int) (Reflectance, uint64) {
					// Vegetation declines by period and from west to east.
					ndvi := 0.75 - 0.12*float64(period) - 0.02*float64(col) + 0.01*math.Sin(float64(row+k))
					var qa uint64
					if row == k {
						qa = cloudBit
					}
					return ReflectanceForNDVI(ndvi), qa
				}))
			}
		}
	}
	return out, nil
}
