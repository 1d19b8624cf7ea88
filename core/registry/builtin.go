package registry

import (
	"github.com/huangsam/vegchange/internal/expr"
	"github.com/huangsam/vegchange/schema"
)

// Landsat Collection 2 Level 2 surface reflectance scaling.
const (
	landsatScale  = 0.0000275
	landsatOffset = -0.2
)

// Landsat QA_PIXEL bits: dilated cloud, cloud, cloud shadow, snow.
var landsatMaskBits = []uint{1, 3, 4, 5}

// Sentinel-2 QA60 bits: opaque cloud, cirrus.
var sentinelMaskBits = []uint{10, 11}

func builtinSensors() []SensorSchema {
	tmEtm := map[schema.BandRole]string{
		schema.Blue:  "SR_B1",
		schema.Green: "SR_B2",
		schema.Red:   "SR_B3",
		schema.NIR:   "SR_B4",
		schema.SWIR1: "SR_B5",
		schema.SWIR2: "SR_B7",
	}
	return []SensorSchema{
		{
			ID: schema.Landsat5, Name: "Landsat 5 TM", Bands: tmEtm, QABand: "QA_PIXEL",
			Scale: landsatScale, Offset: landsatOffset, CloudProperty: "CLOUD_COVER", MaskBits: landsatMaskBits,
		},
		{
			ID: schema.Landsat7, Name: "Landsat 7 ETM+", Bands: tmEtm, QABand: "QA_PIXEL",
			Scale: landsatScale, Offset: landsatOffset, CloudProperty: "CLOUD_COVER", MaskBits: landsatMaskBits,
		},
		{
			ID: schema.Landsat8, Name: "Landsat 8 OLI", QABand: "QA_PIXEL",
			Bands: map[schema.BandRole]string{
				schema.Blue:  "SR_B2",
				schema.Green: "SR_B3",
				schema.Red:   "SR_B4",
				schema.NIR:   "SR_B5",
				schema.SWIR1: "SR_B6",
				schema.SWIR2: "SR_B7",
			},
			Scale: landsatScale, Offset: landsatOffset, CloudProperty: "CLOUD_COVER", MaskBits: landsatMaskBits,
		},
		{
			ID: schema.Sentinel2, Name: "Sentinel-2 MSI", QABand: "QA60",
			Bands: map[schema.BandRole]string{
				schema.Blue:  "B2",
				schema.Green: "B3",
				schema.Red:   "B4",
				schema.NIR:   "B8",
				schema.SWIR1: "B11",
				schema.SWIR2: "B12",
			},
			Scale: 0.0001, Offset: 0, CloudProperty: "CLOUDY_PIXEL_PERCENTAGE", MaskBits: sentinelMaskBits,
		},
	}
}

func canonical(role schema.BandRole) expr.Node { return expr.Band(string(role)) }

func builtinIndices() []IndexSpec {
	// EVI = 2.5 * (nir - red) / (nir + 6*red - 7.5*blue + 1)
	evi := expr.Mul(
		expr.Const(2.5),
		expr.Div(
			expr.Sub(canonical(schema.NIR), canonical(schema.Red)),
			expr.Add(canonical(schema.NIR), expr.Mul(expr.Const(6), canonical(schema.Red)), expr.Mul(expr.Const(-7.5), canonical(schema.Blue)), expr.Const(1)),
		),
	)
	return []IndexSpec{
		{Name: "ndvi", Description: "Normalized Difference Vegetation Index", Formula: expr.NormalizedDifference(string(schema.NIR), string(schema.Red))},
		{Name: "evi", Description: "Enhanced Vegetation Index", Formula: evi},
		{Name: "nbr", Description: "Normalized Burn Ratio", Formula: expr.NormalizedDifference(string(schema.NIR), string(schema.SWIR2))},
		{Name: "ndwi", Description: "Normalized Difference Water Index", Formula: expr.NormalizedDifference(string(schema.Green), string(schema.NIR))},
		{Name: "ndmi", Description: "Normalized Difference Moisture Index", Formula: expr.NormalizedDifference(string(schema.NIR), string(schema.SWIR1))},
	}
}
