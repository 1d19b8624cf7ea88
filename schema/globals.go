package schema

// Sensor identifiers with built-in schemas.
const (
	Landsat5  = "LANDSAT/LT05/C02/T1_L2"
	Landsat7  = "LANDSAT/LE07/C02/T1_L2"
	Landsat8  = "LANDSAT/LC08/C02/T1_L2"
	Sentinel2 = "COPERNICUS/S2_SR_HARMONIZED"
)

// DefaultPeriods is the built-in period catalogue in chronological order.
var DefaultPeriods = []PeriodWindow{
	{
		ID:          "1990s",
		Start:       MustDate("1985-01-01"),
		End:         MustDate("1999-12-31"),
		Sensors:     []string{Landsat5},
		Description: "Landsat 5 TM baseline",
	},
	{
		ID:          "2000s",
		Start:       MustDate("2000-01-01"),
		End:         MustDate("2012-12-31"),
		Sensors:     []string{Landsat7, Landsat5},
		Description: "Landsat 7 ETM+ and Landsat 5 TM",
	},
	{
		ID:          "2010s",
		Start:       MustDate("2013-01-01"),
		End:         MustDate("2020-12-31"),
		Sensors:     []string{Landsat8},
		Description: "Landsat 8 OLI",
	},
	{
		ID:          "present",
		Start:       MustDate("2021-01-01"),
		End:         MustDate("2024-12-31"),
		Sensors:     []string{Landsat8, Sentinel2},
		Description: "Landsat 8 OLI fused with Sentinel-2 MSI",
	},
}

// ClassInfo is the presentation metadata of a change class.
type ClassInfo struct {
	Class   ChangeClass `json:"class"`
	Label   string      `json:"label"`
	LabelES string      `json:"label_es"`
	Color   string      `json:"color"`
}

// ChangeClassInfo describes every assignable class.
var ChangeClassInfo = map[ChangeClass]ClassInfo{
	StrongLoss:   {Class: StrongLoss, Label: "Strong Loss", LabelES: "Pérdida Fuerte", Color: "#d7191c"},
	ModerateLoss: {Class: ModerateLoss, Label: "Moderate Loss", LabelES: "Pérdida Moderada", Color: "#fdae61"},
	Stable:       {Class: Stable, Label: "Stable", LabelES: "Estable", Color: "#ffffbf"},
	ModerateGain: {Class: ModerateGain, Label: "Moderate Gain", LabelES: "Ganancia Moderada", Color: "#a6d96a"},
	StrongGain:   {Class: StrongGain, Label: "Strong Gain", LabelES: "Ganancia Fuerte", Color: "#1a9641"},
}

// DefaultThresholds holds the built-in thresholds by index name.
var DefaultThresholds = map[string]Thresholds{
	"ndvi": {StrongLoss: -0.15, ModerateLoss: -0.05, StableMin: -0.05, StableMax: 0.05, ModerateGain: 0.05, StrongGain: 0.15},
	"nbr":  {StrongLoss: -0.20, ModerateLoss: -0.10, StableMin: -0.10, StableMax: 0.10, ModerateGain: 0.10, StrongGain: 0.20},
}

// ThresholdsFor returns the built-in thresholds for an index, falling back to ndvi.
func ThresholdsFor(index string) Thresholds {
	if t, ok := DefaultThresholds[index]; ok {
		return t
	}
	return DefaultThresholds["ndvi"]
}

// FindPeriod looks a period up in a catalogue.
func FindPeriod(catalogue []PeriodWindow, id string) (PeriodWindow, bool) {
	for _, p := range catalogue {
		if p.ID == id {
			return p, true
		}
	}
	return PeriodWindow{}, false
}
