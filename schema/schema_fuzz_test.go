package schema

import (
	"math"
	"testing"
)

// FuzzThresholdsClassify checks that every delta maps to exactly one class.
func FuzzThresholdsClassify(f *testing.F) {
	seeds := []float64{
		0, -0.15, -0.05, 0.05, 0.15, -0.1, 0.1, -1, 1,
		math.SmallestNonzeroFloat64, math.MaxFloat64, -math.MaxFloat64,
		math.Inf(1), math.Inf(-1), math.NaN(),
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, d float64) {
		for index, th := range DefaultThresholds {
			c := th.Classify(d)
			if math.IsNaN(d) {
				if c != NoClass {
					t.Fatalf("%s: NaN classified as %d", index, c)
				}
				continue
			}
			if c < StrongLoss || c > StrongGain {
				t.Fatalf("%s: delta %v classified as %d", index, d, c)
			}
			if _, ok := ChangeClassInfo[c]; !ok {
				t.Fatalf("%s: class %d has no display info", index, c)
			}
		}
	})
}
