// Package expr defines the band-algebra request graph sent to compute engines.
//
// Expressions are plain JSON-serialisable trees. Engines either forward them to a remote
// platform or evaluate them per pixel with Eval. NaN is the no-data value throughout.
package expr

import (
	"fmt"
	"math"

	"github.com/huangsam/vegchange/schema"
)

// Op names an expression operator.
type Op string

// Supported operators.
const (
	OpBand      Op = "band"
	OpConst     Op = "const"
	OpAdd       Op = "add"
	OpSub       Op = "sub"
	OpMul       Op = "mul"
	OpDiv       Op = "div"
	OpClamp     Op = "clamp"
	OpBitsClear Op = "bits_clear"
	OpNonZeroOr Op = "nonzero_or"
	OpClassify  Op = "classify"
)

// DivEpsilon is the denominator magnitude below which division yields no-data.
const DivEpsilon = 1e-10

// Node is one vertex of the expression tree.
type Node struct {
	Op         Op                 `json:"op"`
	Image      string             `json:"image,omitempty"`
	Band       string             `json:"band,omitempty"`
	Value      float64            `json:"value,omitempty"`
	Min        float64            `json:"min,omitempty"`
	Max        float64            `json:"max,omitempty"`
	Bits       []uint             `json:"bits,omitempty"`
	Thresholds *schema.Thresholds `json:"thresholds,omitempty"`
	Args       []Node             `json:"args,omitempty"`
}

// NamedExpr is an output band definition.
type NamedExpr struct {
	Name string `json:"name"`
	Expr Node   `json:"expr"`
}

// Band references a band of the primary input image.
func Band(name string) Node { return Node{Op: OpBand, Band: name} }

// BandOf references a band of an aliased input image.
func BandOf(image, name string) Node { return Node{Op: OpBand, Image: image, Band: name} }

// Const is a literal.
func Const(v float64) Node { return Node{Op: OpConst, Value: v} }

// Add sums its arguments.
func Add(args ...Node) Node { return Node{Op: OpAdd, Args: args} }

// Sub is a - b.
func Sub(a, b Node) Node { return Node{Op: OpSub, Args: []Node{a, b}} }

// Mul multiplies its arguments.
func Mul(args ...Node) Node { return Node{Op: OpMul, Args: args} }

// Div is a / b, no-data where |b| < DivEpsilon.
func Div(a, b Node) Node { return Node{Op: OpDiv, Args: []Node{a, b}} }

// Clamp bounds x to [lo, hi].
func Clamp(x Node, lo, hi float64) Node { return Node{Op: OpClamp, Min: lo, Max: hi, Args: []Node{x}} }

// BitsClear is 1 where none of the given bits of an integer band are set, else 0.
func BitsClear(x Node, bits ...uint) Node { return Node{Op: OpBitsClear, Bits: bits, Args: []Node{x}} }

// NonZeroOr returns x, or fallback where x is exactly zero.
func NonZeroOr(x Node, fallback float64) Node {
	return Node{Op: OpNonZeroOr, Value: fallback, Args: []Node{x}}
}

// Classify maps x to a change class using t. No-data stays no-data.
func Classify(x Node, t schema.Thresholds) Node {
	return Node{Op: OpClassify, Thresholds: &t, Args: []Node{x}}
}

// NormalizedDifference is (a - b) / (a + b).
func NormalizedDifference(a, b string) Node {
	return Div(Sub(Band(a), Band(b)), Add(Band(a), Band(b)))
}

// Lookup resolves a band value for the pixel being evaluated.
type Lookup func(image, band string) (float64, bool)

// Eval evaluates n for a single pixel.
func Eval(n Node, lookup Lookup) (float64, error) {
	switch n.Op {
	case OpBand:
		v, ok := lookup(n.Image, n.Band)
		if !ok {
			return 0, fmt.Errorf("unknown band '%s' on image '%s'", n.Band, n.Image)
		}
		return v, nil
	case OpConst:
		return n.Value, nil
	}

	vals := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, lookup)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}

	switch n.Op {
	case OpAdd:
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum, nil
	case OpMul:
		prod := 1.0
		for _, v := range vals {
			prod *= v
		}
		return prod, nil
	case OpSub:
		if len(vals) != 2 {
			return 0, fmt.Errorf("sub expects 2 arguments, got %d", len(vals))
		}
		return vals[0] - vals[1], nil
	case OpDiv:
		if len(vals) != 2 {
			return 0, fmt.Errorf("div expects 2 arguments, got %d", len(vals))
		}
		if math.IsNaN(vals[1]) || math.Abs(vals[1]) < DivEpsilon {
			return math.NaN(), nil
		}
		return vals[0] / vals[1], nil
	case OpClamp:
		if len(vals) != 1 {
			return 0, fmt.Errorf("clamp expects 1 argument, got %d", len(vals))
		}
		if math.IsNaN(vals[0]) {
			return vals[0], nil
		}
		return math.Min(math.Max(vals[0], n.Min), n.Max), nil
	case OpBitsClear:
		if len(vals) != 1 {
			return 0, fmt.Errorf("bits_clear expects 1 argument, got %d", len(vals))
		}
		if math.IsNaN(vals[0]) {
			return 0, nil
		}
		qa := uint64(vals[0])
		for _, b := range n.Bits {
			if qa&(1<<b) != 0 {
				return 0, nil
			}
		}
		return 1, nil
	case OpNonZeroOr:
		if len(vals) != 1 {
			return 0, fmt.Errorf("nonzero_or expects 1 argument, got %d", len(vals))
		}
		if vals[0] == 0 {
			return n.Value, nil
		}
		return vals[0], nil
	case OpClassify:
		if len(vals) != 1 || n.Thresholds == nil {
			return 0, fmt.Errorf("classify expects 1 argument and thresholds")
		}
		c := n.Thresholds.Classify(vals[0])
		if c == schema.NoClass {
			return math.NaN(), nil
		}
		return float64(c), nil
	default:
		return 0, fmt.Errorf("unsupported operator '%s'", n.Op)
	}
}

// Bands lists the distinct (image, band) references in n.
func Bands(n Node) [][2]string {
	seen := map[[2]string]bool{}
	var out [][2]string
	var walk func(Node)
	walk = func(n Node) {
		if n.Op == OpBand {
			k := [2]string{n.Image, n.Band}
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(n)
	return out
}
