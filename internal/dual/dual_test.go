package dual_test

import (
	"math"
	"testing"

	"github.com/jtodevs/fastlap/internal/dual"
)

const tol = 1e-9

func approxEqual(a, b float64) bool { return math.Abs(a-b) < tol }

func TestDualMulGradientMatchesProductRule(t *testing.T) {
	a := dual.NewSeed(2, 0, 3)
	b := dual.NewSeed(2, 1, 4)
	c := a.Mul(b)

	if !approxEqual(c.Val, 12) {
		t.Errorf("Val = %f, want 12", c.Val)
	}
	if !approxEqual(c.Grad[0], 4) || !approxEqual(c.Grad[1], 3) {
		t.Errorf("Grad = %v, want [4 3]", c.Grad)
	}
}

func TestDualDivGradientMatchesQuotientRule(t *testing.T) {
	a := dual.NewSeed(2, 0, 6)
	b := dual.NewSeed(2, 1, 3)
	c := a.Div(b)

	if !approxEqual(c.Val, 2) {
		t.Errorf("Val = %f, want 2", c.Val)
	}
	wantDa := 1.0 / 3
	wantDb := -6.0 / 9
	if !approxEqual(c.Grad[0], wantDa) || !approxEqual(c.Grad[1], wantDb) {
		t.Errorf("Grad = %v, want [%f %f]", c.Grad, wantDa, wantDb)
	}
}

func TestDualAtan2MatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	y, x := 1.3, 2.1
	a := dual.NewSeed(1, 0, y)
	b := dual.Constant(x)
	got := a.Atan2(b).Grad[0]

	want := (math.Atan2(y+h, x) - math.Atan2(y-h, x)) / (2 * h)
	if math.Abs(got-want) > 1e-5 {
		t.Errorf("d/dy atan2(y,x) = %f, want %f", got, want)
	}
}

func TestDualConstantHasZeroGradient(t *testing.T) {
	c := dual.Constant(5)
	if c.Grad != nil {
		t.Errorf("Constant gradient = %v, want nil", c.Grad)
	}
	sum := dual.NewSeed(1, 0, 1).Add(c)
	if sum.Grad[0] != 1 {
		t.Errorf("seed+constant gradient = %v, want [1]", sum.Grad)
	}
}

func TestFloat64SatisfiesNumber(t *testing.T) {
	a, b := dual.Float64(2), dual.Float64(3)
	if a.Add(b) != 5 || a.Mul(b) != 6 || b.Sub(a) != 1 {
		t.Error("Float64 arithmetic mismatch")
	}
	if a.Const(7) != 7 {
		t.Error("Float64.Const should return its argument unchanged")
	}
}

var _ dual.Number[dual.Float64] = dual.Float64(0)
var _ dual.Number[dual.Dual] = dual.Dual{}
