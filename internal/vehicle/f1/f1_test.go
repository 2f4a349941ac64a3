package f1

import (
	"math"
	"testing"

	"github.com/jtodevs/fastlap/internal/dual"
)

func TestEvaluateStraightCruise(t *testing.T) {
	m := New[dual.Float64]()
	q := []dual.Float64{0, 0, 0, 20, 0, 0}
	qa := []dual.Float64{1000, 1000, 1000, 1000}
	u := []dual.Float64{0, 0.1, 0.6}

	dq, ra := m.Evaluate(q, qa, u, 0)

	if len(dq) != nState {
		t.Fatalf("len(dq) = %d, want %d", len(dq), nState)
	}
	if len(ra) != nAlgebraic {
		t.Fatalf("len(ra) = %d, want %d", len(ra), nAlgebraic)
	}
	if dq[ITIME].Value() <= 0 {
		t.Errorf("dt/ds = %f, want positive", dq[ITIME].Value())
	}
	if dq[IU].Value() <= 0 {
		t.Errorf("du/ds = %f at positive throttle straight line, want positive", dq[IU].Value())
	}
}

func TestEvaluateSteeringYawsTowardTurn(t *testing.T) {
	m := New[dual.Float64]()
	q := []dual.Float64{0, 0, 0, 30, 0, 0}
	qa := []dual.Float64{1000, 1000, 1000, 1000}
	u := []dual.Float64{0.05, 0, 0.6}

	dq, _ := m.Evaluate(q, qa, u, 0)
	if dq[IOMEGA].Value() <= 0 {
		t.Errorf("domega/ds = %f for positive steering, want positive", dq[IOMEGA].Value())
	}
}

func TestEvaluateAlgebraicResidualsMatchWeightAtEquilibrium(t *testing.T) {
	m := New[dual.Float64]()
	mass := m.Params().ByAlias("mass").At(0)
	g := m.Params().ByAlias("g").At(0)
	quarter := mass * g / 4
	q := []dual.Float64{0, 0, 0, 5, 0, 0}
	qa := []dual.Float64{dual.Float64(quarter), dual.Float64(quarter), dual.Float64(quarter), dual.Float64(quarter)}
	u := []dual.Float64{0, 0, 0.6}

	_, ra := m.Evaluate(q, qa, u, 0)
	if math.Abs(ra[IFZFL].Value()) > mass*g*0.05 {
		t.Errorf("Fz_eq residual = %f, want near zero at a plausible static split", ra[IFZFL].Value())
	}
}

func TestGradientAgreesWithFiniteDifference(t *testing.T) {
	eval := func(uVal float64) float64 {
		m := New[dual.Float64]()
		q := []dual.Float64{0, 0, 0, dual.Float64(uVal), 0, 0}
		qa := []dual.Float64{1000, 1000, 1000, 1000}
		u := []dual.Float64{0, 0.2, 0.6}
		dq, _ := m.Evaluate(q, qa, u, 0)
		return dq[IU].Value()
	}

	m := New[dual.Dual]()
	u0 := 30.0
	q := []dual.Dual{dual.Constant(0), dual.Constant(0), dual.Constant(0), dual.NewSeed(1, 0, u0), dual.Constant(0), dual.Constant(0)}
	qa := []dual.Dual{dual.Constant(1000), dual.Constant(1000), dual.Constant(1000), dual.Constant(1000)}
	u := []dual.Dual{dual.Constant(0), dual.Constant(0.2), dual.Constant(0.6)}
	dq, _ := m.Evaluate(q, qa, u, 0)

	h := 1e-4
	fd := (eval(u0+h) - eval(u0-h)) / (2 * h)
	got := dq[IU].Grad[0]
	if math.Abs(got-fd) > 1e-3*math.Max(1, math.Abs(fd)) {
		t.Errorf("AD d(du/ds)/du = %f, finite-difference = %f", got, fd)
	}
}
