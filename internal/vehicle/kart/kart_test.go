package kart

import (
	"math"
	"testing"

	"github.com/jtodevs/fastlap/internal/dual"
)

func TestEvaluateStraightCruise(t *testing.T) {
	m := New[dual.Float64]()
	q := make([]dual.Float64, nState)
	q[IU] = 15
	u := []dual.Float64{0, 0.3}

	dq, ra := m.Evaluate(q, nil, u, 0)

	if len(dq) != nState {
		t.Fatalf("len(dq) = %d, want %d", len(dq), nState)
	}
	if ra != nil {
		t.Fatalf("ra = %v, want nil (kart has no algebraic state)", ra)
	}
	if dq[ITIME].Value() <= 0 {
		t.Errorf("dt/ds = %f, want positive", dq[ITIME].Value())
	}
	if dq[IU].Value() <= 0 {
		t.Errorf("du/ds = %f at positive rear torque straight line, want positive", dq[IU].Value())
	}
}

func TestEvaluateSteeringYawsTowardTurn(t *testing.T) {
	m := New[dual.Float64]()
	q := make([]dual.Float64, nState)
	q[IU] = 12
	u := []dual.Float64{0.06, 0}

	dq, _ := m.Evaluate(q, nil, u, 0)
	if dq[IOMEGA].Value() <= 0 {
		t.Errorf("domega/ds = %f for positive steering, want positive", dq[IOMEGA].Value())
	}
}

func TestRollStateDampsTowardZeroWithoutLateralLoad(t *testing.T) {
	m := New[dual.Float64]()
	q := make([]dual.Float64, nState)
	q[IU] = 10
	q[IROLL] = 0.1
	u := []dual.Float64{0, 0}

	dq, _ := m.Evaluate(q, nil, u, 0)
	if dq[IDROLL].Value() >= 0 {
		t.Errorf("ddroll/ds = %f with positive roll and no lateral load, want negative (restoring)", dq[IDROLL].Value())
	}
}

func TestGradientAgreesWithFiniteDifference(t *testing.T) {
	eval := func(deltaVal float64) float64 {
		m := New[dual.Float64]()
		q := make([]dual.Float64, nState)
		q[IU] = 12
		u := []dual.Float64{dual.Float64(deltaVal), 0}
		dq, _ := m.Evaluate(q, nil, u, 0)
		return dq[IOMEGA].Value()
	}

	m := New[dual.Dual]()
	q := make([]dual.Dual, nState)
	for i := range q {
		q[i] = dual.Constant(0)
	}
	q[IU] = dual.Constant(12)
	delta0 := 0.05
	u := []dual.Dual{dual.NewSeed(1, 0, delta0), dual.Constant(0)}

	dq, _ := m.Evaluate(q, nil, u, 0)

	h := 1e-4
	fd := (eval(delta0+h) - eval(delta0-h)) / (2 * h)
	got := dq[IOMEGA].Grad[0]
	if math.Abs(got-fd) > 1e-3*math.Max(1, math.Abs(fd)) {
		t.Errorf("AD d(domega/ds)/ddelta = %f, finite-difference = %f", got, fd)
	}
}
