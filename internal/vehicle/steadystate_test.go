package vehicle_test

import (
	"math"
	"testing"

	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/vehicle"
	"github.com/jtodevs/fastlap/internal/vehicle/f1"
	"github.com/jtodevs/fastlap/internal/vehicle/kart"
)

func evaluateBodyState(buildFloat func() vehicle.Model[dual.Float64], q, qa, u []float64) vehicle.BodyState {
	m := buildFloat()
	qf := make([]dual.Float64, len(q))
	for i, v := range q {
		qf[i] = dual.Float64(v)
	}
	uf := make([]dual.Float64, len(u))
	for i, v := range u {
		uf[i] = dual.Float64(v)
	}
	qaf := make([]dual.Float64, len(qa))
	for i, v := range qa {
		qaf[i] = dual.Float64(v)
	}
	m.Evaluate(qf, qaf, uf, 0)
	return m.LastBodyState()
}

func TestSteadyStateKartStraightLineMatchesTarget(t *testing.T) {
	target := vehicle.Target{V: 15, Ax: 1.5, Ay: 0}
	q, qa, u, err := vehicle.SteadyState(func() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }, target)
	if err != nil {
		t.Fatalf("SteadyState returned error: %v", err)
	}

	body := evaluateBodyState(func() vehicle.Model[dual.Float64] { return kart.New[dual.Float64]() }, q, qa, u)
	if math.Abs(body.Ax-target.Ax) > 0.05 {
		t.Errorf("Ax = %f, want close to target %f", body.Ax, target.Ax)
	}
	if math.Abs(body.Ay-target.Ay) > 0.05 {
		t.Errorf("Ay = %f, want close to target %f", body.Ay, target.Ay)
	}
}

func TestSteadyStateKartCorneringMatchesTarget(t *testing.T) {
	target := vehicle.Target{V: 15, Ax: 0, Ay: 3}
	q, qa, u, err := vehicle.SteadyState(func() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }, target)
	if err != nil {
		t.Fatalf("SteadyState returned error: %v", err)
	}

	body := evaluateBodyState(func() vehicle.Model[dual.Float64] { return kart.New[dual.Float64]() }, q, qa, u)
	if math.Abs(body.Ay-target.Ay) > 0.1 {
		t.Errorf("Ay = %f, want close to target %f", body.Ay, target.Ay)
	}
	if u[0] <= 0 {
		t.Errorf("steering angle = %f for a positive ay target, want positive", u[0])
	}
}

func TestSteadyStateF1SolvesAlgebraicLoadsToo(t *testing.T) {
	target := vehicle.Target{V: 10, Ax: 0, Ay: 2}
	_, qa, _, err := vehicle.SteadyState(func() vehicle.Model[dual.Dual] { return f1.New[dual.Dual]() }, target)
	if err != nil {
		t.Fatalf("SteadyState returned error: %v", err)
	}
	if len(qa) != 4 {
		t.Fatalf("len(qa) = %d, want 4", len(qa))
	}
	sum := 0.0
	for _, fz := range qa {
		if fz < 0 {
			t.Errorf("corner load %f is negative, not a plausible static split", fz)
		}
		sum += fz
	}
	m := f1.New[dual.Float64]()
	mass := m.Params().ByAlias("mass").At(0)
	g := m.Params().ByAlias("g").At(0)
	if math.Abs(sum-mass*g) > mass*g*0.2 {
		t.Errorf("sum of corner loads = %f, want close to weight %f", sum, mass*g)
	}
}

func TestSteadyStateRejectsNonPositiveSpeed(t *testing.T) {
	_, _, _, err := vehicle.SteadyState(func() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }, vehicle.Target{V: 0, Ax: 0, Ay: 0})
	if err == nil {
		t.Fatal("SteadyState with V=0 should fail, not silently divide by zero")
	}
}

func TestGGDiagramEnvelopeHasPositiveWidth(t *testing.T) {
	pts, err := vehicle.GGDiagram(func() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }, 15, 5, 6, 4)
	if err != nil {
		t.Fatalf("GGDiagram returned error: %v", err)
	}
	if len(pts) != 5 {
		t.Fatalf("len(pts) = %d, want 5", len(pts))
	}
	mid := pts[2]
	if mid.AxMax <= mid.AxMin {
		t.Errorf("at ay=%f, AxMax=%f should exceed AxMin=%f", mid.Ay, mid.AxMax, mid.AxMin)
	}
}
