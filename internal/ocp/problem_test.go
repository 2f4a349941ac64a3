package ocp_test

import (
	"testing"

	"github.com/jtodevs/fastlap/internal/config"
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/ocp"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/vehicle"
	"github.com/jtodevs/fastlap/internal/vehicle/kart"
)

func straightTrack(t *testing.T, length float64) *track.Surface {
	t.Helper()
	s := []float64{0, length / 2, length}
	x := []float64{0, length / 2, length}
	y := []float64{0, 0, 0}
	theta := []float64{0, 0, 0}
	kappa := []float64{0, 0, 0}
	nl := []float64{5, 5, 5}
	nr := []float64{5, 5, 5}
	sf, err := track.NewSurface(false, 0, s, x, y, theta, kappa, nl, nr)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	return sf
}

func kartBuilder() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }

func openOptions(nPoints int) *config.OptimalLaptimeOptions {
	return &config.OptimalLaptimeOptions{
		NPoints:  nPoints,
		IsClosed: false,
		IsDirect: true,
		Controls: map[string]config.ControlConfig{
			"delta":       {Mode: config.ControlDontOptimize},
			"rear_torque": {Mode: config.ControlDontOptimize},
		},
	}
}

func TestProblemBuildOpenTrackLayout(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// 3 nodes, 7 non-time states free, no algebraic, no free controls (both
	// dont_optimize) -> perNode = 7, nVars = 21.
	if got, want := p.NVars(), 21; got != want {
		t.Errorf("NVars() = %d, want %d", got, want)
	}
	// 2 segments * 7 states (dynamics) + 7 boundary = 21.
	if got, want := p.NEq(), 2*7+7; got != want {
		t.Errorf("NEq() = %d, want %d", got, want)
	}
}

func TestProblemBuildClosedTrackHasWrapSegment(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	opts.IsClosed = true
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// closed: nSegments = nNodes = 3, no boundary equation.
	if got, want := p.NEq(), 3*7; got != want {
		t.Errorf("NEq() = %d, want %d", got, want)
	}
}

func TestProblemBuildRejectsMissingInitialStateOpenTrack(t *testing.T) {
	surface := straightTrack(t, 30)
	p := ocp.NewProblem(kartBuilder, surface, openOptions(3))
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err == nil {
		t.Fatal("Build should fail without an initial state on an open track")
	}
}

func TestProblemBuildRejectsInitialStateOnClosedTrack(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	opts.IsClosed = true
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err == nil {
		t.Fatal("Build should fail when an initial state is set on a closed track")
	}
}

func TestProblemBuildRejectsConstantControlMode(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	opts.Controls["delta"] = config.ControlConfig{Mode: config.ControlConstant}
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	if err := p.Build(); err == nil {
		t.Fatal("Build should reject the reserved constant control mode")
	}
}

func TestProblemBuildRejectsUnknownControlName(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	opts.Controls["brake_bias"] = config.ControlConfig{Mode: config.ControlDontOptimize}
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	if err := p.Build(); err == nil {
		t.Fatal("Build should reject a control name the model doesn't have")
	}
}

func TestProblemFullMeshControlAddsFreeVariablesAndControlRateEq(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := &config.OptimalLaptimeOptions{
		NPoints:  3,
		IsClosed: false,
		IsDirect: false,
		Controls: map[string]config.ControlConfig{
			"delta":       {Mode: config.ControlFullMesh},
			"rear_torque": {Mode: config.ControlDontOptimize},
		},
	}
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// perNode = 7 state + 1 free control + 1 free du/dt = 9; nVars = 27.
	if got, want := p.NVars(), 27; got != want {
		t.Errorf("NVars() = %d, want %d", got, want)
	}
	// 2 segs * 7 dynamics + 2 segs * 1 control-rate + 7 boundary = 23.
	if got, want := p.NEq(), 2*7+2*1+7; got != want {
		t.Errorf("NEq() = %d, want %d", got, want)
	}
}

func TestSeedFromSteadyStateFillsEveryNode(t *testing.T) {
	surface := straightTrack(t, 30)
	p := ocp.NewProblem(kartBuilder, surface, openOptions(3))
	q := make([]float64, 8)
	q[3] = 15 // u
	p.WithInitialState(q)
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	x0, err := p.SeedFromSteadyState(q, nil, []float64{0.01, 50})
	if err != nil {
		t.Fatalf("SeedFromSteadyState: %v", err)
	}
	if len(x0) != p.NVars() {
		t.Fatalf("len(x0) = %d, want %d", len(x0), p.NVars())
	}
	// Every node's u slot (free state index for "u" at local position 2,
	// since time is dropped from stateFree) should carry the seed speed.
	perNode := p.NVars() / 3
	for i := 0; i < 3; i++ {
		if got := x0[i*perNode+2]; got != 15 {
			t.Errorf("node %d u-slot = %f, want 15", i, got)
		}
	}
}
