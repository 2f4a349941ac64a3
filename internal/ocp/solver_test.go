package ocp_test

import (
	"context"
	"math"
	"testing"

	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/ocp"
	"github.com/jtodevs/fastlap/internal/vehicle"
	"github.com/jtodevs/fastlap/internal/vehicle/kart"
)

// TestSolverHoldsSteadyStateCruise seeds every node with a straight-line
// cruise equilibrium, fixes both controls to that equilibrium's values, and
// checks the solver reports a feasible trajectory whose laptime matches the
// constant speed over the track length.
func TestSolverHoldsSteadyStateCruise(t *testing.T) {
	target := vehicle.Target{V: 15, Ax: 0, Ay: 0}
	q, qa, u, err := vehicle.SteadyState(func() vehicle.Model[dual.Dual] { return kart.New[dual.Dual]() }, target)
	if err != nil {
		t.Fatalf("SteadyState: %v", err)
	}

	const length = 60.0
	surface := straightTrack(t, length)
	opts := openOptions(4)
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(q)
	p.WithSeedControls(u)
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	x0, err := p.SeedFromSteadyState(q, qa, u)
	if err != nil {
		t.Fatalf("SeedFromSteadyState: %v", err)
	}

	solver := ocp.NewSolver(opts)
	traj, err := solver.Solve(context.Background(), p, x0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	want := length / target.V
	if math.Abs(traj.Laptime-want) > 0.5 {
		t.Errorf("Laptime = %f, want close to %f", traj.Laptime, want)
	}
	if len(traj.Q) != 4 {
		t.Fatalf("len(Q) = %d, want 4", len(traj.Q))
	}
	if traj.Q[0][0] != 0 {
		t.Errorf("Q[0][ITIME] = %f, want 0", traj.Q[0][0])
	}
}

func TestSolverRejectsMismatchedInitialGuess(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(3)
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	p.WithSeedControls([]float64{0, 0})
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	solver := ocp.NewSolver(opts)
	_, err := solver.Solve(context.Background(), p, make([]float64, p.NVars()-1))
	if err == nil {
		t.Fatal("Solve should reject an initial guess of the wrong length")
	}
}

func TestProblemBuildRejectsTooFewPoints(t *testing.T) {
	surface := straightTrack(t, 30)
	opts := openOptions(1)
	p := ocp.NewProblem(kartBuilder, surface, opts)
	p.WithInitialState(make([]float64, 8))
	if err := p.Build(); err == nil {
		t.Fatal("Build should reject fewer than 2 mesh nodes")
	}
}
