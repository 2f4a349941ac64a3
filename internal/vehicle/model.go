// Package vehicle holds the scalar-generic dynamics model contract (spec
// §4.B) shared by the concrete f1 and kart models, plus the steady-state
// solver and gg-diagram sweep that sit on top of it (spec §4.C).
package vehicle

import (
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/track"
)

// Kind tags which concrete model a Vehicle wraps, for the places the
// surrounding code (session, api, output) must branch uniformly instead
// of dispatching through an interface method — spec §9's replacement for
// class-template specialization.
type Kind string

const (
	KindF1ThreeDOF Kind = "f1-3dof"
	KindKart6DOF   Kind = "kart-6dof"
)

// StateIndex names the positions a caller must know regardless of model
// kind (spec §3). ITIME+1 must equal IN; each model package checks this in
// its init and panics with an errs.Internal error otherwise.
type StateIndex struct {
	ITIME, IN, IALPHA, IU, IV, IOMEGA int
}

// TireState is what a model caches per tire after Evaluate (spec §4.B).
type TireState struct {
	Name        string
	X, Y        float64 // contact patch position in chassis frame
	Kappa       float64 // slip ratio
	Lambda      float64 // slip angle [rad]
	Fx, Fy      float64
	Dissipation float64
}

// BodyState is the other set of inspectables a model caches after Evaluate.
type BodyState struct {
	Ax, Ay   float64 // body-frame accelerations
	X, Y, Psi float64 // road-frame position and heading, via the bound Surface
}

// NodeSample is one mesh node's materialized values, the input every
// OutputAccessor reads from — plain float64 rather than the generic Ts, so
// internal/output can consume it without depending on dual.Number.
type NodeSample struct {
	S        float64
	Q, QA, U []float64
	Body     BodyState
}

// OutputAccessor reads one named, model-specific output at one node (spec
// §9's "string-based property dispatch" replacement).
type OutputAccessor func(NodeSample) float64

// OutputTable maps an output name to its accessor, one per model kind,
// populated by that model's RegisterOutputs.
type OutputTable map[string]OutputAccessor

// Model is the scalar-generic dynamics contract of spec §4.B:
// (q, qa, u, s) -> (dq/ds, algebraic residual). Ts is instantiated with
// dual.Float64 for fast evaluation and dual.Dual when a Jacobian is
// needed; both instantiations share the same Go source because Number[Ts]
// hides the arithmetic behind methods instead of operators.
type Model[Ts dual.Number[Ts]] interface {
	Evaluate(q, qa, u []Ts, s float64) (dqds, ra []Ts)

	// ChangeTrack binds the model to a curvilinear surface (spec §4.E); the
	// state's n/alpha bounds and (x,y,psi) reconstruction depend on it. Safe
	// to call repeatedly.
	ChangeTrack(t *track.Surface)

	// Params exposes the model's named, overridable parameter set; its
	// constant parameters are what Solver.Sensitivity perturbs (spec §4.G).
	Params() *ParamSet

	Indices() StateIndex
	Kind() Kind

	NState() int
	NAlgebraic() int
	NControl() int

	StateBounds() (lb, ub []float64)
	AlgebraicBounds() (lb, ub []float64)
	ControlBounds() (lb, ub []float64)

	// ExtraConstraintBounds/ExtraConstraints are the tire-health
	// inequalities of spec §4.B: each axle's combined-force utilization
	// (TireState.Dissipation) from the most recent Evaluate.
	ExtraConstraintBounds() (lb, ub []float64)
	ExtraConstraints() []float64

	StateNames() []string
	AlgebraicNames() []string
	ControlNames() []string

	// LastTireState/LastBodyState return the caches Evaluate updates as a
	// side effect, per spec §4.B.
	LastTireState() []TireState
	LastBodyState() BodyState

	// RegisterOutputs returns this model's named output accessors beyond
	// the base set internal/output always extracts (s, x, y, psi, and
	// every state/control by name).
	RegisterOutputs() OutputTable
}
