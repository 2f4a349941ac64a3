// Package ocp builds and drives the trapezoidal-collocation minimum-time
// NLP shared by the track preprocessor's refinement step and the laptime
// solver: a Problem assembles one concrete mesh's free-variable layout,
// bounds, and residuals over a vehicle.Model[dual.Dual]; a Solver runs a
// primal log-barrier Newton-KKT iteration against it.
package ocp

import (
	"github.com/jtodevs/fastlap/internal/config"
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/vehicle"
)

// layout records, once per Problem.Build, where every free variable and
// every residual lives in the flat vectors the solver operates on.
//
// time is not a free variable (spec §4.F: "ITIME is removed from the free
// set because its value is recovered by integration from dtime/ds"); its
// slot in q is always Constant(0) when reconstructed for Evaluate, since
// none of the models read the current time value.
type layout struct {
	nNodes     int
	nState     int
	nAlgebraic int
	nControl   int
	itime      int

	stateFree []int // indices into a full q of every state but time

	optimized    []bool    // per control index, whether it is a free variable
	fixedControl []float64 // per control index, value used when not optimized
	nFreeControl int
	controlFree  []int // control indices in free-vector order

	isDirect bool // false = "derivative" mode: du/dt is also a free variable

	perNode int
	nVars   int

	closed    bool
	nSegments int // nNodes-1 open, nNodes closed (last segment wraps to node 0)

	nDynamicsEq    int
	nAlgebraicEq   int
	nControlRateEq int
	nBoundaryEq    int
	nEq            int
}

// Problem is one concrete mesh ready to hand to a Solver. Construct with
// NewProblem, configure with the With* setters, then call Build.
type Problem struct {
	buildModel func() vehicle.Model[dual.Dual]
	surface    *track.Surface
	opts       *config.OptimalLaptimeOptions

	initialState []float64 // open-track boundary condition; nil for closed
	seedControls []float64 // value a dont_optimize control is locked to

	s []float64 // arclength at each mesh node

	lay layout
	ad  vehicle.Model[dual.Dual]

	dissipationWeight []float64 // per control index
	integral          []config.IntegralConstraint
}

// NewProblem starts building a Problem over one vehicle model kind and one
// track. opts.NPoints is the number of mesh nodes (spec §4.F).
func NewProblem(buildModel func() vehicle.Model[dual.Dual], surface *track.Surface, opts *config.OptimalLaptimeOptions) *Problem {
	return &Problem{buildModel: buildModel, surface: surface, opts: opts}
}

// WithInitialState pins q(s_0) for an open track. It must not be set for a
// closed track (Build rejects it), whose boundary condition is instead
// the implicit wrap-around dynamics segment from the last node to the
// first.
func (p *Problem) WithInitialState(q []float64) *Problem {
	p.initialState = q
	return p
}

// WithSeedControls supplies the steady-state seed's control vector (spec
// §4.F "Seeding"): a dont_optimize control's free-set value is copied
// from here rather than taken from config, since the NLP builder has no
// other source for it.
func (p *Problem) WithSeedControls(u []float64) *Problem {
	p.seedControls = u
	return p
}

// Build validates the configuration and assembles the free-variable
// layout. It must be called exactly once, before Solver.Solve.
func (p *Problem) Build() error {
	if p.opts == nil {
		return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "options must be set")
	}
	if err := p.opts.Validate(); err != nil {
		return errs.New(errs.InputValidation, "ocp.Problem.Build", err)
	}
	if p.surface == nil {
		return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "track surface must be set")
	}

	p.ad = p.buildModel()
	p.ad.ChangeTrack(p.surface)

	nNodes := p.opts.NPoints
	if nNodes < 2 {
		return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "n_points must be at least 2, got %d", nNodes)
	}
	nState := p.ad.NState()
	nAlgebraic := p.ad.NAlgebraic()
	nControl := p.ad.NControl()
	controlNames := p.ad.ControlNames()
	itime := p.ad.Indices().ITIME

	stateFree := make([]int, 0, nState-1)
	for k := 0; k < nState; k++ {
		if k != itime {
			stateFree = append(stateFree, k)
		}
	}

	optimized := make([]bool, nControl)
	fixed := make([]float64, nControl)
	for i := range optimized {
		optimized[i] = true
	}
	for name, cfg := range p.opts.Controls {
		idx := -1
		for i, cn := range controlNames {
			if cn == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errs.Newf(errs.LookupMiss, "ocp.Problem.Build", "control %q is not a control of this model", name)
		}
		switch cfg.Mode {
		case config.ControlConstant:
			return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "control %q: mode %q is reserved and unsupported", name, cfg.Mode)
		case config.ControlDontOptimize:
			optimized[idx] = false
			if idx >= len(p.seedControls) {
				return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "control %q is dont_optimize but no seed control value was supplied", name)
			}
			fixed[idx] = p.seedControls[idx]
		case config.ControlHypermesh, config.ControlFullMesh:
			// Hypermesh's reduced breakpoint set collapses into full_mesh:
			// every node still gets a free variable. See DESIGN.md.
			optimized[idx] = true
		default:
			return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "control %q: unknown mode %q", name, cfg.Mode)
		}
	}

	controlFree := make([]int, 0, nControl)
	for k, o := range optimized {
		if o {
			controlFree = append(controlFree, k)
		}
	}
	nFreeControl := len(controlFree)

	isDirect := p.opts.IsDirect
	perNode := len(stateFree) + nAlgebraic + nFreeControl
	if !isDirect {
		perNode += nFreeControl
	}

	lay := layout{
		nNodes: nNodes, nState: nState, nAlgebraic: nAlgebraic, nControl: nControl, itime: itime,
		stateFree:    stateFree,
		optimized:    optimized, fixedControl: fixed, nFreeControl: nFreeControl, controlFree: controlFree,
		isDirect: isDirect,
		perNode:  perNode, nVars: nNodes * perNode, closed: p.opts.IsClosed,
	}
	if lay.closed {
		lay.nSegments = nNodes
		if p.initialState != nil {
			return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "initial state must not be set for a closed track")
		}
	} else {
		lay.nSegments = nNodes - 1
		lay.nBoundaryEq = len(stateFree)
		if p.initialState == nil {
			return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "initial state must be set for an open track")
		}
		if len(p.initialState) != nState {
			return errs.Newf(errs.InputValidation, "ocp.Problem.Build", "initial state has %d components, want %d", len(p.initialState), nState)
		}
	}
	lay.nDynamicsEq = lay.nSegments * len(stateFree)
	lay.nAlgebraicEq = nNodes * nAlgebraic
	if !isDirect {
		lay.nControlRateEq = lay.nSegments * nFreeControl
	}
	lay.nEq = lay.nDynamicsEq + lay.nAlgebraicEq + lay.nControlRateEq + lay.nBoundaryEq
	p.lay = lay

	p.s = make([]float64, nNodes)
	length := p.surface.Length()
	denom := nNodes - 1
	if lay.closed {
		denom = nNodes
	}
	for i := 0; i < nNodes; i++ {
		p.s[i] = length * float64(i) / float64(denom)
	}

	p.dissipationWeight = make([]float64, nControl)
	for name, cfg := range p.opts.Controls {
		for i, cn := range controlNames {
			if cn == name {
				p.dissipationWeight[i] = cfg.Dissipation
			}
		}
	}
	p.integral = p.opts.IntegralConstraints

	return nil
}

// SeedFromSteadyState builds an initial guess by repeating one steady-state
// (q, qa, u) triple at every mesh node, with every du/dt slot in derivative
// mode seeded to zero (spec §4.F "Seeding"). Must be called after Build.
func (p *Problem) SeedFromSteadyState(q, qa, u []float64) ([]float64, error) {
	if len(q) != p.lay.nState {
		return nil, errs.Newf(errs.InputValidation, "ocp.Problem.SeedFromSteadyState", "state has %d components, want %d", len(q), p.lay.nState)
	}
	if len(qa) != p.lay.nAlgebraic {
		return nil, errs.Newf(errs.InputValidation, "ocp.Problem.SeedFromSteadyState", "algebraic state has %d components, want %d", len(qa), p.lay.nAlgebraic)
	}
	if len(u) != p.lay.nControl {
		return nil, errs.Newf(errs.InputValidation, "ocp.Problem.SeedFromSteadyState", "control has %d components, want %d", len(u), p.lay.nControl)
	}

	node := make([]float64, p.lay.perNode)
	pos := 0
	for _, k := range p.lay.stateFree {
		node[pos] = q[k]
		pos++
	}
	copy(node[pos:pos+p.lay.nAlgebraic], qa)
	pos += p.lay.nAlgebraic
	for _, k := range p.lay.controlFree {
		node[pos] = u[k]
		pos++
	}
	// du/dt slots (derivative mode only) stay zero: a constant seed has no rate.

	x0 := make([]float64, p.lay.nVars)
	for i := 0; i < p.lay.nNodes; i++ {
		copy(x0[p.lay.nodeOffset(i):p.lay.nodeOffset(i)+p.lay.perNode], node)
	}
	return x0, nil
}

// NVars is the size of the flat free-variable vector Solver works over.
func (p *Problem) NVars() int { return p.lay.nVars }

// NEq is the number of equality residuals Solver must drive to zero.
func (p *Problem) NEq() int { return p.lay.nEq }

func (l *layout) nodeOffset(i int) int { return i * l.perNode }

// nodeIndices lists the global flat indices node i occupies.
func (l *layout) nodeIndices(i int) []int {
	off := l.nodeOffset(i)
	out := make([]int, l.perNode)
	for k := range out {
		out[k] = off + k
	}
	return out
}

// segmentNodes maps a segment's node position to an actual node index,
// wrapping segment nSegments-1's second endpoint to node 0 on a closed
// track (the implicit last-to-first element of spec §4.F).
func (l *layout) segmentNodes(seg int) (i0, i1 int) {
	i0 = seg
	i1 = seg + 1
	if l.closed && i1 == l.nNodes {
		i1 = 0
	}
	return i0, i1
}

// unpackNode reads node i's (q, qa, uFull, dudtFull) out of the flat
// vector x, filling in fixed control values and zero rates for controls
// this Problem isn't optimizing, and a Constant(0) time slot. x need only
// cover node i at local index i (callers pass a residual-local
// sub-vector with i=0,1,... for the nodes that residual touches, not the
// node's global index).
func unpackNode(l *layout, x []dual.Dual, i int) (q, qa, u, dudt []dual.Dual) {
	off := l.nodeOffset(i)
	free := x[off : off+l.perNode]

	q = make([]dual.Dual, l.nState)
	for k := range q {
		q[k] = dual.Constant(0)
	}
	pos := 0
	for _, k := range l.stateFree {
		q[k] = free[pos]
		pos++
	}

	qa = free[pos : pos+l.nAlgebraic]
	pos += l.nAlgebraic

	u = make([]dual.Dual, l.nControl)
	for k := 0; k < l.nControl; k++ {
		u[k] = dual.Constant(l.fixedControl[k])
	}
	for _, k := range l.controlFree {
		u[k] = free[pos]
		pos++
	}

	dudt = make([]dual.Dual, l.nControl)
	for k := range dudt {
		dudt[k] = dual.Constant(0)
	}
	if !l.isDirect {
		for _, k := range l.controlFree {
			dudt[k] = free[pos]
			pos++
		}
	}
	return q, qa, u, dudt
}
