// Package kart implements the 6-DOF kart chassis model (spec §4.B's
// lot2016kart): a rigid kart has no suspension, so load transfer is
// carried by chassis torsional flex instead of the F1 model's algebraic
// equilibrium — modeled here as two extra ODE states (roll angle and
// roll rate) rather than a q_a subsystem, which is why this model
// declares zero algebraic variables.
package kart

import (
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/vehicle"
)

// State indices: the shared adjacency plus chassis roll angle and rate.
const (
	ITIME = iota
	IN
	IALPHA
	IU
	IV
	IOMEGA
	IROLL
	IDROLL
	nState
)

// Control indices.
const (
	IDELTA = iota
	IREARTORQUE
	nControl
)

const nAlgebraic = 0

var stateNames = []string{"time", "n", "alpha", "u", "v", "omega", "roll", "droll"}
var controlNames = []string{"delta", "rear_torque"}

const eps = 1e-3

// Model is the concrete vehicle.Model[Ts] implementation for the kart
// chassis.
type Model[Ts dual.Number[Ts]] struct {
	params *vehicle.ParamSet
	track  *track.Surface

	lastTires []vehicle.TireState
	lastBody  vehicle.BodyState
}

// New builds a kart model with every parameter at its declared default.
func New[Ts dual.Number[Ts]]() *Model[Ts] {
	m := &Model[Ts]{params: vehicle.NewParamSet()}
	p := m.params
	p.DeclareConstant("chassis/mass", "mass", 165)
	p.DeclareConstant("chassis/inertia/z", "Iz", 75)
	p.DeclareConstant("chassis/inertia/x", "Ix", 25)
	p.DeclareConstant("chassis/com/z", "com_z", 0.22)
	p.DeclareConstant("chassis/front_axle/x", "front_axle_x", 0.62)
	p.DeclareConstant("chassis/rear_axle/x", "rear_axle_x", -0.62)
	p.DeclareConstant("chassis/track_width", "track_width", 1.1)
	p.DeclareConstant("chassis/torsional_stiffness", "k_roll", 4000)
	p.DeclareConstant("chassis/torsional_damping", "c_roll", 300)
	p.DeclareConstant("front_axle/cornering_stiffness", "Caf", 28000)
	p.DeclareConstant("rear_axle/cornering_stiffness", "Car", 32000)
	p.DeclareConstant("front_axle/friction_coefficient", "mu_f", 1.4)
	p.DeclareConstant("rear_axle/friction_coefficient", "mu_r", 1.4)
	p.DeclareConstant("drivetrain/wheel_radius", "wheel_radius", 0.14)
	p.DeclareConstant("drivetrain/maximum_torque", "rear_torque_max", 350)
	p.DeclareConstant("aero/drag_coefficient", "Cd", 0.6)
	p.DeclareConstant("aero/reference_area", "aero_area", 0.6)
	p.DeclareConstant("aero/air_density", "rho", 1.2)
	p.DeclareConstant("environment/gravity", "g", 9.81)
	return m
}

func (m *Model[Ts]) Params() *vehicle.ParamSet { return m.params }

func (m *Model[Ts]) ChangeTrack(t *track.Surface) { m.track = t }

func (m *Model[Ts]) Kind() vehicle.Kind { return vehicle.KindKart6DOF }

func (m *Model[Ts]) Indices() vehicle.StateIndex {
	return vehicle.StateIndex{ITIME: ITIME, IN: IN, IALPHA: IALPHA, IU: IU, IV: IV, IOMEGA: IOMEGA}
}

func (m *Model[Ts]) NState() int     { return nState }
func (m *Model[Ts]) NAlgebraic() int { return nAlgebraic }
func (m *Model[Ts]) NControl() int   { return nControl }

func (m *Model[Ts]) StateNames() []string     { return stateNames }
func (m *Model[Ts]) AlgebraicNames() []string { return nil }
func (m *Model[Ts]) ControlNames() []string   { return controlNames }

func (m *Model[Ts]) StateBounds() (lb, ub []float64) {
	big := 1e6
	return []float64{0, -3, -1.2, 1, -15, -8, -0.2, -2},
		[]float64{big, 3, 1.2, 40, 15, 8, 0.2, 2}
}

func (m *Model[Ts]) AlgebraicBounds() (lb, ub []float64) { return nil, nil }

func (m *Model[Ts]) ControlBounds() (lb, ub []float64) {
	return []float64{-0.5, -1}, []float64{0.5, 1}
}

// ExtraConstraintBounds/ExtraConstraints expose the combined-slip
// utilization at front and rear, same contract as the f1 model.
func (m *Model[Ts]) ExtraConstraintBounds() (lb, ub []float64) {
	return []float64{0, 0}, []float64{1, 1}
}

func (m *Model[Ts]) ExtraConstraints() []float64 {
	out := make([]float64, 2)
	if len(m.lastTires) == 2 {
		out[0] = m.lastTires[0].Dissipation
		out[1] = m.lastTires[1].Dissipation
	}
	return out
}

func (m *Model[Ts]) LastTireState() []vehicle.TireState { return m.lastTires }
func (m *Model[Ts]) LastBodyState() vehicle.BodyState    { return m.lastBody }

// RegisterOutputs exposes the kart's body accelerations and roll state
// beyond the base state/control set (spec §9's output dispatch table).
func (m *Model[Ts]) RegisterOutputs() vehicle.OutputTable {
	return vehicle.OutputTable{
		"ax":    func(n vehicle.NodeSample) float64 { return n.Body.Ax },
		"ay":    func(n vehicle.NodeSample) float64 { return n.Body.Ay },
		"roll":  func(n vehicle.NodeSample) float64 { return n.Q[IROLL] },
		"droll": func(n vehicle.NodeSample) float64 { return n.Q[IDROLL] },
	}
}

// Evaluate computes dq/ds for the kart's 8-state chassis. There is no
// algebraic subsystem: lateral load transfer is carried by a
// spring-damper roll state instead of an equilibrium residual, since a
// rigid kart has no suspension to hold such an equilibrium exactly.
func (m *Model[Ts]) Evaluate(q, qa, u []Ts, s float64) (dqds, ra []Ts) {
	mass := q[0].Const(m.params.ByAlias("mass").At(s))
	Iz := q[0].Const(m.params.ByAlias("Iz").At(s))
	Ix := q[0].Const(m.params.ByAlias("Ix").At(s))
	a := q[0].Const(m.params.ByAlias("front_axle_x").At(s))
	b := q[0].Const(-m.params.ByAlias("rear_axle_x").At(s))
	Caf := q[0].Const(m.params.ByAlias("Caf").At(s))
	Car := q[0].Const(m.params.ByAlias("Car").At(s))
	kRoll := q[0].Const(m.params.ByAlias("k_roll").At(s))
	cRoll := q[0].Const(m.params.ByAlias("c_roll").At(s))
	hcg := m.params.ByAlias("com_z").At(s)
	wheelR := q[0].Const(m.params.ByAlias("wheel_radius").At(s))
	torqueMax := q[0].Const(m.params.ByAlias("rear_torque_max").At(s))
	Cd := m.params.ByAlias("Cd").At(s)
	area := m.params.ByAlias("aero_area").At(s)
	rho := m.params.ByAlias("rho").At(s)
	g := m.params.ByAlias("g").At(s)

	n := q[IN]
	alpha := q[IALPHA]
	uVel := q[IU]
	v := q[IV]
	omega := q[IOMEGA]
	roll := q[IROLL]
	droll := q[IDROLL]

	delta := u[IDELTA]
	rearTorqueCmd := u[IREARTORQUE]

	drag := uVel.Mul(uVel).Mul(q[0].Const(0.5 * rho * Cd * area))

	fxRear := rearTorqueCmd.Mul(torqueMax).Div(wheelR)

	slipF := delta.Sub(v.Add(a.Mul(omega)).Atan2(uVel))
	slipR := v.Sub(b.Mul(omega)).Atan2(uVel).Neg()

	// Roll angle de-weights the outer-wheel normal load split, which in
	// turn scales down each axle's effective cornering stiffness
	// relative to its flat-chassis value — the kart analogue of the F1
	// model's lateral load transfer, but expressed through a state
	// instead of an equilibrium residual.
	rollFactor := q[0].Const(1).Sub(roll.Abs().Mul(q[0].Const(0.5)))
	fyF := Caf.Mul(slipF).Mul(rollFactor)
	fyR := Car.Mul(slipR).Mul(rollFactor)

	fxTotal := fxRear.Sub(drag)
	fyTotal := fyF.Add(fyR)
	mz := a.Mul(fyF).Sub(b.Mul(fyR))

	dudt := fxTotal.Div(mass).Add(v.Mul(omega))
	dvdt := fyTotal.Div(mass).Sub(uVel.Mul(omega))
	domegadt := mz.Div(Iz)

	// Roll dynamics: a torsional spring-damper driven by the lateral
	// load-transfer moment mass*ay*hcg, matching the F1 model's
	// latTransfer term but carried as a state instead of solved exactly.
	ay := dvdt
	rollMoment := mass.Mul(ay).Mul(q[0].Const(hcg))
	ddroll := rollMoment.Sub(kRoll.Mul(roll)).Sub(cRoll.Mul(droll)).Div(Ix)

	kappa := 0.0
	if m.track != nil {
		kappa = m.track.Kappa(s)
	}
	dtds, dnds, dalphads := vehicle.CurvilinearRates[Ts](uVel, v, omega, n, alpha, kappa)

	dq := make([]Ts, nState)
	dq[ITIME] = dtds
	dq[IN] = dnds
	dq[IALPHA] = dalphads
	dq[IU] = dudt.Mul(dtds)
	dq[IV] = dvdt.Mul(dtds)
	dq[IOMEGA] = domegadt.Mul(dtds)
	dq[IROLL] = droll.Mul(dtds)
	dq[IDROLL] = ddroll.Mul(dtds)

	mu := (m.params.ByAlias("mu_f").At(s) + m.params.ByAlias("mu_r").At(s)) / 2
	weight := mass.Value() * g
	m.lastTires = []vehicle.TireState{
		{Name: "front", X: a.Value(), Lambda: slipF.Value(), Fx: 0, Fy: fyF.Value(),
			Dissipation: fyF.Value() * fyF.Value() / (mu*weight/2*mu*weight/2 + 1)},
		{Name: "rear", X: b.Value() * -1, Lambda: slipR.Value(), Fx: fxRear.Value(), Fy: fyR.Value(),
			Dissipation: (fxRear.Value()*fxRear.Value() + fyR.Value()*fyR.Value()) / (mu*weight/2*mu*weight/2 + 1)},
	}
	var x, y, psi float64
	if m.track != nil {
		x, y, psi = m.track.Point(s, n.Value())
	}
	ax := dudt.Sub(v.Mul(omega))
	m.lastBody = vehicle.BodyState{Ax: ax.Value(), Ay: ay.Value(), X: x, Y: y, Psi: psi}

	return dq, nil
}

var _ vehicle.Model[dual.Float64] = (*Model[dual.Float64])(nil)
var _ vehicle.Model[dual.Dual] = (*Model[dual.Dual])(nil)

func init() {
	if nState != 8 || nControl != 2 || nAlgebraic != 0 || ITIME+1 != IN {
		panic(errs.Newf(errs.Internal, "kart.init", "state/control/algebraic cardinality mismatch"))
	}
}
