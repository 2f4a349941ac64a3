// Package f1 implements the 3-DOF single-track chassis model (spec
// §4.B's limebeer2014f1): small-pitch/small-roll chassis dynamics with
// four algebraic vertical tire loads solved by equilibrium.
package f1

import (
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/vehicle"
)

// State indices. Beyond the shared adjacency (ITIME+1=IN), this model adds
// no extra state — chassis_car_3dof's "State variables: none" beyond base.
const (
	ITIME = iota
	IN
	IALPHA
	IU
	IV
	IOMEGA
	nState
)

// Control indices.
const (
	IDELTA = iota
	ITHROTTLE
	IBRAKEBIAS
	nControl
)

// Algebraic indices: the four corner vertical loads.
const (
	IFZFL = iota
	IFZFR
	IFZRL
	IFZRR
	nAlgebraic
)

var stateNames = []string{"time", "n", "alpha", "u", "v", "omega"}
var controlNames = []string{"delta", "throttle", "brake_bias"}
var algebraicNames = []string{"Fz_fl", "Fz_fr", "Fz_rl", "Fz_rr"}

// eps is the smoothing width used by the throttle/brake split, spec
// §4.A's ban on branching AD values forces a smooth max/min here.
const eps = 1e-3

// Model is the concrete vehicle.Model[Ts] implementation for the F1
// 3-DOF chassis.
type Model[Ts dual.Number[Ts]] struct {
	params *vehicle.ParamSet
	track  *track.Surface

	lastTires []vehicle.TireState
	lastBody  vehicle.BodyState
}

// New builds an F1 model with every parameter at its declared default.
// Callers override via Params().SetOverride before building an OCP.
func New[Ts dual.Number[Ts]]() *Model[Ts] {
	m := &Model[Ts]{params: vehicle.NewParamSet()}
	p := m.params
	p.DeclareConstant("chassis/mass", "mass", 740)
	p.DeclareConstant("chassis/inertia/z", "Iz", 1200)
	p.DeclareConstant("chassis/com/x", "com_x", 0)
	p.DeclareConstant("chassis/com/y", "com_y", 0)
	p.DeclareConstant("chassis/com/z", "com_z", 0.3)
	p.DeclareConstant("chassis/front_axle/x", "front_axle_x", 1.6)
	p.DeclareConstant("chassis/front_axle/z", "front_axle_z", 0.3)
	p.DeclareConstant("chassis/rear_axle/x", "rear_axle_x", -1.6)
	p.DeclareConstant("chassis/rear_axle/z", "rear_axle_z", 0.3)
	p.DeclareConstant("chassis/track_width", "track_width", 1.8)
	p.DeclareConstant("chassis/pressure_center/x", "aero_x", 0.2)
	p.DeclareConstant("chassis/pressure_center/z", "aero_z", 0.3)
	p.DeclareConstant("chassis/brake_bias", "brake_bias_0", 0.6)
	p.DeclareConstant("chassis/roll_balance_coefficient", "roll_balance_coefficient", 0.5)
	p.DeclareConstant("chassis/Fz_max_ref2", "Fz_max_ref2", 1.0)
	p.DeclareConstant("chassis/maximum_throttle", "maximum_throttle", 1.0)
	p.DeclareConstant("front_axle/cornering_stiffness", "Caf", 130000)
	p.DeclareConstant("rear_axle/cornering_stiffness", "Car", 160000)
	p.DeclareConstant("front_axle/friction_coefficient", "mu_f", 1.6)
	p.DeclareConstant("rear_axle/friction_coefficient", "mu_r", 1.6)
	p.DeclareConstant("aero/lift_coefficient", "Cl", 3.0)
	p.DeclareConstant("aero/drag_coefficient", "Cd", 1.0)
	p.DeclareConstant("aero/reference_area", "aero_area", 1.5)
	p.DeclareConstant("aero/air_density", "rho", 1.2)
	p.DeclareConstant("engine/maximum_force", "Fx_engine_max", 12000)
	p.DeclareConstant("brake/maximum_force", "Fx_brake_max", 20000)
	p.DeclareConstant("environment/gravity", "g", 9.81)
	return m
}

func (m *Model[Ts]) Params() *vehicle.ParamSet { return m.params }

func (m *Model[Ts]) ChangeTrack(t *track.Surface) { m.track = t }

func (m *Model[Ts]) Kind() vehicle.Kind { return vehicle.KindF1ThreeDOF }

func (m *Model[Ts]) Indices() vehicle.StateIndex {
	return vehicle.StateIndex{ITIME: ITIME, IN: IN, IALPHA: IALPHA, IU: IU, IV: IV, IOMEGA: IOMEGA}
}

func (m *Model[Ts]) NState() int     { return nState }
func (m *Model[Ts]) NAlgebraic() int { return nAlgebraic }
func (m *Model[Ts]) NControl() int   { return nControl }

func (m *Model[Ts]) StateNames() []string     { return stateNames }
func (m *Model[Ts]) AlgebraicNames() []string { return algebraicNames }
func (m *Model[Ts]) ControlNames() []string   { return controlNames }

func (m *Model[Ts]) StateBounds() (lb, ub []float64) {
	big := 1e6
	return []float64{0, -5, -1.5, 1, -30, -10},
		[]float64{big, 5, 1.5, 120, 30, 10}
}

func (m *Model[Ts]) AlgebraicBounds() (lb, ub []float64) {
	return []float64{0, 0, 0, 0}, []float64{1e5, 1e5, 1e5, 1e5}
}

func (m *Model[Ts]) ControlBounds() (lb, ub []float64) {
	return []float64{-0.5, -1, 0}, []float64{0.5, 1, 1}
}

// ExtraConstraintBounds/ExtraConstraints expose the tire-health
// inequalities: combined-slip utilization at the front and rear axle,
// each bounded to [0,1] (1 = at the friction limit).
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

// RegisterOutputs exposes body accelerations and the four corner loads
// beyond the base state/control set (spec §9's output dispatch table).
func (m *Model[Ts]) RegisterOutputs() vehicle.OutputTable {
	return vehicle.OutputTable{
		"ax":    func(n vehicle.NodeSample) float64 { return n.Body.Ax },
		"ay":    func(n vehicle.NodeSample) float64 { return n.Body.Ay },
		"Fz_fl": func(n vehicle.NodeSample) float64 { return n.QA[IFZFL] },
		"Fz_fr": func(n vehicle.NodeSample) float64 { return n.QA[IFZFR] },
		"Fz_rl": func(n vehicle.NodeSample) float64 { return n.QA[IFZRL] },
		"Fz_rr": func(n vehicle.NodeSample) float64 { return n.QA[IFZRR] },
	}
}

// Evaluate computes dq/ds and the four vertical-load algebraic residuals,
// per spec §4.B: body-frame point-mass dynamics with a linear front/rear
// tire model feed the curvilinear kinematics of internal/vehicle; vertical
// equilibrium, roll equilibrium, pitch equilibrium and the roll-balance
// split form the algebraic subsystem (grounded on chassis_car_3dof's
// Fz_fr - Fz_fl = D*(Fz_fr + Fz_rr - Fz_fl - Fz_rl) identity).
func (m *Model[Ts]) Evaluate(q, qa, u []Ts, s float64) (dqds, ra []Ts) {
	mass := q[0].Const(m.params.ByAlias("mass").At(s))
	Iz := q[0].Const(m.params.ByAlias("Iz").At(s))
	a := q[0].Const(m.params.ByAlias("front_axle_x").At(s))
	b := q[0].Const(-m.params.ByAlias("rear_axle_x").At(s))
	Caf := q[0].Const(m.params.ByAlias("Caf").At(s))
	Car := q[0].Const(m.params.ByAlias("Car").At(s))
	Cl := m.params.ByAlias("Cl").At(s)
	Cd := m.params.ByAlias("Cd").At(s)
	area := m.params.ByAlias("aero_area").At(s)
	rho := m.params.ByAlias("rho").At(s)
	FxEngineMax := q[0].Const(m.params.ByAlias("Fx_engine_max").At(s))
	FxBrakeMax := q[0].Const(m.params.ByAlias("Fx_brake_max").At(s))
	g := m.params.ByAlias("g").At(s)
	D := q[0].Const(m.params.ByAlias("roll_balance_coefficient").At(s))
	trackWidth := m.params.ByAlias("track_width").At(s)
	hcg := m.params.ByAlias("com_z").At(s)

	n := q[IN]
	alpha := q[IALPHA]
	uVel := q[IU]
	v := q[IV]
	omega := q[IOMEGA]

	delta := u[IDELTA]
	throttle := u[ITHROTTLE]
	brakeBias := u[IBRAKEBIAS]

	qDyn := 0.5 * rho * area
	downforce := uVel.Mul(uVel).Mul(q[0].Const(qDyn * Cl))
	drag := uVel.Mul(uVel).Mul(q[0].Const(qDyn * Cd))

	driveReq := vehicle.SmoothMax0(throttle, eps)
	brakeReq := vehicle.SmoothMin0(throttle, eps)
	fxDrive := driveReq.Mul(FxEngineMax)
	fxBrake := brakeReq.Mul(FxBrakeMax)
	fxFront := brakeBias.Mul(fxBrake)
	fxRear := fxDrive.Add(q[0].Const(1).Sub(brakeBias).Mul(fxBrake))

	slipF := delta.Sub(v.Add(a.Mul(omega)).Atan2(uVel))
	slipR := v.Sub(b.Mul(omega)).Atan2(uVel).Neg()
	fyF := Caf.Mul(slipF)
	fyR := Car.Mul(slipR)

	fxTotal := fxFront.Add(fxRear).Sub(drag)
	fyTotal := fyF.Add(fyR)
	mz := a.Mul(fyF).Sub(b.Mul(fyR))

	dudt := fxTotal.Div(mass).Add(v.Mul(omega))
	dvdt := fyTotal.Div(mass).Sub(uVel.Mul(omega))
	domegadt := mz.Div(Iz)

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

	weight := mass.Mul(q[0].Const(g)).Add(downforce)
	ax := dudt.Sub(v.Mul(omega))
	ay := dvdt.Add(uVel.Mul(omega))

	latTransfer := mass.Mul(ay).Mul(q[0].Const(hcg))
	lonTransfer := mass.Mul(ax).Mul(q[0].Const(hcg))

	fzfl, fzfr, fzrl, fzrr := qa[IFZFL], qa[IFZFR], qa[IFZRL], qa[IFZRR]

	// Vertical, roll and pitch equilibrium plus the roll-balance split,
	// mirroring chassis_car_3dof's Fz_eq/Mx_eq/My_eq/roll_balance_eq.
	fzEq := fzfl.Add(fzfr).Add(fzrl).Add(fzrr).Sub(weight)
	mxEq := fzfr.Add(fzrr).Sub(fzfl).Sub(fzrl).Mul(q[0].Const(trackWidth / 2)).Sub(latTransfer)
	myEq := fzfl.Add(fzfr).Mul(a).Sub(fzrl.Add(fzrr).Mul(b)).Sub(lonTransfer)
	rollBalanceEq := fzfr.Sub(fzfl).Sub(D.Mul(fzfr.Add(fzrr).Sub(fzfl).Sub(fzrl)))

	raOut := make([]Ts, nAlgebraic)
	raOut[IFZFL] = fzEq
	raOut[IFZFR] = mxEq
	raOut[IFZRL] = myEq
	raOut[IFZRR] = rollBalanceEq

	mu := (m.params.ByAlias("mu_f").At(s) + m.params.ByAlias("mu_r").At(s)) / 2
	m.lastTires = []vehicle.TireState{
		{Name: "front", X: a.Value(), Lambda: slipF.Value(), Fx: fxFront.Value(), Fy: fyF.Value(),
			Dissipation: (fxFront.Value()*fxFront.Value() + fyF.Value()*fyF.Value()) / ((mu * (qa[IFZFL].Value() + qa[IFZFR].Value())) * (mu * (qa[IFZFL].Value() + qa[IFZFR].Value())) + 1)},
		{Name: "rear", X: b.Value() * -1, Lambda: slipR.Value(), Fx: fxRear.Value(), Fy: fyR.Value(),
			Dissipation: (fxRear.Value()*fxRear.Value() + fyR.Value()*fyR.Value()) / ((mu * (qa[IFZRL].Value() + qa[IFZRR].Value())) * (mu * (qa[IFZRL].Value() + qa[IFZRR].Value())) + 1)},
	}
	var x, y, psi float64
	if m.track != nil {
		x, y, psi = m.track.Point(s, n.Value())
	}
	m.lastBody = vehicle.BodyState{Ax: ax.Value(), Ay: ay.Value(), X: x, Y: y, Psi: psi}

	return dq, raOut
}

var _ vehicle.Model[dual.Float64] = (*Model[dual.Float64])(nil)
var _ vehicle.Model[dual.Dual] = (*Model[dual.Dual])(nil)

func init() {
	if nState != 6 || nControl != 3 || nAlgebraic != 4 || ITIME+1 != IN {
		panic(errs.Newf(errs.Internal, "f1.init", "state/control/algebraic cardinality mismatch"))
	}
}
