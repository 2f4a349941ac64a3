package vehicle

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/errs"
)

// Target is the (v, a_x, a_y) cartesian-frame equilibrium spec §4.C asks
// a vehicle to hold.
type Target struct {
	V, Ax, Ay float64
}

const (
	newtonMaxIter          = 50
	newtonTol              = 1e-9
	newtonLineSearchShrink = 0.5
)

// SteadyState finds the (q, q_a, u) equilibrium matching Target by Newton
// iteration on dq/ds=0 (every state but time/n/alpha/u, which are either
// excluded from the free-variable set by the ITIME+1=IN adjacency, or
// fixed to the requested speed), plus the two equations that pin the
// requested (a_x, a_y). The Jacobian comes from evaluating the model with
// dual.Dual-seeded inputs rather than finite differences. Every mesh
// point of the OCP is seeded from one of these equilibria when
// warm-starting is disabled, and the gg-diagram sweeps a family of them.
func SteadyState(buildDual func() Model[dual.Dual], target Target) (q, qa, u []float64, err error) {
	ad := buildDual()
	nState := ad.NState()
	nControl := ad.NControl()
	nAlgebraic := ad.NAlgebraic()
	idx := ad.Indices()

	if nState < 6 || nControl < 1 {
		return nil, nil, nil, errs.Newf(errs.Internal, "vehicle.SteadyState", "model reports implausible cardinality nState=%d nControl=%d", nState, nControl)
	}
	if target.V <= 0 {
		return nil, nil, nil, errs.Newf(errs.InputValidation, "vehicle.SteadyState", "target speed must be positive, got %f", target.V)
	}

	nExtra := nState - 6
	nUnknown := 2 + nExtra + min(nControl, 2)
	z := make([]float64, nUnknown)

	jacobianAndResidual := func(z []float64) (*mat.Dense, []float64) {
		q := make([]dual.Dual, nState)
		for i := range q {
			q[i] = dual.Constant(0)
		}
		q[idx.IU] = dual.Constant(target.V)
		q[idx.IV] = dual.NewSeed(nUnknown, 0, z[0])
		q[idx.IOMEGA] = dual.NewSeed(nUnknown, 1, z[1])
		for i := 0; i < nExtra; i++ {
			q[6+i] = dual.NewSeed(nUnknown, 2+i, z[2+i])
		}
		u := make([]dual.Dual, nControl)
		for i := range u {
			u[i] = dual.Constant(0)
		}
		lastIdx := nUnknown - min(nControl, 2)
		if nControl >= 1 {
			u[0] = dual.NewSeed(nUnknown, lastIdx, z[lastIdx])
		}
		if nControl >= 2 {
			u[1] = dual.NewSeed(nUnknown, nUnknown-1, z[nUnknown-1])
		}
		qa := make([]dual.Dual, nAlgebraic)
		for i := range qa {
			qa[i] = dual.Constant(0)
		}

		dq, _ := ad.Evaluate(q, qa, u, 0)

		rows := make([]dual.Dual, nUnknown)
		rows[0] = dq[idx.IV]
		rows[1] = dq[idx.IOMEGA]
		for i := 0; i < nExtra; i++ {
			rows[2+i] = dq[6+i]
		}
		// Body-frame a_x is du/dt - v*omega; du/dt is dq[IU] with dt/ds
		// divided out.
		axBody := dq[idx.IU].Div(dq[idx.ITIME]).Sub(q[idx.IV].Mul(q[idx.IOMEGA]))
		rows[nUnknown-2] = axBody.Sub(dual.Constant(target.Ax))
		rows[nUnknown-1] = q[idx.IOMEGA].Sub(dual.Constant(target.Ay / target.V))

		jac := mat.NewDense(nUnknown, nUnknown, nil)
		res := make([]float64, nUnknown)
		for i, r := range rows {
			res[i] = r.Val
			for j := 0; j < nUnknown; j++ {
				if j < len(r.Grad) {
					jac.Set(i, j, r.Grad[j])
				}
			}
		}
		return jac, res
	}

	for iter := 0; iter < newtonMaxIter; iter++ {
		jac, res := jacobianAndResidual(z)
		norm := infNorm(res)
		if norm < newtonTol {
			break
		}
		if iter == newtonMaxIter-1 {
			return nil, nil, nil, errs.Newf(errs.NumericFailure, "vehicle.SteadyState", "steady-state Newton solve did not converge, residual norm %e", norm)
		}

		b := mat.NewVecDense(nUnknown, res)
		var step mat.VecDense
		if solveErr := step.SolveVec(jac, b); solveErr != nil {
			return nil, nil, nil, errs.New(errs.NumericFailure, "vehicle.SteadyState", solveErr)
		}

		alpha := 1.0
		for try := 0; try < 20; try++ {
			trial := make([]float64, nUnknown)
			for i := range trial {
				trial[i] = z[i] - alpha*step.AtVec(i)
			}
			if _, trialRes := jacobianAndResidual(trial); infNorm(trialRes) < norm {
				z = trial
				break
			}
			alpha *= newtonLineSearchShrink
		}
	}

	q = make([]float64, nState)
	q[idx.IU] = target.V
	q[idx.IV] = z[0]
	q[idx.IOMEGA] = z[1]
	for i := 0; i < nExtra; i++ {
		q[6+i] = z[2+i]
	}
	u = make([]float64, nControl)
	lastIdx := nUnknown - min(nControl, 2)
	if nControl >= 1 {
		u[0] = z[lastIdx]
	}
	if nControl >= 2 {
		u[1] = z[nUnknown-1]
	}

	qa, err = solveAlgebraic(ad, q, u, nAlgebraic)
	if err != nil {
		return nil, nil, nil, err
	}

	return q, qa, u, nil
}

// solveAlgebraic Newton-solves ra(q_a) = 0 holding q and u fixed — for the
// F1 model this system is exactly linear, so it converges in a single
// iteration; the loop is written generically so a future algebraic
// model's nonlinear residual would still converge.
func solveAlgebraic(ad Model[dual.Dual], q, u []float64, nAlgebraic int) ([]float64, error) {
	if nAlgebraic == 0 {
		return nil, nil
	}
	qa := make([]float64, nAlgebraic)
	qd := make([]dual.Dual, len(q))
	for i, v := range q {
		qd[i] = dual.Constant(v)
	}
	ud := make([]dual.Dual, len(u))
	for i, v := range u {
		ud[i] = dual.Constant(v)
	}

	for iter := 0; iter < newtonMaxIter; iter++ {
		qad := make([]dual.Dual, nAlgebraic)
		for i := range qad {
			qad[i] = dual.NewSeed(nAlgebraic, i, qa[i])
		}
		_, ra := ad.Evaluate(qd, qad, ud, 0)
		res := make([]float64, nAlgebraic)
		jac := mat.NewDense(nAlgebraic, nAlgebraic, nil)
		for i, r := range ra {
			res[i] = r.Val
			for j := 0; j < nAlgebraic; j++ {
				if j < len(r.Grad) {
					jac.Set(i, j, r.Grad[j])
				}
			}
		}
		if infNorm(res) < newtonTol {
			return qa, nil
		}
		b := mat.NewVecDense(nAlgebraic, res)
		var step mat.VecDense
		if err := step.SolveVec(jac, b); err != nil {
			return nil, errs.New(errs.NumericFailure, "vehicle.solveAlgebraic", err)
		}
		for i := range qa {
			qa[i] -= step.AtVec(i)
		}
	}
	return nil, errs.Newf(errs.NumericFailure, "vehicle.solveAlgebraic", "algebraic Newton solve did not converge")
}

func infNorm(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// GGDiagramPoint is one sample of the friction-circle sweep.
type GGDiagramPoint struct {
	Ay, AxMax, AxMin float64
}

// GGDiagram sweeps lateral acceleration at fixed speed v and, at each
// sample, bisects the achievable longitudinal acceleration envelope
// (spec §4.C part b) by repeatedly calling SteadyState and backing off ax
// whenever the solve fails to converge (interpreted as "beyond the tire
// limit" rather than distinguishing failure causes, a simplification
// documented alongside this function).
func GGDiagram(buildDual func() Model[dual.Dual], v float64, nPoints int, ayMax, axSearchMax float64) ([]GGDiagramPoint, error) {
	if nPoints < 2 {
		return nil, errs.Newf(errs.InputValidation, "vehicle.GGDiagram", "n_points must be at least 2, got %d", nPoints)
	}
	out := make([]GGDiagramPoint, nPoints)
	for i := 0; i < nPoints; i++ {
		ay := -ayMax + 2*ayMax*float64(i)/float64(nPoints-1)
		axMax := bisectFeasible(buildDual, v, ay, 0, axSearchMax)
		axMin := bisectFeasible(buildDual, v, ay, 0, -axSearchMax)
		out[i] = GGDiagramPoint{Ay: ay, AxMax: axMax, AxMin: axMin}
	}
	return out, nil
}

func bisectFeasible(buildDual func() Model[dual.Dual], v, ay, lo, hi float64) float64 {
	feasible := func(ax float64) bool {
		_, _, _, err := SteadyState(buildDual, Target{V: v, Ax: ax, Ay: ay})
		return err == nil
	}
	if !feasible(lo) {
		return lo
	}
	for i := 0; i < 30; i++ {
		mid := (lo + hi) / 2
		if feasible(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
