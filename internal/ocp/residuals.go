package ocp

import "github.com/jtodevs/fastlap/internal/dual"

// block is one sparse AD evaluation: touched lists the global flat
// indices the residual depends on, in the order the local dual vector
// seeds them — only these columns of the assembled Jacobian get written,
// matching the sparse forward-mode recording internal/vehicle's
// steady-state solver already uses.
type block struct {
	touched []int
	vals    []float64
	jac     [][]float64 // jac[row][col], col indexes into touched
}

func evalBlock(touched []int, xFloat []float64, f func(local []dual.Dual) []dual.Dual) block {
	n := len(touched)
	local := make([]dual.Dual, n)
	for k, gi := range touched {
		local[k] = dual.NewSeed(n, k, xFloat[gi])
	}
	out := f(local)
	vals := make([]float64, len(out))
	jac := make([][]float64, len(out))
	for r, o := range out {
		vals[r] = o.Val
		row := make([]float64, n)
		copy(row, o.Grad)
		jac[r] = row
	}
	return block{touched: touched, vals: vals, jac: jac}
}

func concatIndices(parts ...[]int) []int {
	n := 0
	for _, pt := range parts {
		n += len(pt)
	}
	out := make([]int, 0, n)
	for _, pt := range parts {
		out = append(out, pt...)
	}
	return out
}

// segmentDs is the arclength span of segment seg, the wrap segment's
// length being L - s.back() on a closed track (spec §4.F).
func (p *Problem) segmentDs(seg int) float64 {
	i0, i1 := p.lay.segmentNodes(seg)
	if i1 == 0 && i0 != 0 {
		return p.surface.Length() - p.s[i0]
	}
	return p.s[i1] - p.s[i0]
}

// dynamicsBlock is the trapezoidal collocation defect for segment seg,
// over every non-time state index j:
//
//	q_1[j] - q_0[j] - ds/2*(dqds_0[j] + dqds_1[j]) = 0
func (p *Problem) dynamicsBlock(xFloat []float64, seg int) block {
	i0, i1 := p.lay.segmentNodes(seg)
	touched := concatIndices(p.lay.nodeIndices(i0), p.lay.nodeIndices(i1))
	ds := p.segmentDs(seg)
	s0, s1 := p.s[i0], p.s[i1]
	return evalBlock(touched, xFloat, func(local []dual.Dual) []dual.Dual {
		q0, qa0, u0, _ := unpackNode(&p.lay, local, 0)
		q1, qa1, u1, _ := unpackNode(&p.lay, local, 1)
		f0, _ := p.ad.Evaluate(q0, qa0, u0, s0)
		f1, _ := p.ad.Evaluate(q1, qa1, u1, s1)
		half := dual.Constant(ds / 2)
		res := make([]dual.Dual, len(p.lay.stateFree))
		for r, k := range p.lay.stateFree {
			res[r] = q1[k].Sub(q0[k]).Sub(f0[k].Add(f1[k]).Mul(half))
		}
		return res
	})
}

// controlRateBlock is the derivative-mode collocation equation tying a
// control's value to its free du/dt rate via the chain rule factor
// dtime/ds (spec §4.F): u_1 - u_0 - ds/2*(dudt_0*dtimeds_0 + dudt_1*dtimeds_1) = 0.
func (p *Problem) controlRateBlock(xFloat []float64, seg int) block {
	if p.lay.isDirect || p.lay.nFreeControl == 0 {
		return block{}
	}
	i0, i1 := p.lay.segmentNodes(seg)
	touched := concatIndices(p.lay.nodeIndices(i0), p.lay.nodeIndices(i1))
	ds := p.segmentDs(seg)
	s0, s1 := p.s[i0], p.s[i1]
	itime := p.lay.itime
	return evalBlock(touched, xFloat, func(local []dual.Dual) []dual.Dual {
		q0, qa0, u0, dudt0 := unpackNode(&p.lay, local, 0)
		q1, qa1, u1, dudt1 := unpackNode(&p.lay, local, 1)
		f0, _ := p.ad.Evaluate(q0, qa0, u0, s0)
		f1, _ := p.ad.Evaluate(q1, qa1, u1, s1)
		half := dual.Constant(ds / 2)
		res := make([]dual.Dual, 0, p.lay.nFreeControl)
		for _, k := range p.lay.controlFree {
			rate := dudt0[k].Mul(f0[itime]).Add(dudt1[k].Mul(f1[itime]))
			res = append(res, u1[k].Sub(u0[k]).Sub(rate.Mul(half)))
		}
		return res
	})
}

// algebraicBlock is the q_a equilibrium residual at node i.
func (p *Problem) algebraicBlock(xFloat []float64, i int) block {
	if p.lay.nAlgebraic == 0 {
		return block{}
	}
	touched := p.lay.nodeIndices(i)
	si := p.s[i]
	return evalBlock(touched, xFloat, func(local []dual.Dual) []dual.Dual {
		q, qa, u, _ := unpackNode(&p.lay, local, 0)
		_, ra := p.ad.Evaluate(q, qa, u, si)
		return ra
	})
}

// boundaryBlock pins node 0's non-time state to the caller-supplied
// initial condition, for an open track.
func (p *Problem) boundaryBlock(xFloat []float64) block {
	touched := p.lay.nodeIndices(0)
	return evalBlock(touched, xFloat, func(local []dual.Dual) []dual.Dual {
		q0, _, _, _ := unpackNode(&p.lay, local, 0)
		res := make([]dual.Dual, len(p.lay.stateFree))
		for r, k := range p.lay.stateFree {
			res[r] = q0[k].Sub(dual.Constant(p.initialState[k]))
		}
		return res
	})
}

// objectiveBlock is the scalar minimum-time plus per-control dissipation
// cost (spec §4.F):
//
//	J = sum_seg ds/2*(dtimeds_0+dtimeds_1)
//	  + sum_j sigma_j * sum_seg ((u_1[j]-u_0[j])/ds)^2 * ds
//
// summed over every segment, including the closed-track wrap.
func (p *Problem) objectiveBlock(xFloat []float64) (val float64, grad []float64) {
	grad = make([]float64, p.lay.nVars)
	anyDissipation := false
	for _, w := range p.dissipationWeight {
		if w != 0 {
			anyDissipation = true
		}
	}

	for seg := 0; seg < p.lay.nSegments; seg++ {
		i0, i1 := p.lay.segmentNodes(seg)
		touched := concatIndices(p.lay.nodeIndices(i0), p.lay.nodeIndices(i1))
		ds := p.segmentDs(seg)
		s0, s1 := p.s[i0], p.s[i1]
		itime := p.lay.itime
		weights := p.dissipationWeight
		nControl := p.lay.nControl
		b := evalBlock(touched, xFloat, func(local []dual.Dual) []dual.Dual {
			q0, qa0, u0, _ := unpackNode(&p.lay, local, 0)
			q1, qa1, u1, _ := unpackNode(&p.lay, local, 1)
			f0, _ := p.ad.Evaluate(q0, qa0, u0, s0)
			f1, _ := p.ad.Evaluate(q1, qa1, u1, s1)
			half := dual.Constant(ds / 2)
			cost := f0[itime].Add(f1[itime]).Mul(half)
			if anyDissipation {
				for j := 0; j < nControl; j++ {
					if weights[j] == 0 {
						continue
					}
					rate := u1[j].Sub(u0[j]).Div(dual.Constant(ds))
					cost = cost.Add(rate.Mul(rate).Mul(dual.Constant(weights[j] * ds)))
				}
			}
			return []dual.Dual{cost}
		})
		val += b.vals[0]
		for k, gi := range b.touched {
			grad[gi] += b.jac[0][k]
		}
	}
	return val, grad
}
