package vehicle

import "github.com/jtodevs/fastlap/internal/dual"

// SmoothMax0 is a smooth (C-infinity) approximation of max(x, 0), built
// only from Number[T] operations so it stays valid inside an AD tape —
// models use it instead of branching on a control's sign, which spec's
// AD contract forbids outside build-time flags.
func SmoothMax0[T dual.Number[T]](x T, eps float64) T {
	zero := x.Const(0)
	e2 := x.Const(eps * eps)
	return x.Add(x.Mul(x).Add(e2).Sqrt()).Mul(zero.Const(0.5))
}

// SmoothMin0 is the mirror of SmoothMax0: a smooth approximation of
// min(x, 0).
func SmoothMin0[T dual.Number[T]](x T, eps float64) T {
	return SmoothMax0(x.Neg(), eps).Neg()
}

// CurvilinearRates converts body-frame kinematics into the arclength-domain
// rates spec §3's state adjacency (ITIME+1=IN) is built around: dt/ds
// (elapsed time per unit arclength), dn/ds (lateral offset rate) and
// dalpha/ds (path-relative yaw rate), given the body velocities (u, v),
// yaw rate omega, current lateral offset n, path-relative heading alpha
// and the bound track's curvature kappa at this s.
func CurvilinearRates[T dual.Number[T]](u, v, omega, n, alpha T, kappa float64) (dtds, dnds, dalphads T) {
	one := u.Const(1)
	kap := u.Const(kappa)
	denom := u.Mul(alpha.Cos()).Sub(v.Mul(alpha.Sin()))
	dtds = one.Sub(n.Mul(kap)).Div(denom)
	dnds = u.Mul(alpha.Sin()).Add(v.Mul(alpha.Cos())).Mul(dtds)
	dalphads = omega.Mul(dtds).Sub(kap)
	return dtds, dnds, dalphads
}
