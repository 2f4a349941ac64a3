// Package dual provides the two scalar instantiations the vehicle dynamics
// models are built over: Float64 for fast plain evaluation and Dual for
// forward-mode automatic differentiation. Both satisfy Number[T], so a
// dynamics closure written against Number[T] can be called with either
// without branching on the underlying representation.
package dual

import "math"

// Number is the arithmetic/trigonometry surface the vehicle dynamics models
// require from a scalar type. It is self-referential (F-bounded) so that a
// generic function written against Number[T] can chain operations and
// return T without ever naming the concrete type.
type Number[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(T) T
	Div(T) T
	Neg() T
	Sin() T
	Cos() T
	Atan2(T) T
	Sqrt() T
	Abs() T
	Value() float64
	// Const builds a same-kind value equal to x with zero sensitivity.
	// Called on any existing T (typically the zero value) purely to
	// dispatch to the right concrete type from generic code.
	Const(x float64) T
}

// Float64 is the non-differentiated scalar: plain arithmetic, used for
// steady-state sweeps and any evaluation that does not need a Jacobian.
type Float64 float64

func (a Float64) Add(b Float64) Float64   { return a + b }
func (a Float64) Sub(b Float64) Float64   { return a - b }
func (a Float64) Mul(b Float64) Float64   { return a * b }
func (a Float64) Div(b Float64) Float64   { return a / b }
func (a Float64) Neg() Float64            { return -a }
func (a Float64) Sin() Float64            { return Float64(math.Sin(float64(a))) }
func (a Float64) Cos() Float64            { return Float64(math.Cos(float64(a))) }
func (a Float64) Atan2(b Float64) Float64 { return Float64(math.Atan2(float64(a), float64(b))) }
func (a Float64) Sqrt() Float64           { return Float64(math.Sqrt(float64(a))) }
func (a Float64) Abs() Float64            { return Float64(math.Abs(float64(a))) }
func (a Float64) Value() float64          { return float64(a) }

// Const returns x as a constant Float64 — trivial, but lets generic model
// code construct literals the same way for both scalar kinds.
func (Float64) Const(x float64) Float64 { return Float64(x) }

// Dual is a forward-mode AD scalar carrying its value and the gradient of
// that value with respect to a fixed-size vector of free variables. Grad
// may be nil, meaning "exactly zero" — constants and freshly read
// parameters start this way, so building a residual that never touches a
// given free variable costs nothing beyond the initial allocation.
type Dual struct {
	Val  float64
	Grad []float64
}

// NewSeed builds a Dual whose gradient is the n-th basis vector of a space
// of dimension dim, i.e. the Dual representing "free variable n" among dim
// free variables. This is how internal/ocp seeds the AD tape per residual.
func NewSeed(dim, n int, value float64) Dual {
	g := make([]float64, dim)
	g[n] = 1
	return Dual{Val: value, Grad: g}
}

// Constant builds a Dual with zero gradient.
func Constant(value float64) Dual { return Dual{Val: value} }

func (Dual) Const(x float64) Dual { return Constant(x) }

func combine(a, b []float64, ca, cb float64) []float64 {
	if a == nil && b == nil {
		return nil
	}
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = ca*av + cb*bv
	}
	return out
}

func scale(a []float64, c float64) []float64 {
	if a == nil {
		return nil
	}
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = c * v
	}
	return out
}

func (a Dual) Add(b Dual) Dual {
	return Dual{Val: a.Val + b.Val, Grad: combine(a.Grad, b.Grad, 1, 1)}
}

func (a Dual) Sub(b Dual) Dual {
	return Dual{Val: a.Val - b.Val, Grad: combine(a.Grad, b.Grad, 1, -1)}
}

func (a Dual) Mul(b Dual) Dual {
	return Dual{Val: a.Val * b.Val, Grad: combine(a.Grad, b.Grad, b.Val, a.Val)}
}

func (a Dual) Div(b Dual) Dual {
	inv := 1 / b.Val
	val := a.Val * inv
	// d(a/b) = da/b - a*db/b^2
	return Dual{Val: val, Grad: combine(a.Grad, b.Grad, inv, -val*inv)}
}

func (a Dual) Neg() Dual {
	return Dual{Val: -a.Val, Grad: scale(a.Grad, -1)}
}

func (a Dual) Sin() Dual {
	return Dual{Val: math.Sin(a.Val), Grad: scale(a.Grad, math.Cos(a.Val))}
}

func (a Dual) Cos() Dual {
	return Dual{Val: math.Cos(a.Val), Grad: scale(a.Grad, -math.Sin(a.Val))}
}

// Atan2 differentiates with respect to both arguments: the result's
// gradient combines a's and b's gradients with the partial derivatives of
// atan2(a, b), so b may share free variables with a.
func (a Dual) Atan2(b Dual) Dual {
	val := math.Atan2(a.Val, b.Val)
	denom := a.Val*a.Val + b.Val*b.Val
	// d/da = b/denom, d/db = -a/denom
	return Dual{Val: val, Grad: combine(a.Grad, b.Grad, b.Val/denom, -a.Val/denom)}
}

func (a Dual) Sqrt() Dual {
	r := math.Sqrt(a.Val)
	return Dual{Val: r, Grad: scale(a.Grad, 0.5/r)}
}

func (a Dual) Abs() Dual {
	s := 1.0
	if a.Val < 0 {
		s = -1.0
	}
	return Dual{Val: math.Abs(a.Val), Grad: scale(a.Grad, s)}
}

func (a Dual) Value() float64 { return a.Val }
