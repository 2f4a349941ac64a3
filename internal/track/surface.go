// Package track wraps the preprocessor's discrete curvilinear output (spec
// §4.D) behind smooth per-element interpolation (spec §4.E), and defines
// the geodetic input types the preprocessor consumes.
package track

import (
	"math"
	"sort"

	"github.com/jtodevs/fastlap/internal/errs"
)

// LatLon is a geodetic boundary sample in degrees.
type LatLon struct {
	Lon, Lat float64
}

// Surface answers κ(s), θ(s), n_L(s), n_R(s) and (x(s,n), y(s,n), ψ(s,n))
// via cubic-Hermite interpolation over the preprocessor's discrete nodes.
// It is immutable after construction and safe to bind to any number of
// vehicle.Model instances (spec §4.E's change_track contract).
type Surface struct {
	closed bool
	length float64

	s     []float64
	x, y  []float64
	theta []float64
	kappa []float64
	nl    []float64
	nr    []float64

	dKappa []float64
	dNL    []float64
	dNR    []float64
}

// NewSurface builds a Surface from the preprocessor's node arrays. s must
// be strictly increasing starting at zero; for a closed track, length is
// the total arclength wrapping s.back() back to s[0].
func NewSurface(closed bool, length float64, s, x, y, theta, kappa, nl, nr []float64) (*Surface, error) {
	n := len(s)
	if n < 2 {
		return nil, errs.Newf(errs.InputValidation, "track.NewSurface", "need at least 2 nodes, got %d", n)
	}
	for _, arr := range [][]float64{x, y, theta, kappa, nl, nr} {
		if len(arr) != n {
			return nil, errs.Newf(errs.InputValidation, "track.NewSurface", "all node arrays must have length %d", n)
		}
	}
	if s[0] != 0 {
		return nil, errs.Newf(errs.InputValidation, "track.NewSurface", "s[0] must be 0, got %f", s[0])
	}
	for i := 1; i < n; i++ {
		if s[i] <= s[i-1] {
			return nil, errs.Newf(errs.InputValidation, "track.NewSurface", "s must be strictly increasing at index %d", i)
		}
	}
	if closed && length <= s[n-1] {
		return nil, errs.Newf(errs.InputValidation, "track.NewSurface", "closed track length %f must exceed s.back() %f", length, s[n-1])
	}

	sf := &Surface{closed: closed, length: length, s: s, x: x, y: y, theta: theta, kappa: kappa, nl: nl, nr: nr}
	sf.dKappa = centralSlopes(s, kappa, closed, length)
	sf.dNL = centralSlopes(s, nl, closed, length)
	sf.dNR = centralSlopes(s, nr, closed, length)
	return sf, nil
}

// Length returns the track's total arclength (for a closed track, the
// wrap-around length; for an open track, s.back()).
func (sf *Surface) Length() float64 {
	if sf.closed {
		return sf.length
	}
	return sf.s[len(sf.s)-1]
}

func (sf *Surface) Closed() bool { return sf.closed }

// centralSlopes estimates dv/ds at each node by central differences,
// wrapping around the implicit closing element for closed tracks.
func centralSlopes(s, v []float64, closed bool, length float64) []float64 {
	n := len(s)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sPrev, sNext, vPrev, vNext float64
		switch {
		case i == 0 && closed:
			sPrev, vPrev = s[n-1]-length, v[n-1]
			sNext, vNext = s[1], v[1]
		case i == n-1 && closed:
			sPrev, vPrev = s[n-2], v[n-2]
			sNext, vNext = s[0]+length, v[0]
		case i == 0:
			sPrev, vPrev = s[0], v[0]
			sNext, vNext = s[1], v[1]
		case i == n-1:
			sPrev, vPrev = s[n-2], v[n-2]
			sNext, vNext = s[n-1], v[n-1]
		default:
			sPrev, vPrev = s[i-1], v[i-1]
			sNext, vNext = s[i+1], v[i+1]
		}
		if sNext == sPrev {
			out[i] = 0
			continue
		}
		out[i] = (vNext - vPrev) / (sNext - sPrev)
	}
	return out
}

// wrap folds s into the track's canonical domain.
func (sf *Surface) wrap(s float64) float64 {
	if !sf.closed {
		return s
	}
	L := sf.length
	s = math.Mod(s, L)
	if s < 0 {
		s += L
	}
	return s
}

// segment returns the index i such that s lies in [sf.s[i], next), along
// with the segment's start/end arclength and length, accounting for the
// implicit wrap-around element of a closed track.
func (sf *Surface) segment(s float64) (i int, s0, s1 float64) {
	n := len(sf.s)
	i = sort.Search(n, func(i int) bool { return sf.s[i] > s }) - 1
	if i < 0 {
		i = 0
	}
	if i >= n-1 {
		i = n - 1
		s0 = sf.s[n-1]
		if sf.closed {
			s1 = sf.length
		} else {
			s1 = sf.s[n-1]
		}
		return i, s0, s1
	}
	return i, sf.s[i], sf.s[i+1]
}

func hermite(t, v0, v1, m0, m1, dt float64) float64 {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*v0 + h10*dt*m0 + h01*v1 + h11*dt*m1
}

func (sf *Surface) interp(s float64, v, dv []float64) float64 {
	s = sf.wrap(s)
	i, s0, s1 := sf.segment(s)
	dt := s1 - s0
	if dt == 0 {
		return v[i]
	}
	t := (s - s0) / dt
	j := i + 1
	var v1, m1 float64
	if j >= len(v) {
		j = 0
		v1 = v[0]
		m1 = dv[0]
	} else {
		v1 = v[j]
		m1 = dv[j]
	}
	return hermite(t, v[i], v1, dv[i], m1, dt)
}

// Kappa returns the interpolated signed curvature at arclength s.
func (sf *Surface) Kappa(s float64) float64 { return sf.interp(s, sf.kappa, sf.dKappa) }

// NL returns the interpolated left half-width at arclength s.
func (sf *Surface) NL(s float64) float64 { return sf.interp(s, sf.nl, sf.dNL) }

// NR returns the interpolated right half-width at arclength s.
func (sf *Surface) NR(s float64) float64 { return sf.interp(s, sf.nr, sf.dNR) }

// Theta returns the interpolated heading (road frame) at arclength s,
// reconstructed by integrating the interpolated curvature (trapezoidal
// rule) from the start node of the segment containing s, rather than
// interpolating raw heading samples, so that
// Theta stays consistent with Kappa between nodes.
func (sf *Surface) Theta(s float64) float64 {
	s = sf.wrap(s)
	i, s0, _ := sf.segment(s)
	return sf.theta[i] + 0.5*(sf.kappa[i]+sf.Kappa(s))*(s-s0)
}

// centerPoint interpolates the centerline position using cos/sin of
// the node heading as the Hermite slopes, matching dx/ds=cosθ, dy/ds=sinθ.
func (sf *Surface) centerPoint(s float64) (x, y float64) {
	s = sf.wrap(s)
	i, s0, s1 := sf.segment(s)
	dt := s1 - s0
	if dt == 0 {
		return sf.x[i], sf.y[i]
	}
	t := (s - s0) / dt
	j := i + 1
	var x1, y1, theta1 float64
	if j >= len(sf.x) {
		x1, y1, theta1 = sf.x[0], sf.y[0], sf.theta[0]
	} else {
		x1, y1, theta1 = sf.x[j], sf.y[j], sf.theta[j]
	}
	x = hermite(t, sf.x[i], x1, math.Cos(sf.theta[i]), math.Cos(theta1), dt)
	y = hermite(t, sf.y[i], y1, math.Sin(sf.theta[i]), math.Sin(theta1), dt)
	return x, y
}

// Point returns the Cartesian position and heading at lateral offset n
// from the centerline at arclength s (spec §4.E).
func (sf *Surface) Point(s, n float64) (x, y, psi float64) {
	xc, yc := sf.centerPoint(s)
	theta := sf.Theta(s)
	x = xc - n*math.Sin(theta)
	y = yc + n*math.Cos(theta)
	return x, y, theta
}
