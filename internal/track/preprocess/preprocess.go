// Package preprocess turns raw geodetic boundary samples into the discrete
// curvilinear nodes track.NewSurface consumes (spec §4.D): it flattens
// lat/lon to a local planar frame, estimates a centerline, fits a smooth
// heading/curvature/width profile against it, and (for open tracks) trims
// to the requested start/finish window.
package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jtodevs/fastlap/internal/config"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/track"
)

// rEarth is the equirectangular-projection radius, matching the source's
// geodetic flattening constant.
const rEarth = 6378388.0

// Input is the raw boundary description of one track: a left and right
// polyline sampled in geodetic coordinates. The two polylines need not
// have matching point counts or spacing; correspondence is established by
// normalized arclength.
type Input struct {
	Closed bool
	Left   []track.LatLon
	Right  []track.LatLon

	// NElements is the number of curvilinear nodes to fit (spec §4.D's
	// n_el). Required.
	NElements int

	// TrimStart/TrimFinish, for open tracks only, restrict the fitted
	// surface to a fraction of the raw boundary's arclength, in [0,1]
	// with TrimStart < TrimFinish. Zero value means "use the whole
	// boundary" (TrimStart=0, TrimFinish=1).
	TrimStart  float64
	TrimFinish float64
}

type vec2 struct{ X, Y float64 }

// Run executes the full preprocessing pipeline and returns a bound
// track.Surface.
func Run(opts *config.PreprocessorOptions, in Input) (*track.Surface, error) {
	if in.NElements < 2 {
		return nil, errs.Newf(errs.InputValidation, "preprocess.Run", "n_elements must be at least 2, got %d", in.NElements)
	}
	if len(in.Left) < 2 || len(in.Right) < 2 {
		return nil, errs.New(errs.InputValidation, "preprocess.Run", fmt.Errorf("left and right boundaries each need at least 2 points"))
	}
	if !in.Closed {
		finish := in.TrimFinish
		if finish == 0 {
			finish = 1
		}
		if finish <= in.TrimStart {
			return nil, errs.Newf(errs.InputValidation, "preprocess.Run", "trim_finish %f must exceed trim_start %f", finish, in.TrimStart)
		}
		if finish > 1 {
			return nil, errs.Newf(errs.InputValidation, "preprocess.Run", "trim_finish %f exceeds boundary length fraction 1.0", finish)
		}
	}

	left := flatten(in.Left, in.Left[0])
	right := flatten(in.Right, in.Left[0])

	left = orient(left, in.Closed)
	right = orient(right, in.Closed)

	center, nl, nr := correspond(left, right, in.NElements, in.Closed)

	if !in.Closed {
		start, finish := in.TrimStart, in.TrimFinish
		if finish == 0 {
			finish = 1
		}
		center, nl, nr = trim(center, nl, nr, start, finish)
	}

	s, x, y, theta, kappa := fitProfile(center, in.Closed, opts)
	nl = smooth(nl, opts.GetEpsN(), opts.GetEpsD())
	nr = smooth(nr, opts.GetEpsN(), opts.GetEpsD())
	clampSlice(nl, 0, math.Inf(1))
	clampSlice(nr, 0, math.Inf(1))
	clampRate(nl, s, opts.GetMaximumDN())
	clampRate(nr, s, opts.GetMaximumDN())

	var length float64
	if in.Closed {
		length = s[len(s)-1] + dist(vec2{x[len(x)-1], y[len(y)-1]}, vec2{x[0], y[0]})
	}

	return track.NewSurface(in.Closed, length, s, x, y, theta, kappa, nl, nr)
}

// flatten projects geodetic points to a local planar frame centered on
// origin, using the equirectangular approximation appropriate to a single
// circuit's footprint. Both boundaries are flattened about the same origin
// (the first left-boundary sample) so they share one frame.
func flatten(pts []track.LatLon, origin track.LatLon) []vec2 {
	lat0 := origin.Lat * math.Pi / 180
	lon0 := origin.Lon * math.Pi / 180
	out := make([]vec2, len(pts))
	for i, p := range pts {
		lat := p.Lat * math.Pi / 180
		lon := p.Lon * math.Pi / 180
		out[i] = vec2{
			X: rEarth * math.Cos(lat0) * (lon - lon0),
			Y: rEarth * (lat - lat0),
		}
	}
	return out
}

func dist(a, b vec2) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// orient reverses a closed boundary so it runs counter-clockwise (positive
// signed area), a canonical direction both sides are normalized to before
// correspondence is established. Open boundaries are left as sampled.
func orient(pts []vec2, closed bool) []vec2 {
	if !closed {
		return pts
	}
	area := 0.0
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area >= 0 {
		return pts
	}
	rev := make([]vec2, n)
	for i, p := range pts {
		rev[n-1-i] = p
	}
	return rev
}

// arcLengthParam returns, for each point, its cumulative arclength divided
// by the polyline's total length, i.e. its position in [0,1].
func arcLengthParam(pts []vec2, closed bool) []float64 {
	n := len(pts)
	cum := make([]float64, n)
	for i := 1; i < n; i++ {
		cum[i] = cum[i-1] + dist(pts[i-1], pts[i])
	}
	total := cum[n-1]
	if closed {
		total += dist(pts[n-1], pts[0])
	}
	out := make([]float64, n)
	for i, c := range cum {
		out[i] = c / total
	}
	return out
}

// sampleAt linearly interpolates a polyline (param in [0,1], wrapping for
// closed boundaries) at the given normalized arclength.
func sampleAt(pts []vec2, param []float64, closed bool, t float64) vec2 {
	n := len(pts)
	if closed {
		t = math.Mod(t, 1)
		if t < 0 {
			t++
		}
	} else {
		if t <= 0 {
			return pts[0]
		}
		if t >= 1 {
			return pts[n-1]
		}
	}
	i := sort.Search(n, func(i int) bool { return param[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	j := i + 1
	var tj, xj, yj float64
	if j >= n {
		j = 0
		tj = 1
		xj, yj = pts[0].X, pts[0].Y
	} else {
		tj = param[j]
		xj, yj = pts[j].X, pts[j].Y
	}
	ti := param[i]
	span := tj - ti
	if closed && j == 0 {
		span = 1 - ti
	}
	if span <= 0 {
		return pts[i]
	}
	frac := (t - ti) / span
	return vec2{
		X: pts[i].X + frac*(xj-pts[i].X),
		Y: pts[i].Y + frac*(yj-pts[i].Y),
	}
}

// correspond matches the left and right boundaries by normalized
// arclength at n evenly spaced parameter values, returning the midpoint
// centerline and each side's half-width at every node.
func correspond(left, right []vec2, n int, closed bool) (center []vec2, nl, nr []float64) {
	lp := arcLengthParam(left, closed)
	rp := arcLengthParam(right, closed)

	center = make([]vec2, n)
	nl = make([]float64, n)
	nr = make([]float64, n)

	steps := n
	if !closed {
		steps = n - 1
	}
	for i := 0; i < n; i++ {
		t := float64(i) / float64(steps)
		lpt := sampleAt(left, lp, closed, t)
		rpt := sampleAt(right, rp, closed, t)
		c := vec2{(lpt.X + rpt.X) / 2, (lpt.Y + rpt.Y) / 2}
		center[i] = c
		nl[i] = dist(c, lpt)
		nr[i] = dist(c, rpt)
	}
	return center, nl, nr
}

// trim restricts a centerline and its half-widths to the [start,finish]
// fraction of its own parameter range, resampling onto the same node count.
func trim(center []vec2, nl, nr []float64, start, finish float64) ([]vec2, []float64, []float64) {
	n := len(center)
	param := arcLengthParam(center, false)
	outC := make([]vec2, n)
	outNL := make([]float64, n)
	outNR := make([]float64, n)
	for i := 0; i < n; i++ {
		t := start + (finish-start)*float64(i)/float64(n-1)
		j := sort.Search(n, func(j int) bool { return param[j] >= t })
		if j >= n {
			j = n - 1
		}
		outC[i] = center[j]
		outNL[i] = nl[j]
		outNR[i] = nr[j]
	}
	return outC, outNL, outNR
}

// fitProfile derives arclength, position, heading and curvature from a
// sampled centerline. Heading comes from consecutive-point differences;
// curvature is the smoothed derivative of heading. Both go through smooth
// with eps_d as the fit weight; the rate weight is eps_c for heading and
// eps_k for curvature. Curvature is then clamped to ±maximum_kappa and its
// rate of change along s to maximum_dkappa.
func fitProfile(center []vec2, closed bool, opts *config.PreprocessorOptions) (s, x, y, theta, kappa []float64) {
	n := len(center)
	s = make([]float64, n)
	x = make([]float64, n)
	y = make([]float64, n)
	rawTheta := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i], y[i] = center[i].X, center[i].Y
		if i > 0 {
			s[i] = s[i-1] + dist(center[i-1], center[i])
		}
		var next vec2
		if i == n-1 {
			if closed {
				next = center[0]
			} else {
				next = center[i]
			}
		} else {
			next = center[i+1]
		}
		prev := center[i]
		if i == n-1 && !closed {
			prev = center[i-1]
			next = center[i]
		}
		rawTheta[i] = math.Atan2(next.Y-prev.Y, next.X-prev.X)
	}
	unwrap(rawTheta)
	theta = smooth(rawTheta, opts.GetEpsC(), opts.GetEpsD())

	rawKappa := make([]float64, n)
	for i := 0; i < n; i++ {
		var ds float64
		switch {
		case i == 0:
			ds = s[1] - s[0]
			rawKappa[i] = (theta[1] - theta[0]) / ds
		case i == n-1:
			ds = s[i] - s[i-1]
			rawKappa[i] = (theta[i] - theta[i-1]) / ds
		default:
			ds = s[i+1] - s[i-1]
			rawKappa[i] = (theta[i+1] - theta[i-1]) / ds
		}
	}
	kappa = smooth(rawKappa, opts.GetEpsK(), opts.GetEpsD())
	clampSlice(kappa, -opts.GetMaximumKappa(), opts.GetMaximumKappa())
	clampRate(kappa, s, opts.GetMaximumDKappa())
	return s, x, y, theta, kappa
}

// unwrap removes 2*pi discontinuities from a sequence of angles in place.
func unwrap(theta []float64) {
	for i := 1; i < len(theta); i++ {
		for theta[i]-theta[i-1] > math.Pi {
			theta[i] -= 2 * math.Pi
		}
		for theta[i]-theta[i-1] < -math.Pi {
			theta[i] += 2 * math.Pi
		}
	}
}

// smooth solves the Tikhonov normal equations (epsFit*I + epsRate*D^T D) x
// = epsFit*raw, where D is the first-difference operator: this is the same
// fit-vs-smoothness tradeoff the preprocessor's optimizer balances via its
// eps_* weights, solved here in closed form over a tridiagonal system
// instead of through the general-purpose interior-point solver reserved
// for the laptime problem itself.
func smooth(raw []float64, epsRate, epsFit float64) []float64 {
	n := len(raw)
	if n < 3 || epsRate <= 0 {
		return append([]float64(nil), raw...)
	}
	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, epsFit)
		b.SetVec(i, epsFit*raw[i])
	}
	for i := 0; i < n-1; i++ {
		a.Set(i, i, a.At(i, i)+epsRate)
		a.Set(i+1, i+1, a.At(i+1, i+1)+epsRate)
		a.Set(i, i+1, a.At(i, i+1)-epsRate)
		a.Set(i+1, i, a.At(i+1, i)-epsRate)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return append([]float64(nil), raw...)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// clampRate limits the per-step rate of change of v against the arclength
// grid s, clipping each node toward its predecessor when |dv/ds| would
// exceed maxRate — the half-width analogue of the curvature-rate bound
// applied to kappa in fitProfile.
func clampRate(v, s []float64, maxRate float64) {
	for i := 1; i < len(v); i++ {
		ds := s[i] - s[i-1]
		if ds <= 0 {
			continue
		}
		rate := (v[i] - v[i-1]) / ds
		if rate > maxRate {
			v[i] = v[i-1] + maxRate*ds
		} else if rate < -maxRate {
			v[i] = v[i-1] - maxRate*ds
		}
	}
}

func clampSlice(v []float64, lo, hi float64) {
	for i, vi := range v {
		if vi < lo {
			v[i] = lo
		} else if vi > hi {
			v[i] = hi
		}
	}
}
