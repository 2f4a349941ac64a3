package track

import (
	"math"
	"testing"
)

func straightSurface(t *testing.T) *Surface {
	t.Helper()
	s := []float64{0, 10, 20, 30}
	x := []float64{0, 10, 20, 30}
	y := []float64{0, 0, 0, 0}
	theta := []float64{0, 0, 0, 0}
	kappa := []float64{0, 0, 0, 0}
	nl := []float64{5, 5, 5, 5}
	nr := []float64{5, 5, 5, 5}
	sf, err := NewSurface(false, 0, s, x, y, theta, kappa, nl, nr)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	return sf
}

func TestSurfaceStraightTrack(t *testing.T) {
	sf := straightSurface(t)
	if got := sf.Kappa(15); math.Abs(got) > 1e-9 {
		t.Errorf("Kappa(15) = %f, want 0", got)
	}
	x, y, psi := sf.Point(15, 0)
	if math.Abs(x-15) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Errorf("Point(15,0) = (%f,%f), want (15,0)", x, y)
	}
	if math.Abs(psi) > 1e-9 {
		t.Errorf("heading at s=15 = %f, want 0", psi)
	}

	_, yLeft, _ := sf.Point(15, 2)
	if yLeft <= 0 {
		t.Errorf("positive lateral offset should move left (+y) on a straight at theta=0, got y=%f", yLeft)
	}
}

func TestSurfaceRejectsInvalidNodes(t *testing.T) {
	_, err := NewSurface(false, 0, []float64{0}, []float64{0}, []float64{0}, []float64{0}, []float64{0}, []float64{1}, []float64{1})
	if err == nil {
		t.Fatal("expected error for single-node surface")
	}
}

func TestSurfaceClosedWraps(t *testing.T) {
	s := []float64{0, 10, 20}
	x := []float64{0, 10, 20}
	y := []float64{0, 0, 0}
	theta := []float64{0, 0, 0}
	kappa := []float64{0, 0, 0}
	nl := []float64{3, 3, 3}
	nr := []float64{3, 3, 3}
	sf, err := NewSurface(true, 30, s, x, y, theta, kappa, nl, nr)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	if got := sf.Kappa(-5); math.Abs(got) > 1e-9 {
		t.Errorf("Kappa(-5) = %f, want 0 (wrapped)", got)
	}
	if got := sf.Length(); got != 30 {
		t.Errorf("Length() = %f, want 30", got)
	}
}
