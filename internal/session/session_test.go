package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jtodevs/fastlap/internal/session"
	"github.com/jtodevs/fastlap/internal/track"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(":memory:")
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func straightSurface(t *testing.T) *track.Surface {
	t.Helper()
	sf, err := track.NewSurface(false, 0,
		[]float64{0, 10, 20}, []float64{0, 10, 20}, []float64{0, 0, 0},
		[]float64{0, 0, 0}, []float64{0, 0, 0}, []float64{5, 5, 5}, []float64{5, 5, 5})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	return sf
}

func TestSessionSurfaceRoundTrip(t *testing.T) {
	s := newTestSession(t)
	sf := straightSurface(t)
	s.PutSurface("monza", sf)

	got, err := s.Surface("monza")
	if err != nil {
		t.Fatalf("Surface: %v", err)
	}
	if got != sf {
		t.Error("Surface returned a different pointer than was stored")
	}

	if _, err := s.Surface("nonexistent"); err == nil {
		t.Error("Surface should fail for an unregistered name")
	}
}

func TestSessionVehicleRejectsUnknownKind(t *testing.T) {
	s := newTestSession(t)
	if err := s.PutVehicle("kart1", "unknown-kind", nil); err == nil {
		t.Error("PutVehicle should reject an unregistered model kind")
	}
}

func TestSessionDualBuilderAppliesOverrides(t *testing.T) {
	s := newTestSession(t)
	if err := s.PutVehicle("kart1", session.KindKart6DOF, map[string]float64{"mass": 123}); err != nil {
		t.Fatalf("PutVehicle: %v", err)
	}

	build, kind, err := s.DualBuilder("kart1")
	if err != nil {
		t.Fatalf("DualBuilder: %v", err)
	}
	if kind != session.KindKart6DOF {
		t.Errorf("kind = %v, want %v", kind, session.KindKart6DOF)
	}
	m := build()
	if got := m.Params().ByAlias("mass").At(0); got != 123 {
		t.Errorf("mass override = %f, want 123", got)
	}
}

func TestSessionScalarVectorOutputRoundTrip(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.WriteScalar("laptime", 91.234))

	v, err := s.ReadScalar("laptime")
	require.NoError(t, err)
	require.Equal(t, 91.234, v)

	want := []float64{1, 2, 3, 4}
	require.NoError(t, s.WriteVector("x", want))

	got, err := s.ReadVector("x")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = s.ReadScalar("does-not-exist")
	require.Error(t, err)
}

func TestSessionWriteVectorOverwritesPriorValue(t *testing.T) {
	s := newTestSession(t)
	if err := s.WriteVector("x", []float64{1, 2, 3}); err != nil {
		t.Fatalf("WriteVector: %v", err)
	}
	if err := s.WriteVector("x", []float64{9, 8}); err != nil {
		t.Fatalf("WriteVector: %v", err)
	}
	got, err := s.ReadVector("x")
	if err != nil {
		t.Fatalf("ReadVector: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 after overwrite with a shorter vector", len(got))
	}
}
