package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jtodevs/fastlap/internal/config"
	"github.com/jtodevs/fastlap/internal/session"
	"github.com/jtodevs/fastlap/internal/track"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	sess, err := session.New(":memory:")
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return NewServer(sess)
}

func straightSurface(t *testing.T) *track.Surface {
	t.Helper()
	sf, err := track.NewSurface(false, 0,
		[]float64{0, 30, 60}, []float64{0, 30, 60}, []float64{0, 0, 0},
		[]float64{0, 0, 0}, []float64{0, 0, 0}, []float64{5, 5, 5}, []float64{5, 5, 5})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	return sf
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestPostVehiclesRegistersUnderGeneratedName(t *testing.T) {
	s := setupTestServer(t)
	w := postJSON(t, s.postVehicles, "/vehicles", postVehiclesRequest{Kind: "kart-6dof"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["name"] == "" {
		t.Error("expected a generated name, got empty string")
	}
}

func TestPostVehiclesRejectsUnknownKind(t *testing.T) {
	s := setupTestServer(t)
	w := postJSON(t, s.postVehicles, "/vehicles", postVehiclesRequest{Name: "bad", Kind: "not-a-real-kind"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPostLaptimeHoldsSteadyStateCruise(t *testing.T) {
	s := setupTestServer(t)
	s.sess.PutSurface("line", straightSurface(t))
	if err := s.sess.PutVehicle("kart", "kart-6dof", nil); err != nil {
		t.Fatalf("PutVehicle: %v", err)
	}

	req := postLaptimeRequest{
		Vehicle: "kart",
		Track:   "line",
		Options: &config.OptimalLaptimeOptions{
			NPoints:          4,
			SteadyStateSpeed: 15,
		},
	}
	w := postJSON(t, s.postLaptime, "/laptime", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Scalars map[string]float64 `json:"scalars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := 60.0 / 15.0
	if got := resp.Scalars["laptime"]; got < want-1 || got > want+1 {
		t.Errorf("laptime = %f, want close to %f", got, want)
	}

	outReq := httptest.NewRequest(http.MethodGet, "/outputs/laptime", nil)
	outW := httptest.NewRecorder()
	s.getOutput(outW, outReq)
	if outW.Code != http.StatusOK {
		t.Fatalf("GET /outputs/laptime status = %d, body %s", outW.Code, outW.Body.String())
	}
}

func TestGetOutputRejectsUnknownName(t *testing.T) {
	s := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/outputs/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.getOutput(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
