// Package api exposes session.Session over HTTP: track ingestion, vehicle
// registration, laptime optimization, and a read-only view of the outputs
// a laptime run wrote (spec §6), grounded on the teacher's api/server.go
// mux-per-resource layout.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jtodevs/fastlap/internal/config"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/ocp"
	"github.com/jtodevs/fastlap/internal/output"
	"github.com/jtodevs/fastlap/internal/security"
	"github.com/jtodevs/fastlap/internal/session"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/track/preprocess"
	"github.com/jtodevs/fastlap/internal/vehicle"
	"github.com/jtodevs/fastlap/internal/warmstart"
)

type Server struct {
	sess *session.Session
}

func NewServer(sess *session.Session) *Server {
	return &Server{sess: sess}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tracks", s.postTracks)
	mux.HandleFunc("/vehicles", s.postVehicles)
	mux.HandleFunc("/laptime", s.postLaptime)
	mux.HandleFunc("/outputs/", s.getOutput)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an errs.Kind to an HTTP status the way the rest of the
// core distinguishes "bad request" from "we broke" (spec §7).
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.Is(err, errs.InputValidation), errs.Is(err, errs.ModelMismatch):
		status = http.StatusBadRequest
	case errs.Is(err, errs.LookupMiss):
		status = http.StatusNotFound
	case errs.Is(err, errs.NumericFailure):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

type postTracksRequest struct {
	Name                string                      `json:"name,omitempty"`
	Closed              bool                        `json:"closed"`
	Left                []track.LatLon              `json:"left"`
	Right               []track.LatLon              `json:"right"`
	NElements           int                         `json:"n_elements"`
	TrimStart           float64                     `json:"trim_start,omitempty"`
	TrimFinish          float64                     `json:"trim_finish,omitempty"`
	PreprocessorOptions *config.PreprocessorOptions `json:"preprocessor_options,omitempty"`
}

// postTracks runs the boundary-to-curvilinear-surface preprocessor (spec
// §4.D) and registers the result under a caller-given or generated name.
func (s *Server) postTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req postTracksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	opts := req.PreprocessorOptions
	if opts == nil {
		opts = config.DefaultPreprocessorOptions()
	}
	surface, err := preprocess.Run(opts, preprocess.Input{
		Closed:     req.Closed,
		Left:       req.Left,
		Right:      req.Right,
		NElements:  req.NElements,
		TrimStart:  req.TrimStart,
		TrimFinish: req.TrimFinish,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	name := req.Name
	if name == "" {
		name = uuid.NewString()
	}
	name = security.SanitizeFilename(name)
	s.sess.PutSurface(name, surface)
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

type postVehiclesRequest struct {
	Name      string             `json:"name,omitempty"`
	Kind      string             `json:"kind"`
	Overrides map[string]float64 `json:"overrides,omitempty"`
}

// postVehicles registers a model kind plus parameter overrides under a
// name, deferring the actual Model[Ts] construction to whichever caller
// (laptime, steady-state) needs one (spec §4.B/§4.C).
func (s *Server) postVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req postVehiclesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	name := req.Name
	if name == "" {
		name = uuid.NewString()
	}
	name = security.SanitizeFilename(name)
	if err := s.sess.PutVehicle(name, vehicle.Kind(req.Kind), req.Overrides); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

type postLaptimeRequest struct {
	Vehicle string                      `json:"vehicle"`
	Track   string                      `json:"track"`
	Options *config.OptimalLaptimeOptions `json:"options"`
}

// postLaptime runs one minimum-time solve (spec §4.F/§4.G): it seeds the
// mesh from the steady-state cornering equilibrium at the requested speed,
// or from the warm-start cache when the options ask for it and a prior
// solve of the same vehicle/track pair left one behind, solves, writes
// every named output into the session under the configured prefix, and
// returns them inline.
func (s *Server) postLaptime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req postLaptimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Options == nil {
		http.Error(w, "options is required", http.StatusBadRequest)
		return
	}

	surface, err := s.sess.Surface(req.Track)
	if err != nil {
		writeError(w, err)
		return
	}
	buildDual, _, err := s.sess.DualBuilder(req.Vehicle)
	if err != nil {
		writeError(w, err)
		return
	}
	floatModel, err := s.sess.FloatModel(req.Vehicle)
	if err != nil {
		writeError(w, err)
		return
	}

	q, qa, u, err := vehicle.SteadyState(buildDual, vehicle.Target{V: req.Options.SteadyStateSpeed})
	if err != nil {
		writeError(w, err)
		return
	}

	problem := ocp.NewProblem(buildDual, surface, req.Options)
	if !req.Options.IsClosed {
		problem.WithInitialState(q)
	}
	problem.WithSeedControls(u)
	if err := problem.Build(); err != nil {
		writeError(w, err)
		return
	}

	warmKey := warmstart.Key(req.Vehicle, req.Track)
	var x0 []float64
	if req.Options.WarmStart {
		if cached, ok := s.sess.Warm().Get(warmKey); ok && len(cached) == problem.NVars() {
			x0 = cached
		}
	}
	if x0 == nil {
		x0, err = problem.SeedFromSteadyState(q, qa, u)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), laptimeTimeout)
	defer cancel()

	solver := ocp.NewSolver(req.Options)
	traj, err := solver.Solve(ctx, problem, x0)
	if err != nil {
		writeError(w, err)
		return
	}
	s.sess.Warm().Put(warmKey, traj.FreeVars)

	if req.Options.ComputeSensitivity {
		deriv, dLap, err := solver.Sensitivity(ctx, problem, traj.FreeVars)
		if err != nil {
			writeError(w, err)
			return
		}
		traj.Sensitivity, traj.DLaptimeDP = deriv, dLap
	}

	prefix := req.Options.GetOutputVariablesPrefix()
	vectors := output.Extract(traj, floatModel, prefix)
	scalars := output.Scalars(traj, prefix)
	for name, col := range vectors {
		if err := s.sess.WriteVector(name, col); err != nil {
			writeError(w, err)
			return
		}
	}
	for name, v := range scalars {
		if err := s.sess.WriteScalar(name, v); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vectors": vectors,
		"scalars": scalars,
	})
}

// getOutput reads one previously written named scalar or vector back out,
// mirroring the teacher's read-only admin surface.
func (s *Server) getOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Path[len("/outputs/"):]
	if name == "" {
		http.Error(w, "output name is required", http.StatusBadRequest)
		return
	}

	if v, err := s.sess.ReadScalar(name); err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "scalar": v})
		return
	}
	col, err := s.sess.ReadVector(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "vector": col})
}

const laptimeTimeout = 2 * time.Minute
