// Package session owns the process-wide context spec.md §9's process-wide
// registries were collapsed into: named Surfaces and vehicle handles, a
// warm-start cache, and a sqlite-backed table of named scalar/vector
// outputs (spec §6). session.Session is passed explicitly to api.Server and
// cmd/fastlap rather than read from package-level state.
package session

import (
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/monitoring"
	"github.com/jtodevs/fastlap/internal/track"
	"github.com/jtodevs/fastlap/internal/warmstart"
)

// vehicleHandle is everything Session needs to rebuild a fresh Model[Ts]
// instance for a stored vehicle on demand; it does not itself hold a Model,
// since a Model is generic over its scalar type and a map can't carry that.
type vehicleHandle struct {
	kind      vehicleKind
	overrides map[string]float64
}

// Session is the registry HTTP handlers (in different goroutines) read and
// write; mu guards the in-memory maps the way VelocityCoherentTracker
// guards its track map. The sqlite handle is already safe for concurrent
// use and is not covered by mu.
type Session struct {
	mu       sync.RWMutex
	surfaces map[string]*track.Surface
	vehicles map[string]vehicleHandle

	warm *warmstart.Store
	db   *sql.DB
}

// New opens (or creates) the sqlite database at path and brings its schema
// up to date. Pass ":memory:" for an ephemeral, process-local session.
func New(path string) (*Session, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.New(errs.Internal, "session.New", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Session{
		surfaces: make(map[string]*track.Surface),
		vehicles: make(map[string]vehicleHandle),
		warm:     warmstart.NewStore(),
		db:       db,
	}, nil
}

// Close releases the underlying database handle.
func (s *Session) Close() error { return s.db.Close() }

// Warm returns the session's warm-start cache.
func (s *Session) Warm() *warmstart.Store { return s.warm }

// PutSurface registers a track surface under name, overwriting any prior
// surface of the same name.
func (s *Session) PutSurface(name string, sf *track.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaces[name] = sf
}

// Surface looks up a previously registered track surface.
func (s *Session) Surface(name string) (*track.Surface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.surfaces[name]
	if !ok {
		return nil, errs.Newf(errs.LookupMiss, "session.Surface", "no track registered under %q", name)
	}
	return sf, nil
}

// PutVehicle registers a vehicle under name: its model kind, plus any
// parameter overrides (by path or alias) to apply to every instance built
// from this handle. An override that names no parameter of kind is
// rejected with errs.ModelMismatch.
func (s *Session) PutVehicle(name string, kind vehicleKind, overrides map[string]float64) error {
	m, err := buildFloat(kind)
	if err != nil {
		return err
	}
	if err := applyOverrides(m.Params(), overrides); err != nil {
		return errs.New(errs.ModelMismatch, "session.PutVehicle", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[name] = vehicleHandle{kind: kind, overrides: overrides}
	return nil
}

func (s *Session) vehicle(name string) (vehicleHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.vehicles[name]
	if !ok {
		return vehicleHandle{}, errs.Newf(errs.LookupMiss, "session.vehicle", "no vehicle registered under %q", name)
	}
	return h, nil
}

// WriteScalar persists a named scalar output (spec §6's output table).
func (s *Session) WriteScalar(name string, value float64) error {
	return monitoring.Boundary("session.WriteScalar", func() error {
		_, err := s.db.Exec(`
			INSERT INTO scalar_outputs (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, name, value)
		if err != nil {
			return errs.New(errs.Internal, "session.WriteScalar", err)
		}
		return nil
	})
}

// ReadScalar reads a previously written named scalar.
func (s *Session) ReadScalar(name string) (float64, error) {
	var v float64
	err := s.db.QueryRow(`SELECT value FROM scalar_outputs WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, errs.Newf(errs.LookupMiss, "session.ReadScalar", "no scalar output named %q", name)
	}
	if err != nil {
		return 0, errs.New(errs.Internal, "session.ReadScalar", err)
	}
	return v, nil
}

// WriteVector persists a named vector output, replacing any prior value
// under the same name.
func (s *Session) WriteVector(name string, values []float64) error {
	return monitoring.Boundary("session.WriteVector", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return errs.New(errs.Internal, "session.WriteVector", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM vector_outputs WHERE name = ?`, name); err != nil {
			return errs.New(errs.Internal, "session.WriteVector", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO vector_outputs (name, idx, value) VALUES (?, ?, ?)`)
		if err != nil {
			return errs.New(errs.Internal, "session.WriteVector", err)
		}
		defer stmt.Close()
		for i, v := range values {
			if _, err := stmt.Exec(name, i, v); err != nil {
				return errs.New(errs.Internal, "session.WriteVector", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return errs.New(errs.Internal, "session.WriteVector", err)
		}
		return nil
	})
}

// ReadVector reads a previously written named vector, ordered by index.
func (s *Session) ReadVector(name string) ([]float64, error) {
	rows, err := s.db.Query(`SELECT value FROM vector_outputs WHERE name = ? ORDER BY idx`, name)
	if err != nil {
		return nil, errs.New(errs.Internal, "session.ReadVector", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errs.New(errs.Internal, "session.ReadVector", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.Internal, "session.ReadVector", err)
	}
	if out == nil {
		return nil, errs.Newf(errs.LookupMiss, "session.ReadVector", "no vector output named %q", name)
	}
	return out, nil
}
