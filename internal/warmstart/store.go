// Package warmstart caches a converged NLP solution vector per (vehicle,
// track) pair so a repeat laptime request can seed Solver.Solve from the
// last answer instead of a steady-state guess (spec §4.G "Seeding").
package warmstart

import "sync"

// Store is a concurrency-safe cache, a field of session.Session rather than
// package-level state (spec §9 redesign: "lift to a field of the context
// object"), guarded the way internal/lidar's VelocityCoherentTracker guards
// its track map.
type Store struct {
	mu    sync.RWMutex
	cache map[string][]float64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{cache: make(map[string][]float64)}
}

// Get returns the cached solution for key, if one exists. The returned
// slice is a copy; callers are free to mutate it.
func (st *Store) Get(key string) ([]float64, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	x, ok := st.cache[key]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), x...), true
}

// Put stores x as the warm-start seed for key, replacing any prior value.
func (st *Store) Put(key string, x []float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache[key] = append([]float64(nil), x...)
}

// Evict removes key's cached seed, if present.
func (st *Store) Evict(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.cache, key)
}

// Key builds the canonical cache key for a (vehicle, track) pair.
func Key(vehicleName, trackName string) string {
	return vehicleName + "/" + trackName
}
