package config

import "sync/atomic"

// snapshot bundles one consistent view of the live configuration: the policy
// record, its routing table, and the config-repo ref it was parsed from.
// Reloads swap in a new snapshot atomically so in-flight classification and
// orchestration work always sees a self-consistent triple (spec.md §9 design
// notes: "a single atomic pointer swap rather than field-by-field mutation").
type snapshot struct {
	main      Main
	comps     Comps
	configRef string
}

// Store holds the currently active configuration snapshot and publishes
// updates without locking readers.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore returns a Store seeded with an initial snapshot.
func NewStore(main Main, comps Comps, configRef string) *Store {
	s := &Store{}
	s.Set(main, comps, configRef)
	return s
}

// Set atomically publishes a new configuration snapshot.
func (s *Store) Set(main Main, comps Comps, configRef string) {
	s.current.Store(&snapshot{main: main, comps: comps, configRef: configRef})
}

// Main returns the currently active policy record.
func (s *Store) Main() Main {
	return s.current.Load().main
}

// Comps returns the currently active routing table.
func (s *Store) Comps() Comps {
	return s.current.Load().comps
}

// ConfigRef returns the config-repo ref the active snapshot was parsed from.
func (s *Store) ConfigRef() string {
	return s.current.Load().configRef
}

// Snapshot returns all three fields of the active configuration atomically,
// for callers (like the classifier) that need them to agree with each other.
func (s *Store) Snapshot() (Main, Comps, string) {
	snap := s.current.Load()
	return snap.main, snap.comps, snap.configRef
}
