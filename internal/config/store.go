package config

import "sync/atomic"

// Store publishes the active configuration to concurrent readers behind an
// atomic pointer. Reload paths build a fresh Config and Replace it; readers
// Get a snapshot at the start of each operation and never observe a
// partially applied reload. Published snapshots are cloned on the way in,
// so a caller mutating its own Config afterwards cannot tear one.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore publishes an initial configuration snapshot.
func NewStore(c *Config) *Store {
	s := &Store{}
	s.ptr.Store(c.Clone())
	return s
}

// Get returns the current snapshot. Treat the result as read-only.
func (s *Store) Get() *Config {
	return s.ptr.Load()
}

// Replace atomically publishes a new snapshot. In-flight operations finish
// against the snapshot they already hold.
func (s *Store) Replace(c *Config) {
	s.ptr.Store(c.Clone())
}
