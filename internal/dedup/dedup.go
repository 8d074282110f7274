// Package dedup tracks the identity keys seen during one run so the same
// post reached through two sources (or two queries) is persisted once.
// The set is run-scoped on purpose: cross-run persistence is out of scope,
// so re-running can legitimately re-collect earlier records.
package dedup

// Set is a run-scoped identity-key set. Access is sequential (the pipeline
// is single-threaded), so no locking is needed.
type Set struct {
	seen map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Admit reports whether key is new. The first call with a given key returns
// true and records it; every later call with the same key returns false.
func (s *Set) Admit(key string) bool {
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys admitted so far.
func (s *Set) Len() int {
	return len(s.seen)
}
