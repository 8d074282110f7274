package storage

import (
	"context"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
)

// Backend is an append-only sink for canonical records. Implementations
// must flush each record before returning, so a crash loses at most the
// in-flight record, and must stamp collected_at at write time.
type Backend interface {
	Append(ctx context.Context, rec *model.Record) error
	Close() error
}

// Stamper issues collected_at timestamps that never move backwards within
// a run, even if the wall clock does.
type Stamper struct {
	last time.Time
}

// Now returns the current UTC time, clamped to be non-decreasing.
func (s *Stamper) Now() time.Time {
	now := time.Now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}
