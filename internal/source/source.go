// Package source holds the upstream adapters. Each source speaks its own
// protocol but presents one capability: a cursor-paginated keyword search.
// All source-specific quirks stop at this boundary; downstream stages only
// ever see RawRecord.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
)

// Failure taxonomy shared by all adapters. Callers classify with errors.Is.
var (
	// ErrAuth means a credential was rejected. Fatal for that adapter.
	ErrAuth = errors.New("authentication failed")
	// ErrQuotaExhausted means the source's fixed call budget is used up.
	// The adapter is dropped from the run; the run itself continues.
	ErrQuotaExhausted = errors.New("source quota exhausted")
	// ErrRateLimited is a provider throttling response. Retried after backoff.
	ErrRateLimited = errors.New("source rate limited")
	// ErrTransient covers connection and timeout failures. Retried a bounded
	// number of times, then the query is skipped.
	ErrTransient = errors.New("transient network failure")
)

// RawRecord is the least-common-denominator shape an adapter emits before
// normalization. Fields a source cannot supply stay zero; the normalizer
// never fabricates them.
type RawRecord struct {
	Source       model.Source
	NativeID     string
	URL          string
	Title        string
	Body         string
	Snippet      string
	Author       string
	Community    string
	Score        int
	NumResponses int
	CreatedAt    time.Time
}

// Adapter is one upstream data source. Search runs a single page of the
// given query: cursor "" requests the first page, and a returned next of ""
// signals that the query is exhausted for this source. The cursor is opaque
// to callers; only the adapter that produced it can decode it.
type Adapter interface {
	Name() string
	Source() model.Source
	Search(ctx context.Context, query, cursor string) (records []RawRecord, next string, err error)
}
