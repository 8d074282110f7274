package model

import "time"

// Source identifies which upstream produced a record.
type Source string

const (
	// SourceSearchProxy is the third-party web search API scoped to the platform.
	SourceSearchProxy Source = "SEARCH_PROXY"
	// SourceNativeAPI is the platform's own OAuth API.
	SourceNativeAPI Source = "NATIVE_API"
)

// TradeIntent is the classified purpose of a trading post. Records that match
// no intent are never materialized, so there is no NONE value here.
type TradeIntent string

const (
	IntentSell   TradeIntent = "SELL"
	IntentBuy    TradeIntent = "BUY"
	IntentTrade  TradeIntent = "TRADE"
	IntentSearch TradeIntent = "SEARCH"
)

// Record is the canonical, source-agnostic representation of one collected
// trading post. It is immutable after construction; optional fields a source
// cannot supply are left zero and omitted from serialized output.
type Record struct {
	IdentityKey  string      `json:"identity_key"`
	Title        string      `json:"title"`
	Body         string      `json:"body,omitempty"`
	Snippet      string      `json:"snippet,omitempty"`
	Author       string      `json:"author,omitempty"`
	Community    string      `json:"community,omitempty"`
	Source       Source      `json:"source"`
	LanguageHint string      `json:"language_hint,omitempty"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
	CollectedAt  time.Time   `json:"collected_at"`
	Score        int         `json:"score,omitempty"`
	NumResponses int         `json:"num_responses,omitempty"`
	TradeIntent  TradeIntent `json:"trade_intent"`
}

// Text returns the searchable text of the record: title plus whichever of
// body or snippet the source supplied.
func (r *Record) Text() string {
	s := r.Title
	if r.Body != "" {
		s += " " + r.Body
	}
	if r.Snippet != "" {
		s += " " + r.Snippet
	}
	return s
}
