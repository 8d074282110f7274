package alias

import "strings"

// defaultTable maps a lowercased canonical artist name to its known
// nicknames, abbreviations and Hangul spellings. Unlisted artists simply
// expand to themselves.
var defaultTable = map[string][]string{
	"seventeen":   {"svt", "세븐틴", "sebong"},
	"bts":         {"방탄소년단", "bangtan"},
	"twice":       {"트와이스"},
	"blackpink":   {"블랙핑크", "블핑"},
	"stray kids":  {"skz", "스트레이키즈", "스키즈"},
	"newjeans":    {"뉴진스", "nj"},
	"aespa":       {"에스파"},
	"nct":         {"엔시티"},
	"exo":         {"엑소"},
	"red velvet":  {"레드벨벳", "레벨"},
	"itzy":        {"있지"},
	"txt":         {"투모로우바이투게더", "tomorrow x together"},
	"enhypen":     {"엔하이픈"},
	"ive":         {"아이브"},
	"le sserafim": {"르세라핌"},
}

// Expander turns a canonical artist name into the ordered set of query
// variants used to fan a search out over known aliases.
type Expander struct {
	table map[string][]string
}

// NewExpander creates an Expander seeded with the built-in alias table.
// Entries in extra are merged on top; an extra entry for an existing artist
// replaces the built-in aliases for that artist.
func NewExpander(extra map[string][]string) *Expander {
	table := make(map[string][]string, len(defaultTable)+len(extra))
	for k, v := range defaultTable {
		table[strings.ToLower(k)] = v
	}
	for k, v := range extra {
		table[strings.ToLower(k)] = v
	}
	return &Expander{table: table}
}

// Expand returns the canonical name followed by its known aliases.
// The canonical name is always first, insertion order is preserved, and
// duplicates are removed case-insensitively. Unknown artists yield a
// singleton slice; Expand never fails.
func (e *Expander) Expand(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	out := []string{name}
	seen := map[string]struct{}{strings.ToLower(name): {}}

	for _, a := range e.table[strings.ToLower(name)] {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
