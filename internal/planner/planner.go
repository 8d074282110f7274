package planner

import "strings"

// DefaultKeywords is the trade-marker priority order used when the config
// does not override it. Earlier keywords produce earlier queries, so they
// survive a tight query budget.
var DefaultKeywords = []string{"WTS", "WTT", "WTB", "ISO"}

// Plan builds the query list for a run: the cartesian product of aliases and
// trade keywords, ordered by keyword priority then alias order, followed by
// the bare-alias queries. The result is deduplicated case-insensitively,
// contains no empty strings, and is truncated to budget entries.
// A budget <= 0 means unbounded.
func Plan(aliases, keywords []string, budget int) []string {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	// An unfiltered run (no entity, hence no aliases) searches the bare
	// trade markers themselves.
	if len(aliases) == 0 {
		aliases = []string{""}
	}

	var queries []string
	seen := make(map[string]struct{})

	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	for _, kw := range keywords {
		for _, a := range aliases {
			add(a + " " + kw)
		}
	}
	// Bare-alias queries are the least informative, so they go last and are
	// the first to fall off when the budget truncates.
	for _, a := range aliases {
		add(a)
	}

	if budget > 0 && len(queries) > budget {
		queries = queries[:budget]
	}
	return queries
}
