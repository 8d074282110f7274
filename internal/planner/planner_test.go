package planner

import (
	"strings"
	"testing"
)

func TestPlan_KeywordPriorityOrder(t *testing.T) {
	queries := Plan([]string{"Seventeen", "svt"}, []string{"WTS", "WTB"}, 0)

	want := []string{
		"Seventeen WTS",
		"svt WTS",
		"Seventeen WTB",
		"svt WTB",
		"Seventeen",
		"svt",
	}
	if len(queries) != len(want) {
		t.Fatalf("expected %d queries, got %d: %v", len(want), len(queries), queries)
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query %d: expected %q, got %q", i, want[i], queries[i])
		}
	}
}

func TestPlan_BudgetCap(t *testing.T) {
	aliases := []string{"Seventeen", "svt", "세븐틴"}

	for _, budget := range []int{1, 3, 5, 100} {
		queries := Plan(aliases, DefaultKeywords, budget)
		max := budget
		if full := len(aliases)*len(DefaultKeywords) + len(aliases); full < max {
			max = full
		}
		if len(queries) > max {
			t.Errorf("budget %d: got %d queries", budget, len(queries))
		}
	}
}

func TestPlan_NoDuplicatesNoEmpty(t *testing.T) {
	// "svt" repeated with differing case must collapse to one set of queries.
	queries := Plan([]string{"svt", "SVT", " "}, DefaultKeywords, 0)

	seen := map[string]struct{}{}
	for _, q := range queries {
		if q == "" {
			t.Error("empty query emitted")
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			t.Errorf("duplicate query %q", q)
		}
		seen[key] = struct{}{}
	}
}

func TestPlan_NoAliases(t *testing.T) {
	queries := Plan(nil, []string{"WTS", "WTB"}, 0)

	want := []string{"WTS", "WTB"}
	if len(queries) != len(want) {
		t.Fatalf("expected %v, got %v", want, queries)
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query %d: expected %q, got %q", i, want[i], queries[i])
		}
	}
}

func TestPlan_BareAliasLast(t *testing.T) {
	queries := Plan([]string{"NewJeans"}, []string{"WTS"}, 0)

	if queries[len(queries)-1] != "NewJeans" {
		t.Errorf("bare alias not last: %v", queries)
	}
}
