package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/pipeline"
)

// Summary is the operator-facing account of one run: what was collected
// per source and per intent, and a count for every kind of skip.
type Summary struct {
	RunID          string         `json:"run_id"`
	Entity         string         `json:"entity,omitempty"`
	Queries        int            `json:"queries"`
	Searches       map[string]int `json:"searches"`
	Collected      map[string]int `json:"collected"`
	ByIntent       map[string]int `json:"by_intent"`
	Skips          map[string]int `json:"skips"`
	DroppedSources []string       `json:"dropped_sources,omitempty"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
}

// FromStats converts the pipeline's run statistics into a Summary.
func FromStats(entity string, queries int, st *pipeline.Stats) Summary {
	s := Summary{
		RunID:          st.RunID,
		Entity:         entity,
		Queries:        queries,
		Searches:       st.Searches,
		Collected:      st.Collected,
		ByIntent:       st.ByIntent,
		DroppedSources: st.DroppedSources,
		StartTime:      st.StartTime,
		EndTime:        st.EndTime,
		Duration:       st.EndTime.Sub(st.StartTime),
		Skips: map[string]int{
			"duplicate":    st.Duplicates,
			"unclassified": st.Unclassified,
			"malformed":    st.Malformed,
			"irrelevant":   st.Irrelevant,
			"query_failed": st.SkippedQueries,
		},
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable run summary. Table cells are padded by
// display width, not byte length, so Hangul aliases and source names line
// up in a terminal.
func WriteText(w io.Writer, summary Summary) error {
	total := 0
	for _, n := range summary.Collected {
		total += n
	}

	var b strings.Builder
	b.WriteString("Collection Run Summary\n")
	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "Run:       %s\n", summary.RunID)
	if summary.Entity != "" {
		fmt.Fprintf(&b, "Entity:    %s\n", summary.Entity)
	}
	fmt.Fprintf(&b, "Time:      %s - %s (%s)\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Queries:   %d planned\n", summary.Queries)
	fmt.Fprintf(&b, "Collected: %d records\n\n", total)

	writeTable(&b, "Source", []string{"searches", "collected"}, func(name string) []int {
		return []int{summary.Searches[name], summary.Collected[name]}
	}, keysOf(summary.Searches, summary.Collected))

	writeTable(&b, "Intent", []string{"count"}, func(name string) []int {
		return []int{summary.ByIntent[name]}
	}, keysOf(summary.ByIntent))

	writeTable(&b, "Skipped", []string{"count"}, func(name string) []int {
		return []int{summary.Skips[name]}
	}, keysOf(summary.Skips))

	if len(summary.DroppedSources) > 0 {
		fmt.Fprintf(&b, "Dropped sources: %s\n", strings.Join(summary.DroppedSources, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// keysOf merges and sorts the key sets of the given maps.
func keysOf(ms ...map[string]int) []string {
	set := map[string]struct{}{}
	for _, m := range ms {
		for k := range m {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeTable emits one aligned two-plus-column table.
func writeTable(b *strings.Builder, label string, cols []string, row func(string) []int, names []string) {
	if len(names) == 0 {
		return
	}

	nameWidth := runewidth.StringWidth(label)
	for _, n := range names {
		if w := runewidth.StringWidth(n); w > nameWidth {
			nameWidth = w
		}
	}

	b.WriteString(pad(label, nameWidth))
	for _, c := range cols {
		fmt.Fprintf(b, "  %10s", c)
	}
	b.WriteString("\n")

	for _, n := range names {
		b.WriteString(pad(n, nameWidth))
		for _, v := range row(n) {
			fmt.Fprintf(b, "  %10s", strconv.Itoa(v))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// pad right-pads s to the given display width.
func pad(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
