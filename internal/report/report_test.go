package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/pipeline"
)

func sampleStats() *pipeline.Stats {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return &pipeline.Stats{
		RunID:          "run-1",
		Searches:       map[string]int{"serpapi": 5, "reddit": 12},
		Collected:      map[string]int{"serpapi": 8, "reddit": 30},
		ByIntent:       map[string]int{"SELL": 20, "TRADE": 10, "BUY": 8},
		Duplicates:     4,
		Unclassified:   6,
		Malformed:      1,
		Irrelevant:     2,
		SkippedQueries: 1,
		DroppedSources: []string{"serpapi"},
		StartTime:      start,
		EndTime:        start.Add(90 * time.Second),
	}
}

func TestFromStats(t *testing.T) {
	s := FromStats("Seventeen", 20, sampleStats())

	if s.RunID != "run-1" || s.Entity != "Seventeen" || s.Queries != 20 {
		t.Errorf("summary header = %+v", s)
	}
	if s.Duration != 90*time.Second {
		t.Errorf("duration = %v", s.Duration)
	}
	if s.Skips["duplicate"] != 4 || s.Skips["unclassified"] != 6 || s.Skips["query_failed"] != 1 {
		t.Errorf("skips = %v", s.Skips)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, FromStats("Seventeen", 20, sampleStats())); err != nil {
		t.Fatal(err)
	}

	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RunID != "run-1" || decoded.Collected["reddit"] != 30 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, FromStats("Seventeen", 20, sampleStats())); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Run:       run-1",
		"Entity:    Seventeen",
		"Collected: 38 records",
		"serpapi",
		"reddit",
		"SELL",
		"duplicate",
		"Dropped sources: serpapi",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteText_EmptyRun(t *testing.T) {
	st := &pipeline.Stats{
		RunID:     "run-2",
		Searches:  map[string]int{},
		Collected: map[string]int{},
		ByIntent:  map[string]int{},
		StartTime: time.Now().UTC(),
		EndTime:   time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, FromStats("", 0, st)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Collected: 0 records") {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "Entity:") {
		t.Error("entity line should be omitted when unset")
	}
}

func TestWriteText_WideNamesAligned(t *testing.T) {
	st := sampleStats()
	st.Collected["세븐틴소스"] = 1
	st.Searches["세븐틴소스"] = 1

	var buf bytes.Buffer
	if err := WriteText(&buf, FromStats("세븐틴", 3, st)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "세븐틴소스") {
		t.Error("wide source name missing from output")
	}
}
