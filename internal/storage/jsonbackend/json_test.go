package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var obj map[string]any
		if err := json.Unmarshal(sc.Bytes(), &obj); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(out)+1, err)
		}
		out = append(out, obj)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestAppend_OneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	b, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		rec := &model.Record{
			IdentityKey: id,
			Title:       "WTS " + id,
			Source:      model.SourceNativeAPI,
			TradeIntent: model.IntentSell,
		}
		if err := b.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["identity_key"] != "a" || lines[2]["identity_key"] != "c" {
		t.Errorf("records out of order: %v", lines)
	}
	for i, obj := range lines {
		for _, field := range []string{"identity_key", "title", "source", "collected_at", "trade_intent"} {
			if _, ok := obj[field]; !ok {
				t.Errorf("line %d missing %q", i+1, field)
			}
		}
	}
}

func TestAppend_OmitsEmptyOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	b, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	rec := &model.Record{
		IdentityKey: "a",
		Title:       "WTS",
		Source:      model.SourceSearchProxy,
		TradeIntent: model.IntentSell,
	}
	if err := b.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	obj := readLines(t, path)[0]
	for _, field := range []string{"body", "author", "community", "created_at", "score", "num_responses"} {
		if _, ok := obj[field]; ok {
			t.Errorf("unset field %q should be omitted, got %v", field, obj[field])
		}
	}
}

func TestAppend_CollectedAtNonDecreasing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	b, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	var prev time.Time
	for i := 0; i < 50; i++ {
		rec := &model.Record{IdentityKey: "k", Title: "t", Source: model.SourceNativeAPI, TradeIntent: model.IntentBuy}
		if err := b.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.CollectedAt.Before(prev) {
			t.Fatalf("collected_at went backwards: %v after %v", rec.CollectedAt, prev)
		}
		prev = rec.CollectedAt
	}
}

func TestNew_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		b, err := New(path)
		if err != nil {
			t.Fatal(err)
		}
		rec := &model.Record{IdentityKey: "k", Title: "t", Source: model.SourceNativeAPI, TradeIntent: model.IntentSell}
		if err := b.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if err := b.Close(); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(readLines(t, path)); got != 2 {
		t.Fatalf("expected 2 lines after two runs, got %d", got)
	}
}
