package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	stamper storage.Stamper
}

// headers defines the CSV column order
var headers = []string{
	"identity_key",
	"title",
	"body",
	"snippet",
	"author",
	"community",
	"source",
	"language_hint",
	"created_at",
	"collected_at",
	"score",
	"num_responses",
	"trade_intent",
}

// New creates a new CSV-backed storage.Backend. The header row is written
// only when the file is freshly created, so re-runs append cleanly.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}

	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output log: %w", err)
	}
	if info.Size() == 0 {
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{
		file:   f,
		writer: w,
	}, nil
}

// Append stamps collected_at and writes one row, flushed immediately.
func (b *csvBackend) Append(ctx context.Context, rec *model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec.CollectedAt = b.stamper.Now()

	createdAt := ""
	if rec.CreatedAt != nil {
		createdAt = rec.CreatedAt.Format(time.RFC3339)
	}

	row := []string{
		rec.IdentityKey,
		rec.Title,
		rec.Body,
		rec.Snippet,
		rec.Author,
		rec.Community,
		string(rec.Source),
		rec.LanguageHint,
		createdAt,
		rec.CollectedAt.Format(time.RFC3339Nano),
		strconv.Itoa(rec.Score),
		strconv.Itoa(rec.NumResponses),
		string(rec.TradeIntent),
	}

	if err := b.writer.Write(row); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	b.writer.Flush()
	if err := b.writer.Error(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writer.Flush()
	if err := b.writer.Error(); err != nil {
		_ = b.file.Close()
		return fmt.Errorf("flush output log: %w", err)
	}
	return b.file.Close()
}
