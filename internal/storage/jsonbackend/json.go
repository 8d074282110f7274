package jsonbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// jsonBackend writes one self-contained JSON object per line. Re-running
// against the same file simply appends; prior content is never validated
// or rewritten.
type jsonBackend struct {
	mu      sync.Mutex
	file    *os.File
	stamper storage.Stamper
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}

	return &jsonBackend{
		file: f,
	}, nil
}

// Append stamps collected_at and writes the record as one line. The write
// goes straight to the file descriptor, so each accepted record is durable
// before the next one is fetched.
func (b *jsonBackend) Append(ctx context.Context, rec *model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec.CollectedAt = b.stamper.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.file.Sync(); err != nil && err != io.EOF {
		_ = b.file.Close()
		return fmt.Errorf("sync output log: %w", err)
	}
	return b.file.Close()
}
