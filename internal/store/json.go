package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"strategy-mcp/internal/portfolio"

	"github.com/rs/zerolog/log"
)

// JSONStore keeps the snapshot in a single indented JSON file.
type JSONStore struct {
	mu   sync.RWMutex
	path string
}

// NewJSONStore returns a store writing to path, creating its directory if needed.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONStore{path: path}, nil
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the snapshot file. A missing file yields an empty snapshot.
func (s *JSONStore) Load(ctx context.Context) (*portfolio.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return portfolio.NewSnapshot(), nil // Nothing saved yet
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap portfolio.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.path, err)
	}
	if err := checkVersion(&snap); err != nil {
		return nil, err
	}

	log.Debug().Str("path", s.path).Int("milestones", len(snap.Milestones)).Int("goals", len(snap.Goals)).Msg("Loaded snapshot")
	return &snap, nil
}

// Save writes the snapshot to a temp file and renames it over the previous one.
func (s *JSONStore) Save(ctx context.Context, snap *portfolio.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(snap)
	tmpPath := s.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("path", s.path).Int("milestones", len(snap.Milestones)).Int("goals", len(snap.Goals)).Msg("Snapshot saved")
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *JSONStore) Close() error {
	return nil
}
