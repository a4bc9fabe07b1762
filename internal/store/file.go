package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrQuotaExceeded is returned when a checkpoint would not fit the configured size limit
var ErrQuotaExceeded = errors.New("checkpoint quota exceeded")

// FileCheckpoint keeps the checkpoint as a JSON file.
// Writes go to a temp file that is renamed over the old one, so readers in other
// processes see either the previous or the new snapshot, never a torn one.
type FileCheckpoint struct {
	path string
	// MaxBytes rejects snapshots larger than this; 0 means unlimited
	MaxBytes int64
}

// NewFileCheckpoint creates a checkpoint stored at path
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// CheckpointPath returns the file used for a list type under dir
func CheckpointPath(dir string, slot string) string {
	return filepath.Join(dir, "checkpoints", slot+".json")
}

// Path returns the checkpoint location
func (f *FileCheckpoint) Path() string {
	return f.path
}

func (f *FileCheckpoint) Write(ctx context.Context, records []types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []types.Record{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrQuotaExceeded, len(data), f.MaxBytes)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

func (f *FileCheckpoint) Read(ctx context.Context) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return decodeRecords(data)
}

func (f *FileCheckpoint) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FileSignal is a stop flag represented by the presence of a marker file
type FileSignal struct {
	path string
}

// NewFileSignal creates a signal backed by the marker at path
func NewFileSignal(path string) *FileSignal {
	return &FileSignal{path: path}
}

func (s *FileSignal) RequestStop(context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, nil, 0600); err != nil {
		return fmt.Errorf("failed to request stop: %w", err)
	}
	return nil
}

// ConsumeStop removes the marker. Only one caller can succeed in removing it.
func (s *FileSignal) ConsumeStop(context.Context) (bool, error) {
	err := os.Remove(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read stop signal: %w", err)
}
