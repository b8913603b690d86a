package record

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/moby/sys/atomicwriter"
)

// FileStore keeps the record in a single JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.Named("record_file_store"),
	}
}

func (s *FileStore) Location() string {
	return s.path
}

// Load reads the record. A missing or empty file yields ErrNotFound; an unparseable one
// yields ErrNotFound together with ErrCorrupt. Any other read failure is returned as is.
func (s *FileStore) Load(_ context.Context) (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record '%s': %w", s.path, err)
	}

	r, err := decode(data)
	if err != nil {
		return Record{}, fmt.Errorf("record '%s': %w", s.path, err)
	}

	s.logger.With("path", s.path, "chains", len(r.Chains), "pending_bindings", len(r.PendingBindings)).Debug("record loaded")

	return r, nil
}

// Save replaces the file atomically, so an interrupted write leaves the previous record intact.
func (s *FileStore) Save(_ context.Context, r Record) error {
	content, err := encode(r)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", s.path, err)
	}

	if err := atomicwriter.WriteFile(s.path, content, 0644); err != nil {
		return fmt.Errorf("failed to write record '%s': %w", s.path, err)
	}

	s.logger.With("path", s.path, "chains", len(r.Chains)).Info("record saved")

	return nil
}
