package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// WriteFileAtomic writes data to a uniquely named temporary sibling of path
// and renames it into place, so readers never observe a partial file and
// concurrent writers never share a temporary file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tempPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// LoadInput reads records from a CSV file or a SQLite database. query is
// only used for SQLite.
func LoadInput(ctx context.Context, format, path, query string) ([]models.Record, error) {
	switch strings.ToLower(format) {
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case "sqlite":
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		s, err := New(path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.LoadRecords(ctx, query)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// SaveRecords writes records to path as CSV or into a SQLite database,
// creating the observations table when needed.
func SaveRecords(ctx context.Context, format, path string, records []models.Record) error {
	switch strings.ToLower(format) {
	case "csv":
		var buf bytes.Buffer
		if err := WriteCSV(&buf, records); err != nil {
			return fmt.Errorf("failed to encode CSV: %w", err)
		}
		return WriteFileAtomic(path, buf.Bytes(), 0644)
	case "sqlite":
		s, err := New(path)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		return s.InsertRecords(ctx, records)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
