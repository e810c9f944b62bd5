// Package yamlkb implements the knowledge source port over a YAML file,
// optionally reloading it when the file changes.
package yamlkb

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

const debounce = 250 * time.Millisecond

// file is the on-disk layout:
//
//	entries:
//	  - id: dev-env
//	    question: How do I set up the development environment?
//	    answer: Run make bootstrap.
//	    keywords: [setup, environment]
type file struct {
	Entries []knowledge.Entry `yaml:"entries"`
}

// ReadFile parses and validates a knowledge base file.
func ReadFile(path string) ([]knowledge.Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates knowledge base YAML. Unknown fields are rejected.
func Parse(data []byte) ([]knowledge.Entry, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	return knowledge.PrepareSnapshot(f.Entries)
}

// Source serves the most recently loaded snapshot of a YAML file. A reload
// that fails keeps the previous snapshot.
type Source struct {
	path string
	snap atomic.Pointer[[]knowledge.Entry]
}

// Open loads path and returns a Source over it.
func Open(path string) (*Source, error) {
	s := &Source{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot implements knowledge.Source.
func (s *Source) Snapshot(context.Context) ([]knowledge.Entry, error) {
	return *s.snap.Load(), nil
}

// Reload re-reads the file and swaps the snapshot in on success.
func (s *Source) Reload() error {
	entries, err := ReadFile(s.path)
	if err != nil {
		return err
	}
	s.snap.Store(&entries)
	slog.Info("knowledge base loaded", "path", s.path, "entries", len(entries))
	return nil
}

// Watch reloads the file whenever it changes until ctx is done. The parent
// directory is watched so that editors replacing the file by rename are seen.
func (s *Source) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("knowledge watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("knowledge watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("knowledge watcher: %w", err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("knowledge watcher error", "path", s.path, "error", err)

		case <-timer.C:
			if err := s.Reload(); err != nil {
				slog.Error("knowledge base reload failed, keeping previous snapshot",
					"path", s.path, "error", err)
			}
		}
	}
}
