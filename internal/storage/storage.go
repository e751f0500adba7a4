// Package storage persists timelines as YAML.
//
// A file is a top-level list with one item per entry:
//
//	- ms_from_start: 10
//	  kind:
//	    LeftClick:
//	      patch_png_base64: iVBORw0KGgo...
//	  pos: [100, 200]
//	  click_meta:
//	    left_mode: Auto
//	    ...
//
// Loading is strict: unknown fields, unknown kinds and kinds naming more
// than one variant are rejected, and the decoded list must pass
// timeline.Validate. A failed load returns no entries.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/clickstorm/internal/timeline"
)

// DefaultPath is the timeline file used when none is given.
const DefaultPath = "recording.yaml"

// ErrNoPath indicates an empty file path.
var ErrNoPath = errors.New("Provide a file path")

// DecodeError reports a timeline file that could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid timeline: %v", e.Err)
	}
	return fmt.Sprintf("invalid timeline %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode writes entries to w exactly as given.
func Encode(w io.Writer, entries []timeline.Entry) error {
	docs := make([]eventDoc, len(entries))
	for i, e := range entries {
		if e.Action == nil {
			return &timeline.EntryError{Index: i, Err: timeline.ErrNilAction}
		}
		docs[i] = toDoc(e)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	return enc.Close()
}

// Decode reads and validates a timeline from r. An empty document is an
// empty timeline.
func Decode(r io.Reader) ([]timeline.Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var docs []eventDoc
	if err := dec.Decode(&docs); err != nil {
		if errors.Is(err, io.EOF) {
			return []timeline.Entry{}, nil
		}
		return nil, &DecodeError{Err: err}
	}

	entries := make([]timeline.Entry, len(docs))
	for i, d := range docs {
		e, err := fromDoc(d)
		if err != nil {
			return nil, &DecodeError{Err: &timeline.EntryError{Index: i, Err: err}}
		}
		entries[i] = e
	}
	if err := timeline.Validate(entries); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return entries, nil
}

// Save materializes entries and writes them to path.
// The file is written atomically using a temporary file and rename.
// It returns the status line reporting the number of rows written.
func Save(path string, entries []timeline.Entry) (string, error) {
	if path == "" {
		return "", ErrNoPath
	}
	compact, _ := timeline.Materialize(entries)

	var buf bytes.Buffer
	if err := Encode(&buf, compact); err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	return fmt.Sprintf("Saved %d events to %s", len(compact), path), nil
}

// Load reads a timeline from path. Decode failures are *DecodeError.
func Load(path string) ([]timeline.Entry, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return entries, nil
}
