package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Build runs the script read from src and returns the timeline it builds.
// The result is validated; a failing script returns no entries.
func Build(ctx context.Context, name string, src io.Reader, cfg Config, opts ...StateOption) ([]timeline.Entry, error) {
	s := NewState(opts...)
	defer s.Close()

	b := NewBuilder(cfg)
	b.Install(s)

	if err := s.Run(ctx, name, src); err != nil {
		return nil, err
	}

	entries := b.Entries()
	if err := timeline.Validate(entries); err != nil {
		return nil, &Error{Name: name, Err: err}
	}
	return entries, nil
}

// BuildString runs a script held in memory.
func BuildString(ctx context.Context, code string, cfg Config, opts ...StateOption) ([]timeline.Entry, error) {
	return Build(ctx, "<string>", strings.NewReader(code), cfg, opts...)
}

// LoadFile runs the script at path.
func LoadFile(ctx context.Context, path string, cfg Config, opts ...StateOption) ([]timeline.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	defer f.Close()

	return Build(ctx, filepath.Base(path), f, cfg, opts...)
}
