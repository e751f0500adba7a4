package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader decodes TOML files into structs, rejecting unknown keys.
type TOMLLoader struct {
	fs FileSystem
}

// NewTOMLLoader creates a TOML loader on the OS file system.
func NewTOMLLoader() *TOMLLoader {
	return &TOMLLoader{fs: DefaultFS()}
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fsys FileSystem) *TOMLLoader {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &TOMLLoader{fs: fsys}
}

// LoadInto decodes the file at path into v. Fields absent from the file keep
// their current value. found is false, with a nil error, when the file does
// not exist.
func (l *TOMLLoader) LoadInto(path string, v any) (found bool, err error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil // File doesn't exist, not an error
		}
		return false, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return true, Decode(path, data, v)
}

// Decode strictly decodes TOML data into v. source names the data in errors.
func Decode(source string, data []byte, v any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return newParseError(source, err)
	}
	return nil
}

// Encode renders a map or struct as TOML.
func Encode(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func newParseError(source string, err error) *ParseError {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}

	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
		return pe
	}

	var sme *toml.StrictMissingError
	if errors.As(err, &sme) {
		keys := make([]string, 0, len(sme.Errors))
		for _, e := range sme.Errors {
			keys = append(keys, strings.Join(e.Key(), "."))
			if pe.Line == 0 {
				pe.Line, pe.Column = e.Position()
			}
		}
		pe.Message = "unknown setting(s): " + strings.Join(keys, ", ")
	}
	return pe
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	if src == nil {
		return dst
	}

	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}

		// If both are maps, merge recursively
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			// Otherwise, src replaces dst
			dst[key] = srcVal
		}
	}

	return dst
}
