// Package loader reads clickstorm configuration from TOML files and the
// environment.
package loader

import (
	"io/fs"
	"os"
)

// FileSystem is where the TOML loader reads files from. testing/fstest.MapFS
// satisfies it.
type FileSystem = fs.ReadFileFS

// OSFS reads paths, absolute or relative to the working directory, from the
// operating system. Unlike os.DirFS it accepts any path os.Open does.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile implements fs.ReadFileFS.
func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// DefaultFS returns the operating system file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
