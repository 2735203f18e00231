// Package filesystem backs shared.FileSystem with the os package.
package filesystem

import (
	"io/fs"
	"os"
)

// OSFileSystem delegates every call to the os package.
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFileSystem) Rename(oldPath string, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	return os.WriteFile(path, data, permissions)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}
