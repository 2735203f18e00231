package shared

import (
	"context"
	"io/fs"
	"time"

	"github.com/temirov/repowatch/internal/execshell"
)

const (
	// GitMetadataEntryNameConstant names the marker entry that identifies a repository root.
	GitMetadataEntryNameConstant = ".git"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FileSystem is the part of the operating system the inventory store touches.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Rename(oldPath string, newPath string) error
	MkdirAll(path string, permissions fs.FileMode) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
	Remove(path string) error
}

// GitExecutor exposes the subset of shell execution used by repository pipelines.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteShell(executionContext context.Context, script string, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryDiscoverer locates git repositories beneath watched roots.
type RepositoryDiscoverer interface {
	DiscoverRepositories(roots []string, ignoredPaths []string) []string
}
