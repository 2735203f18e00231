// Package dependencies supplies default collaborators to commands that were not given explicit ones.
package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/execshell"
	"github.com/temirov/repowatch/internal/repos/discovery"
	"github.com/temirov/repowatch/internal/repos/filesystem"
	"github.com/temirov/repowatch/internal/repos/shared"
)

// ResolveRepositoryDiscoverer returns the provided discoverer or a filesystem-backed default honoring ignorePatterns.
func ResolveRepositoryDiscoverer(existing shared.RepositoryDiscoverer, logger *zap.Logger, ignorePatterns []string) shared.RepositoryDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemRepositoryDiscoverer(logger, ignorePatterns)
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveClock returns the provided clock or the system clock.
func ResolveClock(existing shared.Clock) shared.Clock {
	if existing != nil {
		return existing
	}
	return shared.SystemClock{}
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, humanReadableLogging bool) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}
