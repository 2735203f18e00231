package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/repos/shared"
	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

// MaximumDepth bounds how far below a watched root discovery descends.
const MaximumDepth = 5

const (
	directorySuffixConstant             = "/"
	relativeRootPathConstant            = "."
	unreadableDirectoryMessageConstant  = "skipping unreadable directory"
	ignoredDirectoryMessageConstant     = "skipping ignored directory"
	repositoryDiscoveredMessageConstant = "repository discovered"
	logFieldPathConstant                = "path"
	logFieldDepthConstant               = "depth"
)

// IgnoreSet combines exact ignored paths with gitignore-style patterns.
type IgnoreSet struct {
	paths    map[string]struct{}
	patterns *ignore.GitIgnore
}

// NewIgnoreSet builds an ignore set. Patterns are matched against paths relative to the watched root.
func NewIgnoreSet(paths []string, patterns []string) IgnoreSet {
	set := IgnoreSet{paths: make(map[string]struct{}, len(paths))}
	for _, path := range paths {
		trimmedPath := strings.TrimSpace(path)
		if len(trimmedPath) == 0 {
			continue
		}
		set.paths[filepath.Clean(trimmedPath)] = struct{}{}
	}

	var nonEmptyPatterns []string
	for _, pattern := range patterns {
		if trimmedPattern := strings.TrimSpace(pattern); len(trimmedPattern) > 0 {
			nonEmptyPatterns = append(nonEmptyPatterns, trimmedPattern)
		}
	}
	if len(nonEmptyPatterns) > 0 {
		set.patterns = ignore.CompileIgnoreLines(nonEmptyPatterns...)
	}
	return set
}

// Contains reports whether path is an ignored path or lies beneath one.
func (set IgnoreSet) Contains(path string) bool {
	cleanPath := filepath.Clean(path)
	if _, ignored := set.paths[cleanPath]; ignored {
		return true
	}
	for ignoredPath := range set.paths {
		if pathutils.IsNestedPath(ignoredPath, cleanPath) {
			return true
		}
	}
	return false
}

func (set IgnoreSet) matches(watchedRoot string, path string) bool {
	if set.Contains(path) {
		return true
	}
	if set.patterns == nil {
		return false
	}
	relativePath, relativeError := filepath.Rel(watchedRoot, path)
	if relativeError != nil || relativePath == relativeRootPathConstant {
		return false
	}
	relativePath = filepath.ToSlash(relativePath)
	return set.patterns.MatchesPath(relativePath) || set.patterns.MatchesPath(relativePath+directorySuffixConstant)
}

// FilesystemRepositoryDiscoverer locates git repositories on disk.
type FilesystemRepositoryDiscoverer struct {
	logger         *zap.Logger
	ignorePatterns []string
}

// NewFilesystemRepositoryDiscoverer constructs a discoverer that also prunes directories matching ignorePatterns.
func NewFilesystemRepositoryDiscoverer(logger *zap.Logger, ignorePatterns []string) *FilesystemRepositoryDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesystemRepositoryDiscoverer{logger: logger, ignorePatterns: append([]string(nil), ignorePatterns...)}
}

// DiscoverRepositories searches every root and returns the sorted union of repository roots.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(roots []string, ignoredPaths []string) []string {
	ignored := NewIgnoreSet(ignoredPaths, discoverer.ignorePatterns)

	seen := make(map[string]struct{})
	var repositories []string
	for _, root := range roots {
		for _, repositoryPath := range discoverer.Discover(ignored, root, 0) {
			if _, alreadySeen := seen[repositoryPath]; alreadySeen {
				continue
			}
			seen[repositoryPath] = struct{}{}
			repositories = append(repositories, repositoryPath)
		}
	}

	sort.Strings(repositories)
	return repositories
}

// Discover returns the repository roots found in the subtree at root, starting at the given depth.
func (discoverer *FilesystemRepositoryDiscoverer) Discover(ignored IgnoreSet, root string, depth int) []string {
	cleanRoot := filepath.Clean(root)
	return discoverer.discover(ignored, cleanRoot, cleanRoot, depth)
}

func (discoverer *FilesystemRepositoryDiscoverer) discover(ignored IgnoreSet, watchedRoot string, directory string, depth int) []string {
	if ignored.matches(watchedRoot, directory) {
		discoverer.logger.Debug(ignoredDirectoryMessageConstant, zap.String(logFieldPathConstant, directory))
		return nil
	}

	if HasGitMarker(directory) {
		discoverer.logger.Debug(repositoryDiscoveredMessageConstant, zap.String(logFieldPathConstant, directory), zap.Int(logFieldDepthConstant, depth))
		return []string{directory}
	}

	if depth >= MaximumDepth {
		return nil
	}

	directoryEntries, readError := os.ReadDir(directory)
	if readError != nil {
		discoverer.logger.Debug(unreadableDirectoryMessageConstant, zap.String(logFieldPathConstant, directory), zap.Error(readError))
		return nil
	}

	var repositories []string
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() {
			continue
		}
		childPath := filepath.Join(directory, directoryEntry.Name())
		repositories = append(repositories, discoverer.discover(ignored, watchedRoot, childPath, depth+1)...)
	}
	return repositories
}

// HasGitMarker reports whether path holds a .git directory or a .git file.
func HasGitMarker(path string) bool {
	_, statError := os.Stat(filepath.Join(path, shared.GitMetadataEntryNameConstant))
	return statError == nil
}
