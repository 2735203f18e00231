package pathutils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const windowsOperatingSystemConstant = "windows"

// SymlinkResolver resolves symbolic links in a path.
type SymlinkResolver func(path string) (string, error)

// PathCanonicalizer turns user supplied paths into the absolute, symlink-free form used as inventory keys.
type PathCanonicalizer struct {
	homeExpander    *HomeExpander
	symlinkResolver SymlinkResolver
}

// NewPathCanonicalizer constructs a canonicalizer backed by the operating system.
func NewPathCanonicalizer() *PathCanonicalizer {
	return NewPathCanonicalizerWithDependencies(nil, nil)
}

// NewPathCanonicalizerWithDependencies constructs a canonicalizer with custom collaborators.
func NewPathCanonicalizerWithDependencies(homeExpander *HomeExpander, symlinkResolver SymlinkResolver) *PathCanonicalizer {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	if symlinkResolver == nil {
		symlinkResolver = filepath.EvalSymlinks
	}
	return &PathCanonicalizer{homeExpander: homeExpander, symlinkResolver: symlinkResolver}
}

// Canonicalize expands ~, makes the path absolute and resolves symlinks when the path exists.
func (canonicalizer *PathCanonicalizer) Canonicalize(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return trimmedPath
	}

	expandedPath := canonicalizer.homeExpander.Expand(trimmedPath)
	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return filepath.Clean(expandedPath)
	}

	resolvedPath, resolveError := canonicalizer.symlinkResolver(absolutePath)
	if resolveError != nil {
		return filepath.Clean(absolutePath)
	}
	return filepath.Clean(resolvedPath)
}

// CanonicalizeAll canonicalizes every non-blank candidate.
func (canonicalizer *PathCanonicalizer) CanonicalizeAll(candidatePaths []string) []string {
	canonicalPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		canonicalPath := canonicalizer.Canonicalize(candidatePath)
		if len(canonicalPath) == 0 {
			continue
		}
		canonicalPaths = append(canonicalPaths, canonicalPath)
	}
	return canonicalPaths
}

// IsNestedPath reports whether candidate equals parent or lies beneath it.
func IsNestedPath(parent string, candidate string) bool {
	parentClean := comparisonPath(parent)
	candidateClean := comparisonPath(candidate)

	if candidateClean == parentClean {
		return true
	}
	if len(candidateClean) <= len(parentClean) {
		return false
	}
	if !strings.HasPrefix(candidateClean, parentClean) {
		return false
	}
	if parentClean[len(parentClean)-1] == os.PathSeparator {
		return true
	}
	return candidateClean[len(parentClean)] == os.PathSeparator
}

func comparisonPath(path string) string {
	comparison := filepath.Clean(path)
	if runtime.GOOS == windowsOperatingSystemConstant {
		comparison = strings.ToLower(comparison)
	}
	return comparison
}
