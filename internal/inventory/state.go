package inventory

import (
	"errors"
	"sort"
	"time"

	"github.com/temirov/repowatch/internal/pipeline"
	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

// ErrRepositoryNotFound indicates that no repository is recorded at the requested path.
var ErrRepositoryNotFound = errors.New("repository is not part of the inventory")

// Repository is the persisted record of a known repository.
type Repository struct {
	Path string `yaml:"path"`
	// CheckTimeMilliseconds is the wall-clock time of the latest check or update.
	CheckTimeMilliseconds *int64 `yaml:"check_time_ms,omitempty"`
	Hook                  string `yaml:"hook,omitempty"`
}

// CheckDuration returns the recorded duration, if any.
func (repository Repository) CheckDuration() (time.Duration, bool) {
	if repository.CheckTimeMilliseconds == nil {
		return 0, false
	}
	return time.Duration(*repository.CheckTimeMilliseconds) * time.Millisecond, true
}

// State is the aggregate persisted between runs.
type State struct {
	Watched      []string
	Ignored      []string
	Repositories []Repository
}

// FindRepository returns the repository recorded at path.
func (state *State) FindRepository(path string) (Repository, bool) {
	index := state.repositoryIndex(path)
	if index < 0 {
		return Repository{}, false
	}
	return state.Repositories[index], true
}

// AddRepository records path unless it is already known. It reports whether the inventory changed.
func (state *State) AddRepository(path string) bool {
	if state.repositoryIndex(path) >= 0 {
		return false
	}
	state.Repositories = append(state.Repositories, Repository{Path: path})
	return true
}

// RemoveRepository forgets path. It reports whether the inventory changed.
func (state *State) RemoveRepository(path string) bool {
	index := state.repositoryIndex(path)
	if index < 0 {
		return false
	}
	state.Repositories = append(state.Repositories[:index], state.Repositories[index+1:]...)
	return true
}

// AddWatched records a watched directory. It reports whether the inventory changed.
func (state *State) AddWatched(path string) bool {
	var added bool
	state.Watched, added = addUnique(state.Watched, path)
	return added
}

// RemoveWatched stops watching path and forgets every repository beneath it.
// It returns the forgotten repository paths and whether path was watched.
func (state *State) RemoveWatched(path string) ([]string, bool) {
	var removed bool
	state.Watched, removed = removeValue(state.Watched, path)
	return state.forgetRepositoriesUnder(path), removed
}

// AddIgnored stops watching path, forgets the repositories beneath it and records it as ignored.
func (state *State) AddIgnored(path string) []string {
	forgotten, _ := state.RemoveWatched(path)
	state.Ignored, _ = addUnique(state.Ignored, path)
	return forgotten
}

// SetHook stores a post-update command for the repository at path.
func (state *State) SetHook(path string, command string) error {
	index := state.repositoryIndex(path)
	if index < 0 {
		return ErrRepositoryNotFound
	}
	state.Repositories[index].Hook = command
	return nil
}

// ClearHook removes the post-update command of the repository at path.
func (state *State) ClearHook(path string) error {
	return state.SetHook(path, "")
}

// RepositoryInfos projects the repositories into run records, longest previous run first.
// Repositories that were never timed come before all others. Ties are broken by path.
func (state *State) RepositoryInfos() []pipeline.RepositoryInfo {
	ordered := append([]Repository(nil), state.Repositories...)
	sort.SliceStable(ordered, func(first int, second int) bool {
		firstDuration, firstTimed := ordered[first].CheckDuration()
		secondDuration, secondTimed := ordered[second].CheckDuration()
		switch {
		case firstTimed != secondTimed:
			return !firstTimed
		case firstDuration != secondDuration:
			return firstDuration > secondDuration
		default:
			return ordered[first].Path < ordered[second].Path
		}
	})

	infos := make([]pipeline.RepositoryInfo, 0, len(ordered))
	for _, repository := range ordered {
		infos = append(infos, pipeline.NewRepositoryInfo(repository.Path, repository.Hook))
	}
	return infos
}

// RecordDurations folds measured durations into the matching repositories and returns how many were updated.
func (state *State) RecordDurations(durations map[string]time.Duration) int {
	updated := 0
	for index := range state.Repositories {
		duration, measured := durations[state.Repositories[index].Path]
		if !measured {
			continue
		}
		milliseconds := duration.Milliseconds()
		state.Repositories[index].CheckTimeMilliseconds = &milliseconds
		updated++
	}
	return updated
}

// normalize sorts and deduplicates every collection.
func (state *State) normalize() {
	state.Watched = sortedUnique(state.Watched)
	state.Ignored = sortedUnique(state.Ignored)

	seen := make(map[string]struct{}, len(state.Repositories))
	repositories := make([]Repository, 0, len(state.Repositories))
	for _, repository := range state.Repositories {
		if len(repository.Path) == 0 {
			continue
		}
		if _, duplicate := seen[repository.Path]; duplicate {
			continue
		}
		seen[repository.Path] = struct{}{}
		repositories = append(repositories, repository)
	}
	sort.Slice(repositories, func(first int, second int) bool {
		return repositories[first].Path < repositories[second].Path
	})
	state.Repositories = repositories
}

func (state *State) forgetRepositoriesUnder(path string) []string {
	var forgotten []string
	kept := state.Repositories[:0]
	for _, repository := range state.Repositories {
		if pathutils.IsNestedPath(path, repository.Path) {
			forgotten = append(forgotten, repository.Path)
			continue
		}
		kept = append(kept, repository)
	}
	state.Repositories = kept
	return forgotten
}

func (state *State) repositoryIndex(path string) int {
	for index, repository := range state.Repositories {
		if repository.Path == path {
			return index
		}
	}
	return -1
}

func addUnique(values []string, value string) ([]string, bool) {
	for _, existing := range values {
		if existing == value {
			return values, false
		}
	}
	return append(values, value), true
}

func removeValue(values []string, value string) ([]string, bool) {
	for index, existing := range values {
		if existing == value {
			return append(values[:index], values[index+1:]...), true
		}
	}
	return values, false
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if len(value) == 0 {
			continue
		}
		if _, duplicate := seen[value]; duplicate {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	sort.Strings(unique)
	return unique
}
