package pipeline

import (
	"path/filepath"
	"time"
)

// RepositoryState is the classification a pipeline assigns to a repository.
type RepositoryState int

// Repository states. RepositoryStateNotChecked is the only non-terminal value.
const (
	RepositoryStateNotChecked RepositoryState = iota
	RepositoryStateUnknown
	RepositoryStateDetached
	RepositoryStateOk
	RepositoryStateUpToDate
	RepositoryStateFetched
	RepositoryStateUpdated
	RepositoryStateNoFastForward
	RepositoryStateLocalChanges
	RepositoryStateNotPushed
)

var repositoryStateLabels = map[RepositoryState]string{
	RepositoryStateNotChecked:    "Not checked",
	RepositoryStateUnknown:       "Unknown",
	RepositoryStateDetached:      "Detached",
	RepositoryStateOk:            "Ok",
	RepositoryStateUpToDate:      "Up to date",
	RepositoryStateFetched:       "Fetched",
	RepositoryStateUpdated:       "Updated",
	RepositoryStateNoFastForward: "No fast forward",
	RepositoryStateLocalChanges:  "Local changes",
	RepositoryStateNotPushed:     "Not pushed",
}

// String returns the label shown in reports.
func (state RepositoryState) String() string {
	if label, known := repositoryStateLabels[state]; known {
		return label
	}
	return repositoryStateLabels[RepositoryStateUnknown]
}

// IsTerminal reports whether a pipeline may finish in this state.
func (state RepositoryState) IsTerminal() bool {
	_, known := repositoryStateLabels[state]
	return known && state != RepositoryStateNotChecked
}

// RepositoryInfo is the per-run projection of a persisted repository.
type RepositoryInfo struct {
	Path       string
	Name       string
	State      RepositoryState
	StashCount uint64
	// Duration is the wall-clock time of the latest run.
	Duration time.Duration
	Hook     string
	Failure  string
}

// NewRepositoryInfo prepares a repository for a run.
func NewRepositoryInfo(path string, hook string) RepositoryInfo {
	return RepositoryInfo{
		Path:  path,
		Name:  filepath.Base(path),
		State: RepositoryStateNotChecked,
		Hook:  hook,
	}
}

// NeedsAttention reports whether a report should list the repository when only problems are shown.
func (info RepositoryInfo) NeedsAttention() bool {
	if info.StashCount > 0 {
		return true
	}
	switch info.State {
	case RepositoryStateOk, RepositoryStateUpToDate:
		return false
	default:
		return true
	}
}
