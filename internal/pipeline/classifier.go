package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	stashMissingMarkerConstant           = "unknown revision"
	fetchReceivedMarkerConstant          = "Receiving objects: 100%"
	fetchUnpackedMarkerConstant          = "Unpacking objects: 100%"
	cleanWorkingTreeMarkerConstant       = "nothing to commit, working tree clean"
	mergeUpdatingMarkerConstant          = "Updating"
	mergeUpToDateMarkerConstant          = "up to date"
	mergeLegacyUpToDateMarkerConstant    = "up-to-date"
	fatalMarkerConstant                  = "fatal"
	detachedHeadMarkerConstant           = "HEAD"
	lineSeparatorConstant                = "\n"
	stashCountParseErrorTemplateConstant = "%w: %q"
)

// ErrStashCountUnparseable indicates that the stash count output was not a number.
var ErrStashCountUnparseable = errors.New("stash count output is not a number")

// BranchKind distinguishes the outcomes of a current-branch lookup.
type BranchKind int

// Current branch outcomes.
const (
	BranchKindNamed BranchKind = iota
	BranchKindDetached
	BranchKindUnresolved
)

// OutputClassifier maps git output onto pipeline decisions, one method per step.
type OutputClassifier interface {
	ClassifyStash(output string) (uint64, error)
	ClassifyFetch(output string) RepositoryState
	ClassifyStatus(output string) bool
	ClassifyMerge(output string) RepositoryState
	ClassifyBranch(output string) (string, BranchKind)
	ClassifyUpstream(output string) (string, bool)
	ClassifyRevision(output string) (string, bool)
}

// GitOutputClassifier recognizes the untranslated output of the git command line.
type GitOutputClassifier struct{}

// ClassifyStash parses the output of rev-list --walk-reflogs --count refs/stash.
func (GitOutputClassifier) ClassifyStash(output string) (uint64, error) {
	if strings.Contains(output, stashMissingMarkerConstant) {
		return 0, nil
	}
	firstLine := firstLine(output)
	stashCount, parseError := strconv.ParseUint(firstLine, 10, 64)
	if parseError != nil {
		return 0, fmt.Errorf(stashCountParseErrorTemplateConstant, ErrStashCountUnparseable, firstLine)
	}
	return stashCount, nil
}

// ClassifyFetch reports Fetched when objects were transferred.
func (GitOutputClassifier) ClassifyFetch(output string) RepositoryState {
	if strings.Contains(output, fetchReceivedMarkerConstant) || strings.Contains(output, fetchUnpackedMarkerConstant) {
		return RepositoryStateFetched
	}
	return RepositoryStateUpToDate
}

// ClassifyStatus reports whether git status describes a clean working tree.
func (GitOutputClassifier) ClassifyStatus(output string) bool {
	return strings.Contains(output, cleanWorkingTreeMarkerConstant)
}

// ClassifyMerge maps the output of merge --ff-only onto a state.
func (GitOutputClassifier) ClassifyMerge(output string) RepositoryState {
	switch {
	case strings.Contains(output, mergeUpdatingMarkerConstant):
		return RepositoryStateUpdated
	case strings.Contains(output, mergeUpToDateMarkerConstant), strings.Contains(output, mergeLegacyUpToDateMarkerConstant):
		return RepositoryStateUpToDate
	case strings.Contains(output, fatalMarkerConstant):
		return RepositoryStateNoFastForward
	default:
		return RepositoryStateUnknown
	}
}

// ClassifyBranch interprets rev-parse --abbrev-ref HEAD.
func (GitOutputClassifier) ClassifyBranch(output string) (string, BranchKind) {
	branchName := firstLine(output)
	switch {
	case len(branchName) == 0, strings.Contains(output, fatalMarkerConstant):
		return "", BranchKindUnresolved
	case branchName == detachedHeadMarkerConstant:
		return "", BranchKindDetached
	default:
		return branchName, BranchKindNamed
	}
}

// ClassifyUpstream interprets rev-parse --abbrev-ref --symbolic-full-name @{upstream}.
func (GitOutputClassifier) ClassifyUpstream(output string) (string, bool) {
	upstreamName := firstLine(output)
	if len(upstreamName) == 0 || strings.Contains(output, fatalMarkerConstant) {
		return "", false
	}
	return upstreamName, true
}

// ClassifyRevision interprets rev-parse <revision>.
func (GitOutputClassifier) ClassifyRevision(output string) (string, bool) {
	revision := firstLine(output)
	if len(revision) == 0 || strings.Contains(output, fatalMarkerConstant) {
		return "", false
	}
	return revision, true
}

func firstLine(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), lineSeparatorConstant)
	return strings.TrimSpace(line)
}
