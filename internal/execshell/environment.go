package execshell

import (
	"os"
	"sort"
	"strings"
)

const (
	environmentAssignmentSeparatorConstant = "="
	gitTerminalPromptVariableConstant      = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant      = "0"
	localeVariableConstant                 = "LC_ALL"
	stableLocaleConstant                   = "C"
)

// Environment is an immutable snapshot of process environment variables.
type Environment struct {
	assignments []string
}

// CaptureEnvironment snapshots the current process environment and applies repowatch overrides.
//
// Prompts are disabled so that a git invocation never blocks on a terminal, and
// the locale is pinned so that output classification sees untranslated text.
func CaptureEnvironment() Environment {
	return NewEnvironment(os.Environ(), map[string]string{
		gitTerminalPromptVariableConstant: gitTerminalPromptDisabledConstant,
		localeVariableConstant:            stableLocaleConstant,
	})
}

// NewEnvironment builds a snapshot from KEY=VALUE assignments with overrides applied on top.
func NewEnvironment(assignments []string, overrides map[string]string) Environment {
	values := make(map[string]string, len(assignments)+len(overrides))
	for _, assignment := range assignments {
		key, value, found := strings.Cut(assignment, environmentAssignmentSeparatorConstant)
		if !found || len(key) == 0 {
			continue
		}
		values[key] = value
	}
	for key, value := range overrides {
		values[key] = value
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	snapshot := make([]string, 0, len(keys))
	for _, key := range keys {
		snapshot = append(snapshot, key+environmentAssignmentSeparatorConstant+values[key])
	}
	return Environment{assignments: snapshot}
}

// IsEmpty reports whether the snapshot carries no variables.
func (environment Environment) IsEmpty() bool {
	return len(environment.assignments) == 0
}

// Assignments returns a copy of the KEY=VALUE pairs.
func (environment Environment) Assignments() []string {
	return append([]string(nil), environment.assignments...)
}

// Lookup returns the value recorded for key.
func (environment Environment) Lookup(key string) (string, bool) {
	prefix := key + environmentAssignmentSeparatorConstant
	for _, assignment := range environment.assignments {
		if strings.HasPrefix(assignment, prefix) {
			return strings.TrimPrefix(assignment, prefix), true
		}
	}
	return "", false
}
