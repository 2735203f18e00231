package pipeline_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/execshell"
	"github.com/temirov/repowatch/internal/pipeline"
	"github.com/temirov/repowatch/internal/repos/filesystem"
)

const (
	testRepositoryPathConstant    = "/srv/code/service"
	testHookCommandConstant       = "make install"
	stashCommandKeyConstant       = "rev-list --walk-reflogs --count refs/stash"
	fetchCommandKeyConstant       = "fetch --all --progress"
	statusCommandKeyConstant      = "status"
	mergeCommandKeyConstant       = "merge --ff-only"
	submoduleCommandKeyConstant   = "submodule update --init --recursive"
	branchCommandKeyConstant      = "rev-parse --abbrev-ref HEAD"
	upstreamCommandKeyConstant    = "rev-parse --abbrev-ref --symbolic-full-name @{upstream}"
	headCommandKeyConstant        = "rev-parse HEAD"
	upstreamRevisionKeyConstant   = "rev-parse @{upstream}"
	noStashOutputConstant         = "fatal: ambiguous argument 'refs/stash': unknown revision or path not in the working tree.\n"
	cleanStatusOutputConstant     = "On branch main\nYour branch is up to date with 'origin/main'.\n\nnothing to commit, working tree clean\n"
	dirtyStatusOutputConstant     = "On branch main\nChanges not staged for commit:\n\tmodified:   main.go\n"
	headRevisionConstant          = "1111111111111111111111111111111111111111\n"
	otherRevisionConstant         = "2222222222222222222222222222222222222222\n"
	fetchedOutputConstant         = "Fetching origin\nReceiving objects: 100% (4/4), done.\n"
	fastForwardOutputConstant     = "Updating 1111111..2222222\nFast-forward\n"
	alreadyUpToDateOutputConstant = "Already up to date.\n"
)

type scriptedGitExecutor struct {
	outputs        map[string]string
	launchFailures map[string]error
	hookError      error
	commands       []string
	hooks          []string
	environments   []execshell.Environment
}

func (executor *scriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	commandKey := strings.Join(details.Arguments, " ")
	executor.commands = append(executor.commands, commandKey)
	executor.environments = append(executor.environments, details.Environment)
	if launchFailure, failing := executor.launchFailures[commandKey]; failing {
		return execshell.ExecutionResult{}, execshell.CommandExecutionError{Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details}, Cause: launchFailure}
	}
	return execshell.ExecutionResult{CombinedOutput: executor.outputs[commandKey]}, nil
}

func (executor *scriptedGitExecutor) ExecuteShell(executionContext context.Context, script string, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.hooks = append(executor.hooks, script+"@"+details.WorkingDirectory)
	return execshell.ExecutionResult{}, executor.hookError
}

func healthyOutputs() map[string]string {
	return map[string]string{
		stashCommandKeyConstant:     noStashOutputConstant,
		fetchCommandKeyConstant:     "",
		statusCommandKeyConstant:    cleanStatusOutputConstant,
		mergeCommandKeyConstant:     alreadyUpToDateOutputConstant,
		branchCommandKeyConstant:    "main\n",
		upstreamCommandKeyConstant:  "origin/main\n",
		headCommandKeyConstant:      headRevisionConstant,
		upstreamRevisionKeyConstant: headRevisionConstant,
	}
}

func withOutputs(overrides map[string]string) map[string]string {
	outputs := healthyOutputs()
	for commandKey, output := range overrides {
		outputs[commandKey] = output
	}
	return outputs
}

// directoryFileSystem reports every path as an existing directory except the missing ones.
type directoryFileSystem struct {
	filesystem.OSFileSystem
	directoryInfo fs.FileInfo
	missing       map[string]bool
}

func newDirectoryFileSystem(testInstance *testing.T, missingPaths ...string) directoryFileSystem {
	testInstance.Helper()
	directoryInfo, statError := os.Stat(testInstance.TempDir())
	require.NoError(testInstance, statError)
	missing := make(map[string]bool, len(missingPaths))
	for _, missingPath := range missingPaths {
		missing[missingPath] = true
	}
	return directoryFileSystem{directoryInfo: directoryInfo, missing: missing}
}

func (fileSystem directoryFileSystem) Stat(path string) (fs.FileInfo, error) {
	if fileSystem.missing[path] {
		return nil, fs.ErrNotExist
	}
	return fileSystem.directoryInfo, nil
}

func newTestService(testInstance *testing.T, executor *scriptedGitExecutor, missingPaths ...string) *pipeline.Service {
	testInstance.Helper()
	service, creationError := pipeline.NewService(pipeline.Dependencies{
		GitExecutor: executor,
		Environment: execshell.NewEnvironment([]string{"GIT_TERMINAL_PROMPT=0"}, nil),
		FileSystem:  newDirectoryFileSystem(testInstance, missingPaths...),
		Logger:      zap.NewNop(),
	})
	require.NoError(testInstance, creationError)
	return service
}

func TestNewServiceRequiresExecutor(testInstance *testing.T) {
	_, creationError := pipeline.NewService(pipeline.Dependencies{})
	require.ErrorIs(testInstance, creationError, pipeline.ErrGitExecutorNotConfigured)
}

func TestServiceCheckClassifiesRepositories(testInstance *testing.T) {
	testCases := []struct {
		name              string
		outputs           map[string]string
		expectedState     pipeline.RepositoryState
		expectedStash     uint64
		expectedCommands  []string
		expectFailureNote bool
	}{
		{
			name:          "clean_and_pushed",
			outputs:       healthyOutputs(),
			expectedState: pipeline.RepositoryStateOk,
			expectedCommands: []string{
				stashCommandKeyConstant, statusCommandKeyConstant, branchCommandKeyConstant,
				upstreamCommandKeyConstant, headCommandKeyConstant, upstreamRevisionKeyConstant,
			},
		},
		{
			name:          "stash_entries_counted",
			outputs:       withOutputs(map[string]string{stashCommandKeyConstant: "2\n"}),
			expectedState: pipeline.RepositoryStateOk,
			expectedStash: 2,
			expectedCommands: []string{
				stashCommandKeyConstant, statusCommandKeyConstant, branchCommandKeyConstant,
				upstreamCommandKeyConstant, headCommandKeyConstant, upstreamRevisionKeyConstant,
			},
		},
		{
			name:             "local_changes_short_circuit",
			outputs:          withOutputs(map[string]string{statusCommandKeyConstant: dirtyStatusOutputConstant}),
			expectedState:    pipeline.RepositoryStateLocalChanges,
			expectedCommands: []string{stashCommandKeyConstant, statusCommandKeyConstant},
		},
		{
			name:             "detached_head",
			outputs:          withOutputs(map[string]string{branchCommandKeyConstant: "HEAD\n"}),
			expectedState:    pipeline.RepositoryStateDetached,
			expectedCommands: []string{stashCommandKeyConstant, statusCommandKeyConstant, branchCommandKeyConstant},
		},
		{
			name:          "missing_upstream",
			outputs:       withOutputs(map[string]string{upstreamCommandKeyConstant: "fatal: no upstream configured for branch 'main'\n"}),
			expectedState: pipeline.RepositoryStateNotPushed,
			expectedCommands: []string{
				stashCommandKeyConstant, statusCommandKeyConstant, branchCommandKeyConstant, upstreamCommandKeyConstant,
			},
		},
		{
			name:          "head_ahead_of_upstream",
			outputs:       withOutputs(map[string]string{headCommandKeyConstant: otherRevisionConstant}),
			expectedState: pipeline.RepositoryStateNotPushed,
			expectedCommands: []string{
				stashCommandKeyConstant, statusCommandKeyConstant, branchCommandKeyConstant,
				upstreamCommandKeyConstant, headCommandKeyConstant, upstreamRevisionKeyConstant,
			},
		},
		{
			name:              "unparseable_stash_count",
			outputs:           withOutputs(map[string]string{stashCommandKeyConstant: "fatal: not a git repository\n"}),
			expectedState:     pipeline.RepositoryStateUnknown,
			expectedCommands:  []string{stashCommandKeyConstant},
			expectFailureNote: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{outputs: testCase.outputs}
			service := newTestService(testInstance, executor)

			var reportedSteps []pipeline.Step
			result, checkError := service.Check(context.Background(), pipeline.NewRepositoryInfo(testRepositoryPathConstant, ""), func(step pipeline.Step) {
				reportedSteps = append(reportedSteps, step)
			})

			require.NoError(testInstance, checkError)
			require.Equal(testInstance, testCase.expectedState, result.State)
			require.True(testInstance, result.State.IsTerminal())
			require.Equal(testInstance, testCase.expectedStash, result.StashCount)
			require.Equal(testInstance, testCase.expectedCommands, executor.commands)
			require.Equal(testInstance, testCase.expectFailureNote, len(result.Failure) > 0)
			require.Equal(testInstance, pipeline.StepStash, reportedSteps[0])
			require.NotContains(testInstance, executor.commands, fetchCommandKeyConstant)
		})
	}
}

func TestServiceUpdateClassifiesRepositories(testInstance *testing.T) {
	testCases := []struct {
		name             string
		outputs          map[string]string
		hook             string
		expectedState    pipeline.RepositoryState
		expectedCommands []string
		expectedHooks    []string
	}{
		{
			name:          "fast_forwarded_with_hook",
			outputs:       withOutputs(map[string]string{fetchCommandKeyConstant: fetchedOutputConstant, mergeCommandKeyConstant: fastForwardOutputConstant}),
			hook:          testHookCommandConstant,
			expectedState: pipeline.RepositoryStateUpdated,
			expectedCommands: []string{
				stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant,
				mergeCommandKeyConstant, submoduleCommandKeyConstant,
			},
			expectedHooks: []string{testHookCommandConstant + "@" + testRepositoryPathConstant},
		},
		{
			name:          "already_up_to_date_checks_unpushed",
			outputs:       healthyOutputs(),
			expectedState: pipeline.RepositoryStateUpToDate,
			expectedCommands: []string{
				stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant, mergeCommandKeyConstant,
				branchCommandKeyConstant, upstreamCommandKeyConstant, headCommandKeyConstant, upstreamRevisionKeyConstant,
			},
		},
		{
			name:          "up_to_date_but_not_pushed",
			outputs:       withOutputs(map[string]string{upstreamRevisionKeyConstant: otherRevisionConstant}),
			expectedState: pipeline.RepositoryStateNotPushed,
			expectedCommands: []string{
				stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant, mergeCommandKeyConstant,
				branchCommandKeyConstant, upstreamCommandKeyConstant, headCommandKeyConstant, upstreamRevisionKeyConstant,
			},
		},
		{
			name:             "local_changes_never_merge",
			outputs:          withOutputs(map[string]string{fetchCommandKeyConstant: fetchedOutputConstant, statusCommandKeyConstant: dirtyStatusOutputConstant}),
			hook:             testHookCommandConstant,
			expectedState:    pipeline.RepositoryStateLocalChanges,
			expectedCommands: []string{stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant},
		},
		{
			name:             "diverged_branch",
			outputs:          withOutputs(map[string]string{mergeCommandKeyConstant: "fatal: Not possible to fast-forward, aborting.\n"}),
			expectedState:    pipeline.RepositoryStateNoFastForward,
			expectedCommands: []string{stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant, mergeCommandKeyConstant},
		},
		{
			name:             "unrecognized_merge_output",
			outputs:          withOutputs(map[string]string{mergeCommandKeyConstant: "error: unexpected\n"}),
			expectedState:    pipeline.RepositoryStateUnknown,
			expectedCommands: []string{stashCommandKeyConstant, fetchCommandKeyConstant, statusCommandKeyConstant, mergeCommandKeyConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{outputs: testCase.outputs}
			service := newTestService(testInstance, executor)

			result, updateError := service.Update(context.Background(), pipeline.NewRepositoryInfo(testRepositoryPathConstant, testCase.hook), nil)

			require.NoError(testInstance, updateError)
			require.Equal(testInstance, testCase.expectedState, result.State)
			require.Equal(testInstance, testCase.expectedCommands, executor.commands)
			require.Equal(testInstance, testCase.expectedHooks, executor.hooks)
		})
	}
}

func TestServiceUpdateToleratesHookFailure(testInstance *testing.T) {
	executor := &scriptedGitExecutor{
		outputs:   withOutputs(map[string]string{mergeCommandKeyConstant: fastForwardOutputConstant}),
		hookError: execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 2}},
	}
	service := newTestService(testInstance, executor)

	result, updateError := service.Update(context.Background(), pipeline.NewRepositoryInfo(testRepositoryPathConstant, testHookCommandConstant), nil)

	require.NoError(testInstance, updateError)
	require.Equal(testInstance, pipeline.RepositoryStateUpdated, result.State)
	require.Len(testInstance, executor.hooks, 1)
}

func TestServiceReportsLaunchFailures(testInstance *testing.T) {
	launchFailure := errors.New("exec: \"git\": executable file not found in $PATH")
	executor := &scriptedGitExecutor{
		outputs:        healthyOutputs(),
		launchFailures: map[string]error{statusCommandKeyConstant: launchFailure},
	}
	service := newTestService(testInstance, executor)

	_, checkError := service.Check(context.Background(), pipeline.NewRepositoryInfo(testRepositoryPathConstant, ""), nil)

	var stepError pipeline.StepError
	require.ErrorAs(testInstance, checkError, &stepError)
	require.Equal(testInstance, pipeline.StepStatus, stepError.Step)
	require.Equal(testInstance, testRepositoryPathConstant, stepError.RepositoryPath)
	require.ErrorIs(testInstance, checkError, launchFailure)
}

func TestServicePassesEnvironmentSnapshotToEveryCommand(testInstance *testing.T) {
	executor := &scriptedGitExecutor{outputs: healthyOutputs()}
	service := newTestService(testInstance, executor)

	_, checkError := service.Check(context.Background(), pipeline.NewRepositoryInfo(testRepositoryPathConstant, ""), nil)
	require.NoError(testInstance, checkError)

	for _, environment := range executor.environments {
		promptValue, promptFound := environment.Lookup("GIT_TERMINAL_PROMPT")
		require.True(testInstance, promptFound)
		require.Equal(testInstance, "0", promptValue)
	}
}

func TestServiceMarksMissingRepositoriesUnknown(testInstance *testing.T) {
	executor := &scriptedGitExecutor{outputs: healthyOutputs()}
	service := newTestService(testInstance, executor, testRepositoryPathConstant)
	info := pipeline.NewRepositoryInfo(testRepositoryPathConstant, testHookCommandConstant)

	checked, checkError := service.Check(context.Background(), info, nil)
	require.NoError(testInstance, checkError)
	require.Equal(testInstance, pipeline.RepositoryStateUnknown, checked.State)
	require.Equal(testInstance, "repository directory does not exist", checked.Failure)

	updated, updateError := service.Update(context.Background(), info, nil)
	require.NoError(testInstance, updateError)
	require.Equal(testInstance, pipeline.RepositoryStateUnknown, updated.State)
	require.True(testInstance, updated.NeedsAttention())

	require.Empty(testInstance, executor.commands)
	require.Empty(testInstance, executor.hooks)
}
