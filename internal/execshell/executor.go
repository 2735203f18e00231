package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CommandName identifies an executable launched by the shell executor.
type CommandName string

// Supported executables.
const (
	CommandGit   CommandName = "git"
	CommandShell CommandName = "sh"
)

const (
	shellScriptFlagConstant                        = "-c"
	invalidUTF8ReplacementConstant                 = "\uFFFD"
	commandExecutionErrorTemplateConstant          = "%s could not be launched: %v"
	commandFailedErrorTemplateConstant             = "%s exited with code %d"
	commandFailedErrorOutputSuffixTemplateConstant = "%s: %s"
)

// ErrLoggerNotConfigured indicates that a shell executor was constructed without a logger.
var ErrLoggerNotConfigured = errors.New("execshell: logger not configured")

// ErrCommandRunnerNotConfigured indicates that a shell executor was constructed without a runner.
var ErrCommandRunnerNotConfigured = errors.New("execshell: command runner not configured")

// CommandDetails describes how a single invocation should be launched.
type CommandDetails struct {
	Arguments        []string
	WorkingDirectory string
	Environment      Environment
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures what a finished process produced.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	// CombinedOutput interleaves both streams in the order they were written.
	CombinedOutput string
	ExitCode       int
}

// CommandRunner launches processes.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandExecutionError reports a process that could not be started at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the launch failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// CommandFailedError reports a shell script that exited with a non-zero status.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed script.
func (failedError CommandFailedError) Error() string {
	message := fmt.Sprintf(commandFailedErrorTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode)
	trimmedOutput := strings.TrimSpace(failedError.Result.CombinedOutput)
	if len(trimmedOutput) == 0 {
		return message
	}
	return fmt.Sprintf(commandFailedErrorOutputSuffixTemplateConstant, message, trimmedOutput)
}

// ShellExecutor runs commands through a CommandRunner and reports their lifecycle.
type ShellExecutor struct {
	runner   CommandRunner
	observer CommandEventObserver
}

// NewShellExecutor validates its collaborators and constructs an executor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{runner: runner, observer: newCommandEventLogger(logger, humanReadableLogging)}, nil
}

// ExecuteGit runs git with the supplied details. A non-zero exit status is returned in the result.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteShell runs script through sh -c. A non-zero exit status is reported as CommandFailedError.
func (executor *ShellExecutor) ExecuteShell(executionContext context.Context, script string, details CommandDetails) (ExecutionResult, error) {
	scriptDetails := details
	scriptDetails.Arguments = append([]string{shellScriptFlagConstant, script}, details.Arguments...)
	command := ShellCommand{Name: CommandShell, Details: scriptDetails}

	result, executionError := executor.execute(executionContext, command)
	if executionError != nil {
		return ExecutionResult{}, executionError
	}
	if result.ExitCode != 0 {
		return result, CommandFailedError{Command: command, Result: result}
	}
	return result, nil
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.observer.CommandStarted(command)

	result, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	result.StandardOutput = strings.ToValidUTF8(result.StandardOutput, invalidUTF8ReplacementConstant)
	result.StandardError = strings.ToValidUTF8(result.StandardError, invalidUTF8ReplacementConstant)
	result.CombinedOutput = strings.ToValidUTF8(result.CombinedOutput, invalidUTF8ReplacementConstant)

	executor.observer.CommandCompleted(command, result)
	return result, nil
}
