package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes the supplied command using os/exec.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}
	if !command.Details.Environment.IsEmpty() {
		executable.Env = command.Details.Environment.Assignments()
	}

	combinedOutput := &synchronizedBuffer{}
	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = io.MultiWriter(&standardOutputBuffer, combinedOutput)
	executable.Stderr = io.MultiWriter(&standardErrorBuffer, combinedOutput)

	runError := executable.Run()
	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		CombinedOutput: combinedOutput.String(),
	}
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		return ExecutionResult{}, runError
	}

	return result, nil
}

// synchronizedBuffer lets the stdout and stderr copiers append to one buffer.
type synchronizedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (synchronized *synchronizedBuffer) Write(data []byte) (int, error) {
	synchronized.mutex.Lock()
	defer synchronized.mutex.Unlock()
	return synchronized.buffer.Write(data)
}

func (synchronized *synchronizedBuffer) String() string {
	synchronized.mutex.Lock()
	defer synchronized.mutex.Unlock()
	return synchronized.buffer.String()
}
