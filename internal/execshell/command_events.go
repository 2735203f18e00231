package execshell

import "go.uber.org/zap"

const (
	logFieldCommandConstant          = "command"
	logFieldArgumentsConstant        = "arguments"
	logFieldWorkingDirectoryConstant = "working_directory"
	logFieldExitCodeConstant         = "exit_code"
	structuredStartMessageConstant   = "command started"
	structuredDoneMessageConstant    = "command completed"
	structuredFailureMessageConstant = "command execution failed"
)

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports failures to launch a command.
	CommandExecutionFailed(command ShellCommand, failure error)
}

func newCommandEventLogger(logger *zap.Logger, humanReadableLogging bool) CommandEventObserver {
	if humanReadableLogging {
		return consoleCommandEventLogger{logger: logger, formatter: CommandMessageFormatter{}}
	}
	return structuredCommandEventLogger{logger: logger}
}

// structuredCommandEventLogger records command lifecycle events as debug entries with fields.
type structuredCommandEventLogger struct {
	logger *zap.Logger
}

func (eventLogger structuredCommandEventLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Debug(structuredStartMessageConstant, commandFields(command)...)
}

func (eventLogger structuredCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	fields := append(commandFields(command), zap.Int(logFieldExitCodeConstant, result.ExitCode))
	eventLogger.logger.Debug(structuredDoneMessageConstant, fields...)
}

func (eventLogger structuredCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	fields := append(commandFields(command), zap.Error(failure))
	eventLogger.logger.Error(structuredFailureMessageConstant, fields...)
}

// consoleCommandEventLogger renders command lifecycle events as sentences.
type consoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

func (eventLogger consoleCommandEventLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Debug(eventLogger.formatter.BuildStartedMessage(command))
}

func (eventLogger consoleCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	if result.ExitCode == 0 {
		eventLogger.logger.Debug(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildFailureMessage(command, result))
}

func (eventLogger consoleCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

func commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}
