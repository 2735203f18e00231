package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	outputSuffixTemplateConstant            = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	firstOutputLineSeparatorConstant        = "\n"
)

const (
	gitRevListSubcommandNameConstant   = "rev-list"
	gitRevParseSubcommandNameConstant  = "rev-parse"
	gitStatusSubcommandNameConstant    = "status"
	gitFetchSubcommandNameConstant     = "fetch"
	gitMergeSubcommandNameConstant     = "merge"
	gitSubmoduleSubcommandNameConstant = "submodule"
	gitAbbrevRefFlagConstant           = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant    = "--symbolic-full-name"
	gitAllRemotesFlagConstant          = "--all"
	flagPrefixConstant                 = "-"
)

const (
	gitStashCountStartTemplateConstant            = "Counting stash entries in %s"
	gitStashCountSuccessTemplateConstant          = "Counted stash entries in %s"
	gitStashCountFailureTemplateConstant          = "Stash count in %s exited with code %d%s"
	gitStashCountExecutionFailureTemplateConstant = "Unable to count stash entries in %s: %s"
	gitFetchStartTemplateConstant                 = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant               = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant               = "Failed to fetch from %s in %s (exit code %d%s)"
	gitFetchExecutionFailureTemplateConstant      = "Unable to fetch from %s in %s: %s"
	gitFetchAllRemotesLabelConstant               = "all remotes"
	gitStatusStartTemplateConstant                = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant              = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant              = "Failed to review working tree status in %s (exit code %d%s)"
	gitStatusExecutionFailureTemplateConstant     = "Unable to review working tree status in %s: %s"
	gitMergeStartTemplateConstant                 = "Fast-forwarding %s"
	gitMergeSuccessTemplateConstant               = "Fast-forward attempt finished in %s"
	gitMergeFailureTemplateConstant               = "Fast-forward refused in %s (exit code %d%s)"
	gitMergeExecutionFailureTemplateConstant      = "Unable to fast-forward %s: %s"
	gitSubmoduleStartTemplateConstant             = "Synchronizing submodules in %s"
	gitSubmoduleSuccessTemplateConstant           = "Synchronized submodules in %s"
	gitSubmoduleFailureTemplateConstant           = "Failed to synchronize submodules in %s (exit code %d%s)"
	gitSubmoduleExecutionFailureTemplateConstant  = "Unable to synchronize submodules in %s: %s"
	gitCurrentBranchStartTemplateConstant         = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant       = "Identified current branch in %s"
	gitCurrentBranchFailureTemplateConstant       = "Failed to identify current branch in %s (exit code %d%s)"
	gitUpstreamBranchStartTemplateConstant        = "Checking upstream branch configuration in %s"
	gitUpstreamBranchSuccessTemplateConstant      = "Upstream branch in %s is %s"
	gitUpstreamBranchFailureTemplateConstant      = "No upstream branch configured in %s (exit code %d%s)"
	gitRevisionStartTemplateConstant              = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant            = "%s in %s resolved to %s"
	gitRevisionFailureTemplateConstant            = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevParseExecutionFailureTemplateConstant   = "Unable to inspect references in %s: %s"
	hookStartTemplateConstant                     = "Running post-update hook in %s"
	hookSuccessTemplateConstant                   = "Post-update hook finished in %s"
	hookFailureTemplateConstant                   = "Post-update hook in %s exited with code %d%s"
	hookExecutionFailureTemplateConstant          = "Unable to run post-update hook in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that could not be launched.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandShell:
		return formatter.describeHookMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	outputSuffix := formatter.formatOutputSuffix(result.CombinedOutput)
	failureDescription := formatter.describeFailure(failure)

	switch strings.TrimSpace(command.Details.Arguments[0]) {
	case gitRevListSubcommandNameConstant:
		return selectStageMessage(stage,
			fmt.Sprintf(gitStashCountStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitStashCountSuccessTemplateConstant, workingDirectory),
			fmt.Sprintf(gitStashCountFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			fmt.Sprintf(gitStashCountExecutionFailureTemplateConstant, workingDirectory, failureDescription))
	case gitFetchSubcommandNameConstant:
		remoteLabel := formatter.describeFetchRemote(command.Details.Arguments[1:])
		return selectStageMessage(stage,
			fmt.Sprintf(gitFetchStartTemplateConstant, remoteLabel, workingDirectory),
			fmt.Sprintf(gitFetchSuccessTemplateConstant, remoteLabel, workingDirectory),
			fmt.Sprintf(gitFetchFailureTemplateConstant, remoteLabel, workingDirectory, result.ExitCode, outputSuffix),
			fmt.Sprintf(gitFetchExecutionFailureTemplateConstant, remoteLabel, workingDirectory, failureDescription))
	case gitStatusSubcommandNameConstant:
		return selectStageMessage(stage,
			fmt.Sprintf(gitStatusStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitStatusSuccessTemplateConstant, workingDirectory),
			fmt.Sprintf(gitStatusFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			fmt.Sprintf(gitStatusExecutionFailureTemplateConstant, workingDirectory, failureDescription))
	case gitMergeSubcommandNameConstant:
		return selectStageMessage(stage,
			fmt.Sprintf(gitMergeStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitMergeSuccessTemplateConstant, workingDirectory),
			fmt.Sprintf(gitMergeFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			fmt.Sprintf(gitMergeExecutionFailureTemplateConstant, workingDirectory, failureDescription))
	case gitSubmoduleSubcommandNameConstant:
		return selectStageMessage(stage,
			fmt.Sprintf(gitSubmoduleStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitSubmoduleSuccessTemplateConstant, workingDirectory),
			fmt.Sprintf(gitSubmoduleFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			fmt.Sprintf(gitSubmoduleExecutionFailureTemplateConstant, workingDirectory, failureDescription))
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	outputSuffix := formatter.formatOutputSuffix(result.CombinedOutput)
	executionFailure := fmt.Sprintf(gitRevParseExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))

	if containsArgument(arguments, gitSymbolicFullNameFlagConstant) {
		return selectStageMessage(stage,
			fmt.Sprintf(gitUpstreamBranchStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitUpstreamBranchSuccessTemplateConstant, workingDirectory, formatter.firstOutputLine(result)),
			fmt.Sprintf(gitUpstreamBranchFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			executionFailure)
	}
	if containsArgument(arguments, gitAbbrevRefFlagConstant) {
		return selectStageMessage(stage,
			fmt.Sprintf(gitCurrentBranchStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitCurrentBranchSuccessTemplateConstant, workingDirectory),
			fmt.Sprintf(gitCurrentBranchFailureTemplateConstant, workingDirectory, result.ExitCode, outputSuffix),
			executionFailure)
	}

	reference := formatter.resolveRevisionReference(arguments)
	return selectStageMessage(stage,
		fmt.Sprintf(gitRevisionStartTemplateConstant, reference, workingDirectory),
		fmt.Sprintf(gitRevisionSuccessTemplateConstant, reference, workingDirectory, formatter.firstOutputLine(result)),
		fmt.Sprintf(gitRevisionFailureTemplateConstant, reference, workingDirectory, result.ExitCode, outputSuffix),
		executionFailure)
}

func (formatter CommandMessageFormatter) describeHookMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	return selectStageMessage(stage,
		fmt.Sprintf(hookStartTemplateConstant, workingDirectory),
		fmt.Sprintf(hookSuccessTemplateConstant, workingDirectory),
		fmt.Sprintf(hookFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatOutputSuffix(result.CombinedOutput)),
		fmt.Sprintf(hookExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure)))
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	return selectStageMessage(stage,
		fmt.Sprintf(genericStartTemplateConstant, commandLabel),
		fmt.Sprintf(genericSuccessTemplateConstant, commandLabel),
		fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatOutputSuffix(result.CombinedOutput)),
		fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure)))
}

func selectStageMessage(stage messageStage, startMessage string, successMessage string, failureMessage string, executionFailureMessage string) string {
	switch stage {
	case messageStageStart:
		return startMessage
	case messageStageSuccess:
		return successMessage
	case messageStageFailure:
		return failureMessage
	case messageStageExecutionFailure:
		return executionFailureMessage
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

// formatOutputSuffix keeps only the first output line so that progress noise does not flood the log.
func (formatter CommandMessageFormatter) formatOutputSuffix(output string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(output), firstOutputLineSeparatorConstant)
	trimmedLine := strings.TrimSpace(firstLine)
	if len(trimmedLine) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(outputSuffixTemplateConstant, trimmedLine)
}

func (formatter CommandMessageFormatter) firstOutputLine(result ExecutionResult) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(result.CombinedOutput), firstOutputLineSeparatorConstant)
	return formatter.ensureValue(firstLine)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) describeFetchRemote(arguments []string) string {
	if containsArgument(arguments, gitAllRemotesFlagConstant) {
		return gitFetchAllRemotesLabelConstant
	}
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		return trimmedArgument
	}
	return gitFetchAllRemotesLabelConstant
}

func (formatter CommandMessageFormatter) resolveRevisionReference(arguments []string) string {
	if len(arguments) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return formatter.ensureValue(arguments[len(arguments)-1])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}
