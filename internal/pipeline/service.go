package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/execshell"
	"github.com/temirov/repowatch/internal/repos/filesystem"
	"github.com/temirov/repowatch/internal/repos/shared"
)

// Step names a pipeline stage for progress reporting and error attribution.
type Step string

// Pipeline steps.
const (
	StepStash     Step = "stash"
	StepFetch     Step = "fetch"
	StepStatus    Step = "status"
	StepMerge     Step = "merge"
	StepSubmodule Step = "submodule"
	StepHook      Step = "hook"
	StepUnpushed  Step = "unpushed"
)

const (
	gitRevListSubcommandConstant        = "rev-list"
	gitWalkReflogsFlagConstant          = "--walk-reflogs"
	gitCountFlagConstant                = "--count"
	gitStashReferenceConstant           = "refs/stash"
	gitFetchSubcommandConstant          = "fetch"
	gitAllRemotesFlagConstant           = "--all"
	gitProgressFlagConstant             = "--progress"
	gitStatusSubcommandConstant         = "status"
	gitMergeSubcommandConstant          = "merge"
	gitFastForwardOnlyFlagConstant      = "--ff-only"
	gitSubmoduleSubcommandConstant      = "submodule"
	gitUpdateSubcommandConstant         = "update"
	gitInitFlagConstant                 = "--init"
	gitRecursiveFlagConstant            = "--recursive"
	gitRevParseSubcommandConstant       = "rev-parse"
	gitAbbrevRefFlagConstant            = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant     = "--symbolic-full-name"
	gitHeadReferenceConstant            = "HEAD"
	gitUpstreamReferenceConstant        = "@{upstream}"
	gitExecutorMissingMessageConstant   = "git executor not configured"
	stepErrorTemplateConstant           = "%s step failed for %s: %v"
	stashFailureTemplateConstant        = "stash count: %v"
	branchFailureMessageConstant        = "current branch could not be resolved"
	revisionFailureMessageConstant      = "HEAD or upstream revision could not be resolved"
	unrecognizedMergeMessageConstant    = "merge output not recognized"
	submoduleFailureMessageConstant     = "submodule synchronization failed"
	hookFailureMessageConstant          = "post-update hook failed"
	missingDirectoryMessageConstant     = "repository directory does not exist"
	repositoryClassifiedMessageConstant = "repository classified"
	logFieldRepositoryConstant          = "repository"
	logFieldStepConstant                = "step"
	logFieldStateConstant               = "state"
	logFieldOutputConstant              = "output"
	logFieldExitCodeConstant            = "exit_code"
)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// StepError reports a git invocation that could not be launched.
type StepError struct {
	Step           Step
	RepositoryPath string
	Cause          error
}

// Error describes the failed step.
func (stepError StepError) Error() string {
	return fmt.Sprintf(stepErrorTemplateConstant, stepError.Step, stepError.RepositoryPath, stepError.Cause)
}

// Unwrap exposes the launch failure.
func (stepError StepError) Unwrap() error {
	return stepError.Cause
}

// StepReporter is notified before each step starts.
type StepReporter func(step Step)

// Dependencies enumerates external collaborators required for repository pipelines.
type Dependencies struct {
	GitExecutor shared.GitExecutor
	Classifier  OutputClassifier
	Environment execshell.Environment
	FileSystem  shared.FileSystem
	Logger      *zap.Logger
}

// Service runs the check and update pipelines.
type Service struct {
	executor    shared.GitExecutor
	classifier  OutputClassifier
	environment execshell.Environment
	fileSystem  shared.FileSystem
	logger      *zap.Logger
}

// cleanWorkingTree is proof that the status step found nothing to commit.
// Only inspectWorkingTree creates it, so merge and unpushed steps cannot run on a dirty tree.
type cleanWorkingTree struct {
	repositoryPath string
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.GitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	classifier := dependencies.Classifier
	if classifier == nil {
		classifier = GitOutputClassifier{}
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		executor:    dependencies.GitExecutor,
		classifier:  classifier,
		environment: dependencies.Environment,
		fileSystem:  fileSystem,
		logger:      logger,
	}, nil
}

// Check classifies a repository without touching remotes.
func (service *Service) Check(executionContext context.Context, info RepositoryInfo, report StepReporter) (RepositoryInfo, error) {
	info.State = RepositoryStateOk
	info.Failure = ""
	if missingInfo, missing := service.markMissing(info); missing {
		return missingInfo, nil
	}

	stashedInfo, stashClassified, stashError := service.countStash(executionContext, info, report)
	if stashError != nil || !stashClassified {
		return stashedInfo, stashError
	}
	info = stashedInfo

	cleanTree, clean, statusError := service.inspectWorkingTree(executionContext, info, report)
	if statusError != nil {
		return info, statusError
	}
	if !clean {
		info.State = RepositoryStateLocalChanges
		return service.finish(info), nil
	}

	info, unpushedError := service.detectUnpushed(executionContext, info, cleanTree, report)
	if unpushedError != nil {
		return info, unpushedError
	}
	return service.finish(info), nil
}

// Update fetches all remotes and fast-forwards the current branch when the working tree is clean.
func (service *Service) Update(executionContext context.Context, info RepositoryInfo, report StepReporter) (RepositoryInfo, error) {
	info.Failure = ""
	if missingInfo, missing := service.markMissing(info); missing {
		return missingInfo, nil
	}

	stashedInfo, stashClassified, stashError := service.countStash(executionContext, info, report)
	if stashError != nil || !stashClassified {
		return stashedInfo, stashError
	}
	info = stashedInfo

	notify(report, StepFetch)
	fetchResult, fetchError := service.runGit(executionContext, info.Path, gitFetchSubcommandConstant, gitAllRemotesFlagConstant, gitProgressFlagConstant)
	if fetchError != nil {
		return info, StepError{Step: StepFetch, RepositoryPath: info.Path, Cause: fetchError}
	}
	info.State = service.classifier.ClassifyFetch(fetchResult.CombinedOutput)

	cleanTree, clean, statusError := service.inspectWorkingTree(executionContext, info, report)
	if statusError != nil {
		return info, statusError
	}
	if !clean {
		info.State = RepositoryStateLocalChanges
		return service.finish(info), nil
	}

	info, mergeError := service.fastForward(executionContext, info, cleanTree, report)
	if mergeError != nil {
		return info, mergeError
	}

	if info.State == RepositoryStateUpToDate {
		var unpushedError error
		info, unpushedError = service.detectUnpushed(executionContext, info, cleanTree, report)
		if unpushedError != nil {
			return info, unpushedError
		}
	}
	return service.finish(info), nil
}

// markMissing classifies a repository whose directory is gone as Unknown without running git.
func (service *Service) markMissing(info RepositoryInfo) (RepositoryInfo, bool) {
	fileInfo, statError := service.fileSystem.Stat(info.Path)
	if statError == nil && fileInfo.IsDir() {
		return info, false
	}
	info.State = RepositoryStateUnknown
	info.Failure = missingDirectoryMessageConstant
	service.logger.Warn(missingDirectoryMessageConstant, zap.String(logFieldRepositoryConstant, info.Path))
	return service.finish(info), true
}

// countStash records the stash size. The second result is false when the repository was classified Unknown.
func (service *Service) countStash(executionContext context.Context, info RepositoryInfo, report StepReporter) (RepositoryInfo, bool, error) {
	notify(report, StepStash)
	stashResult, stashError := service.runGit(executionContext, info.Path, gitRevListSubcommandConstant, gitWalkReflogsFlagConstant, gitCountFlagConstant, gitStashReferenceConstant)
	if stashError != nil {
		return info, false, StepError{Step: StepStash, RepositoryPath: info.Path, Cause: stashError}
	}

	stashCount, classificationError := service.classifier.ClassifyStash(stashResult.CombinedOutput)
	if classificationError != nil {
		info.State = RepositoryStateUnknown
		info.Failure = fmt.Sprintf(stashFailureTemplateConstant, classificationError)
		service.logUnexpectedOutput(info, StepStash, stashResult)
		return service.finish(info), false, nil
	}

	info.StashCount = stashCount
	return info, true, nil
}

func (service *Service) inspectWorkingTree(executionContext context.Context, info RepositoryInfo, report StepReporter) (cleanWorkingTree, bool, error) {
	notify(report, StepStatus)
	statusResult, statusError := service.runGit(executionContext, info.Path, gitStatusSubcommandConstant)
	if statusError != nil {
		return cleanWorkingTree{}, false, StepError{Step: StepStatus, RepositoryPath: info.Path, Cause: statusError}
	}
	if !service.classifier.ClassifyStatus(statusResult.CombinedOutput) {
		return cleanWorkingTree{}, false, nil
	}
	return cleanWorkingTree{repositoryPath: info.Path}, true, nil
}

func (service *Service) fastForward(executionContext context.Context, info RepositoryInfo, cleanTree cleanWorkingTree, report StepReporter) (RepositoryInfo, error) {
	notify(report, StepMerge)
	mergeResult, mergeError := service.runGit(executionContext, cleanTree.repositoryPath, gitMergeSubcommandConstant, gitFastForwardOnlyFlagConstant)
	if mergeError != nil {
		return info, StepError{Step: StepMerge, RepositoryPath: info.Path, Cause: mergeError}
	}

	info.State = service.classifier.ClassifyMerge(mergeResult.CombinedOutput)
	switch info.State {
	case RepositoryStateUnknown:
		info.Failure = unrecognizedMergeMessageConstant
		service.logUnexpectedOutput(info, StepMerge, mergeResult)
	case RepositoryStateUpdated:
		service.synchronizeSubmodules(executionContext, info, report)
		service.runPostUpdateHook(executionContext, info, report)
	}
	return info, nil
}

// synchronizeSubmodules is best effort: failures are logged and never change the state.
func (service *Service) synchronizeSubmodules(executionContext context.Context, info RepositoryInfo, report StepReporter) {
	notify(report, StepSubmodule)
	submoduleResult, submoduleError := service.runGit(executionContext, info.Path, gitSubmoduleSubcommandConstant, gitUpdateSubcommandConstant, gitInitFlagConstant, gitRecursiveFlagConstant)
	if submoduleError != nil {
		service.logger.Warn(submoduleFailureMessageConstant, zap.String(logFieldRepositoryConstant, info.Path), zap.Error(submoduleError))
		return
	}
	if submoduleResult.ExitCode != 0 {
		service.logger.Warn(submoduleFailureMessageConstant,
			zap.String(logFieldRepositoryConstant, info.Path),
			zap.Int(logFieldExitCodeConstant, submoduleResult.ExitCode),
			zap.String(logFieldOutputConstant, submoduleResult.CombinedOutput))
	}
}

// runPostUpdateHook is best effort: failures are logged and never change the state.
func (service *Service) runPostUpdateHook(executionContext context.Context, info RepositoryInfo, report StepReporter) {
	if len(info.Hook) == 0 {
		return
	}
	notify(report, StepHook)
	_, hookError := service.executor.ExecuteShell(executionContext, info.Hook, execshell.CommandDetails{
		WorkingDirectory: info.Path,
		Environment:      service.environment,
	})
	if hookError != nil {
		service.logger.Warn(hookFailureMessageConstant, zap.String(logFieldRepositoryConstant, info.Path), zap.Error(hookError))
	}
}

func (service *Service) detectUnpushed(executionContext context.Context, info RepositoryInfo, cleanTree cleanWorkingTree, report StepReporter) (RepositoryInfo, error) {
	notify(report, StepUnpushed)
	repositoryPath := cleanTree.repositoryPath

	branchResult, branchError := service.runGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant)
	if branchError != nil {
		return info, StepError{Step: StepUnpushed, RepositoryPath: info.Path, Cause: branchError}
	}
	_, branchKind := service.classifier.ClassifyBranch(branchResult.CombinedOutput)
	switch branchKind {
	case BranchKindDetached:
		info.State = RepositoryStateDetached
		return info, nil
	case BranchKindUnresolved:
		info.State = RepositoryStateUnknown
		info.Failure = branchFailureMessageConstant
		service.logUnexpectedOutput(info, StepUnpushed, branchResult)
		return info, nil
	}

	upstreamResult, upstreamError := service.runGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitSymbolicFullNameFlagConstant, gitUpstreamReferenceConstant)
	if upstreamError != nil {
		return info, StepError{Step: StepUnpushed, RepositoryPath: info.Path, Cause: upstreamError}
	}
	if _, hasUpstream := service.classifier.ClassifyUpstream(upstreamResult.CombinedOutput); !hasUpstream {
		info.State = RepositoryStateNotPushed
		return info, nil
	}

	headRevision, headResolved, headError := service.resolveRevision(executionContext, repositoryPath, gitHeadReferenceConstant)
	if headError != nil {
		return info, StepError{Step: StepUnpushed, RepositoryPath: info.Path, Cause: headError}
	}
	upstreamRevision, upstreamResolved, upstreamRevisionError := service.resolveRevision(executionContext, repositoryPath, gitUpstreamReferenceConstant)
	if upstreamRevisionError != nil {
		return info, StepError{Step: StepUnpushed, RepositoryPath: info.Path, Cause: upstreamRevisionError}
	}
	if !headResolved || !upstreamResolved {
		info.State = RepositoryStateUnknown
		info.Failure = revisionFailureMessageConstant
		return info, nil
	}

	if headRevision != upstreamRevision {
		info.State = RepositoryStateNotPushed
	}
	return info, nil
}

func (service *Service) resolveRevision(executionContext context.Context, repositoryPath string, reference string) (string, bool, error) {
	revisionResult, revisionError := service.runGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, reference)
	if revisionError != nil {
		return "", false, revisionError
	}
	revision, resolved := service.classifier.ClassifyRevision(revisionResult.CombinedOutput)
	return revision, resolved, nil
}

func (service *Service) runGit(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return service.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		Environment:      service.environment,
	})
}

func (service *Service) finish(info RepositoryInfo) RepositoryInfo {
	service.logger.Debug(repositoryClassifiedMessageConstant,
		zap.String(logFieldRepositoryConstant, info.Path),
		zap.String(logFieldStateConstant, info.State.String()))
	return info
}

func (service *Service) logUnexpectedOutput(info RepositoryInfo, step Step, result execshell.ExecutionResult) {
	service.logger.Warn(info.Failure,
		zap.String(logFieldRepositoryConstant, info.Path),
		zap.String(logFieldStepConstant, string(step)),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.String(logFieldOutputConstant, result.CombinedOutput))
}

func notify(report StepReporter, step Step) {
	if report != nil {
		report(step)
	}
}
