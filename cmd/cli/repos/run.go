package repos

import (
	"github.com/spf13/cobra"

	"github.com/temirov/repowatch/internal/execshell"
	"github.com/temirov/repowatch/internal/inventory"
	"github.com/temirov/repowatch/internal/orchestrator"
	"github.com/temirov/repowatch/internal/pipeline"
	"github.com/temirov/repowatch/internal/repos/dependencies"
	"github.com/temirov/repowatch/internal/ui"
	flagutils "github.com/temirov/repowatch/internal/utils/flags"
)

const (
	checkUseConstant              = "check"
	checkShortDescriptionConstant = "Report stashes, local changes and unpushed commits of every repository"
	checkLongDescriptionConstant  = "check scans the inventory and inspects every repository without contacting remotes. Repositories that need no attention are hidden unless --all is given."
	updateUseConstant             = "update"
	updateShortDescription        = "Fetch and fast-forward every repository"
	updateLongDescription         = "update scans the inventory, fetches every repository, fast-forwards clean working trees, synchronizes submodules and runs post-update hooks."
)

// taskSelector picks the pipeline a command runs for each repository.
type taskSelector func(service *pipeline.Service) orchestrator.TaskRunner

// CheckCommandBuilder assembles the check command.
type CheckCommandBuilder struct {
	CommandDependencies
}

// Build constructs the check command.
func (builder *CheckCommandBuilder) Build() (*cobra.Command, error) {
	return buildRunCommand(builder.CommandDependencies, checkUseConstant, checkShortDescriptionConstant, checkLongDescriptionConstant, func(service *pipeline.Service) orchestrator.TaskRunner {
		return service.Check
	}), nil
}

// UpdateCommandBuilder assembles the update command.
type UpdateCommandBuilder struct {
	CommandDependencies
}

// Build constructs the update command.
func (builder *UpdateCommandBuilder) Build() (*cobra.Command, error) {
	return buildRunCommand(builder.CommandDependencies, updateUseConstant, updateShortDescription, updateLongDescription, func(service *pipeline.Service) orchestrator.TaskRunner {
		return service.Update
	}), nil
}

func buildRunCommand(commandDependencies CommandDependencies, use string, short string, long string, selectTask taskSelector) *cobra.Command {
	command := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
	}
	executionFlags := flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{Parallel: true})
	command.RunE = func(command *cobra.Command, arguments []string) error {
		return runRepositories(command, commandDependencies, executionFlags, selectTask)
	}
	return command
}

func runRepositories(command *cobra.Command, commandDependencies CommandDependencies, executionFlags *flagutils.ExecutionFlagValues, selectTask taskSelector) error {
	session, sessionError := commandDependencies.openInventory(command)
	if sessionError != nil {
		return sessionError
	}
	execution := executionFlags.Resolve(command, flagutils.ExecutionDefaults{
		ShowAll:  session.configuration.Execution.ShowAll,
		Parallel: session.configuration.Execution.Parallel,
		Threads:  session.configuration.Execution.Threads,
	})

	if scanError := session.scan(command); scanError != nil {
		return scanError
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(commandDependencies.GitExecutor, session.logger, commandDependencies.humanReadableLogging())
	if executorError != nil {
		return executorError
	}
	service, serviceError := pipeline.NewService(pipeline.Dependencies{
		GitExecutor: gitExecutor,
		Classifier:  pipeline.GitOutputClassifier{},
		Environment: execshell.CaptureEnvironment(),
		FileSystem:  session.fileSystem,
		Logger:      session.logger,
	})
	if serviceError != nil {
		return serviceError
	}

	runner, runnerError := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Runner:   selectTask(service),
		Recorder: inventory.NewDurationRecorder(session.store, &session.state),
		Observer: ui.NewProgressReporter(command.ErrOrStderr(), session.logger),
		Clock:    dependencies.ResolveClock(commandDependencies.Clock),
		Logger:   session.logger,
	})
	if runnerError != nil {
		return runnerError
	}

	options := orchestrator.RunOptions{Mode: orchestrator.ModeParallel, Pool: orchestrator.NewWorkerPool(execution.Threads)}
	if !execution.Parallel {
		options.Mode = orchestrator.ModeSequential
	}

	infos := applyConfiguredHooks(session.state.RepositoryInfos(), session.configuration.Inventory.Hooks)
	results, runError := runner.Run(command.Context(), infos, options)
	if runError != nil {
		return runError
	}

	return ui.NewStatusTable(execution.ShowAll).Write(command.OutOrStdout(), results)
}

// applyConfiguredHooks fills in hooks from configuration for repositories without a stored hook.
func applyConfiguredHooks(infos []pipeline.RepositoryInfo, hooks []HookConfiguration) []pipeline.RepositoryInfo {
	if len(hooks) == 0 {
		return infos
	}
	configured := make(map[string]string, len(hooks))
	for _, hook := range hooks {
		configured[hook.Path] = hook.Command
	}
	for index := range infos {
		if len(infos[index].Hook) > 0 {
			continue
		}
		if command, found := configured[infos[index].Path]; found {
			infos[index].Hook = command
		}
	}
	return infos
}
