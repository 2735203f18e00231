package repos

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/inventory"
	"github.com/temirov/repowatch/internal/repos/dependencies"
	"github.com/temirov/repowatch/internal/repos/shared"
	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

const (
	stateLocationErrorTemplateConstant = "unable to determine state file location: %w"
	stateLoadErrorTemplateConstant     = "unable to load inventory: %w"
	stateSaveErrorTemplateConstant     = "unable to save inventory: %w"
	stateScanErrorTemplateConstant     = "unable to scan inventory: %w"
	missingDirectoryMessageConstant    = "cannot find directory"
	logFieldPathConstant               = "path"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandDependencies carries the collaborators shared by every inventory command.
// Nil collaborators are replaced by operating-system defaults.
type CommandDependencies struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() ToolsConfiguration
	FileSystem                   shared.FileSystem
	Discoverer                   shared.RepositoryDiscoverer
	GitExecutor                  shared.GitExecutor
	Clock                        shared.Clock
	Canonicalizer                *pathutils.PathCanonicalizer
}

// inventorySession is a loaded inventory bound to its store.
type inventorySession struct {
	store         *inventory.Store
	state         inventory.State
	configuration ToolsConfiguration
	logger        *zap.Logger
	fileSystem    shared.FileSystem
	canonicalizer *pathutils.PathCanonicalizer
	reporter      shared.Reporter
}

func (commandDependencies CommandDependencies) logger() *zap.Logger {
	if commandDependencies.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := commandDependencies.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (commandDependencies CommandDependencies) humanReadableLogging() bool {
	return commandDependencies.HumanReadableLoggingProvider != nil && commandDependencies.HumanReadableLoggingProvider()
}

func (commandDependencies CommandDependencies) canonicalizer() *pathutils.PathCanonicalizer {
	if commandDependencies.Canonicalizer != nil {
		return commandDependencies.Canonicalizer
	}
	return pathutils.NewPathCanonicalizer()
}

func (commandDependencies CommandDependencies) configuration(canonicalizer *pathutils.PathCanonicalizer) ToolsConfiguration {
	configuration := DefaultToolsConfiguration()
	if commandDependencies.ConfigurationProvider != nil {
		configuration = commandDependencies.ConfigurationProvider()
	}
	return configuration.sanitize(canonicalizer)
}

// openInventory resolves the configuration, builds the store and loads the persisted state.
func (commandDependencies CommandDependencies) openInventory(command *cobra.Command) (*inventorySession, error) {
	logger := commandDependencies.logger()
	canonicalizer := commandDependencies.canonicalizer()
	configuration := commandDependencies.configuration(canonicalizer)
	fileSystem := dependencies.ResolveFileSystem(commandDependencies.FileSystem)

	statePath := configuration.StateFile
	if len(statePath) == 0 {
		defaultPath, pathError := inventory.DefaultStatePath()
		if pathError != nil {
			return nil, fmt.Errorf(stateLocationErrorTemplateConstant, pathError)
		}
		statePath = defaultPath
	}

	store, storeError := inventory.NewStore(statePath, inventory.Dependencies{
		FileSystem: fileSystem,
		Discoverer: dependencies.ResolveRepositoryDiscoverer(commandDependencies.Discoverer, logger, configuration.Inventory.IgnorePatterns),
		Logger:     logger,
	})
	if storeError != nil {
		return nil, storeError
	}

	state, loadError := store.Load()
	if loadError != nil {
		return nil, fmt.Errorf(stateLoadErrorTemplateConstant, loadError)
	}

	return &inventorySession{
		store:         store,
		state:         state,
		configuration: configuration,
		logger:        logger,
		fileSystem:    fileSystem,
		canonicalizer: canonicalizer,
		reporter:      shared.NewWriterReporter(command.OutOrStdout()),
	}, nil
}

func (session *inventorySession) save() error {
	if saveError := session.store.Save(session.state); saveError != nil {
		return fmt.Errorf(stateSaveErrorTemplateConstant, saveError)
	}
	return nil
}

func (session *inventorySession) scan(command *cobra.Command) error {
	inputs := inventory.ScanInputs{
		Watched:      session.configuration.Inventory.Watched,
		Ignored:      session.configuration.Inventory.Ignored,
		Repositories: session.configuration.Inventory.Repositories,
	}
	if scanError := session.store.Scan(command.Context(), &session.state, inputs); scanError != nil {
		return fmt.Errorf(stateScanErrorTemplateConstant, scanError)
	}
	return nil
}

// existingDirectory canonicalizes argument and reports whether it names an existing directory.
// A missing directory is logged as an error and skipped, matching how vanished paths are treated elsewhere.
func (session *inventorySession) existingDirectory(argument string) (string, bool) {
	canonicalPath := session.canonicalizer.Canonicalize(argument)
	fileInfo, statError := session.fileSystem.Stat(canonicalPath)
	if statError != nil || !fileInfo.IsDir() {
		session.logger.Error(missingDirectoryMessageConstant, zap.String(logFieldPathConstant, canonicalPath))
		return canonicalPath, false
	}
	return canonicalPath, true
}

func (session *inventorySession) repositoryPaths() []string {
	paths := make([]string, 0, len(session.state.Repositories))
	for _, repository := range session.state.Repositories {
		paths = append(paths, repository.Path)
	}
	return paths
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}
