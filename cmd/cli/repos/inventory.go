package repos

import (
	"fmt"
	"slices"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/utils"
)

const (
	addUseConstant                   = "add [repository ...]"
	addShortDescriptionConstant      = "Add repositories to the inventory, or list them when no path is given"
	removeUseConstant                = "remove repository [repository ...]"
	removeShortDescriptionConstant   = "Forget repositories"
	watchUseConstant                 = "watch [directory ...]"
	watchShortDescriptionConstant    = "Watch directories for repositories, or list watched directories when none is given"
	unwatchUseConstant               = "unwatch directory [directory ...]"
	unwatchShortDescriptionConstant  = "Stop watching directories and forget the repositories found in them"
	ignoreUseConstant                = "ignore directory [directory ...]"
	ignoreShortDescriptionConstant   = "Exclude directories from discovery"
	infoUseConstant                  = "info"
	infoShortDescriptionConstant     = "Print the inventory and configuration in use"
	repositoriesHeadingConstant      = "Watched repositories:"
	watchedHeadingConstant           = "Watched folders:"
	ignoredHeadingConstant           = "Ignored folders:"
	keysHeadingConstant              = "Known keys:"
	knownRepositoriesHeadingConstant = "Known repositories:"
	repositoryAddedTemplateConstant  = "Added repository: %s\n"
	repositoryForgottenTemplate      = "Forgetting about repository: %s\n"
	folderWatchedTemplateConstant    = "Watching folder: %s\n"
	folderUnwatchedTemplateConstant  = "Unwatching folder: %s\n"
	folderIgnoredTemplateConstant    = "Ignoring directory: %s\n"
	configurationFileTemplate        = "Configuration file: %s\n"
	stateFileTemplateConstant        = "State file: %s\n"
	keyEntryTemplateConstant         = "%s (%s)"
	optionalKeyEntryTemplateConstant = "%s (%s, optional)"
	noConfigurationFileConstant      = "none"
	repositoryUnknownMessageConstant = "repository has not been added"
	folderNotWatchedMessageConstant  = "folder is not watched"
	folderAlreadyIgnoredMessage      = "folder is already ignored"
	sectionSeparatorConstant         = "\n"
)

// AddCommandBuilder assembles the add command.
type AddCommandBuilder struct {
	CommandDependencies
}

// Build constructs the add command.
func (builder *AddCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   addUseConstant,
		Short: addShortDescriptionConstant,
		RunE:  builder.run,
	}, nil
}

func (builder *AddCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}
	if len(arguments) == 0 {
		session.reporter.PrintList(repositoriesHeadingConstant, session.repositoryPaths())
		return nil
	}

	for _, argument := range arguments {
		repositoryPath, exists := session.existingDirectory(argument)
		if !exists {
			continue
		}
		if session.state.AddRepository(repositoryPath) {
			session.reporter.Printf(repositoryAddedTemplateConstant, repositoryPath)
		}
	}
	return session.save()
}

// RemoveCommandBuilder assembles the remove command.
type RemoveCommandBuilder struct {
	CommandDependencies
}

// Build constructs the remove command.
func (builder *RemoveCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   removeUseConstant,
		Short: removeShortDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}, nil
}

func (builder *RemoveCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	for _, argument := range arguments {
		repositoryPath := session.canonicalizer.Canonicalize(argument)
		if !session.state.RemoveRepository(repositoryPath) {
			session.logger.Error(repositoryUnknownMessageConstant, zap.String(logFieldPathConstant, repositoryPath))
			continue
		}
		session.reporter.Printf(repositoryForgottenTemplate, repositoryPath)
	}
	return session.save()
}

// WatchCommandBuilder assembles the watch command.
type WatchCommandBuilder struct {
	CommandDependencies
}

// Build constructs the watch command.
func (builder *WatchCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   watchUseConstant,
		Short: watchShortDescriptionConstant,
		RunE:  builder.run,
	}, nil
}

func (builder *WatchCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}
	if len(arguments) == 0 {
		session.reporter.PrintList(watchedHeadingConstant, session.state.Watched)
		return nil
	}

	for _, argument := range arguments {
		directoryPath, exists := session.existingDirectory(argument)
		if !exists {
			continue
		}
		if session.state.AddWatched(directoryPath) {
			session.reporter.Printf(folderWatchedTemplateConstant, directoryPath)
		}
	}
	return session.scan(command)
}

// UnwatchCommandBuilder assembles the unwatch command.
type UnwatchCommandBuilder struct {
	CommandDependencies
}

// Build constructs the unwatch command.
func (builder *UnwatchCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   unwatchUseConstant,
		Short: unwatchShortDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}, nil
}

func (builder *UnwatchCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	for _, argument := range arguments {
		directoryPath := session.canonicalizer.Canonicalize(argument)
		forgotten, watched := session.state.RemoveWatched(directoryPath)
		if !watched {
			session.logger.Error(folderNotWatchedMessageConstant, zap.String(logFieldPathConstant, directoryPath))
			continue
		}
		session.reporter.Printf(folderUnwatchedTemplateConstant, directoryPath)
		for _, repositoryPath := range forgotten {
			session.reporter.Printf(repositoryForgottenTemplate, repositoryPath)
		}
	}
	return session.save()
}

// IgnoreCommandBuilder assembles the ignore command.
type IgnoreCommandBuilder struct {
	CommandDependencies
}

// Build constructs the ignore command.
func (builder *IgnoreCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   ignoreUseConstant,
		Short: ignoreShortDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}, nil
}

func (builder *IgnoreCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	for _, argument := range arguments {
		directoryPath, exists := session.existingDirectory(argument)
		if !exists {
			continue
		}
		if slices.Contains(session.state.Ignored, directoryPath) {
			session.logger.Error(folderAlreadyIgnoredMessage, zap.String(logFieldPathConstant, directoryPath))
			continue
		}
		for _, repositoryPath := range session.state.AddIgnored(directoryPath) {
			session.reporter.Printf(repositoryForgottenTemplate, repositoryPath)
		}
		session.reporter.Printf(folderIgnoredTemplateConstant, directoryPath)
	}
	return session.save()
}

// InfoCommandBuilder assembles the info command.
type InfoCommandBuilder struct {
	CommandDependencies
	ContextAccessor utils.CommandContextAccessor
}

// Build constructs the info command.
func (builder *InfoCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   infoUseConstant,
		Short: infoShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *InfoCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	configurationFile, configurationKnown := builder.ContextAccessor.ConfigurationFilePath(command.Context())
	if !configurationKnown || len(configurationFile) == 0 {
		configurationFile = noConfigurationFileConstant
	}
	session.reporter.Printf(configurationFileTemplate, configurationFile)
	session.reporter.Printf(stateFileTemplateConstant, session.store.Path())

	printSection(session, watchedHeadingConstant, mergePaths(session.configuration.Inventory.Watched, session.state.Watched))
	printSection(session, ignoredHeadingConstant, mergePaths(session.configuration.Inventory.Ignored, session.state.Ignored))

	keyEntries := make([]string, 0, len(session.configuration.Inventory.Keys))
	for _, key := range session.configuration.Inventory.Keys {
		template := keyEntryTemplateConstant
		if key.Optional {
			template = optionalKeyEntryTemplateConstant
		}
		keyEntries = append(keyEntries, fmt.Sprintf(template, key.Name, key.Path))
	}
	printSection(session, keysHeadingConstant, keyEntries)
	printSection(session, knownRepositoriesHeadingConstant, session.repositoryPaths())
	return nil
}

func printSection(session *inventorySession, heading string, entries []string) {
	if len(entries) == 0 {
		return
	}
	session.reporter.Printf(sectionSeparatorConstant)
	session.reporter.PrintList(heading, entries)
}

func mergePaths(configured []string, persisted []string) []string {
	unique := make([]string, 0, len(configured)+len(persisted))
	for _, path := range append(append([]string(nil), configured...), persisted...) {
		if !slices.Contains(unique, path) {
			unique = append(unique, path)
		}
	}
	sort.Strings(unique)
	return unique
}
