package repos

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hooksUseConstant                = "hooks"
	hooksShortDescriptionConstant   = "Manage commands run after a repository was updated"
	hooksAddUseConstant             = "add repository command..."
	hooksAddShortDescription        = "Run command in repository after every successful update"
	hooksListUseConstant            = "list"
	hooksListShortDescription       = "List post-update commands"
	hooksRemoveUseConstant          = "remove repository"
	hooksRemoveShortDescription     = "Remove the post-update command of a repository"
	hookCommandSeparatorConstant    = " "
	hookEntryTemplateConstant       = "%s: %s\n"
	hookAddedTemplateConstant       = "Hook set for %s\n"
	hookRemovedTemplateConstant     = "Hook removed for %s\n"
	unknownRepositoryTemplate       = "unknown repository at path %s: %w"
	emptyHookCommandMessageConstant = "hook command must not be empty"
)

var errEmptyHookCommand = errors.New(emptyHookCommandMessageConstant)

// HooksCommandBuilder assembles the hooks command group.
type HooksCommandBuilder struct {
	CommandDependencies
}

// Build constructs the hooks command with its add, list and remove subcommands.
func (builder *HooksCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   hooksUseConstant,
		Short: hooksShortDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return displayCommandHelp(command)
		},
	}

	command.AddCommand(&cobra.Command{
		Use:   hooksAddUseConstant,
		Short: hooksAddShortDescription,
		Args:  cobra.MinimumNArgs(2),
		RunE:  builder.runAdd,
	})
	command.AddCommand(&cobra.Command{
		Use:   hooksListUseConstant,
		Short: hooksListShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.runList,
	})
	command.AddCommand(&cobra.Command{
		Use:   hooksRemoveUseConstant,
		Short: hooksRemoveShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runRemove,
	})
	return command, nil
}

func (builder *HooksCommandBuilder) runAdd(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	hookCommand := strings.TrimSpace(strings.Join(arguments[1:], hookCommandSeparatorConstant))
	if len(hookCommand) == 0 {
		return errEmptyHookCommand
	}
	repositoryPath := session.canonicalizer.Canonicalize(arguments[0])
	if hookError := session.state.SetHook(repositoryPath, hookCommand); hookError != nil {
		return fmt.Errorf(unknownRepositoryTemplate, repositoryPath, hookError)
	}
	if saveError := session.save(); saveError != nil {
		return saveError
	}
	session.reporter.Printf(hookAddedTemplateConstant, repositoryPath)
	return nil
}

func (builder *HooksCommandBuilder) runList(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}
	for _, repository := range session.state.Repositories {
		if len(repository.Hook) == 0 {
			continue
		}
		session.reporter.Printf(hookEntryTemplateConstant, repository.Path, repository.Hook)
	}
	return nil
}

func (builder *HooksCommandBuilder) runRemove(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openInventory(command)
	if sessionError != nil {
		return sessionError
	}

	repositoryPath := session.canonicalizer.Canonicalize(arguments[0])
	if hookError := session.state.ClearHook(repositoryPath); hookError != nil {
		return fmt.Errorf(unknownRepositoryTemplate, repositoryPath, hookError)
	}
	if saveError := session.save(); saveError != nil {
		return saveError
	}
	session.reporter.Printf(hookRemovedTemplateConstant, repositoryPath)
	return nil
}
