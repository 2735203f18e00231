package repos

import (
	"strings"

	pathutils "github.com/temirov/repowatch/internal/utils/path"
)

const (
	inventoryConfigurationKeyConstant      = "inventory"
	executionConfigurationKeyConstant      = "execution"
	configurationWatchedKeyConstant        = "watched"
	configurationIgnoredKeyConstant        = "ignored"
	configurationIgnorePatternsKeyConstant = "ignore_patterns"
	configurationRepositoriesKeyConstant   = "repositories"
	configurationKeysKeyConstant           = "keys"
	configurationHooksKeyConstant          = "hooks"
	configurationParallelKeyConstant       = "parallel"
	configurationThreadsKeyConstant        = "threads"
	configurationShowAllKeyConstant        = "show_all"
	configurationKeySeparatorConstant      = "."
)

// ToolsConfiguration groups the configuration consumed by inventory and run commands.
type ToolsConfiguration struct {
	// StateFile overrides the default inventory location when set.
	StateFile string
	Inventory InventoryConfiguration
	Execution ExecutionConfiguration
}

// InventoryConfiguration describes the inventory section of the configuration file.
type InventoryConfiguration struct {
	Watched        []string            `mapstructure:"watched"`
	Ignored        []string            `mapstructure:"ignored"`
	IgnorePatterns []string            `mapstructure:"ignore_patterns"`
	Repositories   []string            `mapstructure:"repositories"`
	Keys           []KeyConfiguration  `mapstructure:"keys"`
	Hooks          []HookConfiguration `mapstructure:"hooks"`
}

// KeyConfiguration names an SSH key. Keys are listed by info only.
type KeyConfiguration struct {
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"`
	Optional bool   `mapstructure:"optional"`
}

// HookConfiguration assigns a post-update command to a repository unless the inventory stores its own.
type HookConfiguration struct {
	Path    string `mapstructure:"path"`
	Command string `mapstructure:"command"`
}

// ExecutionConfiguration describes how check and update dispatch work.
type ExecutionConfiguration struct {
	Parallel bool `mapstructure:"parallel"`
	Threads  int  `mapstructure:"threads"`
	ShowAll  bool `mapstructure:"show_all"`
}

// DefaultToolsConfiguration returns baseline configuration values.
func DefaultToolsConfiguration() ToolsConfiguration {
	return ToolsConfiguration{
		Inventory: InventoryConfiguration{
			Watched:        []string{},
			Ignored:        []string{},
			IgnorePatterns: []string{},
			Repositories:   []string{},
		},
		Execution: ExecutionConfiguration{
			Parallel: true,
			Threads:  0,
			ShowAll:  false,
		},
	}
}

// DefaultConfigurationValues produces Viper defaults for the inventory and execution sections.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultToolsConfiguration()
	inventoryKey := func(name string) string {
		return inventoryConfigurationKeyConstant + configurationKeySeparatorConstant + name
	}
	executionKey := func(name string) string {
		return executionConfigurationKeyConstant + configurationKeySeparatorConstant + name
	}
	return map[string]any{
		inventoryKey(configurationWatchedKeyConstant):        defaults.Inventory.Watched,
		inventoryKey(configurationIgnoredKeyConstant):        defaults.Inventory.Ignored,
		inventoryKey(configurationIgnorePatternsKeyConstant): defaults.Inventory.IgnorePatterns,
		inventoryKey(configurationRepositoriesKeyConstant):   defaults.Inventory.Repositories,
		inventoryKey(configurationKeysKeyConstant):           []map[string]any{},
		inventoryKey(configurationHooksKeyConstant):          []map[string]any{},
		executionKey(configurationParallelKeyConstant):       defaults.Execution.Parallel,
		executionKey(configurationThreadsKeyConstant):        defaults.Execution.Threads,
		executionKey(configurationShowAllKeyConstant):        defaults.Execution.ShowAll,
	}
}

// sanitize canonicalizes every configured path and drops blank entries.
func (configuration ToolsConfiguration) sanitize(canonicalizer *pathutils.PathCanonicalizer) ToolsConfiguration {
	sanitized := configuration
	sanitized.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(sanitized.StateFile) > 0 {
		sanitized.StateFile = canonicalizer.Canonicalize(sanitized.StateFile)
	}
	sanitized.Inventory.Watched = canonicalizer.CanonicalizeAll(configuration.Inventory.Watched)
	sanitized.Inventory.Ignored = canonicalizer.CanonicalizeAll(configuration.Inventory.Ignored)
	sanitized.Inventory.Repositories = canonicalizer.CanonicalizeAll(configuration.Inventory.Repositories)
	sanitized.Inventory.IgnorePatterns = trimValues(configuration.Inventory.IgnorePatterns)

	sanitized.Inventory.Keys = make([]KeyConfiguration, 0, len(configuration.Inventory.Keys))
	for _, key := range configuration.Inventory.Keys {
		key.Name = strings.TrimSpace(key.Name)
		key.Path = canonicalizer.Canonicalize(key.Path)
		if len(key.Name) == 0 && len(key.Path) == 0 {
			continue
		}
		sanitized.Inventory.Keys = append(sanitized.Inventory.Keys, key)
	}

	sanitized.Inventory.Hooks = make([]HookConfiguration, 0, len(configuration.Inventory.Hooks))
	for _, hook := range configuration.Inventory.Hooks {
		hook.Path = canonicalizer.Canonicalize(hook.Path)
		hook.Command = strings.TrimSpace(hook.Command)
		if len(hook.Path) == 0 || len(hook.Command) == 0 {
			continue
		}
		sanitized.Inventory.Hooks = append(sanitized.Inventory.Hooks, hook)
	}
	return sanitized
}

func trimValues(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		candidate := strings.TrimSpace(value)
		if len(candidate) > 0 {
			trimmed = append(trimmed, candidate)
		}
	}
	return trimmed
}
