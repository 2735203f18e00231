// Package cli constructs the repowatch command-line interface. It wires the
// Cobra command hierarchy to the configuration loader and the zap logger,
// and registers the inventory, hooks, check and update commands.
package cli
