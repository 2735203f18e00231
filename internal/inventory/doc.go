// Package inventory owns the persisted list of watched directories, ignored
// directories and known repositories.
//
// Store loads and saves the YAML state file under a file lock and reconciles
// it with the filesystem through Scan. State exposes the mutations used by the
// command line and produces the longest-first work order consumed by the
// orchestrator.
package inventory
