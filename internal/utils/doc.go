// Package utils exposes the configuration, logging and command-context helpers shared by the CLI.
package utils
