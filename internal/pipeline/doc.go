// Package pipeline classifies a single repository by driving git through a
// fixed sequence of steps.
//
// The check pipeline counts stash entries, inspects the working tree and
// compares the current branch with its upstream. The update pipeline adds a
// fetch of all remotes and a fast-forward merge in between. Each step reads
// the textual output of git through an OutputClassifier, and every run ends
// in exactly one terminal RepositoryState.
package pipeline
