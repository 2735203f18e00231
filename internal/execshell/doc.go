// Package execshell runs external processes on behalf of repowatch.
//
// ShellExecutor launches git and sh through a CommandRunner, captures the
// merged output of every invocation, and reports command lifecycle events
// either as structured zap fields or as human readable sentences built by
// CommandMessageFormatter. A non-zero exit status of git is data, not an
// error: only a failure to launch the process is reported as an error.
package execshell
