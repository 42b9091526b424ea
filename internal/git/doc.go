// Package git provides the repository operations used by subsync.
//
// # Core Components
//
// - Repo: the downstream repository. Log, ref, remote and branch-creation
// queries are answered in-process with go-git; fetch, checkout, hard reset,
// cherry-pick and range queries run the git executable through a
// CommandExecutor.
// - CommandExecutor: interface for running external commands, with
// ExecExecutor as the os/exec implementation and MockCommandExecutor for tests.
// - Materializer: clones the upstream branch into a scratch directory, runs
// the history filter tool there and fetches the result into the downstream
// repository under a temporary remote.
// - Workspace: owns the scratch directory and the temporary remote; Release
// removes both and is safe to call more than once.
//
// # Errors
//
// Failed commands are reported as *errors.GitError carrying the captured
// stderr. Fetch and clone failures are passed through errors.ClassifyGitError
// so transport problems satisfy errors.Is(err, errors.ErrNetwork).
//
// # Concurrency Model
//
// A Repo holds no state besides its path and executor and reopens the
// repository on every go-git query, so refs written by git child processes
// are always visible. Callers are expected to drive one repository from a
// single goroutine.
//
// # Dependencies
//
// This package requires a git executable in PATH for the mutating
// operations and the configured filter tool (git-filter-repo by default)
// for Materialize.
package git
