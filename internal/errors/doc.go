// Package errors provides error handling utilities for the subsync application.
//
// It defines the sentinel errors every stage reports through, a handful of
// typed errors carrying operation context, and the helpers that sort a
// failure into the category printed to the operator.
//
// # Sentinels
//
// Check for a category with errors.Is:
//
//	if errors.Is(err, errors.ErrNetwork) {
//	    // fetch or clone could not reach the remote
//	}
//
// # Typed errors
//
//   - GitError: a failed git invocation with its captured stderr
//   - ConfigError: an invalid configuration value
//   - LockError: the repository lock could not be taken or released
//   - ConflictError: a preserved commit could not be replayed; carries the
//     backup branch and the commits still waiting to be applied
//
// ClassifyGitError inspects the stderr of a GitError and tags transport
// failures with ErrNetwork. Kind maps any error onto an ErrorKind.
package errors
