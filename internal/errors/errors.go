package errors

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors that can be used with errors.Is() for error type checking
var (
	// ErrNotGitRepository indicates the target path is not a git repository
	ErrNotGitRepository = errors.New("not a git repository")

	// ErrMissingTool indicates a required executable is not on PATH
	ErrMissingTool = errors.New("required tool not found")

	// ErrMissingRemote indicates the upstream remote is not configured
	ErrMissingRemote = errors.New("upstream remote not configured")

	// ErrDirtyWorktree indicates tracked files have uncommitted changes
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

	// ErrGitOperationFailed indicates a git command returned an error
	ErrGitOperationFailed = errors.New("git operation failed")

	// ErrNetwork indicates a fetch or clone could not reach the remote
	ErrNetwork = errors.New("network operation failed")

	// ErrNoUpstreamHistory indicates the upstream log has no commits under the sub-path
	ErrNoUpstreamHistory = errors.New("no upstream history for path")

	// ErrReplayConflict indicates a cherry-pick stopped on a conflict
	ErrReplayConflict = errors.New("replay conflict")

	// ErrInvalidConfiguration indicates an invalid or conflicting user configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidFlag indicates a command-line flag could not be parsed
	ErrInvalidFlag = errors.New("invalid flag")

	// ErrLockAcquisitionFailure indicates a lock file could not be acquired
	ErrLockAcquisitionFailure = errors.New("failed to acquire lock")

	// ErrAlreadyRunning indicates another subsync run holds the repository
	ErrAlreadyRunning = errors.New("another subsync run is already using this repository")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Errorf creates a new formatted error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Wrap wraps an error with a message for better context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message for better context.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether target is in err's chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GitError represents an error that occurred during a Git operation.
// It captures the command details, underlying error, and command output.
type GitError struct {
	Operation string
	Args      []string
	Err       error
	Output    string
}

// Error implements the error interface.
func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed", e.Operation)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

// NewGitError creates a new GitError with the given parameters.
func NewGitError(operation string, args []string, err error, output string) *GitError {
	return &GitError{
		Operation: operation,
		Args:      args,
		Err:       err,
		Output:    output,
	}
}

// networkPatterns match the stderr git prints when a transport fails.
var networkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)could not resolve host`),
	regexp.MustCompile(`(?i)could not read from remote repository`),
	regexp.MustCompile(`(?i)connection (refused|timed out|reset)`),
	regexp.MustCompile(`(?i)could not read username`),
	regexp.MustCompile(`(?i)authentication failed`),
	regexp.MustCompile(`(?i)repository '.*' not found`),
	regexp.MustCompile(`(?i)unable to access '.*'`),
	regexp.MustCompile(`(?i)the remote end hung up unexpectedly`),
}

// ClassifyGitError marks a failed fetch or clone as a network failure when
// its captured stderr looks like a transport problem. Other errors are
// returned unchanged.
func ClassifyGitError(err error) error {
	if err == nil || errors.Is(err, ErrNetwork) {
		return err
	}
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return err
	}
	for _, p := range networkPatterns {
		if p.MatchString(gitErr.Output) {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}
	return err
}

// LockError represents an error that occurred when interacting with file locks.
type LockError struct {
	LockFile string
	PID      int
	Err      error
}

// Error implements the error interface with details about the lock file and process.
func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lock error with file %s (PID: %d): %v", e.LockFile, e.PID, e.Err)
	}
	return fmt.Sprintf("lock error with file %s: %v", e.LockFile, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *LockError) Unwrap() error {
	return e.Err
}

// NewLockError creates a new LockError with the given parameters.
func NewLockError(lockFile string, pid int, err error) *LockError {
	return &LockError{
		LockFile: lockFile,
		PID:      pid,
		Err:      err,
	}
}

// ConfigError represents an error in the application configuration.
type ConfigError struct {
	Parameter string
	Value     interface{}
	Err       error
}

// Error implements the error interface with details about the invalid configuration.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("configuration error for %s = %v: %v", e.Parameter, e.Value, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Parameter, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError with the given parameters.
func NewConfigError(parameter string, value interface{}, err error) *ConfigError {
	return &ConfigError{
		Parameter: parameter,
		Value:     value,
		Err:       err,
	}
}

// ConflictError is returned when replaying a preserved commit fails.
// The downstream branch is left exactly where the failing cherry-pick put it.
type ConflictError struct {
	// Commit is the identifier of the commit that failed to apply
	Commit string

	// Summary is the one-line summary of that commit
	Summary string

	// Branch is the downstream branch being rewritten
	Branch string

	// Backup names the branch holding the pre-run downstream tip
	Backup string

	// Remaining lists the commits that were not attempted yet, oldest first
	Remaining []string

	Err error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("replaying %s (%s) onto %s failed", shortID(e.Commit), e.Summary, e.Branch)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns both the replay sentinel and the underlying git error.
func (e *ConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReplayConflict}
	}
	return []error{ErrReplayConflict, e.Err}
}

// NewConflictError creates a new ConflictError.
func NewConflictError(commit, summary, branch, backup string, remaining []string, err error) *ConflictError {
	return &ConflictError{
		Commit:    commit,
		Summary:   summary,
		Branch:    branch,
		Backup:    backup,
		Remaining: remaining,
		Err:       err,
	}
}

// ErrorKind groups errors into the categories reported to the operator.
type ErrorKind string

const (
	KindPrecondition ErrorKind = "precondition"
	KindNetwork      ErrorKind = "network"
	KindConflict     ErrorKind = "conflict"
	KindConfig       ErrorKind = "config"
	KindLock         ErrorKind = "lock"
	KindGit          ErrorKind = "git"
	KindUnknown      ErrorKind = "unknown"
)

// Kind reports the category of err. Checks run from most to least specific.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReplayConflict):
		return KindConflict
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrMissingTool), errors.Is(err, ErrMissingRemote), errors.Is(err, ErrNotGitRepository),
		errors.Is(err, ErrDirtyWorktree):
		return KindPrecondition
	case errors.Is(err, ErrInvalidConfiguration), errors.Is(err, ErrInvalidFlag):
		return KindConfig
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrLockAcquisitionFailure):
		return KindLock
	case errors.Is(err, ErrGitOperationFailed), errors.Is(err, ErrNoUpstreamHistory):
		return KindGit
	}
	return KindUnknown
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
