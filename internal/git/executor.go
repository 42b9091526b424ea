package git

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// Execute runs a command, discarding its stdout
	Execute(cmd *exec.Cmd) error

	// ExecuteWithOutput runs a command and returns its stdout
	ExecuteWithOutput(cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// Execute implements CommandExecutor.Execute
func (e *ExecExecutor) Execute(cmd *exec.Cmd) error {
	_, err := e.ExecuteWithOutput(cmd)
	return err
}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput.
// On failure the captured stderr is attached to the returned GitError so that
// callers can classify it.
func (e *ExecExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), newCommandError(cmd, err, stderr.String())
	}
	return stdout.String(), nil
}

// InterruptGrace is how long an interrupted git child may take to clean up
// its lock files before it is killed.
const InterruptGrace = 10 * time.Second

// interruptOnCancel makes a cancelled context send SIGINT instead of SIGKILL,
// so git removes .git/index.lock and other lock files before exiting.
func interruptOnCancel(cmd *exec.Cmd) *exec.Cmd {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = InterruptGrace
	return cmd
}

// newCommandError builds a GitError naming the git subcommand (or the tool)
// that failed.
func newCommandError(cmd *exec.Cmd, err error, stderr string) error {
	operation, args := describe(cmd.Args)
	wrappedErr := subsyncErrors.Wrap(subsyncErrors.ErrGitOperationFailed, err.Error())
	return subsyncErrors.NewGitError(operation, args, wrappedErr, stderr)
}

// describe strips the executable and any leading "-C <dir>" from argv.
func describe(argv []string) (string, []string) {
	if len(argv) == 0 {
		return "", nil
	}
	args := argv[1:]
	if len(args) >= 2 && args[0] == "-C" {
		args = args[2:]
	}
	if len(args) == 0 {
		return argv[0], nil
	}
	if filepath.Base(argv[0]) != "git" {
		return argv[0], args
	}
	return args[0], args[1:]
}
