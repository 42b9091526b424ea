package git

import (
	"os/exec"
	"strings"
	"sync"
)

// MockCommandExecutor is a mock of the CommandExecutor interface that records
// every command and can be scripted per invocation.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Commands holds every command passed to the executor, in order
	Commands []*exec.Cmd

	// Output is returned by ExecuteWithOutput when no hook is set
	Output string

	// Function hooks for customizing behavior
	ExecuteFn           func(cmd *exec.Cmd) error
	ExecuteWithOutputFn func(cmd *exec.Cmd) (string, error)
}

// Execute implements the CommandExecutor interface
func (m *MockCommandExecutor) Execute(cmd *exec.Cmd) error {
	m.record(cmd)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(cmd)
	}
	return nil
}

// ExecuteWithOutput implements the CommandExecutor interface
func (m *MockCommandExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	m.record(cmd)
	if m.ExecuteWithOutputFn != nil {
		return m.ExecuteWithOutputFn(cmd)
	}
	if m.ExecuteFn != nil {
		return "", m.ExecuteFn(cmd)
	}
	return m.Output, nil
}

// Lines returns each recorded command as a space-joined argument list with
// the executable and any leading "-C <dir>" removed.
func (m *MockCommandExecutor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.Commands))
	for _, cmd := range m.Commands {
		lines = append(lines, CommandLine(cmd))
	}
	return lines
}

func (m *MockCommandExecutor) record(cmd *exec.Cmd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, cmd)
}

// CommandLine renders cmd the way it would be typed inside the repository.
func CommandLine(cmd *exec.Cmd) string {
	op, args := describe(cmd.Args)
	return strings.TrimSpace(op + " " + strings.Join(args, " "))
}
