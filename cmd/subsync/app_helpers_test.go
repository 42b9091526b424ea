package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/bashhack/subsync/internal/config"
	"github.com/bashhack/subsync/internal/sync"
)

// MockSyncer implements the Syncer interface for testing
type MockSyncer struct {
	Report    *sync.Report
	RunErr    error
	RunCalled bool
}

func (m *MockSyncer) Run(context.Context) (*sync.Report, error) {
	m.RunCalled = true
	return m.Report, m.RunErr
}

// MockLocker implements the Locker interface for testing
type MockLocker struct {
	AcquireErr    error
	ReleaseErr    error
	AcquireCalled bool
	ReleaseCalled bool
}

func (m *MockLocker) Acquire() error {
	m.AcquireCalled = true
	return m.AcquireErr
}

func (m *MockLocker) Release() error {
	m.ReleaseCalled = true
	return m.ReleaseErr
}

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	Messages    []string
	ErrorCalled bool
	CloseCalled bool
	CloseErr    error
}

func (m *MockLogger) add(format string, args ...interface{}) {
	m.Messages = append(m.Messages, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...interface{})          { m.add(format, args...) }
func (m *MockLogger) Warning(format string, args ...interface{})       { m.add(format, args...) }
func (m *MockLogger) InfoToUser(format string, args ...interface{})    { m.add(format, args...) }
func (m *MockLogger) WarningToUser(format string, args ...interface{}) { m.add(format, args...) }
func (m *MockLogger) Success(format string, args ...interface{})       { m.add(format, args...) }
func (m *MockLogger) Step(format string, args ...interface{})          { m.add(format, args...) }
func (m *MockLogger) StatusMessage(format string, args ...interface{}) { m.add(format, args...) }

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.ErrorCalled = true
	m.add(format, args...)
}

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// Joined returns every logged line separated by newlines.
func (m *MockLogger) Joined() string {
	var buf bytes.Buffer
	for _, msg := range m.Messages {
		buf.WriteString(msg)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// NewTestApp creates an App writing to buffers, with every dependency mocked
// and the repository pointed at a temporary directory.
func NewTestApp(t *testing.T) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	t.Setenv("XDG_DATA_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cfg := config.New()
	cfg.RepoPath = t.TempDir()

	app := NewApp(AppOptions{
		Config: cfg,
		Logger: &MockLogger{},
		Locker: &MockLocker{},
		Syncer: &MockSyncer{},
		Stdout: &stdout,
		Stderr: &stderr,
		Exit:   func(int) {},
		ExecLookPath: func(file string) (string, error) {
			return "/usr/bin/" + file, nil
		},
		IsRepository: func(string) (bool, error) { return true, nil },
	})
	return app, &stdout, &stderr
}
