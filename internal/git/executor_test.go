package git

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptOnCancelLetsChildCleanUp(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The trap stands in for git's lock file cleanup handler.
	cmd := interruptOnCancel(exec.CommandContext(ctx, "sh", "-c", "trap 'exit 3' INT; sleep 5 & wait $!"))
	require.NoError(t, cmd.Start())

	time.Sleep(300 * time.Millisecond)
	cancel()

	require.Error(t, cmd.Wait())
	assert.Equal(t, 3, cmd.ProcessState.ExitCode(), "child should exit through its SIGINT handler, not SIGKILL")
}

func TestDescribe(t *testing.T) {
	tests := map[string]struct {
		argv     []string
		wantOp   string
		wantArgs []string
	}{
		"git with dir": {
			argv:     []string{"git", "-C", "/repo", "reset", "--hard", "abc"},
			wantOp:   "reset",
			wantArgs: []string{"--hard", "abc"},
		},
		"other tool": {
			argv:     []string{"git-filter-repo", "--path", "CryptoPkg", "--force"},
			wantOp:   "git-filter-repo",
			wantArgs: []string{"--path", "CryptoPkg", "--force"},
		},
		"empty": {},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			op, args := describe(tc.argv)
			assert.Equal(t, tc.wantOp, op)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}
