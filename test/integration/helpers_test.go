//go:build integration
// +build integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// skipUnlessEnabled skips integration tests unless explicitly requested.
func skipUnlessEnabled(t *testing.T) {
	t.Helper()
	if os.Getenv("SUBSYNC_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test. Set SUBSYNC_INTEGRATION_TESTS=1 to run")
	}
}

// buildSubsync builds the binary once per test run.
func buildSubsync(t *testing.T) string {
	t.Helper()

	bin, err := filepath.Abs(filepath.Join("..", "..", "build", "subsync"))
	require.NoError(t, err)
	if _, err := os.Stat(bin); os.IsNotExist(err) {
		out, err := exec.Command("go", "build", "-o", bin, "../../cmd/subsync").CombinedOutput()
		require.NoError(t, err, "Failed to build subsync binary: %s", out)
	}
	return bin
}

// noopFilterTool writes an executable that accepts the filter-repo arguments
// and leaves the clone untouched. Upstream fixtures only contain the synced
// sub-directory, so the unfiltered history is already the filtered one.
func noopFilterTool(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-filter-repo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

// gitRepo drives a repository through the git CLI with deterministic dates.
type gitRepo struct {
	t     *testing.T
	dir   string
	clock time.Time
}

func newUpstream(t *testing.T) *gitRepo {
	t.Helper()

	r := &gitRepo{t: t, dir: t.TempDir(), clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	r.git("init", "--quiet", "-b", "master")
	r.configure()
	return r
}

func cloneDownstream(t *testing.T, upstream *gitRepo) *gitRepo {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "downstream")
	out, err := exec.Command("git", "clone", "--quiet", upstream.dir, dir).CombinedOutput()
	require.NoError(t, err, "clone: %s", out)

	r := &gitRepo{t: t, dir: dir, clock: upstream.clock}
	r.configure()
	r.git("checkout", "--quiet", "-B", "main")
	return r
}

func (r *gitRepo) configure() {
	r.git("config", "user.email", "test@example.com")
	r.git("config", "user.name", "Test User")
	r.git("config", "commit.gpgsign", "false")
}

func (r *gitRepo) git(args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", append([]string{"-C", r.dir}, args...)...)
	date := r.clock.Format(time.RFC3339)
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_DATE="+date, "GIT_COMMITTER_DATE="+date)
	out, err := cmd.CombinedOutput()
	require.NoError(r.t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// commit writes file under the repository and commits it as summary.
func (r *gitRepo) commit(summary, file, content string) string {
	r.t.Helper()

	r.clock = r.clock.Add(time.Minute)
	full := filepath.Join(r.dir, file)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
	r.git("add", file)
	r.git("commit", "--quiet", "-m", summary)
	return r.git("rev-parse", "HEAD")
}

func (r *gitRepo) summaries(rev string) []string {
	r.t.Helper()
	out := r.git("log", "--format=%s", rev)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (r *gitRepo) branches(pattern string) []string {
	r.t.Helper()
	out := r.git("branch", "--list", "--format=%(refname:short)", pattern)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// runSubsync executes the binary against repo and returns combined output.
func runSubsync(t *testing.T, bin string, repo *gitRepo, args ...string) (string, int) {
	t.Helper()

	base := []string{"--repo", repo.dir, "--upstream-remote", "origin", "--no-color"}
	cmd := exec.Command(bin, append(base, args...)...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("XDG_DATA_HOME=%s", t.TempDir()))
	out, err := cmd.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return string(out), 0
}
