package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// fixture is an on-disk repository built in-process so tests do not depend
// on a git executable.
type fixture struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	when time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	return &fixture{
		t:    t,
		dir:  dir,
		repo: repo,
		when: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// commit writes files and commits them with a strictly increasing timestamp.
func (f *fixture) commit(message string, files map[string]string, parents ...string) string {
	f.t.Helper()

	wt, err := f.repo.Worktree()
	require.NoError(f.t, err)

	for name, content := range files {
		full := filepath.Join(f.dir, filepath.FromSlash(name))
		require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(f.t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(f.t, err)
	}

	f.when = f.when.Add(time.Minute)
	sig := &object.Signature{Name: "Test User", Email: "test@example.com", When: f.when}
	opts := &gogit.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true}
	if len(parents) > 0 {
		head, err := f.repo.Head()
		require.NoError(f.t, err)
		opts.Parents = []plumbing.Hash{head.Hash()}
		for _, p := range parents {
			opts.Parents = append(opts.Parents, plumbing.NewHash(p))
		}
	}

	hash, err := wt.Commit(message, opts)
	require.NoError(f.t, err)
	return hash.String()
}

// reset moves the current branch, index and working tree to hash.
func (f *fixture) reset(hash string) {
	f.t.Helper()
	wt, err := f.repo.Worktree()
	require.NoError(f.t, err)
	require.NoError(f.t, wt.Reset(&gogit.ResetOptions{Commit: plumbing.NewHash(hash), Mode: gogit.HardReset}))
}

func (f *fixture) addRemote(name, url string) {
	f.t.Helper()
	_, err := f.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(f.t, err)
}

func (f *fixture) setRef(name, hash string) {
	f.t.Helper()
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), plumbing.NewHash(hash))
	require.NoError(f.t, f.repo.Storer.SetReference(ref))
}

func (f *fixture) refExists(name string) bool {
	_, err := f.repo.Reference(plumbing.ReferenceName(name), true)
	return err == nil
}

func summaries(commits []Commit) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.Summary)
	}
	return out
}
