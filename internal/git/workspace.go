package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bashhack/subsync/internal/constants"
	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

// Workspace owns the disposable resources behind a FilteredHistory: the
// scratch directory holding the filtered clone and the temporary remote
// that points the downstream repository at it.
type Workspace struct {
	// Dir is the scratch directory. Empty for workspaces built by tests.
	Dir string

	// History is the filtered branch as seen from the downstream repository.
	History FilteredHistory

	release func() error
	once    sync.Once
	err     error
}

// NewWorkspace wraps a FilteredHistory with the function that tears it down.
func NewWorkspace(dir string, history FilteredHistory, release func() error) *Workspace {
	return &Workspace{Dir: dir, History: history, release: release}
}

// Release removes the temporary remote and the scratch directory. It is safe
// to call more than once; only the first call does any work.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() {
		if w.release != nil {
			w.err = w.release()
		}
	})
	return w.err
}

// Materializer produces the filtered upstream history for one sync run.
type Materializer struct {
	repo     *Repo
	executor CommandExecutor
	tool     string
	baseDir  string
}

// NewMaterializer creates a Materializer that filters with tool and fetches
// the result into repo.
func NewMaterializer(repo *Repo, tool string) *Materializer {
	return NewMaterializerWithExecutor(repo, tool, NewExecExecutor())
}

// NewMaterializerWithExecutor creates a Materializer with a custom executor
// for the clone and filter commands.
func NewMaterializerWithExecutor(repo *Repo, tool string, executor CommandExecutor) *Materializer {
	return &Materializer{repo: repo, executor: executor, tool: tool}
}

// SetBaseDir changes where scratch directories are created. The default is
// the system temporary directory.
func (m *Materializer) SetBaseDir(dir string) {
	m.baseDir = dir
}

// Materialize clones branch of url into a scratch directory, rewrites the
// clone so that only path survives, and fetches the result into the
// downstream repository under a temporary remote.
//
// On error every resource created so far is released before returning. On
// success the caller must call Release on the returned Workspace.
func (m *Materializer) Materialize(ctx context.Context, url, branch, path string) (ws *Workspace, err error) {
	dir, err := os.MkdirTemp(m.baseDir, "subsync-filter-*")
	if err != nil {
		return nil, subsyncErrors.Wrap(err, "failed to create scratch directory")
	}

	remote := constants.TempRemotePrefix + strings.TrimPrefix(filepath.Base(dir), "subsync-filter")
	remoteAdded := false

	release := func() error {
		// The caller's context may already be cancelled by an interrupt.
		cleanupCtx := context.WithoutCancel(ctx)
		var errs []error
		if remoteAdded {
			if rmErr := m.repo.RemoveRemote(cleanupCtx, remote); rmErr != nil {
				errs = append(errs, subsyncErrors.Wrapf(rmErr, "failed to remove remote %s", remote))
			}
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			errs = append(errs, subsyncErrors.Wrapf(rmErr, "failed to remove %s", dir))
		}
		return subsyncErrors.Join(errs...)
	}

	defer func() {
		if err != nil {
			if relErr := release(); relErr != nil {
				err = subsyncErrors.Join(err, relErr)
			}
		}
	}()

	clone := filepath.Join(dir, "repo")
	cloneCmd := exec.CommandContext(ctx, "git", "clone", "--quiet", "--no-local", "--single-branch", "--branch", branch, url, clone)
	if err := m.executor.Execute(cloneCmd); err != nil {
		return nil, subsyncErrors.ClassifyGitError(err)
	}

	filterCmd := exec.CommandContext(ctx, m.tool, "--path", path, "--force")
	filterCmd.Dir = clone
	if err := m.executor.Execute(filterCmd); err != nil {
		return nil, subsyncErrors.Wrapf(err, "filtering %s with %s", path, m.tool)
	}

	if err := m.repo.AddRemote(ctx, remote, clone); err != nil {
		return nil, err
	}
	remoteAdded = true

	if err := m.repo.FetchBranch(ctx, remote, branch); err != nil {
		return nil, err
	}

	tip, err := m.repo.ResolveRef(ctx, "refs/remotes/"+remote+"/"+branch)
	if err != nil {
		return nil, err
	}

	history := FilteredHistory{Remote: remote, Branch: branch, Tip: tip}
	return NewWorkspace(dir, history, release), nil
}
