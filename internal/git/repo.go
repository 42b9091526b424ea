package git

import (
	"bufio"
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/bashhack/subsync/internal/constants"
	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

// fieldSep separates fields in --format output; it cannot appear in a summary.
const fieldSep = "\x1f"

// Repo is the downstream repository.
//
// History reads (logs, refs, remotes) go through go-git so that they need no
// child process. Everything that touches the working tree or the network
// (fetch, checkout, reset, cherry-pick) shells out to the git executable,
// whose behavior the operator's recovery commands rely on.
type Repo struct {
	path     string
	executor CommandExecutor
}

// NewRepo creates a Repo for the working tree at path.
func NewRepo(path string) *Repo {
	return NewRepoWithExecutor(path, NewExecExecutor())
}

// NewRepoWithExecutor creates a Repo with a custom command executor.
func NewRepoWithExecutor(path string, executor CommandExecutor) *Repo {
	return &Repo{path: path, executor: executor}
}

// Path returns the working tree path.
func (r *Repo) Path() string {
	return r.path
}

// IsRepository checks if the given path is inside a git working tree.
func IsRepository(path string) (bool, error) {
	_, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err == nil {
		return true, nil
	}
	if subsyncErrors.Is(err, gogit.ErrRepositoryNotExists) {
		return false, nil
	}
	return false, err
}

// open loads the repository with go-git. It is reopened on every call so
// that refs written by git child processes are always seen.
func (r *Repo) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(r.path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if subsyncErrors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, subsyncErrors.Wrap(subsyncErrors.ErrNotGitRepository, r.path)
		}
		return nil, subsyncErrors.Wrapf(err, "failed to open repository %s", r.path)
	}
	return repo, nil
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repo) GitDir(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", subsyncErrors.Errorf("repository %s is not stored on disk", r.path)
	}
	return filepath.Abs(fs.Filesystem().Root())
}

// HasRemote reports whether a remote with the given name is configured.
func (r *Repo) HasRemote(_ context.Context, name string) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	if _, err := repo.Remote(name); err != nil {
		if subsyncErrors.Is(err, gogit.ErrRemoteNotFound) {
			return false, nil
		}
		return false, subsyncErrors.Wrapf(err, "failed to read remote %s", name)
	}
	return true, nil
}

// RemoteURL returns the first configured URL of a remote.
func (r *Repo) RemoteURL(_ context.Context, name string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote(name)
	if err != nil {
		if subsyncErrors.Is(err, gogit.ErrRemoteNotFound) {
			return "", subsyncErrors.Wrap(subsyncErrors.ErrMissingRemote, name)
		}
		return "", subsyncErrors.Wrapf(err, "failed to read remote %s", name)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] == "" {
		return "", subsyncErrors.Wrapf(subsyncErrors.ErrMissingRemote, "remote %s has no URL", name)
	}
	return urls[0], nil
}

// ResolveRef resolves a revision to a full commit identifier.
func (r *Repo) ResolveRef(_ context.Context, rev string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot resolve %s: %v", rev, err)
	}
	return hash.String(), nil
}

// CurrentBranch returns the short name of the checked out branch, or an
// empty string when HEAD is detached.
func (r *Repo) CurrentBranch(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", subsyncErrors.Wrap(err, "failed to read HEAD")
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// Log lists commits reachable from f.Rev, most recent first, ordered by
// committer time like `git log`.
func (r *Repo) Log(ctx context.Context, f LogFilter) ([]Commit, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}

	from, err := repo.ResolveRevision(plumbing.Revision(f.Rev))
	if err != nil {
		return nil, subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot resolve %s: %v", f.Rev, err)
	}

	iter, err := repo.Log(&gogit.LogOptions{
		From:  *from,
		Order: gogit.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, subsyncErrors.Wrapf(err, "failed to read log of %s", f.Rev)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.NoMerges && c.NumParents() > 1 {
			return nil
		}
		if f.Path != "" {
			touched, err := touchesPath(c, f.Path)
			if err != nil {
				return err
			}
			if !touched {
				return nil
			}
		}
		commits = append(commits, Commit{ID: c.Hash.String(), Summary: Subject(c.Message)})
		if f.MaxCount > 0 && len(commits) >= f.MaxCount {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, subsyncErrors.Wrapf(err, "failed to walk log of %s", f.Rev)
	}
	return commits, nil
}

// touchesPath reports whether c changed path relative to its parents, the
// way `git log -- <path>` decides: a commit whose path entry matches any
// parent's is skipped. go-git's own PathFilter diffs against the next commit
// in walk order instead of the parents, which is wrong on merged histories.
func touchesPath(c *object.Commit, path string) (bool, error) {
	own, err := pathEntry(c, path)
	if err != nil {
		return false, err
	}
	if c.NumParents() == 0 {
		return !own.IsZero(), nil
	}

	parents := c.Parents()
	defer parents.Close()

	same := false
	err = parents.ForEach(func(p *object.Commit) error {
		theirs, err := pathEntry(p, path)
		if err != nil {
			return err
		}
		if theirs == own {
			same = true
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !same, nil
}

// pathEntry returns the object hash recorded for path in c's tree, or the
// zero hash when path does not exist.
func pathEntry(c *object.Commit, path string) (plumbing.Hash, error) {
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, subsyncErrors.Wrapf(err, "failed to read tree of %s", c.Hash)
	}
	entry, err := tree.FindEntry(strings.Trim(path, "/"))
	if err != nil {
		if subsyncErrors.Is(err, object.ErrEntryNotFound) || subsyncErrors.Is(err, object.ErrDirectoryNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, subsyncErrors.Wrapf(err, "failed to look up %s in %s", path, c.Hash)
	}
	return entry.Hash, nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A commit
// is its own ancestor.
func (r *Repo) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}

	commits := make([]*object.Commit, 0, 2)
	for _, rev := range []string{ancestor, descendant} {
		hash, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return false, subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot resolve %s: %v", rev, err)
		}
		c, err := repo.CommitObject(*hash)
		if err != nil {
			return false, subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot read commit %s: %v", rev, err)
		}
		commits = append(commits, c)
	}

	if commits[0].Hash == commits[1].Hash {
		return true, nil
	}
	ok, err := commits[0].IsAncestor(commits[1])
	if err != nil {
		return false, subsyncErrors.Wrapf(err, "failed to walk history of %s", descendant)
	}
	return ok, nil
}

// Range lists the commits reachable from to but not from from, restricted to
// path, oldest first.
func (r *Repo) Range(ctx context.Context, from, to, path string) ([]Commit, error) {
	args := []string{"log", "--reverse", "--format=%H%x1f%s", from + ".." + to}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := r.runGitCommandWithOutput(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

// parseLog parses "<hash>\x1f<summary>" lines.
func parseLog(out string) []Commit {
	var commits []Commit
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		id, summary, _ := strings.Cut(line, fieldSep)
		commits = append(commits, Commit{ID: strings.TrimSpace(id), Summary: summary})
	}
	return commits
}

// Fetch updates the remote-tracking refs of remote.
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	err := r.runGitCommand(ctx, "fetch", "--prune", "--no-tags", remote)
	return subsyncErrors.ClassifyGitError(err)
}

// FetchBranch fetches a single branch of remote into refs/remotes/<remote>/<branch>.
func (r *Repo) FetchBranch(ctx context.Context, remote, branch string) error {
	refspec := "+refs/heads/" + branch + ":refs/remotes/" + remote + "/" + branch
	err := r.runGitCommand(ctx, "fetch", "--no-tags", remote, refspec)
	return subsyncErrors.ClassifyGitError(err)
}

// AddRemote configures a new remote.
func (r *Repo) AddRemote(ctx context.Context, name, url string) error {
	return r.runGitCommand(ctx, "remote", "add", name, url)
}

// RemoveRemote deletes a remote and its remote-tracking refs.
func (r *Repo) RemoveRemote(ctx context.Context, name string) error {
	return r.runGitCommand(ctx, "remote", "remove", name)
}

// HasUncommittedChanges returns true if the working tree or index differs
// from HEAD. Untracked files are ignored; a hard reset leaves them alone.
func (r *Repo) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := r.runGitCommandWithOutput(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// CreateBranch creates refs/heads/<name> pointing at target. It fails if
// the branch already exists.
func (r *Repo) CreateBranch(_ context.Context, name, target string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}

	refName := plumbing.NewBranchReferenceName(name)
	if err := refName.Validate(); err != nil {
		return subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "invalid branch name %q: %v", name, err)
	}
	if _, err := repo.Reference(refName, false); err == nil {
		return subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "branch %s already exists", name)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot resolve %s: %v", target, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, *hash)); err != nil {
		return subsyncErrors.Wrapf(err, "failed to create branch %s", name)
	}
	return nil
}

// Checkout switches the working tree to branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	return r.runGitCommand(ctx, "checkout", branch)
}

// ResetHard moves the current branch and working tree to rev.
func (r *Repo) ResetHard(ctx context.Context, rev string) error {
	return r.runGitCommand(ctx, "reset", "--hard", rev)
}

// CherryPick reapplies the change-set of commit onto the current tip. A
// conflict leaves the cherry-pick in progress for the operator.
func (r *Repo) CherryPick(ctx context.Context, commit string) error {
	return r.runGitCommand(ctx, "cherry-pick", commit)
}

// Graph returns a short decorated graph of rev for reports.
func (r *Repo) Graph(ctx context.Context, rev string, n int) (string, error) {
	out, err := r.runGitCommandWithOutput(ctx, "log", "--graph", "--oneline", "--decorate",
		"--decorate-refs-exclude=refs/remotes/"+constants.TempRemotePrefix+"-*",
		"-n", strconv.Itoa(n), rev)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// runGitCommand executes a git command in the repository directory.
func (r *Repo) runGitCommand(ctx context.Context, args ...string) error {
	return r.executor.Execute(r.command(ctx, args...))
}

// runGitCommandWithOutput executes a git command and returns its output.
func (r *Repo) runGitCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	return r.executor.ExecuteWithOutput(r.command(ctx, args...))
}

// command builds a git invocation in the repository. These commands touch the
// downstream index and refs, so cancellation interrupts rather than kills.
func (r *Repo) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.path}, args...)...)
	cmd.Dir = r.path
	return interruptOnCancel(cmd)
}
