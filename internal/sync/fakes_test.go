package sync

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
	"github.com/bashhack/subsync/internal/logger"
)

// fakeRepo is an in-memory Repository. Refs map full ref names to commit
// identifiers; logs are keyed by "<rev>:<path>".
type fakeRepo struct {
	remotes map[string]string
	refs    map[string]string
	logs    map[string][]git.Commit
	ranges  map[string][]git.Commit
	current string
	dirty   bool

	fetchErr  error
	conflicts map[string]bool

	// ancestry marks "<ancestor>..<descendant>" pairs; a commit is always its
	// own ancestor.
	ancestry map[string]bool

	calls   []string
	picks   []string
	filters []git.LogFilter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		remotes:   map[string]string{"upstream": "https://example.com/edk2.git"},
		refs:      map[string]string{},
		logs:      map[string][]git.Commit{},
		ranges:    map[string][]git.Commit{},
		current:   "main",
		conflicts: map[string]bool{},
		ancestry:  map[string]bool{},
	}
}

func (f *fakeRepo) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRepo) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeRepo) HasRemote(_ context.Context, name string) (bool, error) {
	_, ok := f.remotes[name]
	return ok, nil
}

func (f *fakeRepo) RemoteURL(_ context.Context, name string) (string, error) {
	url, ok := f.remotes[name]
	if !ok {
		return "", subsyncErrors.ErrMissingRemote
	}
	return url, nil
}

func (f *fakeRepo) Fetch(_ context.Context, remote string) error {
	f.record("fetch %s", remote)
	return f.fetchErr
}

func (f *fakeRepo) ResolveRef(_ context.Context, rev string) (string, error) {
	if id, ok := f.refs[rev]; ok {
		return id, nil
	}
	return "", subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "cannot resolve %s", rev)
}

func (f *fakeRepo) Log(_ context.Context, filter git.LogFilter) ([]git.Commit, error) {
	f.filters = append(f.filters, filter)
	commits := f.logs[filter.Rev+":"+filter.Path]
	if filter.MaxCount > 0 && len(commits) > filter.MaxCount {
		commits = commits[:filter.MaxCount]
	}
	return commits, nil
}

func (f *fakeRepo) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	return ancestor == descendant || f.ancestry[ancestor+".."+descendant], nil
}

func (f *fakeRepo) Range(_ context.Context, from, to, path string) ([]git.Commit, error) {
	f.record("range %s..%s -- %s", from, to, path)
	return f.ranges[from+".."+to], nil
}

func (f *fakeRepo) HasUncommittedChanges(context.Context) (bool, error) {
	return f.dirty, nil
}

func (f *fakeRepo) CurrentBranch(context.Context) (string, error) {
	return f.current, nil
}

func (f *fakeRepo) CreateBranch(_ context.Context, name, target string) error {
	f.record("branch %s %s", name, target)
	ref := "refs/heads/" + name
	if _, ok := f.refs[ref]; ok {
		return subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed, "branch %s already exists", name)
	}
	f.refs[ref] = target
	return nil
}

func (f *fakeRepo) Checkout(_ context.Context, branch string) error {
	f.record("checkout %s", branch)
	f.current = branch
	return nil
}

func (f *fakeRepo) ResetHard(_ context.Context, rev string) error {
	f.record("reset %s", rev)
	f.refs["refs/heads/"+f.current] = rev
	return nil
}

func (f *fakeRepo) CherryPick(_ context.Context, commit string) error {
	f.record("cherry-pick %s", commit)
	if f.conflicts[commit] {
		return subsyncErrors.NewGitError("cherry-pick", []string{commit}, subsyncErrors.ErrGitOperationFailed,
			"CONFLICT (content): Merge conflict in CryptoPkg/Hash.c")
	}
	f.picks = append(f.picks, commit)
	f.refs["refs/heads/"+f.current] = "picked-" + commit
	return nil
}

func (f *fakeRepo) Graph(_ context.Context, rev string, _ int) (string, error) {
	return "* " + f.refs[rev] + " (HEAD -> " + f.current + ")", nil
}

// fakeMaterializer hands out a workspace whose tip is fixed.
type fakeMaterializer struct {
	tip      string
	err      error
	onCall   func()
	calls    []string
	released int
}

func (m *fakeMaterializer) Materialize(_ context.Context, url, branch, path string) (*git.Workspace, error) {
	m.calls = append(m.calls, url+" "+branch+" "+path)
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return nil, m.err
	}
	history := git.FilteredHistory{Remote: "subsync-filtered-test", Branch: branch, Tip: m.tip}
	return git.NewWorkspace("", history, func() error {
		m.released++
		return nil
	}), nil
}

// memoryStateStore keeps the state in memory.
type memoryStateStore struct {
	state   *State
	loadErr error
	saves   int
}

func (s *memoryStateStore) Load() (*State, error) {
	return s.state, s.loadErr
}

func (s *memoryStateStore) Save(st *State) error {
	s.saves++
	copied := *st
	s.state = &copied
	return nil
}

// scenario builds the CryptoPkg example: upstream gained "fix Y" on top of
// "fix X", and downstream carries "Add build support", a change outside
// CryptoPkg, on top of "fix X".
type scenario struct {
	repo         *fakeRepo
	materializer *fakeMaterializer
	state        *memoryStateStore
	out          *bytes.Buffer
	log          logger.Logger
	opts         Options
	lookPath     func(string) (string, error)
	now          time.Time

	upstream []git.Commit
	local    []git.Commit
}

var (
	commitW = git.Commit{ID: "w000000000000000000000000000000000000000", Summary: "CryptoPkg: older change"}
	commitX = git.Commit{ID: "x000000000000000000000000000000000000000", Summary: "CryptoPkg: fix X"}
	commitY = git.Commit{ID: "y000000000000000000000000000000000000000", Summary: "CryptoPkg: fix Y"}
	commitA = git.Commit{ID: "a000000000000000000000000000000000000000", Summary: "CryptoPkg: fix X"}
	commitB = git.Commit{ID: "b000000000000000000000000000000000000000", Summary: "Add build support"}
)

const (
	upstreamTip   = "u000000000000000000000000000000000000000"
	downstreamTip = "b000000000000000000000000000000000000000"
	filteredTip   = "f000000000000000000000000000000000000000"
)

func newScenario(t *testing.T) *scenario {
	t.Helper()

	repo := newFakeRepo()
	repo.refs["refs/heads/main"] = downstreamTip
	repo.refs["refs/remotes/upstream/master"] = upstreamTip

	out := &bytes.Buffer{}
	sc := &scenario{
		repo:         repo,
		materializer: &fakeMaterializer{tip: filteredTip},
		state:        &memoryStateStore{},
		out:          out,
		log: logger.NewWithOptions(logger.Options{
			Verbose: true,
			NoColor: true,
			Stdout:  out,
			Stderr:  out,
		}),
		opts: Options{
			UpstreamRemote:   "upstream",
			UpstreamBranch:   "master",
			DownstreamBranch: "main",
			PathFilter:       "CryptoPkg",
			Pattern:          regexp.MustCompile(`^CryptoPkg:`),
			FallbackDepth:    20,
			LocalDepth:       200,
			BackupPrefix:     "backup/pre-sync",
			FilterTool:       "git-filter-repo",
		},
		lookPath: func(file string) (string, error) { return "/usr/bin/" + file, nil },
		now:      time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}
	sc.setHistory(
		[]git.Commit{commitY, commitX, commitW},
		[]git.Commit{commitB, commitA},
	)
	repo.ranges[commitX.ID+".."+upstreamTip] = []git.Commit{commitY}
	return sc
}

func (sc *scenario) setHistory(upstream, local []git.Commit) {
	sc.upstream = upstream
	sc.local = local
	sc.repo.logs[upstreamTip+":CryptoPkg"] = upstream
	sc.repo.logs["refs/heads/main:"] = local
}

func (sc *scenario) syncer(t *testing.T) *Syncer {
	t.Helper()
	s, err := New(sc.opts, sc.repo, sc.materializer, sc.state, sc.log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.SetLookPath(sc.lookPath)
	s.SetClock(func() time.Time { return sc.now })
	return s
}

func (sc *scenario) run(t *testing.T) (*Report, error) {
	t.Helper()
	return sc.syncer(t).Run(context.Background())
}
