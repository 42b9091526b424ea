package sync

import (
	"context"
	"os/exec"
	"regexp"
	"time"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
	"github.com/bashhack/subsync/internal/logger"
)

// Repository is the downstream repository as used by the Syncer.
// *git.Repo satisfies it.
type Repository interface {
	HasRemote(ctx context.Context, name string) (bool, error)
	RemoteURL(ctx context.Context, name string) (string, error)
	Fetch(ctx context.Context, remote string) error
	ResolveRef(ctx context.Context, rev string) (string, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	Log(ctx context.Context, f git.LogFilter) ([]git.Commit, error)
	Range(ctx context.Context, from, to, path string) ([]git.Commit, error)
	HasUncommittedChanges(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name, target string) error
	Checkout(ctx context.Context, branch string) error
	ResetHard(ctx context.Context, rev string) error
	CherryPick(ctx context.Context, commit string) error
	Graph(ctx context.Context, rev string, n int) (string, error)
}

// Materializer produces the filtered upstream history.
// *git.Materializer satisfies it.
type Materializer interface {
	Materialize(ctx context.Context, url, branch, path string) (*git.Workspace, error)
}

// Options contains the settings of one sync run.
type Options struct {
	UpstreamRemote   string
	UpstreamBranch   string
	UpstreamURL      string
	DownstreamBranch string
	PathFilter       string

	// Pattern marks summaries of commits that originated upstream. Nil
	// accepts every summary.
	Pattern *regexp.Regexp

	FallbackDepth int
	LocalDepth    int
	BackupPrefix  string
	FilterTool    string
	DryRun        bool
}

// Validate sanity-checks the options.
func (o Options) Validate() error {
	switch {
	case o.UpstreamRemote == "":
		return subsyncErrors.NewConfigError("upstream remote", nil, subsyncErrors.ErrInvalidConfiguration)
	case o.UpstreamBranch == "":
		return subsyncErrors.NewConfigError("upstream branch", nil, subsyncErrors.ErrInvalidConfiguration)
	case o.DownstreamBranch == "":
		return subsyncErrors.NewConfigError("downstream branch", nil, subsyncErrors.ErrInvalidConfiguration)
	case o.PathFilter == "":
		return subsyncErrors.NewConfigError("path", nil, subsyncErrors.ErrInvalidConfiguration)
	case o.FallbackDepth <= 0:
		return subsyncErrors.NewConfigError("fallback depth", o.FallbackDepth, subsyncErrors.ErrInvalidConfiguration)
	case o.LocalDepth <= 0:
		return subsyncErrors.NewConfigError("local depth", o.LocalDepth, subsyncErrors.ErrInvalidConfiguration)
	case o.BackupPrefix == "":
		return subsyncErrors.NewConfigError("backup prefix", nil, subsyncErrors.ErrInvalidConfiguration)
	case o.FilterTool == "":
		return subsyncErrors.NewConfigError("filter tool", nil, subsyncErrors.ErrInvalidConfiguration)
	}
	return nil
}

// Syncer runs the sync pipeline against one downstream repository.
// A Syncer is not safe for concurrent use.
type Syncer struct {
	opts         Options
	repo         Repository
	materializer Materializer
	state        StateStore
	logger       logger.Logger

	lookPath func(file string) (string, error)
	now      func() time.Time
}

// New creates a Syncer. A nil state store disables the sync state.
func New(opts Options, repo Repository, materializer Materializer, state StateStore, log logger.Logger) (*Syncer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if state == nil {
		state = NopStateStore{}
	}
	return &Syncer{
		opts:         opts,
		repo:         repo,
		materializer: materializer,
		state:        state,
		logger:       log,
		lookPath:     exec.LookPath,
		now:          time.Now,
	}, nil
}

// SetLookPath replaces the executable lookup used by the prerequisite check.
func (s *Syncer) SetLookPath(fn func(file string) (string, error)) {
	s.lookPath = fn
}

// SetClock replaces the clock used for backup names and the sync state.
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes every stage in order. It returns the report built so far
// together with the error of the stage that failed, if any. Resources
// acquired by a stage are released before Run returns, even when ctx is
// cancelled.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	r := &run{
		report: &Report{
			DryRun: s.opts.DryRun,
			Branch: s.opts.DownstreamBranch,
			Path:   s.opts.PathFilter,
		},
	}
	defer s.cleanup(r)

	for _, st := range s.stages() {
		if err := ctx.Err(); err != nil {
			return r.report, subsyncErrors.Wrapf(err, "interrupted before %s", st.Name)
		}

		s.logger.Step("%s", st.Title)
		res := st.Run(ctx, r)
		r.report.Stages = append(r.report.Stages, StageResult{Name: st.Name, Outcome: res.Outcome})

		for _, w := range res.Warnings {
			r.report.Warnings = append(r.report.Warnings, w)
			s.logger.WarningToUser("%s", w)
		}

		switch res.Outcome {
		case Done:
			if res.Message != "" {
				s.logger.Success("%s", res.Message)
			}
			return r.report, nil
		case Fatal:
			s.logger.Info("stage %s failed: %v", st.Name, res.Err)
			return r.report, res.Err
		default:
			if res.Message != "" {
				s.logger.InfoToUser("%s", res.Message)
			}
		}
	}
	return r.report, nil
}

// cleanup runs the registered release functions in reverse order.
func (s *Syncer) cleanup(r *run) {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			msg := "cleanup failed: " + err.Error()
			r.report.Warnings = append(r.report.Warnings, msg)
			s.logger.WarningToUser("%s", msg)
		}
	}
	r.cleanups = nil
}
