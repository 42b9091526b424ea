package sync

import (
	"context"
	"fmt"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
)

// Outcome tells the pipeline what to do after a stage.
type Outcome int

const (
	// Continue proceeds to the next stage.
	Continue Outcome = iota

	// Warn proceeds to the next stage after reporting the stage's warnings.
	Warn

	// Done ends the run successfully.
	Done

	// Fatal ends the run with the stage's error.
	Fatal
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Warn:
		return "warn"
	case Done:
		return "done"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is returned by every stage.
type Result struct {
	Outcome  Outcome
	Message  string
	Warnings []string
	Err      error
}

// StageResult records how a stage ended.
type StageResult struct {
	Name    string
	Outcome Outcome
}

// Stage is one step of the sync pipeline.
type Stage struct {
	Name  string
	Title string
	Run   func(ctx context.Context, r *run) Result
}

// run carries the values passed between stages of a single Run.
type run struct {
	report *Report

	upstreamTip string
	upstreamLog []git.Commit
	localLog    []git.Commit

	cleanups []func() error
}

func proceed(format string, args ...interface{}) Result {
	return Result{Outcome: Continue, Message: fmt.Sprintf(format, args...)}
}

func warn(message string, warnings ...string) Result {
	if len(warnings) == 0 {
		return Result{Outcome: Continue, Message: message}
	}
	return Result{Outcome: Warn, Message: message, Warnings: warnings}
}

func done(format string, args ...interface{}) Result {
	return Result{Outcome: Done, Message: fmt.Sprintf(format, args...)}
}

func fatal(err error) Result {
	return Result{Outcome: Fatal, Err: err}
}

// stages lists the pipeline in execution order. Stages after classify only
// run when DryRun is false.
func (s *Syncer) stages() []Stage {
	return []Stage{
		{Name: "prerequisites", Title: "Checking prerequisites", Run: s.checkPrerequisites},
		{Name: "fetch", Title: "Fetching upstream", Run: s.fetchUpstream},
		{Name: "history", Title: "Reading history", Run: s.readHistory},
		{Name: "sync-point", Title: "Finding sync point", Run: s.findSyncPoint},
		{Name: "new-commits", Title: "Listing new upstream commits", Run: s.listNewCommits},
		{Name: "classify", Title: "Classifying local commits", Run: s.classifyLocalCommits},
		{Name: "materialize", Title: "Materializing filtered upstream history", Run: s.materialize},
		{Name: "backup", Title: "Creating backup branch", Run: s.backup},
		{Name: "replay", Title: "Replaying local commits", Run: s.replay},
		{Name: "record", Title: "Recording sync state", Run: s.record},
	}
}

func (s *Syncer) branchRef() string {
	return "refs/heads/" + s.opts.DownstreamBranch
}

func (s *Syncer) checkPrerequisites(ctx context.Context, r *run) Result {
	if _, err := s.lookPath("git"); err != nil {
		return fatal(subsyncErrors.Wrap(subsyncErrors.ErrMissingTool, "git is not found in PATH"))
	}

	var warnings []string
	if _, err := s.lookPath(s.opts.FilterTool); err != nil {
		if !s.opts.DryRun {
			return fatal(subsyncErrors.Wrapf(subsyncErrors.ErrMissingTool,
				"%s is not found in PATH; install it (e.g. `pip install git-filter-repo`) and try again", s.opts.FilterTool))
		}
		warnings = append(warnings, fmt.Sprintf("%s is not found in PATH; a real sync would fail", s.opts.FilterTool))
	}

	ok, err := s.repo.HasRemote(ctx, s.opts.UpstreamRemote)
	if err != nil {
		return fatal(err)
	}
	if !ok {
		return fatal(subsyncErrors.Wrapf(subsyncErrors.ErrMissingRemote,
			"remote %q is missing; add it with `git remote add %s <url>`", s.opts.UpstreamRemote, s.opts.UpstreamRemote))
	}

	tip, err := s.repo.ResolveRef(ctx, s.branchRef())
	if err != nil {
		return fatal(subsyncErrors.Wrapf(err, "downstream branch %s", s.opts.DownstreamBranch))
	}
	r.report.PreviousTip = tip

	if !s.opts.DryRun {
		dirty, err := s.repo.HasUncommittedChanges(ctx)
		if err != nil {
			return fatal(err)
		}
		if dirty {
			return fatal(subsyncErrors.Wrap(subsyncErrors.ErrDirtyWorktree, "commit or stash them before syncing"))
		}
	}

	return warn("Prerequisites satisfied", warnings...)
}

func (s *Syncer) fetchUpstream(ctx context.Context, r *run) Result {
	if err := s.repo.Fetch(ctx, s.opts.UpstreamRemote); err != nil {
		return fatal(subsyncErrors.Wrapf(err, "fetching %s", s.opts.UpstreamRemote))
	}

	ref := "refs/remotes/" + s.opts.UpstreamRemote + "/" + s.opts.UpstreamBranch
	tip, err := s.repo.ResolveRef(ctx, ref)
	if err != nil {
		return fatal(subsyncErrors.Wrapf(err, "upstream branch %s/%s", s.opts.UpstreamRemote, s.opts.UpstreamBranch))
	}
	r.upstreamTip = tip
	r.report.UpstreamTip = tip

	return proceed("%s/%s is at %s", s.opts.UpstreamRemote, s.opts.UpstreamBranch, shortID(tip))
}

func (s *Syncer) readHistory(ctx context.Context, r *run) Result {
	upstream, err := s.repo.Log(ctx, git.LogFilter{Rev: r.upstreamTip, Path: s.opts.PathFilter})
	if err != nil {
		return fatal(subsyncErrors.Wrap(err, "reading upstream history"))
	}

	// Every downstream commit is a replay candidate, including those outside
	// the sub-path: the reset discards whatever is not replayed.
	local, err := s.repo.Log(ctx, git.LogFilter{
		Rev:      s.branchRef(),
		MaxCount: s.opts.LocalDepth,
		NoMerges: true,
	})
	if err != nil {
		return fatal(subsyncErrors.Wrap(err, "reading downstream history"))
	}

	r.upstreamLog = upstream
	r.localLog = local
	return proceed("%d upstream commits touch %s, %d recent downstream commits", len(upstream), s.opts.PathFilter, len(local))
}

func (s *Syncer) findSyncPoint(ctx context.Context, r *run) Result {
	var warnings []string

	sp, ok, err := s.syncPointFromState(ctx, r)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("ignoring sync state: %v", err))
	}

	if !ok {
		sp, err = FindSyncPoint(r.localLog, r.upstreamLog, s.opts.Pattern, s.opts.FallbackDepth)
		if err != nil {
			return fatal(subsyncErrors.Wrapf(err, "%s on %s/%s", s.opts.PathFilter, s.opts.UpstreamRemote, s.opts.UpstreamBranch))
		}
	}
	r.report.SyncPoint = sp

	if !sp.Confident {
		warnings = append(warnings, fmt.Sprintf(
			"no downstream commit matched an upstream summary; using %s, the oldest of the last %d upstream commits touching %s. Verify it manually before relying on the result",
			sp.Commit, s.opts.FallbackDepth, s.opts.PathFilter))
	}
	return warn(fmt.Sprintf("Sync point %s (from %s)", sp.Commit, sp.Source), warnings...)
}

// syncPointFromState returns the recorded sync point when it applies to the
// current path, is still part of the upstream history and the downstream
// branch still contains the tip the recording run produced.
func (s *Syncer) syncPointFromState(ctx context.Context, r *run) (SyncPoint, bool, error) {
	st, err := s.state.Load()
	if err != nil || st == nil {
		return SyncPoint{}, false, err
	}
	if st.Path != s.opts.PathFilter || st.Upstream.Commit == "" {
		return SyncPoint{}, false, nil
	}

	var recorded *git.Commit
	for i := range r.upstreamLog {
		if r.upstreamLog[i].ID == st.Upstream.Commit {
			recorded = &r.upstreamLog[i]
			break
		}
	}
	if recorded == nil {
		return SyncPoint{}, false, fmt.Errorf("recorded upstream commit %s is no longer part of %s/%s",
			shortID(st.Upstream.Commit), s.opts.UpstreamRemote, s.opts.UpstreamBranch)
	}

	if st.DownstreamTip == "" {
		return SyncPoint{}, false, subsyncErrors.New("state records no downstream tip")
	}
	contained, err := s.repo.IsAncestor(ctx, st.DownstreamTip, r.report.PreviousTip)
	if err != nil {
		return SyncPoint{}, false, fmt.Errorf("cannot check recorded downstream tip %s: %w", shortID(st.DownstreamTip), err)
	}
	if !contained {
		return SyncPoint{}, false, fmt.Errorf("%s no longer contains the recorded sync result %s; it was reset or rewritten since",
			s.opts.DownstreamBranch, shortID(st.DownstreamTip))
	}

	return SyncPoint{Commit: *recorded, Source: SourceState, Confident: true}, true, nil
}

func (s *Syncer) listNewCommits(ctx context.Context, r *run) Result {
	commits, err := s.repo.Range(ctx, r.report.SyncPoint.Commit.ID, r.upstreamTip, s.opts.PathFilter)
	if err != nil {
		return fatal(subsyncErrors.Wrap(err, "listing new upstream commits"))
	}
	r.report.NewCommits = commits

	if len(commits) == 0 {
		r.report.UpToDate = true
		return done("Already up to date with %s/%s", s.opts.UpstreamRemote, s.opts.UpstreamBranch)
	}
	return proceed("%d new upstream commit(s) since %s", len(commits), r.report.SyncPoint.Commit.Short())
}

func (s *Syncer) classifyLocalCommits(_ context.Context, r *run) Result {
	r.report.Classification = ClassifyLocalCommits(r.localLog, r.upstreamLog)
	c := r.report.Classification

	if s.opts.DryRun {
		return done("Dry run: %d new upstream commit(s), %d local commit(s) would be replayed; nothing was changed",
			len(r.report.NewCommits), len(c.LocalOnly))
	}
	return proceed("%d already synced, %d local-only", len(c.Synced), len(c.LocalOnly))
}

func (s *Syncer) materialize(ctx context.Context, r *run) Result {
	url := s.opts.UpstreamURL
	if url == "" {
		var err error
		url, err = s.repo.RemoteURL(ctx, s.opts.UpstreamRemote)
		if err != nil {
			return fatal(err)
		}
	}

	ws, err := s.materializer.Materialize(ctx, url, s.opts.UpstreamBranch, s.opts.PathFilter)
	if err != nil {
		return fatal(subsyncErrors.Wrap(err, "materializing filtered upstream history"))
	}
	r.cleanups = append(r.cleanups, ws.Release)
	r.report.FilteredTip = ws.History.Tip

	return proceed("Filtered history of %s is at %s", s.opts.PathFilter, shortID(ws.History.Tip))
}

func (s *Syncer) backup(ctx context.Context, r *run) Result {
	name := fmt.Sprintf("%s-%s", s.opts.BackupPrefix, s.now().Format("20060102-150405"))
	if err := s.repo.CreateBranch(ctx, name, r.report.PreviousTip); err != nil {
		return fatal(subsyncErrors.Wrap(err, "creating backup branch"))
	}

	got, err := s.repo.ResolveRef(ctx, "refs/heads/"+name)
	if err != nil {
		return fatal(subsyncErrors.Wrapf(err, "verifying backup branch %s", name))
	}
	if got != r.report.PreviousTip {
		return fatal(subsyncErrors.Wrapf(subsyncErrors.ErrGitOperationFailed,
			"backup branch %s points at %s, expected %s", name, shortID(got), shortID(r.report.PreviousTip)))
	}
	r.report.Backup = name

	return proceed("Saved %s as %s", shortID(r.report.PreviousTip), name)
}

func (s *Syncer) replay(ctx context.Context, r *run) Result {
	current, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return fatal(err)
	}
	if current != s.opts.DownstreamBranch {
		if err := s.repo.Checkout(ctx, s.opts.DownstreamBranch); err != nil {
			return fatal(subsyncErrors.Wrapf(err, "checking out %s", s.opts.DownstreamBranch))
		}
	}

	if err := s.repo.ResetHard(ctx, r.report.FilteredTip); err != nil {
		return fatal(subsyncErrors.Wrapf(err, "resetting %s to the filtered history", s.opts.DownstreamBranch))
	}

	local := r.report.Classification.LocalOnly
	for i, c := range local {
		if err := ctx.Err(); err != nil {
			return fatal(subsyncErrors.Wrapf(err, "interrupted before replaying %s", c))
		}
		if err := s.repo.CherryPick(ctx, c.ID); err != nil {
			remaining := make([]string, 0, len(local)-i-1)
			for _, rest := range local[i+1:] {
				remaining = append(remaining, rest.ID)
			}
			return fatal(subsyncErrors.NewConflictError(c.ID, c.Summary, s.opts.DownstreamBranch, r.report.Backup, remaining, err))
		}
		r.report.Replayed = append(r.report.Replayed, c)
		s.logger.InfoToUser("Replayed %s", c)
	}

	tip, err := s.repo.ResolveRef(ctx, s.branchRef())
	if err != nil {
		return fatal(err)
	}
	r.report.NewTip = tip

	return proceed("%s is now at %s", s.opts.DownstreamBranch, shortID(tip))
}

func (s *Syncer) record(ctx context.Context, r *run) Result {
	var warnings []string

	latest := r.upstreamLog[0]
	st := &State{
		Path: s.opts.PathFilter,
		Upstream: UpstreamState{
			Remote:  s.opts.UpstreamRemote,
			Branch:  s.opts.UpstreamBranch,
			Commit:  latest.ID,
			Summary: latest.Summary,
		},
		DownstreamTip: r.report.NewTip,
		Backup:        r.report.Backup,
		SyncedAt:      s.now().UTC(),
	}
	if err := s.state.Save(st); err != nil {
		warnings = append(warnings, fmt.Sprintf("sync succeeded but the state was not saved: %v", err))
	}

	graph, err := s.repo.Graph(ctx, s.branchRef(), len(r.report.Replayed)+len(r.report.NewCommits)+1)
	if err != nil {
		s.logger.Warning("Failed to render history graph: %v", err)
	} else {
		r.report.Graph = graph
	}

	res := warn("", warnings...)
	res.Outcome = Done
	res.Message = fmt.Sprintf("Synced %d upstream commit(s) and replayed %d local commit(s) onto %s",
		len(r.report.NewCommits), len(r.report.Replayed), s.opts.DownstreamBranch)
	return res
}

func shortID(id string) string {
	return git.Commit{ID: id}.Short()
}
