package sync

import (
	"strings"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
	"github.com/bashhack/subsync/internal/logger"
)

// Report describes what a run found and did.
type Report struct {
	DryRun bool
	Branch string
	Path   string

	// PreviousTip is the downstream tip before the run.
	PreviousTip string

	// UpstreamTip is the fetched upstream branch tip.
	UpstreamTip string

	SyncPoint      SyncPoint
	NewCommits     []git.Commit
	Classification Classification

	// FilteredTip is the tip of the filtered upstream history.
	FilteredTip string

	// Backup names the backup branch. Empty until the backup stage succeeds.
	Backup string

	// Replayed lists the local-only commits that were applied, in order.
	Replayed []git.Commit

	// NewTip is the downstream tip after replay.
	NewTip string

	// UpToDate is set when upstream had nothing new.
	UpToDate bool

	// Graph is a short decorated log of the result.
	Graph string

	Warnings []string
	Stages   []StageResult
}

// Print writes a human-readable summary of the report.
func (r *Report) Print(log logger.Logger) {
	if r.SyncPoint.Commit.ID != "" {
		log.StatusMessage("")
		log.StatusMessage("Sync point:    %s (%s)", r.SyncPoint.Commit, r.SyncPoint.Source)
	}
	if r.UpToDate {
		return
	}

	printCommits(log, "New upstream commits:", r.NewCommits)
	if r.DryRun || len(r.Replayed) == 0 {
		printCommits(log, "Local-only commits to replay:", r.Classification.LocalOnly)
	}
	if r.DryRun {
		return
	}

	if r.Backup != "" {
		log.StatusMessage("Backup branch: %s (%s)", r.Backup, shortID(r.PreviousTip))
	}
	if r.NewTip != "" {
		printCommits(log, "Replayed:", r.Replayed)
		log.StatusMessage("New tip:       %s", shortID(r.NewTip))
	}
	if r.Graph != "" {
		log.StatusMessage("")
		log.StatusMessage("%s", r.Graph)
	}
}

func printCommits(log logger.Logger, title string, commits []git.Commit) {
	if len(commits) == 0 {
		log.StatusMessage("%s (none)", title)
		return
	}
	log.StatusMessage("%s", title)
	for _, c := range commits {
		log.StatusMessage("  %s", c)
	}
}

// Recovery holds the commands an operator can run after a failed run.
type Recovery struct {
	// Continue finishes an interrupted replay after the conflict is resolved.
	Continue []string

	// Abort restores the downstream branch to its pre-run tip.
	Abort []string
}

// RecoveryFor returns the recovery commands for err. It returns nil when
// the run failed before anything was changed.
func RecoveryFor(err error, r *Report) *Recovery {
	var conflict *subsyncErrors.ConflictError
	if subsyncErrors.As(err, &conflict) {
		rec := &Recovery{
			Continue: []string{
				"# resolve the conflicts, then:",
				"git add <resolved files>",
				"git cherry-pick --continue",
			},
			Abort: []string{"git cherry-pick --abort"},
		}
		if len(conflict.Remaining) > 0 {
			rec.Continue = append(rec.Continue, "git cherry-pick "+strings.Join(conflict.Remaining, " "))
		}
		if conflict.Backup != "" {
			rec.Abort = append(rec.Abort, "git reset --hard "+conflict.Backup)
		}
		return rec
	}

	if err == nil || r == nil || r.Backup == "" {
		return nil
	}
	return &Recovery{Abort: []string{"git checkout " + r.Branch, "git reset --hard " + r.Backup}}
}

// Print writes the recovery paths.
func (rec *Recovery) Print(log logger.Logger) {
	if rec == nil {
		return
	}
	if len(rec.Continue) > 0 {
		log.StatusMessage("")
		log.StatusMessage("To continue after fixing the conflict:")
		for _, line := range rec.Continue {
			log.StatusMessage("  %s", line)
		}
	}
	if len(rec.Abort) > 0 {
		log.StatusMessage("")
		log.StatusMessage("To abort and restore the previous state:")
		for _, line := range rec.Abort {
			log.StatusMessage("  %s", line)
		}
	}
}
