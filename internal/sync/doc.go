// Package sync re-synchronizes a downstream branch with the filtered history
// of an upstream sub-directory while keeping downstream-only commits.
//
// # Pipeline
//
// Syncer.Run executes a fixed list of stages, each returning a Result whose
// Outcome tells the pipeline to continue, continue with warnings, stop
// successfully or stop with an error:
//
//	prerequisites → fetch → history → sync-point → new-commits → classify
//	  → materialize → backup → replay → record
//
// A dry run ends after classify. A run with no new upstream commits ends
// after new-commits. Nothing is written to the repository before the backup
// stage has created a branch at the pre-run tip and verified it.
//
// # Algorithms
//
// FindSyncPoint and ClassifyLocalCommits are pure functions over commit
// lists. Both compare summary lines, so two upstream commits with the same
// summary cannot be told apart. When a sync state was recorded by a previous
// run it is preferred over summary matching.
//
// # Failure handling
//
// A failed cherry-pick stops the run and returns *errors.ConflictError with
// the backup branch and the commits not yet replayed; RecoveryFor turns it
// into the commands an operator runs to continue or abort. Disposable
// resources (the filtered clone and its temporary remote) are released
// before Run returns, including when the context is cancelled.
package sync
