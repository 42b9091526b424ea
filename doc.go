// Package subsync keeps a sub-directory extracted from an upstream git
// repository in step with that upstream while preserving downstream-only
// commits.
//
// # Quick Start
//
//	cd /path/to/downstream
//	git remote add upstream https://github.com/tianocore/edk2.git
//	subsync --dry-run
//	subsync
//
// # How It Works
//
//  1. Fetch the upstream remote.
//  2. Find the sync point: the upstream commit the downstream branch was
//     last synced to, taken from the recorded sync state or matched by
//     commit summary.
//  3. List the upstream commits under the sub-path after the sync point.
//  4. Classify downstream commits as synced or local-only.
//  5. Rebuild the filtered upstream history with git-filter-repo in a
//     disposable clone.
//  6. Create a backup branch, reset the downstream branch to the filtered
//     tip and cherry-pick the local-only commits.
//
// The executable lives in cmd/subsync; the pipeline in internal/sync.
package subsync
