// Package main implements subsync, which keeps a sub-directory extracted
// from an upstream repository in step with that upstream.
//
// A downstream repository that vendors one directory of a larger upstream
// (for example CryptoPkg out of edk2) accumulates local commits on top of the
// filtered upstream history. subsync fetches the upstream, works out which
// upstream commit the downstream branch was last synced to, rebuilds the
// branch from the filtered upstream history and replays the downstream-only
// commits on top. A backup branch is always created before the branch is
// reset.
//
// # Basic Usage
//
//	subsync --dry-run                  # Show what would be synced
//	subsync                            # Sync CryptoPkg from upstream/master onto main
//	subsync --path MdePkg --branch dev # Sync another sub-directory onto another branch
//
// # Configuration Options
//
// Every flag has a SUBSYNC_* environment variable; flags take precedence:
//
//	--repo              Downstream repository (env: SUBSYNC_REPO)
//	--upstream-remote   Remote pointing at the full upstream (env: SUBSYNC_UPSTREAM_REMOTE)
//	--upstream-branch   Upstream branch (env: SUBSYNC_UPSTREAM_BRANCH)
//	--upstream-url      URL cloned for filtering (env: SUBSYNC_UPSTREAM_URL)
//	--branch            Downstream branch (env: SUBSYNC_BRANCH)
//	--path              Extracted sub-path (env: SUBSYNC_PATH)
//	--upstream-pattern  Summary regex of upstream commits (env: SUBSYNC_UPSTREAM_PATTERN)
//	--fallback-depth    Sync-point fallback window (env: SUBSYNC_FALLBACK_DEPTH)
//	--local-depth       Downstream commits classified (env: SUBSYNC_LOCAL_DEPTH)
//	--backup-prefix     Backup branch prefix (env: SUBSYNC_BACKUP_PREFIX)
//	--filter-tool       History filter executable (env: SUBSYNC_FILTER_TOOL)
//	--state-file        Sync state file (env: SUBSYNC_STATE_FILE)
//	--no-state          Ignore the sync state file (env: SUBSYNC_NO_STATE)
//	-n, --dry-run       Stop before changing anything (env: SUBSYNC_DRY_RUN)
//	-q, --quiet         Hide informational messages (env: SUBSYNC_QUIET)
//	--no-color          Disable colors (env: NO_COLOR)
//	--debug             Write a debug log (env: SUBSYNC_DEBUG)
//	--version           Print version information and exit
//
// # Exit Status
//
// subsync exits 0 when the branch was synced, was already up to date, or a
// dry run completed, and 1 on any failure. On a replay conflict it prints the
// commands that continue or abort the sync.
package main
