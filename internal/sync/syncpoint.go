package sync

import (
	"regexp"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
)

// Source records how a sync point was found.
type Source string

const (
	// SourceState means the commit came from the persisted sync state.
	SourceState Source = "state"

	// SourceSummary means a local summary matched an upstream summary exactly.
	SourceSummary Source = "summary"

	// SourceFallback means the bounded heuristic was used.
	SourceFallback Source = "fallback"
)

// SyncPoint is the upstream commit believed to correspond to the last state
// already reflected downstream.
type SyncPoint struct {
	Commit    git.Commit
	Source    Source
	Confident bool
}

// Classification splits the recent downstream history in two. Both slices
// are oldest first.
type Classification struct {
	// Synced holds commits whose summary also appears upstream; they are
	// replaced by the filtered history.
	Synced []git.Commit

	// LocalOnly holds commits with no upstream counterpart; they are replayed.
	LocalOnly []git.Commit
}

// FindSyncPoint locates the upstream commit matching the most recent
// downstream commit that originated upstream.
//
// local and upstream are most recent first, as returned by a log query. The
// candidate is the most recent local commit whose summary matches pattern; a
// nil pattern accepts every summary. The first upstream commit with exactly
// the candidate's summary is returned with Confident set. When there is no
// candidate or no match, the oldest of the fallbackDepth most recent upstream
// commits is returned with Confident unset, and the caller must warn.
//
// Summary matching cannot tell apart two upstream commits sharing a summary
// line; the most recent one wins.
func FindSyncPoint(local, upstream []git.Commit, pattern *regexp.Regexp, fallbackDepth int) (SyncPoint, error) {
	if len(upstream) == 0 {
		return SyncPoint{}, subsyncErrors.ErrNoUpstreamHistory
	}

	if candidate, ok := latestUpstreamOriginated(local, pattern); ok {
		for _, c := range upstream {
			if c.Summary == candidate.Summary {
				return SyncPoint{Commit: c, Source: SourceSummary, Confident: true}, nil
			}
		}
	}

	depth := fallbackDepth
	if depth <= 0 || depth > len(upstream) {
		depth = len(upstream)
	}
	return SyncPoint{Commit: upstream[depth-1], Source: SourceFallback}, nil
}

func latestUpstreamOriginated(local []git.Commit, pattern *regexp.Regexp) (git.Commit, bool) {
	for _, c := range local {
		if pattern == nil || pattern.MatchString(c.Summary) {
			return c, true
		}
	}
	return git.Commit{}, false
}

// ClassifyLocalCommits partitions local by membership of each summary in the
// upstream summary set. local is most recent first; both outputs are oldest
// first so LocalOnly is already in replay order.
func ClassifyLocalCommits(local, upstream []git.Commit) Classification {
	known := make(map[string]struct{}, len(upstream))
	for _, c := range upstream {
		known[c.Summary] = struct{}{}
	}

	var out Classification
	for i := len(local) - 1; i >= 0; i-- {
		c := local[i]
		if _, ok := known[c.Summary]; ok {
			out.Synced = append(out.Synced, c)
		} else {
			out.LocalOnly = append(out.LocalOnly, c)
		}
	}
	return out
}
