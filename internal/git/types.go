package git

import "strings"

// Commit is one entry of a log query: an opaque identifier and its summary.
type Commit struct {
	ID      string
	Summary string
}

// Short returns an abbreviated identifier for display.
func (c Commit) Short() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// String formats the commit the way `git log --oneline` does.
func (c Commit) String() string {
	return c.Short() + " " + c.Summary
}

// LogFilter selects the commits returned by Log.
type LogFilter struct {
	// Rev is the revision the walk starts from (branch, remote ref or hash).
	Rev string

	// Path restricts the log to commits touching this sub-path.
	Path string

	// MaxCount limits the number of commits returned. Zero means no limit.
	MaxCount int

	// NoMerges skips commits with more than one parent.
	NoMerges bool
}

// FilteredHistory is the branch produced by filtering upstream down to a
// sub-path and fetching it into the downstream repository.
type FilteredHistory struct {
	// Remote is the temporary remote wired to the filtered clone.
	Remote string

	// Branch is the filtered branch name on that remote.
	Branch string

	// Tip is the commit the downstream branch is reset to.
	Tip string
}

// Subject returns the summary line of a commit message the way git's %s
// placeholder does: the first paragraph with line breaks folded to spaces.
func Subject(message string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimLeft(message, "\r\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}
