package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

const (
	// DefaultUpstreamRemote is the remote that points at the full upstream repository.
	DefaultUpstreamRemote = "upstream"

	// DefaultUpstreamBranch is the upstream branch whose history is extracted.
	DefaultUpstreamBranch = "master"

	// DefaultDownstreamBranch is the local branch that is rewritten on each sync.
	DefaultDownstreamBranch = "main"

	// DefaultPathFilter is the sub-directory extracted from upstream.
	DefaultPathFilter = "CryptoPkg"

	// DefaultFallbackDepth bounds the sync-point heuristic: when no summary
	// match is found, the oldest of this many recent upstream commits is used.
	DefaultFallbackDepth = 20

	// DefaultLocalDepth is how many recent downstream commits are classified.
	DefaultLocalDepth = 200

	// DefaultBackupPrefix prefixes the backup branch created before a reset.
	// The full name is "<prefix>-YYYYMMDD-HHMMSS".
	DefaultBackupPrefix = "backup/pre-sync"

	// DefaultFilterTool is the history-filtering executable.
	DefaultFilterTool = "git-filter-repo"

	envPrefix = "SUBSYNC_"
)

// Config holds all subsync settings.
// Values are layered: defaults, then environment variables, then flags.
type Config struct {
	// Repository configuration

	// RepoPath is the downstream repository. Defaults to the working directory.
	RepoPath string

	// UpstreamRemote names the remote pointing at the full upstream repository.
	UpstreamRemote string

	// UpstreamBranch is the branch fetched from UpstreamRemote.
	UpstreamBranch string

	// UpstreamURL is cloned to build the filtered history. When empty the
	// fetch URL of UpstreamRemote is used.
	UpstreamURL string

	// DownstreamBranch is the local branch that receives the sync.
	DownstreamBranch string

	// PathFilter is the sub-path extracted from upstream.
	PathFilter string

	// Sync-point detection

	// UpstreamPattern is a regular expression matching summaries of commits
	// that originated upstream. Defaults to "^<base of PathFilter>:".
	UpstreamPattern string

	// FallbackDepth bounds the heuristic used when no summary matches.
	FallbackDepth int

	// LocalDepth limits how many downstream commits are classified.
	LocalDepth int

	// Mutation settings

	// BackupPrefix prefixes the backup branch name.
	BackupPrefix string

	// FilterTool is the history-filtering executable looked up on PATH.
	FilterTool string

	// StateFile records the last synced upstream commit. Empty means the
	// default location inside the git directory.
	StateFile string

	// NoState disables reading and writing StateFile.
	NoState bool

	// DryRun stops after the read-only stages.
	DryRun bool

	// Output options

	// Quiet hides informational lines.
	Quiet bool

	// NoColor disables ANSI colors.
	NoColor bool

	// Debug enables the slog debug file.
	Debug bool

	// LogFile is the debug log location. Defaults to the XDG data directory.
	LogFile string

	// Version prints version information and exits.
	Version bool

	// VersionInfo is injected at build time.
	VersionInfo VersionInfo

	pattern *regexp.Regexp
}

// VersionInfo contains build-time version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		UpstreamRemote:   DefaultUpstreamRemote,
		UpstreamBranch:   DefaultUpstreamBranch,
		DownstreamBranch: DefaultDownstreamBranch,
		PathFilter:       DefaultPathFilter,
		FallbackDepth:    DefaultFallbackDepth,
		LocalDepth:       DefaultLocalDepth,
		BackupPrefix:     DefaultBackupPrefix,
		FilterTool:       DefaultFilterTool,
		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// LoadFromEnvironment updates config from SUBSYNC_* environment variables.
func (c *Config) LoadFromEnvironment() {
	c.RepoPath = getEnvString("REPO", c.RepoPath)
	c.UpstreamRemote = getEnvString("UPSTREAM_REMOTE", c.UpstreamRemote)
	c.UpstreamBranch = getEnvString("UPSTREAM_BRANCH", c.UpstreamBranch)
	c.UpstreamURL = getEnvString("UPSTREAM_URL", c.UpstreamURL)
	c.DownstreamBranch = getEnvString("BRANCH", c.DownstreamBranch)
	c.PathFilter = getEnvString("PATH", c.PathFilter)
	c.UpstreamPattern = getEnvString("UPSTREAM_PATTERN", c.UpstreamPattern)
	c.FallbackDepth = getEnvInt("FALLBACK_DEPTH", c.FallbackDepth)
	c.LocalDepth = getEnvInt("LOCAL_DEPTH", c.LocalDepth)
	c.BackupPrefix = getEnvString("BACKUP_PREFIX", c.BackupPrefix)
	c.FilterTool = getEnvString("FILTER_TOOL", c.FilterTool)
	c.StateFile = getEnvString("STATE_FILE", c.StateFile)
	c.NoState = getEnvBool("NO_STATE", c.NoState)
	c.DryRun = getEnvBool("DRY_RUN", c.DryRun)
	c.Quiet = getEnvBool("QUIET", c.Quiet)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogFile = getEnvString("LOG_FILE", c.LogFile)

	// https://no-color.org: any non-empty value disables color
	if v, ok := os.LookupEnv("NO_COLOR"); ok && v != "" {
		c.NoColor = true
	}
}

// BindFlags registers the command-line flags that override config values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.RepoPath, "repo", c.RepoPath, "Path to the downstream repository (default: current directory)")
	fs.StringVar(&c.UpstreamRemote, "upstream-remote", c.UpstreamRemote, "Remote that points at the full upstream repository")
	fs.StringVar(&c.UpstreamBranch, "upstream-branch", c.UpstreamBranch, "Upstream branch to sync from")
	fs.StringVar(&c.UpstreamURL, "upstream-url", c.UpstreamURL, "URL cloned for filtering (default: fetch URL of the upstream remote)")
	fs.StringVar(&c.DownstreamBranch, "branch", c.DownstreamBranch, "Downstream branch to rewrite")
	fs.StringVar(&c.PathFilter, "path", c.PathFilter, "Sub-path extracted from upstream")
	fs.StringVar(&c.UpstreamPattern, "upstream-pattern", c.UpstreamPattern, "Regex matching summaries of upstream commits (default: ^<path base>:)")
	fs.IntVar(&c.FallbackDepth, "fallback-depth", c.FallbackDepth, "Upstream commits considered by the sync-point fallback")
	fs.IntVar(&c.LocalDepth, "local-depth", c.LocalDepth, "Downstream commits scanned for local-only changes")
	fs.StringVar(&c.BackupPrefix, "backup-prefix", c.BackupPrefix, "Prefix of the backup branch created before rewriting")
	fs.StringVar(&c.FilterTool, "filter-tool", c.FilterTool, "History-filtering executable")
	fs.StringVar(&c.StateFile, "state-file", c.StateFile, "Sync state file (default: <git-dir>/subsync-state.yaml)")
	fs.BoolVar(&c.NoState, "no-state", c.NoState, "Neither read nor write the sync state file")
	fs.BoolVarP(&c.DryRun, "dry-run", "n", c.DryRun, "Report what would be synced without changing anything")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "Hide informational messages")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Path to debug log (default: ~/.local/share/subsync/logs/subsync-{repo-hash}.log)")
	fs.BoolVar(&c.Version, "version", c.Version, "Print version information and exit")
}

// Finalize validates the configuration and fills in derived defaults.
func (c *Config) Finalize() error {
	if c.RepoPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return invalid("repo", "", subsyncErrors.Wrap(err, "failed to get current directory"))
		}
		c.RepoPath = wd
	}

	absRepoPath, err := filepath.Abs(c.RepoPath)
	if err != nil {
		return invalid("repo", c.RepoPath, subsyncErrors.Wrap(err, "failed to resolve absolute path"))
	}
	c.RepoPath = absRepoPath

	for _, f := range []struct{ name, value string }{
		{"upstream-remote", c.UpstreamRemote},
		{"upstream-branch", c.UpstreamBranch},
		{"branch", c.DownstreamBranch},
		{"backup-prefix", c.BackupPrefix},
		{"filter-tool", c.FilterTool},
	} {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.name, nil, subsyncErrors.New("must not be empty"))
		}
	}

	c.PathFilter = strings.Trim(path.Clean(filepath.ToSlash(c.PathFilter)), "/")
	if c.PathFilter == "" || c.PathFilter == "." || strings.HasPrefix(c.PathFilter, "..") {
		return invalid("path", c.PathFilter, subsyncErrors.New("must name a sub-directory inside the repository"))
	}

	if c.FallbackDepth <= 0 {
		return invalid("fallback-depth", c.FallbackDepth, subsyncErrors.New("must be greater than 0"))
	}
	if c.LocalDepth <= 0 {
		return invalid("local-depth", c.LocalDepth, subsyncErrors.New("must be greater than 0"))
	}

	if c.UpstreamPattern == "" {
		c.UpstreamPattern = DefaultPattern(c.PathFilter)
	}
	c.pattern, err = regexp.Compile(c.UpstreamPattern)
	if err != nil {
		return invalid("upstream-pattern", c.UpstreamPattern, err)
	}

	if c.LogFile == "" {
		c.LogFile = defaultLogFile(c.RepoPath)
	}

	return nil
}

// Pattern returns the compiled upstream summary pattern. Finalize must have
// succeeded before it is called.
func (c *Config) Pattern() *regexp.Regexp {
	return c.pattern
}

// Verbose reports whether informational output is enabled.
func (c *Config) Verbose() bool {
	return !c.Quiet
}

// DefaultPattern derives the upstream naming convention from the sub-path:
// upstream commits touching "MdePkg/Include" are summarized "Include: ...".
func DefaultPattern(pathFilter string) string {
	return "^" + regexp.QuoteMeta(path.Base(pathFilter)) + ":"
}

func invalid(parameter string, value interface{}, err error) error {
	return subsyncErrors.NewConfigError(parameter, value,
		fmt.Errorf("%w: %w", subsyncErrors.ErrInvalidConfiguration, err))
}

// defaultLogFile follows the XDG base directory layout, keyed by repository.
func defaultLogFile(repoPath string) string {
	logDir := os.Getenv("XDG_DATA_HOME")
	if logDir == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			logDir = filepath.Join(homeDir, ".local", "share")
		} else {
			logDir = os.TempDir()
		}
	}

	sum := sha256.Sum256([]byte(repoPath))
	return filepath.Join(logDir, "subsync", "logs", fmt.Sprintf("subsync-%x.log", sum[:8]))
}

// getEnvString returns an environment variable string or a default value
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value
func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		switch strings.ToLower(valueStr) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
