package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bashhack/subsync/internal/config"
	"github.com/bashhack/subsync/internal/constants"
	subsyncErrors "github.com/bashhack/subsync/internal/errors"
	"github.com/bashhack/subsync/internal/git"
	"github.com/bashhack/subsync/internal/lock"
	"github.com/bashhack/subsync/internal/logger"
	"github.com/bashhack/subsync/internal/sync"
)

// Syncer runs one sync
type Syncer interface {
	Run(ctx context.Context) (*sync.Report, error)
}

// Locker manages file locking
type Locker interface {
	Acquire() error
	Release() error
}

// AppOptions contains app configuration and dependencies.
// Any nil optional dependency is created during Initialize.
type AppOptions struct {
	// Config holds the application configuration settings (required).
	Config *config.Config

	// Logger provides logging functionality (optional).
	Logger logger.Logger

	// Locker prevents two runs on the same repository (optional).
	Locker Locker

	// Syncer performs the sync (optional).
	Syncer Syncer

	// Stdout is the writer for standard output (optional, defaults to os.Stdout).
	Stdout io.Writer

	// Stderr is the writer for error output (optional, defaults to os.Stderr).
	Stderr io.Writer

	// Exit terminates the process (optional, defaults to os.Exit).
	Exit func(code int)

	// ExecLookPath finds executables in PATH (optional, defaults to exec.LookPath).
	ExecLookPath func(file string) (string, error)

	// IsRepository checks that a path is a git repository (optional, defaults to git.IsRepository).
	IsRepository func(string) (bool, error)
}

// App is the subsync application.
// It wires configuration, logging, locking and the syncer together and
// owns their lifecycle.
type App struct {
	Config *config.Config
	Logger logger.Logger
	Locker Locker
	Syncer Syncer

	Stdout io.Writer
	Stderr io.Writer

	exit         func(code int)
	execLookPath func(file string) (string, error)
	isRepository func(string) (bool, error)
}

// NewDefaultApp creates an App with standard dependencies and the
// environment already applied to its Config.
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	cfg := config.New()
	cfg.VersionInfo = versionInfo
	cfg.LoadFromEnvironment()

	return NewApp(AppOptions{
		Config:       cfg,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Exit:         os.Exit,
		ExecLookPath: exec.LookPath,
		IsRepository: git.IsRepository,
	})
}

// NewApp creates an App with custom dependencies specified in opts.
// It panics if opts.Config is nil.
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Locker:       opts.Locker,
		Syncer:       opts.Syncer,
		Stdout:       opts.Stdout,
		Stderr:       opts.Stderr,
		exit:         opts.Exit,
		execLookPath: opts.ExecLookPath,
		isRepository: opts.IsRepository,
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.exit == nil {
		app.exit = os.Exit
	}
	if app.execLookPath == nil {
		app.execLookPath = exec.LookPath
	}
	if app.isRepository == nil {
		app.isRepository = git.IsRepository
	}

	return app
}

// Command builds the root command. Flags are bound to a.Config, so values
// already loaded from the environment act as flag defaults.
func (a *App) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.AppName + " [flags]",
		Short: constants.Tagline,
		Long: constants.Tagline + `.

subsync fetches the upstream remote, finds the upstream commit the downstream
branch was last synced to, rebuilds the branch from the upstream history of
the configured sub-path, and replays the downstream-only commits on top.
A backup branch is created before anything is rewritten.`,
		Example: `  subsync --dry-run
  subsync --path CryptoPkg --upstream-remote upstream --branch main
  SUBSYNC_PATH=MdePkg subsync --upstream-pattern '^MdePkg:'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.Run(cmd.Context())
		},
	}
	cmd.SetOut(a.Stdout)
	cmd.SetErr(a.Stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return subsyncErrors.Wrap(subsyncErrors.ErrInvalidFlag, err.Error())
	})

	a.Config.BindFlags(cmd.Flags())
	return cmd
}

// Initialize validates the configuration and creates any component not
// provided during construction.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.Config.Finalize(); err != nil {
		if subsyncErrors.Is(err, subsyncErrors.ErrInvalidConfiguration) {
			return err
		}
		return subsyncErrors.Wrap(subsyncErrors.ErrInvalidConfiguration, err.Error())
	}

	if a.Logger == nil {
		a.Logger = logger.New(a.Config.Debug, a.Config.LogFile, a.Config.Verbose(), a.Config.NoColor)
	}

	if a.Locker != nil && a.Syncer != nil {
		return nil
	}

	isRepo, err := a.isRepository(a.Config.RepoPath)
	if err != nil {
		return subsyncErrors.Wrap(subsyncErrors.ErrGitOperationFailed, err.Error())
	}
	if !isRepo {
		return subsyncErrors.Wrap(subsyncErrors.ErrNotGitRepository, a.Config.RepoPath)
	}

	repo := git.NewRepo(a.Config.RepoPath)
	gitDir, err := repo.GitDir(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("Repository %s (git dir %s)", a.Config.RepoPath, gitDir)

	if a.Locker == nil {
		locker, err := lock.New(gitDir)
		if err != nil {
			return subsyncErrors.Wrap(err, "failed to initialize lock")
		}
		a.Locker = locker
	}

	if a.Syncer == nil {
		opts := sync.Options{
			UpstreamRemote:   a.Config.UpstreamRemote,
			UpstreamBranch:   a.Config.UpstreamBranch,
			UpstreamURL:      a.Config.UpstreamURL,
			DownstreamBranch: a.Config.DownstreamBranch,
			PathFilter:       a.Config.PathFilter,
			Pattern:          a.Config.Pattern(),
			FallbackDepth:    a.Config.FallbackDepth,
			LocalDepth:       a.Config.LocalDepth,
			BackupPrefix:     a.Config.BackupPrefix,
			FilterTool:       a.Config.FilterTool,
			DryRun:           a.Config.DryRun,
		}
		syncer, err := sync.New(opts, repo, git.NewMaterializer(repo, a.Config.FilterTool), a.stateStore(gitDir), a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create syncer: %w", err)
		}
		syncer.SetLookPath(a.execLookPath)
		a.Syncer = syncer
	}

	return nil
}

// stateStore picks the sync state backend for the configuration.
func (a *App) stateStore(gitDir string) sync.StateStore {
	if a.Config.NoState {
		return sync.NopStateStore{}
	}
	path := a.Config.StateFile
	if path == "" {
		path = filepath.Join(gitDir, constants.StateFileName)
	}
	return sync.NewFileStateStore(path)
}

// Run executes the application with the given context
func (a *App) Run(ctx context.Context) error {
	if a.Config.Version {
		a.ShowVersion()
		return nil
	}

	if err := a.Initialize(ctx); err != nil {
		return err
	}

	if err := a.Locker.Acquire(); err != nil {
		if subsyncErrors.Is(err, subsyncErrors.ErrAlreadyRunning) {
			return err
		}
		return subsyncErrors.Wrap(subsyncErrors.ErrLockAcquisitionFailure, err.Error())
	}

	report, err := a.Syncer.Run(ctx)
	if report != nil {
		report.Print(a.Logger)
	}
	if err != nil {
		sync.RecoveryFor(err, report).Print(a.Logger)
		return err
	}
	return nil
}

// ReportError prints a fatal error with its category.
func (a *App) ReportError(err error) {
	if err == nil {
		return
	}
	if subsyncErrors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(a.Stderr, "❌ Interrupted")
		return
	}
	_, _ = fmt.Fprintf(a.Stderr, "❌ Error (%s): %v\n", subsyncErrors.Kind(err), err)
}

// ShowVersion displays version information
func (a *App) ShowVersion() {
	_, _ = fmt.Fprintln(a.Stdout, constants.Banner)
	_, _ = fmt.Fprintln(a.Stdout, "")
	_, _ = fmt.Fprintf(a.Stdout, "%s %s (%s) built on %s\n",
		constants.AppName,
		a.Config.VersionInfo.Version,
		a.Config.VersionInfo.Commit,
		a.Config.VersionInfo.Date)
	_, _ = fmt.Fprintln(a.Stdout, constants.Tagline)
}

// Close releases resources held by the App. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error

	if a.Locker != nil {
		if err := a.Locker.Release(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("Failed to release lock during cleanup: %v", err)
			} else {
				_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to release lock during cleanup: %v\n", err)
			}
			errs = append(errs, err)
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	return subsyncErrors.Join(errs...)
}
