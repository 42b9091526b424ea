package sync

import (
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

// stateVersion is bumped when the State layout changes incompatibly.
const stateVersion = 1

// State is what a successful sync records for the next run.
type State struct {
	Version int `yaml:"version"`

	// Path is the sub-path the state applies to. A state written for another
	// path is ignored.
	Path string `yaml:"path"`

	// Upstream is the upstream commit the downstream branch now reflects.
	Upstream UpstreamState `yaml:"upstream"`

	// DownstreamTip is the downstream tip after replay.
	DownstreamTip string `yaml:"downstream_tip"`

	// Backup is the backup branch created by the run.
	Backup string `yaml:"backup"`

	SyncedAt time.Time `yaml:"synced_at"`
}

// UpstreamState identifies the synced upstream commit.
type UpstreamState struct {
	Remote  string `yaml:"remote"`
	Branch  string `yaml:"branch"`
	Commit  string `yaml:"commit"`
	Summary string `yaml:"summary"`
}

// StateStore loads and saves the sync state.
type StateStore interface {
	// Load returns the saved state, or nil when none exists.
	Load() (*State, error)

	// Save persists st, replacing any previous state.
	Save(st *State) error
}

// FileStateStore keeps the state in a YAML file on a billy filesystem.
type FileStateStore struct {
	fs   billy.Filesystem
	name string
	path string
}

// NewFileStateStore creates a store backed by the file at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{
		fs:   osfs.New(filepath.Dir(path)),
		name: filepath.Base(path),
		path: path,
	}
}

// NewFileStateStoreFS creates a store backed by name inside fs.
func NewFileStateStoreFS(fs billy.Filesystem, name string) *FileStateStore {
	return &FileStateStore{fs: fs, name: name, path: fs.Join(fs.Root(), name)}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

// Load implements StateStore.
func (s *FileStateStore) Load() (*State, error) {
	data, err := util.ReadFile(s.fs, s.name)
	if err != nil {
		if subsyncErrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, subsyncErrors.Wrapf(err, "failed to read state file %s", s.path)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, subsyncErrors.Wrapf(err, "failed to parse state file %s", s.path)
	}
	if st.Version != stateVersion {
		return nil, subsyncErrors.Errorf("state file %s has unsupported version %d", s.path, st.Version)
	}
	return &st, nil
}

// Save implements StateStore. The file is replaced atomically.
func (s *FileStateStore) Save(st *State) error {
	st.Version = stateVersion

	data, err := yaml.Marshal(st)
	if err != nil {
		return subsyncErrors.Wrap(err, "failed to encode state")
	}

	dir := path.Dir(filepath.ToSlash(s.name))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return subsyncErrors.Wrapf(err, "failed to create directory for %s", s.path)
	}

	tmp, err := util.TempFile(s.fs, dir, path.Base(filepath.ToSlash(s.name))+".tmp-")
	if err != nil {
		return subsyncErrors.Wrap(err, "failed to create temporary state file")
	}
	tmpName := tmp.Name()
	defer func() { _ = s.fs.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return subsyncErrors.Wrap(err, "failed to write state")
	}
	if err := tmp.Close(); err != nil {
		return subsyncErrors.Wrap(err, "failed to write state")
	}
	if err := s.fs.Rename(tmpName, s.name); err != nil {
		return subsyncErrors.Wrapf(err, "failed to replace %s", s.path)
	}
	return nil
}

// NopStateStore never has a state and discards saves.
type NopStateStore struct{}

// Load implements StateStore.
func (NopStateStore) Load() (*State, error) { return nil, nil }

// Save implements StateStore.
func (NopStateStore) Save(*State) error { return nil }
