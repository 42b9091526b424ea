package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "subsync-state.yaml")
	store := NewFileStateStore(path)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, st)

	want := &State{
		Path: "CryptoPkg",
		Upstream: UpstreamState{
			Remote:  "upstream",
			Branch:  "master",
			Commit:  commitY.ID,
			Summary: commitY.Summary,
		},
		DownstreamTip: "picked-b",
		Backup:        "backup/pre-sync-20240305-140709",
		SyncedAt:      time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}
	require.NoError(t, store.Save(want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "commit: "+commitY.ID)
	assert.Contains(t, string(data), "version: 1")

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Upstream, got.Upstream)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Backup, got.Backup)
	assert.True(t, want.SyncedAt.Equal(got.SyncedAt))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStateStoreLoadErrors(t *testing.T) {
	tests := map[string]struct {
		content string
		wantMsg string
	}{
		"malformed yaml": {
			content: "version: [1\n",
			wantMsg: "failed to parse state file",
		},
		"unknown version": {
			content: "version: 7\npath: CryptoPkg\n",
			wantMsg: "unsupported version 7",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			_, err := NewFileStateStore(path).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestFileStateStoreOnMemoryFilesystem(t *testing.T) {
	fs := memfs.New()
	store := NewFileStateStoreFS(fs, "git/subsync-state.yaml")

	require.NoError(t, store.Save(&State{
		Path:     "CryptoPkg",
		Upstream: UpstreamState{Commit: commitX.ID, Summary: commitX.Summary},
	}))

	data, err := util.ReadFile(fs, "git/subsync-state.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), commitX.Summary)

	entries, err := fs.ReadDir("git")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, commitX.ID, got.Upstream.Commit)
}

func TestNopStateStore(t *testing.T) {
	var store StateStore = NopStateStore{}

	require.NoError(t, store.Save(&State{Path: "CryptoPkg"}))
	st, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, st)
}
