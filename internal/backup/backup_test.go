package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcfg/internal/common"
	"agentcfg/internal/mapping"
	"agentcfg/internal/storage"
	"agentcfg/internal/workspace"
)

var (
	codex  = workspace.AgentScope(mapping.AgentCodex)
	claude = workspace.AgentScope(mapping.AgentClaude)
)

func fixedClock(ms int64) Option {
	return WithClock(func() time.Time { return time.UnixMilli(ms) })
}

func writeFile(t *testing.T, ws *workspace.Workspace, s workspace.Scope, rel, content string) {
	t.Helper()
	fs, err := ws.Scope(s)
	require.NoError(t, err)
	require.NoError(t, storage.WriteAtomic(fs, rel, []byte(content)))
}

func readFile(t *testing.T, ws *workspace.Workspace, s workspace.Scope, rel string) (string, bool) {
	t.Helper()
	fs, err := ws.Scope(s)
	require.NoError(t, err)
	text, ok, err := storage.ReadText(fs, rel)
	require.NoError(t, err)
	return text, ok
}

func capture(t *testing.T, store *Store, trigger string, targets ...Target) *Snapshot {
	t.Helper()
	p := NewPlan(trigger)
	for _, tg := range targets {
		p.Add(tg.Scope, tg.Path)
	}
	snap, err := store.Capture(p)
	require.NoError(t, err)
	return snap
}

func TestCapture(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	writeFile(t, ws, codex, "AGENTS.md", "old codex")
	store := NewStore(ws, fixedClock(1700000000000))

	snap := capture(t, store, TriggerSync,
		Target{Scope: codex, Path: "AGENTS.md"},
		Target{Scope: claude, Path: "./CLAUDE.md"},
		Target{Scope: codex, Path: "AGENTS.md"},
	)
	assert.Equal(t, "1700000000000", snap.ID())

	m := snap.Manifest()
	assert.Equal(t, uint64(1700000000000), m.CreatedAt)
	assert.Equal(t, TriggerSync, m.Trigger)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, Entry{
		Agent:              "codex",
		TargetRelativePath: "AGENTS.md",
		TargetAbsolutePath: "/mem/codex/AGENTS.md",
		ExistedBefore:      true,
	}, m.Entries[0])
	assert.Equal(t, "claude", m.Entries[1].Agent)
	assert.Equal(t, "CLAUDE.md", m.Entries[1].TargetRelativePath)
	assert.False(t, m.Entries[1].ExistedBefore)

	loaded, err := store.Load(snap.ID())
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	data, ok, err := store.ReadSnapshot(snap.ID(), m.Entries[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old codex", string(data))

	_, ok, err = store.ReadSnapshot(snap.ID(), m.Entries[1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCaptureEmptyPlan(t *testing.T) {
	t.Parallel()

	store := NewStore(workspace.NewMemory())
	_, err := store.Capture(NewPlan(TriggerSync))
	require.Error(t, err)

	infos, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestCaptureRejectsTraversal(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	store := NewStore(ws, fixedClock(1000))
	p := NewPlan(TriggerSync)
	p.Add(codex, "AGENTS.md")
	p.Add(codex, "../escape.md")

	_, err := store.Capture(p)
	require.ErrorIs(t, err, common.ErrInvalidPath)

	// the partial backup directory is removed
	entries, err := ws.Backups().ReadDir("")
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestSnapshotWritesOnlyCoveredTargets(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	writeFile(t, ws, codex, "AGENTS.md", "old")
	store := NewStore(ws, fixedClock(1000))
	snap := capture(t, store, TriggerSync,
		Target{Scope: codex, Path: "AGENTS.md"},
		Target{Scope: claude, Path: "CLAUDE.md"},
	)

	require.NoError(t, snap.Write(codex, "AGENTS.md", []byte("new")))
	got, _ := readFile(t, ws, codex, "AGENTS.md")
	assert.Equal(t, "new", got)

	err := snap.Write(codex, "OTHER.md", []byte("x"))
	require.Error(t, err)
	_, exists := readFile(t, ws, codex, "OTHER.md")
	assert.False(t, exists)

	removed, err := snap.Delete(claude, "CLAUDE.md")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = snap.Delete(codex, "AGENTS.md")
	require.NoError(t, err)
	assert.True(t, removed)

	// the captured bytes are untouched by the writes
	data, ok, err := store.ReadSnapshot(snap.ID(), snap.Manifest().Entries[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", string(data))
}

func TestNextIDIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	require.NoError(t, ws.Backups().MkdirAll("5000", 0o755))
	require.NoError(t, ws.Backups().MkdirAll("not-a-number", 0o755))
	store := NewStore(ws, fixedClock(1000))

	first := capture(t, store, TriggerSync, Target{Scope: codex, Path: "a.md"})
	second := capture(t, store, TriggerSync, Target{Scope: codex, Path: "a.md"})
	assert.Equal(t, "5001", first.ID())
	assert.Equal(t, "5002", second.ID())
	assert.Equal(t, uint64(5002), second.Manifest().CreatedAt)
}

func TestList(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	store := NewStore(ws, fixedClock(1000))
	capture(t, store, TriggerSync, Target{Scope: codex, Path: "a.md"})
	capture(t, store, PreRestoreTrigger("1000"), Target{Scope: codex, Path: "a.md"}, Target{Scope: claude, Path: "b.md"})

	require.NoError(t, ws.Backups().MkdirAll("orphan/codex", 0o755))
	require.NoError(t, storage.WriteAtomic(ws.Backups(), "broken/manifest.json", []byte("{not json")))
	require.NoError(t, storage.WriteAtomic(ws.Backups(), "stray.txt", []byte("x")))

	infos, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{BackupID: "1001", CreatedAt: 1001, Trigger: "pre_restore:1000", EntryCount: 2},
		{BackupID: "1000", CreatedAt: 1000, Trigger: "sync", EntryCount: 1},
	}, infos)
}

func TestListEmpty(t *testing.T) {
	t.Parallel()

	infos, err := NewStore(workspace.NewMemory()).List()
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	store := NewStore(ws)
	require.NoError(t, storage.WriteAtomic(ws.Backups(), "42/manifest.json", []byte(`{"trigger":"sync"}`)))

	tests := []struct {
		id   string
		want error
	}{
		{"missing", common.ErrNotFound},
		{"42", common.ErrSerialization},
		{"../etc", common.ErrInvalidPath},
		{"a/b", common.ErrInvalidPath},
		{"", common.ErrInvalidPath},
	}
	for _, tt := range tests {
		_, err := store.Load(tt.id)
		assert.True(t, errors.Is(err, tt.want), "id %q: %v", tt.id, err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	writeFile(t, ws, codex, "AGENTS.md", "content")
	store := NewStore(ws, fixedClock(1000))
	snap := capture(t, store, TriggerSync, Target{Scope: codex, Path: "AGENTS.md"})

	require.NoError(t, store.Delete(snap.ID()))
	_, err := store.Load(snap.ID())
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, store.Delete(snap.ID()), common.ErrNotFound)
	require.ErrorIs(t, store.Delete("../x"), common.ErrInvalidPath)

	// targets are never touched by backup deletion
	got, ok := readFile(t, ws, codex, "AGENTS.md")
	assert.True(t, ok)
	assert.Equal(t, "content", got)
}

func TestDetail(t *testing.T) {
	t.Parallel()

	ws := workspace.NewMemory()
	writeFile(t, ws, codex, "AGENTS.md", "before")
	store := NewStore(ws, fixedClock(1000))
	snap := capture(t, store, TriggerSync,
		Target{Scope: codex, Path: "AGENTS.md"},
		Target{Scope: claude, Path: "CLAUDE.md"},
	)
	require.NoError(t, snap.Write(codex, "AGENTS.md", []byte("after")))
	require.NoError(t, snap.Write(claude, "CLAUDE.md", []byte("created")))

	d, err := store.Detail(snap.ID())
	require.NoError(t, err)
	assert.Equal(t, "1000", d.BackupID)
	require.Len(t, d.Entries, 2)

	require.NotNil(t, d.Entries[0].BackupContent)
	require.NotNil(t, d.Entries[0].CurrentContent)
	assert.Equal(t, "before", *d.Entries[0].BackupContent)
	assert.Equal(t, "after", *d.Entries[0].CurrentContent)

	assert.Nil(t, d.Entries[1].BackupContent)
	require.NotNil(t, d.Entries[1].CurrentContent)
	assert.Equal(t, "created", *d.Entries[1].CurrentContent)

	_, err = store.Detail("404")
	require.ErrorIs(t, err, common.ErrNotFound)
}
