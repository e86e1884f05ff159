package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcfg/internal/mapping"
)

func TestComposeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     string
		fragment string
		want     string
		ok       bool
	}{
		{name: "both", base: "X", fragment: "Y", want: "X\n\nY", ok: true},
		{name: "base trailing whitespace", base: "X\n\n  \n", fragment: "Y\n", want: "X\n\nY\n", ok: true},
		{name: "fragment leading whitespace kept", base: "X", fragment: "\nY", want: "X\n\n\nY", ok: true},
		{name: "base only", base: "X", fragment: "", want: "X", ok: true},
		{name: "blank fragment", base: "X\n", fragment: " \n\t", want: "X\n", ok: true},
		{name: "fragment only", base: "  ", fragment: "Y", want: "Y", ok: true},
		{name: "neither", base: "\n", fragment: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ComposeText(tt.base, tt.fragment)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFragments(t *testing.T) {
	t.Parallel()

	fileStyle := mapping.DefaultCategoryMapping(mapping.Instructions)

	t.Run("base and agent", func(t *testing.T) {
		t.Parallel()
		f, ok := DetectFragments("instructions", fileStyle, []string{"base.md", "codex.md", "notes.md"})
		require.True(t, ok)
		assert.Equal(t, "base.md", f.Base)
		assert.Equal(t, "codex.md", f.Agent(mapping.AgentCodex))
		assert.Empty(t, f.Agent(mapping.AgentClaude))
		assert.Equal(t, "instructions/codex.md", f.FragmentPath("codex.md"))
	})

	t.Run("agent only", func(t *testing.T) {
		t.Parallel()
		f, ok := DetectFragments("instructions", fileStyle, []string{"claude.txt"})
		require.True(t, ok)
		assert.Empty(t, f.Base)
		assert.Equal(t, "claude.txt", f.Agent(mapping.AgentClaude))
	})

	t.Run("first per stem wins", func(t *testing.T) {
		t.Parallel()
		f, ok := DetectFragments("instructions", fileStyle, []string{"base.md", "base.txt", "gemini.md", "gemini.txt"})
		require.True(t, ok)
		assert.Equal(t, "base.md", f.Base)
		assert.Equal(t, "gemini.md", f.Agent(mapping.AgentGemini))
	})

	t.Run("no fragment names", func(t *testing.T) {
		t.Parallel()
		_, ok := DetectFragments("instructions", fileStyle, []string{"a.md", "b.md"})
		assert.False(t, ok)
	})

	t.Run("directory targets", func(t *testing.T) {
		t.Parallel()
		_, ok := DetectFragments("skills", mapping.DefaultCategoryMapping(mapping.Skills), []string{"base.md", "codex.md"})
		assert.False(t, ok)
	})

	t.Run("one directory target", func(t *testing.T) {
		t.Parallel()
		cm := fileStyle.WithTarget(mapping.AgentGemini, "gemini")
		_, ok := DetectFragments("instructions", cm, []string{"base.md"})
		assert.False(t, ok)
	})
}

func TestDeriveFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		content string
		want    string
	}{
		{name: "composed", base: "X", content: "X\n\nY", want: "Y"},
		{name: "base with trailing newline", base: "X\n", content: "X\n\nY\n", want: "Y\n"},
		{name: "base only", base: "X\n", content: "X", want: ""},
		{name: "no base", base: "", content: "Y", want: "Y"},
		{name: "base not a prefix", base: "X", content: "Z\n\nY", want: "Z\n\nY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DeriveFragment(tt.base, tt.content)
			assert.Equal(t, tt.want, got)

			if tt.want != "" && tt.want != tt.content {
				composed, ok := ComposeText(tt.base, got)
				require.True(t, ok)
				assert.Equal(t, tt.content, composed)
			}
		})
	}
}

func TestApplyMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		before     string
		after      string
		mode       mapping.SyncMode
		exists     bool
		wantFinal  string
		wantStatus Status
	}{
		{name: "replace create", after: "B", mode: mapping.SyncModeReplace, wantFinal: "B", wantStatus: StatusCreate},
		{name: "replace unchanged", before: "B", after: "B", mode: mapping.SyncModeReplace, exists: true, wantFinal: "B", wantStatus: StatusUnchanged},
		{name: "replace update", before: "A", after: "B", mode: mapping.SyncModeReplace, exists: true, wantFinal: "B", wantStatus: StatusUpdate},
		{name: "replace empty existing", before: "", after: "B", mode: mapping.SyncModeReplace, exists: true, wantFinal: "B", wantStatus: StatusUpdate},
		{name: "append create", after: "B", mode: mapping.SyncModeAppend, wantFinal: "B", wantStatus: StatusCreate},
		{name: "append", before: "A", after: "B", mode: mapping.SyncModeAppend, exists: true, wantFinal: "A\n\nB", wantStatus: StatusAppend},
		{name: "append trims before", before: "A\n\n", after: "B", mode: mapping.SyncModeAppend, exists: true, wantFinal: "A\n\nB", wantStatus: StatusAppend},
		{name: "append converged", before: "A\n\nB", after: "B", mode: mapping.SyncModeAppend, exists: true, wantFinal: "A\n\nB", wantStatus: StatusUnchanged},
		{name: "append converged with newline", before: "A\n\nB\n", after: "B\n", mode: mapping.SyncModeAppend, exists: true, wantFinal: "A\n\nB\n", wantStatus: StatusUnchanged},
		{name: "append to empty file", before: "", after: "B", mode: mapping.SyncModeAppend, exists: true, wantFinal: "B", wantStatus: StatusAppend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			final, status := ApplyMode(tt.before, tt.after, tt.mode, tt.exists)
			assert.Equal(t, tt.wantFinal, final)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestAppendConvergence(t *testing.T) {
	t.Parallel()

	first, status := ApplyMode("A", "B", mapping.SyncModeAppend, true)
	require.Equal(t, StatusAppend, status)
	require.Equal(t, "A\n\nB", first)

	second, status := ApplyMode(first, "B", mapping.SyncModeAppend, true)
	assert.Equal(t, StatusUnchanged, status)
	assert.Equal(t, first, second)
}
