package engine

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/require"

	"agentcfg/internal/common"
	"agentcfg/internal/config"
	"agentcfg/internal/mapping"
	"agentcfg/internal/reconcile"
)

type testEnv struct {
	t      *testing.T
	home   string
	dir    string
	engine *Engine
}

func newTestEnv(t *testing.T, configure func(*config.Settings)) *testEnv {
	t.Helper()
	home := t.TempDir()
	dir := filepath.Join(home, config.DefaultWorkspaceName)

	settings := config.DefaultSettings()
	if configure != nil {
		configure(settings)
	}
	e, err := Open(dir, home, settings, WithClock(func() time.Time { return time.UnixMilli(1700000000000) }))
	require.NoError(t, err)
	return &testEnv{t: t, home: home, dir: dir, engine: e}
}

func (env *testEnv) write(path, content string) {
	env.t.Helper()
	require.NoError(env.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(env.t, os.WriteFile(path, []byte(content), 0o644))
}

func (env *testEnv) sourcePath(rel string) string {
	return filepath.Join(env.dir, "source", filepath.FromSlash(rel))
}

func (env *testEnv) agentPath(a mapping.Agent, rel string) string {
	return filepath.Join(env.home, "."+string(a), filepath.FromSlash(rel))
}

func (env *testEnv) read(path string) string {
	env.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(env.t, err)
	return string(data)
}

// agentFiles returns every file under the agent roots keyed by agent/path.
func (env *testEnv) agentFiles() map[string]string {
	env.t.Helper()
	files := map[string]string{}
	for _, a := range mapping.Agents {
		root := env.agentPath(a, "")
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, _ := filepath.Rel(root, p)
			files[string(a)+"/"+filepath.ToSlash(rel)] = env.read(p)
			return nil
		})
		require.NoError(env.t, err)
	}
	return files
}

func TestEngineSyncProperties(t *testing.T) {
	t.Parallel()

	t.Run("Idempotence", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)
		env := newTestEnv(t, nil)
		env.write(env.sourcePath("instructions/base.md"), "Shared")
		env.write(env.sourcePath("skills/review/SKILL.md"), "review")
		env.write(env.agentPath(mapping.AgentGemini, "GEMINI.md"), "old")

		result, err := env.engine.ApplySync(nil)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(result.AppliedCount).To(Equal(6))
		g.Expect(result.BackupID).NotTo(BeEmpty())

		preview, err := env.engine.PreviewSync()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(preview.Items).To(HaveLen(6))
		g.Expect(preview.GeneratedAt).To(Equal(int64(1700000000000)))
		for _, it := range preview.Items {
			g.Expect(it.Status).To(Equal(reconcile.StatusUnchanged), it.ID)
		}

		again, err := env.engine.ApplySync(nil)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(again.BackupID).To(BeEmpty())

		backups, err := env.engine.ListBackups()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(backups).To(HaveLen(1))
	})

	t.Run("PerAgentComposition", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)
		env := newTestEnv(t, nil)
		env.write(env.sourcePath("instructions/base.md"), "Shared")
		env.write(env.sourcePath("instructions/codex.md"), "Codex-only")

		_, err := env.engine.ApplySync(nil)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(env.read(env.agentPath(mapping.AgentCodex, "AGENTS.md"))).To(Equal("Shared\n\nCodex-only"))
		g.Expect(env.read(env.agentPath(mapping.AgentGemini, "GEMINI.md"))).To(Equal("Shared"))
		g.Expect(env.read(env.agentPath(mapping.AgentClaude, "CLAUDE.md"))).To(Equal("Shared"))
	})

	t.Run("CollisionWritesNothing", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)
		env := newTestEnv(t, nil)
		env.write(env.sourcePath("instructions/one.md"), "1")
		env.write(env.sourcePath("instructions/two.md"), "2")

		_, err := env.engine.PreviewSync()
		g.Expect(err).To(MatchError(common.ErrMappingConflict))

		_, err = env.engine.ApplySync(nil)
		g.Expect(err).To(MatchError(common.ErrMappingConflict))
		g.Expect(env.agentFiles()).To(BeEmpty())
	})

	t.Run("RestoreReversibility", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)
		env := newTestEnv(t, nil)
		env.write(env.sourcePath("instructions/base.md"), "Shared")
		env.write(env.sourcePath("instructions/codex.md"), "Codex-only")
		env.write(env.sourcePath("commands/deploy.md"), "deploy")
		env.write(env.agentPath(mapping.AgentCodex, "AGENTS.md"), "hand written")
		env.write(env.agentPath(mapping.AgentCodex, "rules/deploy.md"), "old deploy")
		pre := env.agentFiles()

		applied, err := env.engine.ApplySync(nil)
		g.Expect(err).NotTo(HaveOccurred())
		post := env.agentFiles()
		g.Expect(post).NotTo(Equal(pre))

		detail, err := env.engine.GetBackupDetail(applied.BackupID)
		g.Expect(err).NotTo(HaveOccurred())
		for _, entry := range detail.Entries {
			if entry.ExistedBefore {
				g.Expect(entry.BackupContent).NotTo(BeNil())
				g.Expect(*entry.BackupContent).To(Equal(pre[entry.Agent+"/"+entry.TargetRelativePath]))
			} else {
				g.Expect(entry.BackupContent).To(BeNil())
			}
		}

		restored, err := env.engine.RestoreBackup(applied.BackupID)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(restored.RestoredCount).To(Equal(len(detail.Entries)))
		g.Expect(restored.PreRestoreBackupID).NotTo(BeEmpty())
		g.Expect(env.agentFiles()).To(Equal(pre))

		undo, err := env.engine.RestoreBackup(restored.PreRestoreBackupID)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(undo.RestoredCount).To(BeNumerically(">", 0))
		g.Expect(env.agentFiles()).To(Equal(post))
		g.Expect(env.read(env.sourcePath("instructions/codex.md"))).To(Equal("Codex-only"))

		backups, err := env.engine.ListBackups()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(backups).To(HaveLen(3))
		g.Expect(backups[0].Trigger).To(Equal("pre_restore:" + restored.PreRestoreBackupID))
		g.Expect(backups[1].Trigger).To(Equal("pre_restore:" + applied.BackupID))
		g.Expect(backups[2].Trigger).To(Equal("sync"))
	})
}

func TestEngineRetention(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t, func(s *config.Settings) { s.Retention.MaxCount = 2 })
	var last string
	for _, content := range []string{"v1", "v2", "v3"} {
		env.write(env.sourcePath("skills/a.md"), content)
		result, err := env.engine.ApplySync(nil)
		g.Expect(err).NotTo(HaveOccurred())
		last = result.BackupID
	}

	backups, err := env.engine.ListBackups()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(backups).To(HaveLen(2))
	g.Expect(backups[0].BackupID).To(Equal(last))

	pruned, err := env.engine.PruneBackups()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pruned).To(BeEmpty())
}

func TestEngineDeleteBackup(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t, nil)
	env.write(env.sourcePath("skills/a.md"), "a")
	result, err := env.engine.ApplySync(nil)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(env.engine.DeleteBackup(result.BackupID)).To(Succeed())
	g.Expect(env.engine.DeleteBackup(result.BackupID)).To(MatchError(common.ErrNotFound))
	_, err = env.engine.GetBackupDetail(result.BackupID)
	g.Expect(err).To(MatchError(common.ErrNotFound))
	_, err = env.engine.RestoreBackup(result.BackupID)
	g.Expect(err).To(MatchError(common.ErrNotFound))

	g.Expect(env.read(env.agentPath(mapping.AgentClaude, "skills/a.md"))).To(Equal("a"))
}

func TestEngineInit(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t, nil)
	env.write(env.agentPath(mapping.AgentClaude, "CLAUDE.md"), "claude rules")
	env.write(env.agentPath(mapping.AgentGemini, "GEMINI.md"), "   ")

	info, err := env.engine.Init()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.Bootstrapped).To(Equal([]string{"instructions/claude.md"}))
	g.Expect(info.Categories).To(ContainElements("instructions", "skills", "plugins", "commands", "mcp"))
	g.Expect(env.read(env.sourcePath("instructions/claude.md"))).To(Equal("claude rules"))
	g.Expect(filepath.Join(env.dir, mapping.FileName)).To(BeAnExistingFile())
	g.Expect(filepath.Join(env.dir, "backups")).To(BeADirectory())

	again, err := env.engine.Init()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(again.Bootstrapped).To(BeEmpty())
}

func TestEngineMapping(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t, nil)
	cfg, err := env.engine.SetTarget("commands", mapping.AgentCodex, "prompts/commands")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Categories["commands"].Codex).To(Equal("prompts/commands"))

	cfg, err = env.engine.SetSyncMode("notes", mapping.SyncModeAppend)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Categories["notes"]).To(Equal(mapping.CategoryMapping{
		Codex: "notes", Gemini: "notes", Claude: "notes", SyncMode: mapping.SyncModeAppend,
	}))

	_, err = env.engine.SetTarget("skills", mapping.AgentClaude, "../outside")
	g.Expect(err).To(MatchError(common.ErrMappingValidation))
	_, err = env.engine.SetTarget("../skills", mapping.AgentClaude, "x")
	g.Expect(err).To(MatchError(common.ErrMappingValidation))

	cfg, err = env.engine.Mapping()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Categories["skills"].Claude).To(Equal("skills"))

	cfg, err = env.engine.ResetMapping()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Categories).NotTo(HaveKey("notes"))
}

func TestEngineRecoversCorruptMapping(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t, nil)
	env.write(filepath.Join(env.dir, mapping.FileName), "{ not json")

	cfg, err := env.engine.Mapping()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Categories).To(HaveLen(5))
	g.Expect(env.read(filepath.Join(env.dir, mapping.FileName+mapping.InvalidSuffix))).To(Equal("{ not json"))
}
