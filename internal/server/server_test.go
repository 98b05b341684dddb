package server

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/toolvault/internal/config"
	"github.com/HendryAvila/toolvault/internal/reconcile"
	"github.com/HendryAvila/toolvault/internal/remote/cloud"
	"github.com/HendryAvila/toolvault/internal/tool"
)

func testConfig(t *testing.T, vars map[string]string) config.Config {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	vars["TOOLVAULT_DATA_DIR"] = t.TempDir()
	cfg, err := config.LoadFrom(vars)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func build(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_WithoutRemote(t *testing.T) {
	cfg := testConfig(t, nil)
	app := build(t, cfg)

	if app.Remote != nil || app.Repo.HasRemote() {
		t.Error("remote should not be wired when disabled")
	}
	for _, name := range []string{"tools.db", "artifacts.db"} {
		if _, err := os.Stat(filepath.Join(cfg.DataDir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if _, err := app.Engine.Sync(context.Background()); !errors.Is(err, reconcile.ErrCloudUnavailable) {
		t.Errorf("Sync err = %v, want ErrCloudUnavailable", err)
	}

	meta, err := app.Repo.Save(context.Background(), tool.Definition{Name: "Offline", Output: tool.Output{Type: "text"}}, tool.SaveMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if !tool.IsLocalID(meta.ID) {
		t.Errorf("id = %s, want a local draft", meta.ID)
	}
}

func TestBuild_BadDataDir(t *testing.T) {
	cfg := testConfig(t, nil)
	file := filepath.Join(cfg.DataDir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.DataDir = file

	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for a data dir that is a file")
	}
}

func TestBuild_WithCloud(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cs, err := cloud.New(cloud.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(cs.Handler())
	t.Cleanup(ts.Close)

	app := build(t, testConfig(t, map[string]string{
		"TOOLVAULT_REMOTE_ENABLED": "true",
		"TOOLVAULT_REMOTE_URL":     ts.URL,
	}))
	ctx := context.Background()

	if app.Repo.IsCloudAvailable(ctx) {
		t.Error("cloud should be unavailable before sign-in")
	}
	if _, err := app.Repo.Auth().SignUp(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	meta, err := app.Repo.Save(ctx, tool.Definition{Name: "Shared", Output: tool.Output{Type: "text"}}, tool.SaveMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if tool.IsLocalID(meta.ID) || meta.Source != tool.SourceRemote {
		t.Errorf("meta = %+v, want a cloud record", meta)
	}

	res, err := app.Engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.CloudCount != 1 || res.Conflicts != 0 {
		t.Errorf("result = %+v", res)
	}

	rec := httptest.NewRecorder()
	MetricsHandler(app.Registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "toolvault_sync_runs_total") {
		t.Error("sync metrics not exported")
	}
}

func TestVaultTools_Registered(t *testing.T) {
	app := build(t, testConfig(t, nil))

	want := []string{
		"vault_save", "vault_get", "vault_list", "vault_delete", "vault_favorite", "vault_recent",
		"vault_sync", "vault_sync_status", "vault_clear_sync_error", "vault_import_drafts",
		"vault_export", "vault_import", "vault_cache_stats", "vault_cache_clear",
		"vault_artifact_store", "vault_artifact_get", "vault_artifact_list",
	}
	got := map[string]bool{}
	for _, h := range vaultTools(app) {
		got[h.Definition().Name] = true
	}
	if len(got) != len(want) {
		t.Errorf("registered %d tools, want %d", len(got), len(want))
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("%s not registered", name)
		}
	}

	if New(app) == nil {
		t.Fatal("New returned nil")
	}
}

func TestServerInstructions_MentionsTools(t *testing.T) {
	text := serverInstructions()
	for _, name := range []string{"vault_save", "vault_sync", "vault_import_drafts", "vault-sync-review"} {
		if !strings.Contains(text, name) {
			t.Errorf("instructions missing %s", name)
		}
	}
}
