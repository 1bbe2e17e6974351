package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindEnvLocal_InCurrentDir(t *testing.T) {
	// Create temp directory structure
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=value"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in current directory")
	}
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	// Create temp directory structure: parent/.env.local, parent/child/
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	if err := os.Mkdir(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in parent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_InGrandparentDir(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to grandchild dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in grandparent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_ClosestWins(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Create .env.local in both grandparent and parent
	if err := os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}
	parentEnvPath := filepath.Join(parentDir, ".env.local")
	if err := os.WriteFile(parentEnvPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(parentEnvPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected closest .env.local (%s), got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_NotFound(t *testing.T) {
	// Create temp directory with no .env.local
	tmpDir := t.TempDir()

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result != "" {
		t.Errorf("expected empty string when no .env.local found, got %s", result)
	}
}

// isolate points HOME and cwd at a fresh directory and clears EOTDIFF_* vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"EOTDIFF_LOG_LEVEL", "EOTDIFF_OUTPUT", "EOTDIFF_ADDR", "EOTDIFF_TOKEN",
		"EOTDIFF_TOKEN_FILE", "EOTDIFF_INCLUDE_BASELINE", "EOTDIFF_WEBHOOK_URLS", "EOTDIFF_WORKERS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "table" || cfg.Level() != "WARN" || cfg.DaemonAddr != DefaultDaemonAddr {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	opts := cfg.MatchOptions()
	if opts.UIDBonus != 2.5 || opts.MaxPool != 120 {
		t.Errorf("unexpected matcher defaults %+v", opts)
	}
}

func TestConfig_LevelOr(t *testing.T) {
	unset := &Config{}
	if got := unset.Level(); got != "WARN" {
		t.Errorf("Level() = %q, want WARN", got)
	}
	if got := unset.LevelOr("INFO"); got != "INFO" {
		t.Errorf("LevelOr() = %q, want INFO", got)
	}

	set := &Config{LogLevel: "debug"}
	if got := set.LevelOr("INFO"); got != "DEBUG" {
		t.Errorf("LevelOr() = %q, want DEBUG", got)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "eotdiff")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	yamlConfig := `output: json
log_level: debug
include_baseline: true
matcher:
  uid_bonus: 1.5
  max_pool: 40
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EOTDIFF_OUTPUT", "csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "csv" {
		t.Errorf("env should override YAML output, got %q", cfg.Output)
	}
	if cfg.Level() != "DEBUG" || !cfg.IncludeBaseline {
		t.Errorf("unexpected YAML values %+v", cfg)
	}
	if cfg.Matcher.UIDBonus != 1.5 || cfg.Matcher.MaxPool != 40 {
		t.Errorf("unexpected matcher %+v", cfg.Matcher)
	}
}

func TestLoad_EnvLocal(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("EOTDIFF_ADDR=127.0.0.1:9999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EOTDIFF_ADDR", "")
	os.Unsetenv("EOTDIFF_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DaemonAddr != "127.0.0.1:9999" {
		t.Errorf("expected .env.local address, got %q", cfg.DaemonAddr)
	}
}

func TestLoad_TokenFile(t *testing.T) {
	dir := isolate(t)
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("s3cret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EOTDIFF_TOKEN_FILE", tokenPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DaemonToken != "s3cret" {
		t.Errorf("token = %q", cfg.DaemonToken)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad output", "EOTDIFF_OUTPUT", "pdf"},
		{"bad baseline flag", "EOTDIFF_INCLUDE_BASELINE", "perhaps"},
		{"bad workers", "EOTDIFF_WORKERS", "many"},
		{"negative workers", "EOTDIFF_WORKERS", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "eotdiff")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("matcher: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestValidate_Matcher(t *testing.T) {
	cfg := &Config{Output: "table", Matcher: MatcherConfig{UIDBonus: 2.5, MaxPool: 0}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_pool")
	}
	cfg.Matcher = MatcherConfig{UIDBonus: -1, MaxPool: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative uid_bonus")
	}
}

func TestLoad_WebhooksAndWorkers(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "eotdiff")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	yamlConfig := `webhook_urls:
  - http://hooks.local/{session_id}
workers: 3
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.WebhookURLs) != 1 || cfg.Workers != 3 {
		t.Errorf("unexpected YAML values %+v", cfg)
	}

	t.Setenv("EOTDIFF_WEBHOOK_URLS", " http://a.local , ,http://b.local")
	t.Setenv("EOTDIFF_WORKERS", "2")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.WebhookURLs) != 2 || cfg.WebhookURLs[0] != "http://a.local" || cfg.WebhookURLs[1] != "http://b.local" {
		t.Errorf("webhook urls = %q", cfg.WebhookURLs)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d", cfg.Workers)
	}
}
