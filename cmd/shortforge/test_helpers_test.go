package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortforge/internal/procexec"
)

type cliTestEnv struct {
	baseDir    string
	workspace  string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SHORTFORGE_NTFY_TOPIC", "")
	t.Setenv("SHORTFORGE_HF_TOKEN", "")

	env := &cliTestEnv{
		baseDir:    base,
		workspace:  filepath.Join(base, "workspace"),
		configPath: filepath.Join(homeDir, ".config", "shortforge", "config.toml"),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf("[paths]\nworkspace_dir = %q\nlog_dir = %q\n\n[logging]\nlevel = \"error\"\n",
		env.workspace, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) dir(name string) string {
	return filepath.Join(e.workspace, name)
}

func runCLI(t *testing.T, runner procexec.Runner, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithRunner(runner)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
