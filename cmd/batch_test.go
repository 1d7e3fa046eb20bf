package cmd

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/logging"
)

func init() {
	logging.SetOutput(io.Discard)
}

const checklist = `[
  {"Group ID": "V-230221", "STIG ID": "RHEL-08-010000", "Severity": "CAT II",
   "Check Content": "Verify file /etc/shadow has permissions 0600: # stat -c %a /etc/shadow"},
  {"Group ID": "V-230222", "STIG ID": "RHEL-08-010010",
   "Check Content": "Interview the ISSO and review the System Security Plan for documented exceptions"}
]`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvDatabaseURL, "")
	t.Cleanup(func() { config.Path = "" })
	rootCmd.SetArgs(append(args, "--config", filepath.Join(dir, "config.yaml")))
	return rootCmd.Execute()
}

func writeChecklist(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhel8.json")
	if err := os.WriteFile(path, []byte(checklist), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateCommand(t *testing.T) {
	in := writeChecklist(t)
	out := t.TempDir()
	export := filepath.Join(t.TempDir(), "classes.json")

	if err := execute(t, "generate", in, "--out", out, "--export-json", export, "--no-color"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, name := range []string{"RHEL-08-010000.sh", "RHEL-08-010010.sh"} {
		if _, err := os.Stat(filepath.Join(out, "linux", name)); err != nil {
			t.Errorf("expected script %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	var classes []map[string]any
	if err := json.Unmarshal(data, &classes); err != nil {
		t.Fatal(err)
	}
	if len(classes) != 2 || classes[0]["category"] != "fully_automated" {
		t.Errorf("unexpected export %s", data)
	}
}

func TestClassifyCommandWritesNoScripts(t *testing.T) {
	in := writeChecklist(t)
	out := filepath.Join(t.TempDir(), "out")
	if err := execute(t, "classify", in, "--out", out, "--no-color"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("classify created %s", out)
	}
}

func TestBatchRejectsBadPlatform(t *testing.T) {
	in := writeChecklist(t)
	if err := execute(t, "classify", in, "--platform", "mainframe"); err == nil {
		t.Error("expected an error for an unknown platform")
	}
}
