package scripts

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestPythonSkeletonRejectsNonObjectConfig(t *testing.T) {
	data := sampleSkeleton
	data.Platform = "network"
	data.Region = StubRegion(LanguagePython)
	src, err := Default().RenderSkeleton(LanguagePython, data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(src, "isinstance(CONFIG, dict)") {
		t.Fatal("skeleton does not check the config type")
	}

	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not installed")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "check.py")
	if err := os.WriteFile(script, []byte(src), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{"array": "[1, 2]", "null": "null", "string": `"x"`} {
		t.Run(name, func(t *testing.T) {
			cfg := filepath.Join(dir, name+".json")
			if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			out, err := exec.Command(python, script, "--config", cfg).CombinedOutput()
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
				t.Fatalf("expected exit 3, got %v: %s", err, out)
			}
			if !strings.Contains(string(out), "Error") {
				t.Errorf("unexpected output %s", out)
			}
		})
	}
}
