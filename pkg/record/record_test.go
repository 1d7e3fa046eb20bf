package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeAliases(t *testing.T) {
	rec, err := Normalize(map[string]any{
		"Group ID":       "V-230221",
		"STIG ID":        "RHEL-08-010000",
		"Rule ID":        "SV-230221r1_rule",
		"Severity":       "CAT I",
		"Rule Title":     "Shadow file permissions",
		"Check Content":  "stat -c %a /etc/shadow",
		"Benchmark Name": "Red Hat Enterprise Linux 8 STIG",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.VulnID != "V-230221" || rec.StigID != "RHEL-08-010000" || rec.RuleID != "SV-230221r1_rule" {
		t.Errorf("identity not mapped: %+v", rec)
	}
	if rec.Severity != SeverityHigh || rec.CheckContent == "" || rec.Benchmark == "" {
		t.Errorf("fields not mapped: %+v", rec)
	}
	if rec.ID() != "RHEL-08-010000" {
		t.Errorf("ID() = %q", rec.ID())
	}
}

func TestNormalizeRequiresIdentity(t *testing.T) {
	_, err := Normalize(map[string]any{"check_content": "no identity"})
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
}

func TestNormalizeCollidingAliasesIsDeterministic(t *testing.T) {
	raw := map[string]any{
		"vuln_id":  "V-2",
		"Vuln ID":  "V-1",
		"VULN-ID":  "",
		"Group ID": "V-9",
		"STIG ID":  "X-1",
		"stig_id":  "X-2",
	}
	for i := 0; i < 50; i++ {
		rec, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		// "VULN-ID" sorts first but is empty; "Vuln ID" is the first non-empty
		// key folding to vulnid, and vuln_id is listed before Group ID.
		if rec.VulnID != "V-1" || rec.StigID != "X-1" {
			t.Fatalf("run %d: got vuln_id %q stig_id %q", i, rec.VulnID, rec.StigID)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"CAT I":   SeverityHigh,
		"high":    SeverityHigh,
		"cat ii":  SeverityMedium,
		"":        SeverityMedium,
		"CAT III": SeverityLow,
		"info":    SeverityLow,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestTextFallsBackToTitle(t *testing.T) {
	r := CheckRecord{RuleTitle: "title only", CheckContent: "  "}
	if r.Text() != "title only" {
		t.Errorf("Text() = %q", r.Text())
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name string
		rec  CheckRecord
		want Platform
	}{
		{"benchmark windows", CheckRecord{Benchmark: "Microsoft Windows Server 2022 STIG"}, PlatformWindows},
		{"database beats os", CheckRecord{Benchmark: "PostgreSQL 9.x on RHEL STIG"}, PlatformDatabase},
		{"network benchmark", CheckRecord{Benchmark: "Cisco IOS XE Router NDM STIG"}, PlatformNetwork},
		{"registry text", CheckRecord{CheckContent: `Check HKLM\SOFTWARE\Policies`}, PlatformWindows},
		{"show command", CheckRecord{CheckContent: "Run show running-config and review"}, PlatformNetwork},
		{"default linux", CheckRecord{CheckContent: "stat /etc/shadow"}, PlatformLinux},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPlatform(tt.rec); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	if ParsePlatform("Windows") != PlatformWindows {
		t.Error("expected case-insensitive match")
	}
	if ParsePlatform("mainframe") != "" {
		t.Error("expected empty platform for unknown names")
	}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileLayouts(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]struct {
		name    string
		content string
		want    int
	}{
		"array":        {"a.json", `[{"vuln_id": "V-1"}, {"vuln_id": "V-2"}]`, 2},
		"wrapper":      {"b.json", `{"Rules": [{"vuln_id": "V-1"}]}`, 1},
		"single":       {"c.json", `{"stig_id": "X-1", "check_content": "c"}`, 1},
		"keyed by id":  {"d.json", `{"V-1": {"check_content": "a"}, "V-2": {"check_content": "b"}}`, 2},
		"json lines":   {"e.jsonl", "{\"vuln_id\": \"V-1\"}\n\n{\"vuln_id\": \"V-2\"}\n", 2},
		"yaml wrapper": {"f.yaml", "checks:\n  - vuln_id: V-1\n    check_content: x\n", 1},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			recs, warns, err := LoadFile(write(t, dir, tt.name, tt.content))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if len(recs) != tt.want || len(warns) != 0 {
				t.Errorf("got %d records, %d warnings", len(recs), len(warns))
			}
		})
	}
}

func TestLoadFileKeyedLayoutOrder(t *testing.T) {
	path := write(t, t.TempDir(), "keyed.json", `{"V-2": {"check_content": "b"}, "V-1": {"check_content": "a"}}`)
	recs, _, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].VulnID != "V-1" || recs[1].VulnID != "V-2" {
		t.Errorf("expected sorted keys, got %s, %s", recs[0].VulnID, recs[1].VulnID)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := LoadFile(write(t, dir, "x.txt", "hello")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := LoadFile(write(t, dir, "bad.json", "{")); err == nil {
		t.Error("expected a parse error")
	}
	if _, _, err := LoadFile(write(t, dir, "scalar.json", `[1, 2]`)); err == nil {
		t.Error("expected an error for non-object items")
	}
}

func TestLoadPathsWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.json", `[{"vuln_id": "V-2"}, {"check_content": "no id"}]`)
	write(t, dir, "a.yaml", "- vuln_id: V-1\n")
	write(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	write(t, filepath.Join(dir, "sub"), "c.jsonl", `{"vuln_id": "V-3"}`)

	recs, warns, err := LoadPaths([]string{dir})
	if err != nil {
		t.Fatalf("LoadPaths: %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.VulnID)
	}
	if len(ids) != 3 || ids[0] != "V-1" || ids[1] != "V-2" || ids[2] != "V-3" {
		t.Errorf("unexpected records %v", ids)
	}
	if len(warns) != 1 || !errors.Is(warns[0], ErrNoIdentity) {
		t.Errorf("expected one identity warning, got %v", warns)
	}
}

func TestLoadPathsNothingLoaded(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "bad.json", "{")
	if _, _, err := LoadPaths([]string{dir}); err == nil {
		t.Error("expected an error when every file fails")
	}
	if _, _, err := LoadPaths([]string{filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("expected an error for a missing path")
	}
}
