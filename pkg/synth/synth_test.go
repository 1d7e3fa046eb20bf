package synth

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/scripts"
)

func render(t *testing.T, rec record.CheckRecord, p record.Platform, hint extract.CheckType) GeneratedArtifact {
	t.Helper()
	params := extract.Extract(rec.Text(), hint)
	art, err := New(nil, "out").Render(hint, p, params, rec)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return art
}

func TestRenderFilePermission(t *testing.T) {
	rec := record.CheckRecord{
		VulnID:       "V-230256",
		StigID:       "RHEL-08-010000",
		Severity:     record.SeverityMedium,
		CheckContent: "Verify file /etc/shadow has permissions 0600: # stat -c %a /etc/shadow",
	}
	art := render(t, rec, record.PlatformLinux, extract.TypeFilePermission)

	if art.Status != StatusSynthesized || art.TemplateID != "linux.file_permission" {
		t.Fatalf("expected synthesized linux.file_permission, got %s %s (%s)", art.Status, art.TemplateID, art.Reason)
	}
	if art.Language != scripts.LanguageBash {
		t.Errorf("expected bash, got %s", art.Language)
	}
	if art.Path != filepath.Join("out", "linux", "RHEL-08-010000.sh") {
		t.Errorf("unexpected path %s", art.Path)
	}
	for _, want := range []string{"'/etc/shadow'", "0600", scripts.GeneratedBegin, "EXIT_PASS=0"} {
		if !strings.Contains(art.Source, want) {
			t.Errorf("source missing %q", want)
		}
	}
	if !strings.Contains(art.Source, scripts.Indent(4, art.Region)) {
		t.Error("region is not part of the source")
	}
}

func TestPlaceholderParametersUseManualTemplate(t *testing.T) {
	texts := map[extract.CheckType]string{
		extract.TypeFilePermission:  "Verify the permissions on the audit logs are correct.",
		extract.TypeServiceStatus:   "Verify the service is configured properly.",
		extract.TypeKernelParameter: "Check kernel hardening.",
		extract.TypePackagePresence: "Check the installed software.",
	}
	for ct, text := range texts {
		rec := record.CheckRecord{VulnID: "V-9", StigID: "X-1", CheckContent: text}
		params := extract.Extract(text, ct)
		if !params.Placeholder {
			t.Fatalf("%s: expected placeholder parameters", ct)
		}
		art, err := New(nil, t.TempDir()).Render(ct, record.PlatformLinux, params, rec)
		if err != nil {
			t.Fatalf("%s: %v", ct, err)
		}
		if art.Status != StatusManualPlaceholder || art.TemplateID != "linux.manual" {
			t.Errorf("%s: expected manual placeholder, got %s %s", ct, art.Status, art.TemplateID)
		}
		if !strings.Contains(art.Source, "Not_Reviewed") {
			t.Errorf("%s: manual script does not report Not_Reviewed", ct)
		}
	}
}

func TestMissingTemplateFallsBackToManual(t *testing.T) {
	rec := record.CheckRecord{VulnID: "V-3", CheckContent: "$ sysctl net.ipv4.ip_forward\nnet.ipv4.ip_forward = 0"}
	art := render(t, rec, record.PlatformWindows, extract.TypeKernelParameter)
	if art.Status != StatusManualPlaceholder || art.TemplateID != "windows.manual" {
		t.Errorf("expected windows.manual, got %s %s", art.Status, art.TemplateID)
	}
	if !strings.Contains(art.Reason, "no kernel_parameter template for windows") {
		t.Errorf("unexpected reason %q", art.Reason)
	}
}

func TestOrganizationDefinedValueIsReadFromConfig(t *testing.T) {
	rec := record.CheckRecord{
		VulnID:       "V-254",
		StigID:       "WN22-SO-000070",
		Severity:     record.SeverityMedium,
		RuleTitle:    "Session idle timeout",
		CheckContent: "Session idle timeout must be organization-defined (10 minutes or less); verify via gpedit.msc",
	}
	art := render(t, rec, record.PlatformWindows, extract.TypeGUIManual)

	if art.Language != scripts.LanguagePowerShell {
		t.Fatalf("expected powershell, got %s", art.Language)
	}
	if !strings.Contains(art.Source, "session_idle_timeout") {
		t.Error("script does not read session_idle_timeout from config")
	}
	if regexp.MustCompile(`\b10\b`).MatchString(art.Source) {
		t.Error("organization-defined threshold was hard-coded")
	}
	if len(art.ConfigInputs) != 1 || art.ConfigInputs[0].Key != "session_idle_timeout" {
		t.Errorf("unexpected config inputs %+v", art.ConfigInputs)
	}
}

func TestThresholdBoundToConfig(t *testing.T) {
	rec := record.CheckRecord{
		VulnID:       "V-7",
		StigID:       "RHEL-08-020230",
		CheckContent: "$ grep -i minlen /etc/security/pwquality.conf\nminlen = 15\nThe value must be at least 15 characters.",
	}
	art := render(t, rec, record.PlatformLinux, extract.TypeConfigGrep)
	if art.Status != StatusSynthesized {
		t.Fatalf("expected synthesized, got %s (%s)", art.Status, art.Reason)
	}
	if !strings.Contains(art.Source, "config_value 'minlen'") {
		t.Errorf("expected minlen read from config:\n%s", art.Source)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	rec := record.CheckRecord{
		VulnID:       "V-1",
		StigID:       "WN22-CC-000100",
		CheckContent: "Registry Hive: HKEY_LOCAL_MACHINE\nRegistry Path: \\SOFTWARE\\Microsoft\\Windows\\CurrentVersion\\Policies\\System\\\nValue Name: EnableLUA\nValue: 1",
	}
	first := render(t, rec, record.PlatformWindows, extract.TypeRegistryValue)
	second := render(t, rec, record.PlatformWindows, extract.TypeRegistryValue)
	if first.Source != second.Source {
		t.Error("render output differs between runs")
	}
	if first.Status != StatusSynthesized {
		t.Errorf("expected synthesized, got %s (%s)", first.Status, first.Reason)
	}
}

func TestStub(t *testing.T) {
	rec := record.CheckRecord{VulnID: "V-5", StigID: "NET-1", Severity: record.SeverityLow}
	art, err := New(nil, "out").Stub(rec, record.PlatformNetwork)
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	if art.TemplateID != StubTemplateID || art.Language != scripts.LanguagePython {
		t.Errorf("unexpected stub %+v", art)
	}
	if strings.Count(art.Source, scripts.ExtensionBegin) != 1 {
		t.Error("stub must contain exactly one extension point")
	}
	if !strings.HasSuffix(art.Path, "NET-1.py") {
		t.Errorf("unexpected path %s", art.Path)
	}
}

func TestFileNameIsSanitized(t *testing.T) {
	rec := record.CheckRecord{StigID: "../etc/passwd V1"}
	if got := FileName(rec, record.PlatformLinux); got != "etc_passwd_V1.sh" {
		t.Errorf("unexpected file name %q", got)
	}
}
