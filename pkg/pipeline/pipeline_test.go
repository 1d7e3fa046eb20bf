package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/patch"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/synth"
)

func init() {
	logging.SetOutput(io.Discard)
}

var sample = []record.CheckRecord{
	{
		VulnID: "V-230256", StigID: "RHEL-08-010000", Severity: record.SeverityMedium,
		Benchmark:    "Red Hat Enterprise Linux 8 STIG",
		CheckContent: "Verify file /etc/shadow has permissions 0600: # stat -c %a /etc/shadow",
	},
	{
		VulnID: "V-1001", StigID: "GEN-001", Severity: record.SeverityLow,
		CheckContent: "Interview the ISSO and review the System Security Plan for documented exceptions",
	},
	{
		VulnID: "V-254", StigID: "WN22-SO-000070", Severity: record.SeverityMedium,
		Benchmark:    "Microsoft Windows Server 2022 STIG",
		CheckContent: "Session idle timeout must be organization-defined (10 minutes or less); verify via gpedit.msc",
	},
	{
		VulnID: "V-230257", StigID: "RHEL-08-010000", Severity: record.SeverityMedium,
		Benchmark:    "Red Hat Enterprise Linux 8 STIG",
		CheckContent: "$ sysctl net.ipv4.ip_forward\nnet.ipv4.ip_forward = 0",
	},
}

func TestRunGenerate(t *testing.T) {
	out := t.TempDir()
	res, err := Run(context.Background(), sample, Options{OutDir: out, Workers: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outcomes) != len(sample) || res.Stats.Total != len(sample) {
		t.Fatalf("expected %d outcomes, got %d (total %d)", len(sample), len(res.Outcomes), res.Stats.Total)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	for i, o := range res.Outcomes {
		if o.Index != i {
			t.Errorf("outcome %d carries index %d", i, o.Index)
		}
		if o.Artifact == nil || o.Patch == nil {
			t.Fatalf("outcome %d has no artifact or patch result", i)
		}
		if _, err := os.Stat(o.Artifact.Path); err != nil {
			t.Errorf("artifact %s not written: %v", o.Artifact.Path, err)
		}
	}

	if got := res.Outcomes[0].Classification.Category; got != classify.CategoryFullyAutomated {
		t.Errorf("expected fully_automated, got %s", got)
	}
	if res.Outcomes[3].Artifact.Path != filepath.Join(out, "linux", "RHEL-08-010000_2.sh") {
		t.Errorf("expected collision suffix, got %s", res.Outcomes[3].Artifact.Path)
	}
	if res.Stats.Synthesized+res.Stats.ManualPlaceholder != len(sample) {
		t.Errorf("unexpected synthesis counts %+v", res.Stats)
	}
	if res.Stats.Applied != len(sample) || res.Stats.Created != len(sample) {
		t.Errorf("expected every file created, got %+v", res.Stats)
	}

	data, err := os.ReadFile(filepath.Join(out, ConfigSampleName))
	if err != nil {
		t.Fatalf("config sample: %v", err)
	}
	var cfg map[string]string
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("decode config sample: %v", err)
	}
	if cfg["session_idle_timeout"] != "10" {
		t.Errorf("expected session_idle_timeout suggestion 10, got %v", cfg)
	}
}

func TestRerunSkipsAndIsByteIdentical(t *testing.T) {
	out := t.TempDir()
	first, err := Run(context.Background(), sample, Options{OutDir: out, Workers: 2})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := map[string]string{}
	for _, o := range first.Outcomes {
		data, _ := os.ReadFile(o.Artifact.Path)
		before[o.Artifact.Path] = string(data)
	}

	second, err := Run(context.Background(), sample, Options{OutDir: out, Workers: 2})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Stats.Skipped != len(sample) {
		t.Errorf("expected every file skipped, got %+v", second.Stats)
	}
	if second.Stats.Synthesized != 0 || second.Stats.ManualPlaceholder != 0 {
		t.Errorf("skipped files counted as synthesized again: %s", second.Stats.Summary())
	}
	for path, want := range before {
		data, _ := os.ReadFile(path)
		if string(data) != want {
			t.Errorf("%s changed on rerun", path)
		}
	}
}

func TestStubThenGeneratePatches(t *testing.T) {
	out := t.TempDir()
	recs := sample[:1]
	if _, err := Run(context.Background(), recs, Options{Mode: ModeStub, OutDir: out}); err != nil {
		t.Fatalf("stub run: %v", err)
	}
	res, err := Run(context.Background(), recs, Options{OutDir: out})
	if err != nil {
		t.Fatalf("generate run: %v", err)
	}
	o := res.Outcomes[0]
	if o.Patch.Outcome != "applied" || o.Patch.Created {
		t.Errorf("expected the stub to be patched in place, got %+v", o.Patch)
	}
	data, _ := os.ReadFile(o.Artifact.Path)
	if string(data) != o.Artifact.Source {
		t.Error("patched stub differs from the freshly generated file")
	}
}

func TestPatchFailureIsCountedAndContinues(t *testing.T) {
	out := t.TempDir()
	path := filepath.Join(out, "linux", "RHEL-08-010000.sh")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := Run(context.Background(), sample, Options{OutDir: out})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.Failed != 1 || res.Stats.PatchFailed != 1 {
		t.Errorf("expected one patch failure, got %+v", res.Stats)
	}
	if res.Outcomes[0].Artifact.Status != synth.StatusPatchFailed {
		t.Errorf("expected patch_failed status, got %s", res.Outcomes[0].Artifact.Status)
	}
	if res.Stats.Total != len(sample) {
		t.Errorf("batch did not finish: %+v", res.Stats)
	}
}

func TestClassifyModeWritesNothing(t *testing.T) {
	out := t.TempDir()
	res, err := Run(context.Background(), sample, Options{Mode: ModeClassify, OutDir: out})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("classify mode wrote %d entries", len(entries))
	}
	if len(res.Classifications()) != len(sample) {
		t.Errorf("expected %d classifications", len(sample))
	}
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	one, err := Run(context.Background(), sample, Options{Workers: 1, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	many, err := Run(context.Background(), sample, Options{Workers: 4, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one.Classifications(), many.Classifications()) {
		t.Error("classifications depend on the worker count")
	}
	for i := range one.Outcomes {
		if one.Outcomes[i].Artifact.Source != many.Outcomes[i].Artifact.Source {
			t.Errorf("artifact %d differs between worker counts", i)
		}
	}
	if !reflect.DeepEqual(one.Stats, many.Stats) {
		t.Errorf("stats differ: %+v vs %+v", one.Stats, many.Stats)
	}
}

func TestCancelledRunReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, sample, Options{DryRun: true, Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.Stats.Total != len(res.Outcomes) {
		t.Errorf("inconsistent partial result %+v", res)
	}
}

func TestStatsCountsEachArtifactOnce(t *testing.T) {
	art := func(st synth.Status) *synth.GeneratedArtifact { return &synth.GeneratedArtifact{Status: st} }
	s := NewStats()
	s.Add(Outcome{Artifact: art(synth.StatusSynthesized), Patch: &patch.Result{Outcome: patch.OutcomeApplied, Created: true}})
	s.Add(Outcome{Artifact: art(synth.StatusSynthesized), Patch: &patch.Result{Outcome: patch.OutcomeSkipped}})
	s.Add(Outcome{Artifact: art(synth.StatusManualPlaceholder), Patch: &patch.Result{Outcome: patch.OutcomeSkipped}})
	s.Add(Outcome{Artifact: art(synth.StatusManualPlaceholder)})
	s.Add(Outcome{Artifact: art(synth.StatusPatchFailed), Patch: &patch.Result{Outcome: patch.OutcomeFailed}})

	if s.Synthesized != 1 || s.ManualPlaceholder != 1 || s.Skipped != 2 || s.Failed != 1 || s.PatchFailed != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if got := s.Synthesized + s.ManualPlaceholder + s.Skipped + s.Failed; got != s.Total {
		t.Errorf("counts overlap: %d of %d records", got, s.Total)
	}
}

func TestStatsMerge(t *testing.T) {
	a, b := NewStats(), NewStats()
	a.Total, a.Synthesized = 2, 1
	a.Categories[classify.CategoryHybrid] = 2
	b.Total, b.Failed = 1, 1
	b.Categories[classify.CategoryHybrid] = 1
	a.Merge(b)
	if a.Total != 3 || a.Failed != 1 || a.Categories[classify.CategoryHybrid] != 3 {
		t.Errorf("unexpected merge %+v", a)
	}
}
