// Package synth renders check scripts from extracted parameters, falling
// back to the manual-review template whenever a required value is missing.
package synth

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/scripts"
)

// Status is the synthesis outcome of an artifact.
type Status string

const (
	StatusSynthesized       Status = "synthesized"
	StatusManualPlaceholder Status = "manual_placeholder"
	StatusPatchFailed       Status = "patch_failed"
)

// StubTemplateID marks artifacts that carry an unimplemented extension point.
const StubTemplateID = "stub"

// GeneratedArtifact is a fully rendered script and where it belongs.
type GeneratedArtifact struct {
	VulnID       string                `json:"vuln_id"`
	StigID       string                `json:"stig_id"`
	Path         string                `json:"path"`
	Platform     record.Platform       `json:"platform"`
	Language     scripts.Language      `json:"language"`
	CheckType    extract.CheckType     `json:"check_type"`
	TemplateID   string                `json:"template_id"`
	Status       Status                `json:"synthesis_status"`
	Reason       string                `json:"reason,omitempty"`
	ConfigInputs []extract.ConfigInput `json:"config_inputs,omitempty"`
	// Source is the complete file. Region is the generated block that
	// replaces an extension point when patching an existing stub.
	Source string `json:"source,omitempty"`
	Region string `json:"-"`
}

// Synthesizer renders artifacts from a template registry.
type Synthesizer struct {
	Registry *scripts.Registry
	OutDir   string
}

// New returns a Synthesizer writing under outDir. A nil registry uses the
// embedded templates.
func New(reg *scripts.Registry, outDir string) *Synthesizer {
	if reg == nil {
		reg = scripts.Default()
	}
	return &Synthesizer{Registry: reg, OutDir: outDir}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is the artifact file name for a record on a platform.
func FileName(rec record.CheckRecord, p record.Platform) string {
	name := strings.Trim(unsafeName.ReplaceAllString(rec.ID(), "_"), "._")
	if name == "" {
		name = "check"
	}
	return name + scripts.LanguageFor(p).Ext()
}

// DefaultPath is <out>/<platform>/<id>.<ext>.
func (s *Synthesizer) DefaultPath(rec record.CheckRecord, p record.Platform) string {
	return filepath.Join(s.OutDir, string(p), FileName(rec, p))
}

// Render renders the script for a record. It is pure: the same inputs give
// byte-identical output. Errors come only from template execution.
func (s *Synthesizer) Render(ct extract.CheckType, p record.Platform, params extract.ExtractedParameters, rec record.CheckRecord) (GeneratedArtifact, error) {
	tmpl, reason := s.choose(ct, p, params, rec)

	data := logicData(ct, params)
	status := StatusSynthesized
	if tmpl.Manual {
		status = StatusManualPlaceholder
		data = scripts.LogicData{
			ConfigInputs: params.ConfigInputs,
			OnFail:       "Manual review required: " + reason + ".",
		}
	} else {
		data.OnPass, data.OnFail = describe(ct, data)
	}

	logic, err := s.Registry.RenderLogic(tmpl, data)
	if err != nil {
		return GeneratedArtifact{}, fmt.Errorf("render %s logic for %s: %w", tmpl.ID, rec.ID(), err)
	}
	region := scripts.GeneratedRegion(logic)
	source, err := s.skeleton(rec, p, region)
	if err != nil {
		return GeneratedArtifact{}, err
	}

	return GeneratedArtifact{
		VulnID:       rec.VulnID,
		StigID:       rec.StigID,
		Path:         s.DefaultPath(rec, p),
		Platform:     p,
		Language:     scripts.LanguageFor(p),
		CheckType:    ct,
		TemplateID:   tmpl.ID,
		Status:       status,
		Reason:       reason,
		ConfigInputs: params.ConfigInputs,
		Source:       source,
		Region:       region,
	}, nil
}

// Stub renders a script whose check logic is the unimplemented extension
// point.
func (s *Synthesizer) Stub(rec record.CheckRecord, p record.Platform) (GeneratedArtifact, error) {
	lang := scripts.LanguageFor(p)
	source, err := s.skeleton(rec, p, scripts.StubRegion(lang))
	if err != nil {
		return GeneratedArtifact{}, err
	}
	return GeneratedArtifact{
		VulnID:     rec.VulnID,
		StigID:     rec.StigID,
		Path:       s.DefaultPath(rec, p),
		Platform:   p,
		Language:   lang,
		CheckType:  extract.TypeUnknown,
		TemplateID: StubTemplateID,
		Status:     StatusManualPlaceholder,
		Reason:     "extension point not implemented",
		Source:     source,
	}, nil
}

func (s *Synthesizer) skeleton(rec record.CheckRecord, p record.Platform, region string) (string, error) {
	data := scripts.SkeletonData{
		VulnID:    rec.VulnID,
		StigID:    rec.StigID,
		RuleID:    rec.RuleID,
		Severity:  string(rec.Severity),
		Title:     rec.RuleTitle,
		Benchmark: rec.Benchmark,
		Platform:  string(p),
		Region:    region,
	}
	if data.Severity == "" {
		data.Severity = string(record.SeverityMedium)
	}
	source, err := s.Registry.RenderSkeleton(scripts.LanguageFor(p), data)
	if err != nil {
		return "", fmt.Errorf("render skeleton for %s: %w", rec.ID(), err)
	}
	return source, nil
}

// choose picks the logic template, or the manual template with the reason
// the check cannot be automated.
func (s *Synthesizer) choose(ct extract.CheckType, p record.Platform, params extract.ExtractedParameters, rec record.CheckRecord) (scripts.Template, string) {
	manual := s.Registry.Manual(p)
	switch ct {
	case "", extract.TypeUnknown:
		return manual, "no automatable check type was recognized"
	case extract.TypeGUIManual:
		return manual, "the check is performed through a graphical tool"
	}

	tmpl, ok := s.Registry.Lookup(ct, p)
	if !ok {
		logging.Warnf("%s: %v (%s on %s); using manual template", rec.ID(), scripts.ErrTemplateMissing, ct, p)
		return manual, fmt.Sprintf("no %s template for %s", ct, p)
	}
	if params.Type != ct || params.Variant == nil {
		return manual, fmt.Sprintf("no %s parameters were extracted", ct)
	}

	slots := params.Slots()
	var missing []string
	for _, name := range tmpl.Slots {
		if !slots[name].Resolved() {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 && params.Placeholder {
		missing = params.PlaceholderSlots()
	}
	if len(missing) > 0 {
		return manual, "could not determine " + strings.Join(missing, ", ")
	}
	return tmpl, ""
}

func logicData(ct extract.CheckType, params extract.ExtractedParameters) scripts.LogicData {
	slots := params.Slots()
	expected := slots[extract.SlotExpected]
	return scripts.LogicData{
		Target:       slots[extract.SlotTarget].Value,
		ValueName:    slots[extract.SlotValueName].Value,
		Pattern:      slots[extract.SlotPattern].Value,
		Comparison:   comparison(slots, params.ConfigInputs),
		Expected:     expected,
		HasExpected:  expected.Resolved(),
		ConfigInputs: params.ConfigInputs,
	}
}

// comparison is the slot's operator, else the operator of the config input
// the expected value is bound to, else equality.
func comparison(slots map[string]extract.Field, inputs []extract.ConfigInput) string {
	if c := slots[extract.SlotComparison].Value; c != "" {
		return c
	}
	if key := slots[extract.SlotExpected].ConfigKey; key != "" {
		for _, in := range inputs {
			if in.Key == key && in.Comparison != "" {
				return in.Comparison
			}
		}
	}
	return extract.CompareEqual
}

// expectation renders the expected value for messages: the literal, or the
// config key it is read from.
func expectation(f extract.Field) string {
	if f.ConfigKey != "" {
		return "the configured " + f.ConfigKey
	}
	return f.Value
}

func operator(cmp string) string {
	switch cmp {
	case extract.CompareAtMost:
		return "at most"
	case extract.CompareAtLeast:
		return "at least"
	default:
		return "equal to"
	}
}

// describe returns the human-readable pass and fail details.
func describe(ct extract.CheckType, d scripts.LogicData) (pass, fail string) {
	want := expectation(d.Expected)
	switch ct {
	case extract.TypeFilePermission:
		return fmt.Sprintf("%s mode is %s or less permissive.", d.Target, want),
			fmt.Sprintf("%s mode is more permissive than %s.", d.Target, want)
	case extract.TypeRegistryValue:
		return fmt.Sprintf(`%s\%s is %s %s.`, d.Target, d.ValueName, operator(d.Comparison), want),
			fmt.Sprintf(`%s\%s is not %s %s.`, d.Target, d.ValueName, operator(d.Comparison), want)
	case extract.TypeKernelParameter:
		return fmt.Sprintf("%s is %s %s.", d.Target, operator(d.Comparison), want),
			fmt.Sprintf("%s is not %s %s.", d.Target, operator(d.Comparison), want)
	case extract.TypeServiceStatus:
		return fmt.Sprintf("Service %s is %s.", d.Target, want),
			fmt.Sprintf("Service %s is not %s.", d.Target, want)
	case extract.TypePackagePresence:
		if d.Expected.Value == "absent" {
			return fmt.Sprintf("Package %s is not installed.", d.Target),
				fmt.Sprintf("Package %s is installed.", d.Target)
		}
		return fmt.Sprintf("Package %s is installed.", d.Target),
			fmt.Sprintf("Package %s is not installed.", d.Target)
	case extract.TypeConfigGrep:
		if !d.HasExpected {
			return fmt.Sprintf("%s is set in %s.", d.Pattern, targetOr(d.Target, "the configuration")),
				fmt.Sprintf("%s is not set in %s.", d.Pattern, targetOr(d.Target, "the configuration"))
		}
		return fmt.Sprintf("%s is %s %s.", d.Pattern, operator(d.Comparison), want),
			fmt.Sprintf("%s is not %s %s.", d.Pattern, operator(d.Comparison), want)
	case extract.TypeSQLQuery:
		switch d.Expected.Value {
		case "empty":
			return "The query returned no rows.", "The query returned rows."
		case "nonempty":
			return "The query returned rows.", "The query returned no rows."
		}
		return fmt.Sprintf("The query result is %s %s.", operator(d.Comparison), want),
			fmt.Sprintf("The query result is not %s %s.", operator(d.Comparison), want)
	case extract.TypeNetworkCommand:
		if d.Expected.Value == "absent" {
			return fmt.Sprintf("%q is not configured.", d.Pattern), fmt.Sprintf("%q is configured.", d.Pattern)
		}
		return fmt.Sprintf("%q is configured.", d.Pattern), fmt.Sprintf("%q is not configured.", d.Pattern)
	}
	return "Check passed.", "Check failed."
}

func targetOr(target, fallback string) string {
	if target == "" {
		return fallback
	}
	return target
}
