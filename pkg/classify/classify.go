// Package classify assigns an automation category and check type to a
// check record using an ordered, tiered rule table.
package classify

import (
	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/record"
)

// Category is the classifier's verdict on how much of a check can be
// scripted.
type Category string

const (
	CategoryFullyAutomated      Category = "fully_automated"
	CategoryAutomatedWithConfig Category = "automated_with_config"
	CategoryHybrid              Category = "hybrid_technical_and_doc"
	CategoryDocumentationOnly   Category = "documentation_only"
	CategorySemiAutomated       Category = "semi_automated"
	CategoryManualReview        Category = "manual_review"
	CategoryComplexManual       Category = "complex_manual"
	CategoryNeedsAnalysis       Category = "needs_analysis"
)

// Categories lists every category, most automatable first.
var Categories = []Category{
	CategoryFullyAutomated, CategoryAutomatedWithConfig, CategoryHybrid,
	CategorySemiAutomated, CategoryDocumentationOnly, CategoryManualReview,
	CategoryComplexManual, CategoryNeedsAnalysis,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Tier names, used as the prefix of every reason.
const (
	TierManual       = "manual"
	TierOrgParameter = "org_parameter"
	TierTechnical    = "technical"
	TierFallback     = "fallback"
)

// Context reasons appended after the deciding rule.
const (
	ruleTechnicalContext = "technical_context"
	ruleDocLanguage      = "doc_language"
	ruleUnmatched        = "unmatched"
)

// Classification is the immutable result of classifying one record.
type Classification struct {
	VulnID         string             `json:"vuln_id"`
	StigID         string             `json:"stig_id"`
	RuleID         string             `json:"rule_id,omitempty"`
	Severity       record.Severity    `json:"severity"`
	Platform       record.Platform    `json:"platform"`
	Category       Category           `json:"category"`
	CheckType      extract.CheckType  `json:"check_type"`
	Confidence     extract.Confidence `json:"confidence"`
	Tier           string             `json:"tier"`
	Reasons        []string           `json:"reasons"`
	RulesetVersion string             `json:"ruleset_version"`
}

// Classifier applies a Ruleset. The zero value uses the embedded table.
type Classifier struct {
	Rules *Ruleset
	// Platform, when set, overrides platform detection.
	Platform record.Platform
}

// Classify classifies rec with the embedded rule table.
func Classify(rec record.CheckRecord, params extract.ExtractedParameters) Classification {
	return Classifier{}.Classify(rec, params)
}

// Classify never fails: text no tier recognizes resolves to needs_analysis.
func (c Classifier) Classify(rec record.CheckRecord, params extract.ExtractedParameters) Classification {
	rs := c.Rules
	if rs == nil {
		rs = Default()
	}
	platform := c.Platform
	if platform == "" {
		platform = record.DetectPlatform(rec)
	}

	text := rec.Text()
	technical := firstRule(rs.Technical, text)

	tier, rule, category, context := decide(rs, text, technical)
	reasons := []string{tier + "." + rule.Name}
	if context != "" {
		reasons = append(reasons, tier+"."+context)
	}

	checkType := params.Type
	if (checkType == "" || checkType == extract.TypeUnknown) && technical != nil {
		checkType = technical.CheckType
	}
	if checkType == "" {
		checkType = extract.TypeUnknown
	}
	confidence := params.Confidence
	if confidence == "" {
		confidence = extract.ConfidenceLow
	}

	return Classification{
		VulnID:         rec.VulnID,
		StigID:         rec.StigID,
		RuleID:         rec.RuleID,
		Severity:       rec.Severity,
		Platform:       platform,
		Category:       category,
		CheckType:      checkType,
		Confidence:     confidence,
		Tier:           tier,
		Reasons:        reasons,
		RulesetVersion: rs.Version,
	}
}

// decide walks the tiers in order and stops at the first one with a
// matching rule. context names a co-occurring signal that changed the
// rule's base category.
func decide(rs *Ruleset, text string, technical *Rule) (tier string, rule *Rule, category Category, context string) {
	if r := firstRule(rs.Manual, text); r != nil {
		if technical != nil && r.WithTechnical != "" {
			return TierManual, r, r.WithTechnical, ruleTechnicalContext
		}
		return TierManual, r, r.Category, ""
	}
	if r := firstRule(rs.OrgParameter, text); r != nil {
		if technical != nil && r.WithTechnical != "" {
			return TierOrgParameter, r, r.WithTechnical, ruleTechnicalContext
		}
		return TierOrgParameter, r, r.Category, ""
	}
	if technical != nil {
		if technical.WithDoc != "" && rs.docLanguageIn(text) {
			return TierTechnical, technical, technical.WithDoc, ruleDocLanguage
		}
		return TierTechnical, technical, technical.Category, ""
	}
	if r := firstRule(rs.Fallback, text); r != nil {
		return TierFallback, r, r.Category, ""
	}
	return TierFallback, &Rule{Name: ruleUnmatched}, CategoryNeedsAnalysis, ""
}
