package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/user/stigforge/pkg/extract"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrInvalidRuleset is returned when a rule table fails validation.
var ErrInvalidRuleset = errors.New("invalid ruleset")

// Rule is one named entry of a tier.
type Rule struct {
	Name          string            `yaml:"name"`
	CheckType     extract.CheckType `yaml:"check_type,omitempty"`
	Category      Category          `yaml:"category"`
	WithTechnical Category          `yaml:"with_technical,omitempty"`
	WithDoc       Category          `yaml:"with_doc,omitempty"`
	Patterns      []string          `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// Match reports whether any of the rule's patterns matches text.
func (r *Rule) Match(text string) bool {
	for _, re := range r.compiled {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Ruleset is the ordered rule table. It is read-only once compiled and safe
// for concurrent use.
type Ruleset struct {
	Version      string   `yaml:"version"`
	Manual       []Rule   `yaml:"manual"`
	OrgParameter []Rule   `yaml:"org_parameter"`
	Technical    []Rule   `yaml:"technical"`
	DocLanguage  []string `yaml:"doc_language"`
	Fallback     []Rule   `yaml:"fallback"`

	docLanguage []*regexp.Regexp
}

var (
	defaultOnce    sync.Once
	defaultRuleset *Ruleset
)

// Default returns the embedded rule table, compiled on first use.
func Default() *Ruleset {
	defaultOnce.Do(func() {
		rs, err := ParseRuleset(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("embedded ruleset: %v", err))
		}
		defaultRuleset = rs
	})
	return defaultRuleset
}

// LoadRuleset reads and compiles a rule table from disk.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	rs, err := ParseRuleset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleset decodes and compiles a YAML rule table.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *Ruleset) compile() error {
	if rs.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidRuleset)
	}
	tiers := []struct {
		name  string
		rules []Rule
	}{
		{TierManual, rs.Manual},
		{TierOrgParameter, rs.OrgParameter},
		{TierTechnical, rs.Technical},
		{TierFallback, rs.Fallback},
	}
	for _, tier := range tiers {
		for i := range tier.rules {
			r := &tier.rules[i]
			if r.Name == "" {
				return fmt.Errorf("%w: %s rule #%d has no name", ErrInvalidRuleset, tier.name, i+1)
			}
			for _, c := range []Category{r.Category, r.WithTechnical, r.WithDoc} {
				if c != "" && !c.Valid() {
					return fmt.Errorf("%w: %s.%s: unknown category %q", ErrInvalidRuleset, tier.name, r.Name, c)
				}
			}
			if r.Category == "" {
				return fmt.Errorf("%w: %s.%s: missing category", ErrInvalidRuleset, tier.name, r.Name)
			}
			if tier.name == TierTechnical && extract.ParseCheckType(string(r.CheckType)) == extract.TypeUnknown {
				return fmt.Errorf("%w: technical.%s: unknown check_type %q", ErrInvalidRuleset, r.Name, r.CheckType)
			}
			compiled, err := compilePatterns(r.Patterns)
			if err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrInvalidRuleset, tier.name, r.Name, err)
			}
			r.compiled = compiled
		}
	}
	doc, err := compilePatterns(rs.DocLanguage)
	if err != nil {
		return fmt.Errorf("%w: doc_language: %v", ErrInvalidRuleset, err)
	}
	rs.docLanguage = doc
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func firstRule(rules []Rule, text string) *Rule {
	for i := range rules {
		if rules[i].Match(text) {
			return &rules[i]
		}
	}
	return nil
}

func (rs *Ruleset) docLanguageIn(text string) bool {
	for _, re := range rs.docLanguage {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectCheckType returns the check type of the first technical rule that
// matches text, or TypeUnknown. It is the hint passed to the extractor.
func (rs *Ruleset) DetectCheckType(text string) extract.CheckType {
	if r := firstRule(rs.Technical, text); r != nil {
		return r.CheckType
	}
	return extract.TypeUnknown
}

// DetectCheckType uses the embedded rule table.
func DetectCheckType(text string) extract.CheckType {
	return Default().DetectCheckType(text)
}
