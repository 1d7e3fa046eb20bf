package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultConfigKey is used when no subject can be derived for an
// organization-defined value.
const DefaultConfigKey = "org_value"

const unitPattern = `(seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|months?|years?|characters?|chars?|attempts?|times|passwords?|generations?|sessions?|logons?|logins?|percent|%|bytes|kb|mb|gb|bits|entries|lines)?`

var (
	reOrgDefined   = regexp.MustCompile(`(?i)\borganization(?:ally)?[- ]defined\b|\bdefined\s+by\s+the\s+organization\b|\bsite[- ]specific\b|\bin\s+accordance\s+with\s+(?:local|organizational|site)\s+policy\b`)
	reThresholdOr  = regexp.MustCompile(`(?i)\b(\d+)\s*` + unitPattern + `\s+or\s+(less|fewer|lower|shorter|below|more|greater|higher|longer|above)\b`)
	reThresholdMin = regexp.MustCompile(`(?i)\b(?:at\s+least|(?:a\s+)?minimum\s+of|no\s+less\s+than|no\s+fewer\s+than)\s+(\d+)\s*` + unitPattern)
	reThresholdMax = regexp.MustCompile(`(?i)\b(?:at\s+most|(?:a\s+)?maximum\s+of|no\s+more\s+than|not\s+(?:to\s+)?exceed)\s+(\d+)\s*` + unitPattern)
	reSubjectVerb  = regexp.MustCompile(`(?i)\b(?:must|shall|should|will|is|are|has|have)\b`)
	reSentenceEnd  = regexp.MustCompile(`[.;:!?\n]`)
	reNonSlug      = regexp.MustCompile(`[^a-z0-9]+`)
)

var subjectNoise = map[string]bool{
	"verify": true, "ensure": true, "check": true, "confirm": true, "determine": true,
	"if": true, "that": true, "the": true, "a": true, "an": true, "whether": true,
}

type threshold struct {
	at    int
	value string
	unit  string
	cmp   string
}

func findThresholds(text string) []threshold {
	var out []threshold
	for _, m := range reThresholdOr.FindAllStringSubmatchIndex(text, -1) {
		word := strings.ToLower(text[m[6]:m[7]])
		cmp := CompareAtLeast
		switch word {
		case "less", "fewer", "lower", "shorter", "below":
			cmp = CompareAtMost
		}
		out = append(out, threshold{at: m[0], value: text[m[2]:m[3]], unit: unitOf(text, m[4], m[5]), cmp: cmp})
	}
	for _, m := range reThresholdMin.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, threshold{at: m[0], value: text[m[2]:m[3]], unit: unitOf(text, m[4], m[5]), cmp: CompareAtLeast})
	}
	for _, m := range reThresholdMax.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, threshold{at: m[0], value: text[m[2]:m[3]], unit: unitOf(text, m[4], m[5]), cmp: CompareAtMost})
	}
	// Text order, so keys and suffixes are stable.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].at < out[j-1].at; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func unitOf(text string, start, end int) string {
	if start < 0 {
		return ""
	}
	return strings.ToLower(text[start:end])
}

// configInputs finds organization-defined values and numeric thresholds.
// Keys are unique within the result; repeated keys get a numeric suffix.
func configInputs(text string, v Variant) []ConfigInput {
	orgDefined := reOrgDefined.FindStringIndex(text)
	thresholds := findThresholds(text)
	if orgDefined == nil && len(thresholds) == 0 {
		return nil
	}
	source := "threshold"
	if orgDefined != nil {
		source = "organization-defined"
	}

	base := variantKey(v)
	var inputs []ConfigInput
	seen := map[string]int{}
	add := func(at int, in ConfigInput) {
		key := base
		if key == "" {
			key = subjectKey(text, at)
		}
		seen[key]++
		if n := seen[key]; n > 1 {
			key = key + "_" + strconv.Itoa(n)
		}
		in.Key = key
		inputs = append(inputs, in)
	}

	if len(thresholds) == 0 {
		add(orgDefined[0], ConfigInput{Comparison: CompareEqual, Source: source})
		return inputs
	}
	for _, th := range thresholds {
		at := th.at
		if orgDefined != nil && orgDefined[0] < at {
			at = orgDefined[0]
		}
		add(at, ConfigInput{Suggested: th.value, Unit: th.unit, Comparison: th.cmp, Source: source})
	}
	return inputs
}

// variantKey names a config input after the setting the variant checks, when
// it has one.
func variantKey(v Variant) string {
	var name string
	switch t := v.(type) {
	case Sysctl:
		name = t.Param.Value
	case Registry:
		name = t.ValueName.Value
	case ConfigGrep:
		name = t.Pattern.Value
	}
	return slug(name)
}

// subjectKey slugs the subject of the sentence containing offset: the words
// before its first modal verb, e.g. "Session idle timeout must be ..." gives
// "session_idle_timeout".
func subjectKey(text string, offset int) string {
	start := 0
	for _, m := range reSentenceEnd.FindAllStringIndex(text[:offset], -1) {
		start = m[1]
	}
	sentence := text[start:offset]
	if loc := reSubjectVerb.FindStringIndex(sentence); loc != nil {
		sentence = sentence[:loc[0]]
	}
	words := strings.Fields(sentence)
	for len(words) > 0 && subjectNoise[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) > 5 {
		words = words[len(words)-5:]
	}
	if key := slug(strings.Join(words, " ")); key != "" {
		return key
	}
	return DefaultConfigKey
}

func slug(s string) string {
	s = reNonSlug.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "_")
	}
	return s
}

// bindConfig points the variant's expected value at the first config input,
// so the threshold is read at script runtime instead of being hard-coded.
// Variants without a comparable expected value are returned unchanged.
func bindConfig(v Variant, in ConfigInput) Variant {
	cmp := found(in.Comparison)
	switch t := v.(type) {
	case Registry:
		t.Expected, t.Comparison = fromConfig(in.Key), cmp
		return t
	case Sysctl:
		t.Expected, t.Comparison = fromConfig(in.Key), cmp
		return t
	case ConfigGrep:
		t.Expected, t.Comparison = fromConfig(in.Key), cmp
		return t
	case SQL:
		if t.Expected.Value == "empty" || t.Expected.Value == "nonempty" {
			return t
		}
		t.Expected = fromConfig(in.Key)
		return t
	}
	return v
}
