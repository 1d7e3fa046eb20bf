package record

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// fieldAliases lists, per canonical field, the keys used by the different
// checklist sources. Lookup is case-insensitive and ignores spaces,
// underscores and hyphens, so "Group ID", "group_id" and "groupId" collide.
var fieldAliases = map[string][]string{
	"vuln_id":       {"vuln_id", "Group ID", "Vuln ID", "Vuln_Num", "vulnerability_id"},
	"stig_id":       {"stig_id", "STIG ID", "Rule Version", "Rule_Ver", "version"},
	"rule_id":       {"rule_id", "Rule ID"},
	"severity":      {"severity", "Severity", "cat", "Category"},
	"rule_title":    {"rule_title", "Rule Title", "title", "Group Title"},
	"check_content": {"check_content", "Check Content", "check_text", "checktext", "check"},
	"discussion":    {"discussion", "Discussion", "Vuln Discussion", "vuln_discuss", "description"},
	"fix_text":      {"fix_text", "Fix Text", "fixtext", "fix"},
	"benchmark":     {"benchmark", "Benchmark Name", "STIG Name", "stig_name", "product"},
}

func aliasKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

// Normalize maps a raw, source-specific object onto a CheckRecord.
func Normalize(raw map[string]any) (CheckRecord, error) {
	// Keys that fold to the same alias ("Vuln ID", "vuln_id") are resolved
	// in sorted key order; the first non-empty value wins.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	index := make(map[string]any, len(raw))
	for _, k := range keys {
		ak := aliasKey(k)
		if prev, ok := index[ak]; ok && stringify(prev) != "" {
			continue
		}
		index[ak] = raw[k]
	}
	lookup := func(field string) string {
		for _, alias := range fieldAliases[field] {
			if v, ok := index[aliasKey(alias)]; ok {
				if s := stringify(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	rec := CheckRecord{
		VulnID:       lookup("vuln_id"),
		StigID:       lookup("stig_id"),
		RuleID:       lookup("rule_id"),
		Severity:     ParseSeverity(lookup("severity")),
		RuleTitle:    lookup("rule_title"),
		CheckContent: lookup("check_content"),
		Discussion:   lookup("discussion"),
		FixText:      lookup("fix_text"),
		Benchmark:    lookup("benchmark"),
	}
	if rec.VulnID == "" && rec.StigID == "" && rec.RuleID == "" {
		title := rec.RuleTitle
		if len(title) > 40 {
			title = title[:40] + "..."
		}
		return CheckRecord{}, fmt.Errorf("normalize %q: %w", title, ErrNoIdentity)
	}
	return rec, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := stringify(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
