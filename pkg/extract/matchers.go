package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// matcher inspects text for one way a check type is expressed. ok is true
// when at least one field was found.
type matcher func(text string) (v Variant, ok bool)

// matchers lists, per check type, the matchers in the order they are tried.
var matchers = map[CheckType][]matcher{
	TypeFilePermission:  {matchStatPermission, matchPermissionPhrase},
	TypeConfigGrep:      {matchGrepCommand, matchSelectString, matchDirectivePhrase},
	TypeRegistryValue:   {matchRegistryBlock, matchRegistryInline},
	TypeKernelParameter: {matchSysctlCommand, matchProcSys},
	TypeServiceStatus:   {matchSystemctl, matchWindowsService},
	TypePackagePresence: {matchPackageManager},
	TypeSQLQuery:        {matchSelect, matchShowSetting},
	TypeNetworkCommand:  {matchShowCommand},
}

// precedence is the order types are tried without a hint: file-system types,
// then registry, then command text.
var precedence = []CheckType{
	TypeFilePermission,
	TypeConfigGrep,
	TypeRegistryValue,
	TypeKernelParameter,
	TypeServiceStatus,
	TypePackagePresence,
	TypeSQLQuery,
	TypeNetworkCommand,
}

// Registry Path, Value Name and Value captures stop at the next field label
// or the end of the line, so blocks flattened onto one line split cleanly.
var (
	rePath = regexp.MustCompile(`(?:^|[\s"'(=:>])(/(?:etc|var|usr|opt|boot|home|root|lib|lib64|bin|sbin|tmp|proc|sys|srv|run)(?:/[\w.\-+@%*]+)*)`)

	reStat          = regexp.MustCompile(`(?i)\b(?:stat\s+(?:-[cL]\s+)?(?:["']?%[a-zA-Z%\s]+["']?\s+)?|ls\s+-[a-zA-Z]*l[a-zA-Z]*\s+)(/\S+)`)
	reModePhrase    = regexp.MustCompile(`(?i)\b(?:permissions?|mode)\b(?:\s+(?:of|to|set|is|are|must|be|more|permissive|than|at|least|most|no|should|equal|"|'|,|:))*\s*["']?(0?[0-7]{3,4})\b`)
	reChmod         = regexp.MustCompile(`(?i)\bchmod\s+(?:-[a-zA-Z]+\s+)*(0?[0-7]{3,4})\b`)
	reGrep          = regexp.MustCompile(`(?i)\b(?:e|f)?grep\s+(?:-[a-zA-Z]+\s+)*(?:-e\s+)?(?:"([^"]+)"|'([^']+)'|([^\s|"']+))\s+((?:/[\w.\-+@%*]+)+)`)
	reSelectString  = regexp.MustCompile(`(?i)Select-String\s+(?:-Path\s+)?["']?([^"'\s]+)["']?\s+-Pattern\s+["']([^"']+)["']`)
	reDirective     = regexp.MustCompile(`(?i)["'“]?([A-Za-z_][\w.\-]*)["'”]?\s+(?:directive|keyword|option|parameter|setting)\b`)
	reSetTo         = regexp.MustCompile(`(?i)\b(not\s+(?:\w+\s+){0,2})?(?:set\s+to|(?:a\s+)?value\s+of|equal\s+to)\s+["'“]?([\w\-./:]+)`)
	reFinding       = regexp.MustCompile(`(?i)^[^.\n]*\bthis\s+is\s+a\s+finding`)
	reRegistryHive  = regexp.MustCompile(`(?i)Registry\s+Hive:\s*(\S+)`)
	reRegistryPath  = regexp.MustCompile(`(?im)Registry\s+Path:[ \t]*([^\r\n]+?)(?:\s+Value(?:\s+Name|\s+Type)?:|[ \t]*\r?$)`)
	reValueName     = regexp.MustCompile(`(?im)Value\s+Name:[ \t]*([^\r\n]+?)(?:\s+Value(?:\s+Type)?:|[ \t]*\r?$)`)
	reValueLine     = regexp.MustCompile(`(?im)(?:^|\s)Value:[ \t]*([^\r\n]+?)[ \t]*\r?$`)
	reRegistryPlain = regexp.MustCompile(`(?i)\b(HKLM|HKCU|HKU|HKCR|HKEY_LOCAL_MACHINE|HKEY_CURRENT_USER|HKEY_USERS|HKEY_CLASSES_ROOT)(?::)?\\([^\s"'\r\n]+(?:\\[^\s"'\r\n]+)*)`)
	reSysctlCmd     = regexp.MustCompile(`(?i)\bsysctl\s+(?:-[a-zA-Z]+\s+)*([a-z0-9_]+(?:\.[a-z0-9_\-*]+)+)`)
	reProcSys       = regexp.MustCompile(`/proc/sys/([a-z0-9_/\-]+)`)
	reSystemctl     = regexp.MustCompile(`(?i)\bsystemctl\s+(is-enabled|is-active|status|show)\s+(?:-[a-zA-Z\-=]+\s+)*([\w@.\-]+)`)
	reGetService    = regexp.MustCompile(`(?i)\bGet-Service\s+(?:-Name\s+)?["']?([\w\-$]+)["']?`)
	reWinService    = regexp.MustCompile(`(?i)["“]([\w\s\-()]+?)["”]\s+service\b`)
	rePackage       = regexp.MustCompile(`(?i)\b(?:rpm\s+-q[a-z]*\s+|(?:yum|dnf)\s+list\s+(?:installed\s+)?|dpkg\s+-[lsL]\s+|apt(?:-get)?\s+list\s+(?:--installed\s+)?|zypper\s+(?:info|se(?:arch)?|if)\s+|Get-Package\s+(?:-Name\s+)?|Get-WindowsFeature\s+(?:-Name\s+)?|Get-WindowsOptionalFeature\s+-Online\s+(?:-FeatureName\s+)?)(?:\|\s*(?:e|f)?grep\s+(?:-[a-zA-Z]+\s+)*)?["']?([A-Za-z0-9][\w.+\-]*)`)
	reSelect        = regexp.MustCompile(`(?is)\b(SELECT\b.+?\bFROM\b.+?)(?:;|\n\s*\n|\n\s*If\b|$)`)
	reShowSetting   = regexp.MustCompile(`(?i)\b(SHOW\s+(?:VARIABLES\s+LIKE\s+'[^']+'|[a-z_][\w.]*))\s*;`)
	reShowCommand   = regexp.MustCompile(`(?im)(?:^|[#>]\s*|\s)(show\s+(?:running-config|run|startup-config|version|ip|ipv6|interfaces?|logging|ntp|snmp|aaa|line|access-lists?|crypto|vlan|spanning-tree|configuration|system|security|policy|login|ssh|archive|banner|clock|users?|port-security|cdp|lldp)(?:[ \t]+[\w\-/.:|]+)*)`)
	reQuoted        = regexp.MustCompile(`["“']([^"”'\n]{3,120})["”']`)
)

// trimPath drops sentence punctuation glued to a path.
func trimPath(p string) string {
	return strings.TrimRight(p, ".,;:)'\"")
}

func firstPath(text string) string {
	if m := rePath.FindStringSubmatch(text); m != nil {
		return trimPath(m[1])
	}
	return ""
}

func normalizeMode(m string) string {
	if len(m) == 3 {
		return "0" + m
	}
	return m
}

func matchStatPermission(text string) (Variant, bool) {
	m := reStat.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	v := FilePermission{Path: found(trimPath(m[1])), Mode: missing()}
	if mode := findMode(text); mode != "" {
		v.Mode = found(mode)
	}
	return v, true
}

func matchPermissionPhrase(text string) (Variant, bool) {
	mode := findMode(text)
	if mode == "" {
		return nil, false
	}
	v := FilePermission{Path: missing(), Mode: found(mode)}
	if p := firstPath(text); p != "" {
		v.Path = found(p)
	}
	return v, true
}

func findMode(text string) string {
	if m := reModePhrase.FindStringSubmatch(text); m != nil {
		return normalizeMode(m[1])
	}
	if m := reChmod.FindStringSubmatch(text); m != nil {
		return normalizeMode(m[1])
	}
	return ""
}

func matchGrepCommand(text string) (Variant, bool) {
	m := reGrep.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	pattern := firstNonEmpty(m[1], m[2], m[3])
	pattern = strings.TrimPrefix(pattern, "^")
	v := ConfigGrep{File: found(trimPath(m[4])), Pattern: found(pattern)}
	v.Expected, v.Comparison = directiveValue(text, pattern)
	return v, true
}

func matchSelectString(text string) (Variant, bool) {
	m := reSelectString.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	v := ConfigGrep{File: found(m[1]), Pattern: found(m[2])}
	v.Expected, v.Comparison = directiveValue(text, m[2])
	return v, true
}

func matchDirectivePhrase(text string) (Variant, bool) {
	directive := ""
	for _, m := range reDirective.FindAllStringSubmatch(text, -1) {
		if !stopword(m[1]) {
			directive = m[1]
			break
		}
	}
	if directive == "" {
		return nil, false
	}
	file := ""
	for _, c := range rePath.FindAllStringSubmatch(text, -1) {
		p := trimPath(c[1])
		if isConfigFile(p) {
			file = p
			break
		}
	}
	v := ConfigGrep{File: missing(), Pattern: found(directive)}
	if file != "" {
		v.File = found(file)
	}
	v.Expected, v.Comparison = directiveValue(text, directive)
	return v, true
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true, "these": true,
	"following": true, "same": true, "any": true, "each": true, "be": true,
	"is": true, "to": true, "of": true, "use": true, "its": true, "their": true,
	"required": true, "correct": true, "appropriate": true, "above": true,
}

func stopword(w string) bool {
	return stopwords[strings.ToLower(w)]
}

// setToValue returns the first value named by a "set to X" phrase. A phrase
// describing the failing state ("is set to X, this is a finding") names a
// value to avoid and is skipped; a negated one ("not set to X") is kept.
func setToValue(text string) string {
	for _, m := range reSetTo.FindAllStringSubmatchIndex(text, -1) {
		v := strings.Trim(text[m[4]:m[5]], `."'”:`)
		if v == "" || stopword(v) {
			continue
		}
		if m[2] < 0 && reFinding.MatchString(text[m[1]:]) {
			continue
		}
		return v
	}
	return ""
}

func isConfigFile(p string) bool {
	lower := strings.ToLower(p)
	for _, suffix := range []string{".conf", ".cfg", ".ini", ".defs", "_config", ".cnf", ".rules", ".xml", ".yaml", ".yml", ".json"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return strings.HasPrefix(lower, "/etc/")
}

// directiveValue finds the expected value of a directive: a sample output
// line "<directive> X", or an explicit "set to X" phrase.
func directiveValue(text, directive string) (Field, Field) {
	if directive != "" {
		re, err := regexp.Compile(`(?im)^[ \t]*` + regexp.QuoteMeta(directive) + `[ \t]*[=: \t][ \t]*["']?([\w\-./:]+)`)
		if err == nil {
			if m := re.FindStringSubmatch(text); m != nil {
				return found(m[1]), found(CompareEqual)
			}
		}
	}
	if v := setToValue(text); v != "" {
		return found(v), found(CompareEqual)
	}
	return Field{}, Field{}
}

func matchRegistryBlock(text string) (Variant, bool) {
	pm := reRegistryPath.FindStringSubmatch(text)
	if pm == nil {
		return nil, false
	}
	hive := "HKLM"
	if hm := reRegistryHive.FindStringSubmatch(text); hm != nil {
		hive = shortHive(hm[1])
	}
	path := hive + ":\\" + strings.Trim(pm[1], `\`)
	v := Registry{Path: found(path), ValueName: missing(), Expected: missing(), Comparison: found(CompareEqual)}
	if nm := reValueName.FindStringSubmatch(text); nm != nil {
		v.ValueName = found(strings.TrimSpace(nm[1]))
	}
	if vm := reValueLine.FindStringSubmatch(text); vm != nil {
		v.Expected, v.Comparison = registryValue(vm[1], text)
	}
	return v, true
}

func matchRegistryInline(text string) (Variant, bool) {
	m := reRegistryPlain.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(strings.Trim(trimPath(m[2]), `\`), `\`)
	v := Registry{ValueName: missing(), Expected: missing(), Comparison: found(CompareEqual)}
	// Without a "Value Name:" line the last component is the value name.
	if nm := reValueName.FindStringSubmatch(text); nm != nil {
		v.ValueName = found(strings.TrimSpace(nm[1]))
	} else if len(parts) > 1 {
		v.ValueName = found(parts[len(parts)-1])
		parts = parts[:len(parts)-1]
	}
	v.Path = found(shortHive(m[1]) + ":\\" + strings.Join(parts, `\`))
	if vm := reValueLine.FindStringSubmatch(text); vm != nil {
		v.Expected, v.Comparison = registryValue(vm[1], text)
	} else if val := setToValue(text); val != "" {
		v.Expected, v.Comparison = registryValue(val, text)
	}
	return v, true
}

func shortHive(h string) string {
	switch strings.ToUpper(strings.TrimSuffix(h, ":")) {
	case "HKEY_CURRENT_USER", "HKCU":
		return "HKCU"
	case "HKEY_USERS", "HKU":
		return "HKU"
	case "HKEY_CLASSES_ROOT", "HKCR":
		return "HKCR"
	default:
		return "HKLM"
	}
}

var reParenNumber = regexp.MustCompile(`\((\d+)\)`)

// registryValue normalizes "0x00000001 (1)", "0x0000000f", "1 (Enabled)" and
// plain strings, and reads the comparison from "or less"/"or greater".
func registryValue(raw, text string) (Field, Field) {
	raw = strings.TrimSpace(raw)
	cmp := found(comparisonFrom(raw + " " + text))
	if m := reParenNumber.FindStringSubmatch(raw); m != nil && strings.HasPrefix(strings.ToLower(raw), "0x") {
		return found(m[1]), cmp
	}
	tok := strings.Fields(raw)
	if len(tok) == 0 {
		return missing(), cmp
	}
	first := strings.Trim(tok[0], `"'.,`)
	if strings.HasPrefix(strings.ToLower(first), "0x") {
		if n, err := strconv.ParseUint(first[2:], 16, 64); err == nil {
			return found(strconv.FormatUint(n, 10)), cmp
		}
	}
	return found(first), cmp
}

var (
	reOrLess    = regexp.MustCompile(`(?i)\bor\s+(?:less|fewer|lower|shorter|below)\b|\bat\s+most\b|\bno\s+more\s+than\b|\bmaximum\s+of\b|\bnot\s+(?:to\s+)?exceed\b`)
	reOrGreater = regexp.MustCompile(`(?i)\bor\s+(?:more|greater|higher|longer|above)\b|\bat\s+least\b|\bno\s+less\s+than\b|\bminimum\s+of\b`)
)

func comparisonFrom(text string) string {
	switch {
	case reOrLess.MatchString(text):
		return CompareAtMost
	case reOrGreater.MatchString(text):
		return CompareAtLeast
	default:
		return CompareEqual
	}
}

func matchSysctlCommand(text string) (Variant, bool) {
	m := reSysctlCmd.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return sysctlVariant(text, m[1]), true
}

func matchProcSys(text string) (Variant, bool) {
	m := reProcSys.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return sysctlVariant(text, strings.ReplaceAll(strings.Trim(m[1], "/"), "/", ".")), true
}

func sysctlVariant(text, param string) Sysctl {
	v := Sysctl{Param: found(param), Expected: missing(), Comparison: found(comparisonFrom(text))}
	re := regexp.MustCompile(`(?m)` + regexp.QuoteMeta(param) + `\s*=\s*["']?([\w\-.]+)`)
	if m := re.FindStringSubmatch(text); m != nil {
		v.Expected = found(m[1])
	} else if val := setToValue(text); val != "" {
		v.Expected = found(val)
	}
	return v
}

var (
	reStateNotFinding = regexp.MustCompile(`(?i)\bis\s+not\s+["'“]?(enabled|active|running|disabled|masked|stopped|inactive)["'”]?`)
	reStateFinding    = regexp.MustCompile(`(?i)\bis\s+["'“]?(enabled|active|running|disabled|masked|stopped|inactive)["'”]?,?\s+this\s+is\s+a\s+finding`)
	reStateMust       = regexp.MustCompile(`(?i)\b(?:must|should|shall)\s+be\s+["'“]?(enabled|active|running|disabled|masked|stopped|inactive)`)
	reStartupType     = regexp.MustCompile(`(?i)Startup\s+Type["”]?\s+(?:is\s+)?(not\s+)?["“]?(Disabled|Automatic|Manual)`)
)

func normalizeState(s string) string {
	switch strings.ToLower(s) {
	case "running":
		return "active"
	case "stopped":
		return "inactive"
	case "automatic":
		return "enabled"
	}
	return strings.ToLower(s)
}

func invertState(s string) string {
	switch normalizeState(s) {
	case "enabled":
		return "disabled"
	case "active":
		return "inactive"
	case "disabled", "masked":
		return "enabled"
	case "inactive":
		return "active"
	}
	return ""
}

func serviceState(text string) Field {
	if m := reStateFinding.FindStringSubmatch(text); m != nil {
		if s := invertState(m[1]); s != "" {
			return found(s)
		}
	}
	if m := reStateNotFinding.FindStringSubmatch(text); m != nil {
		return found(normalizeState(m[1]))
	}
	if m := reStateMust.FindStringSubmatch(text); m != nil {
		return found(normalizeState(m[1]))
	}
	if m := reStartupType.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			return found(normalizeState(m[2]))
		}
		if s := invertState(m[2]); s != "" {
			return found(s)
		}
	}
	return missing()
}

func matchSystemctl(text string) (Variant, bool) {
	m := reSystemctl.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	name := strings.TrimSuffix(m[2], ".service")
	return Service{Name: found(name), State: serviceState(text)}, true
}

func matchWindowsService(text string) (Variant, bool) {
	if m := reGetService.FindStringSubmatch(text); m != nil {
		return Service{Name: found(m[1]), State: serviceState(text)}, true
	}
	if m := reWinService.FindStringSubmatch(text); m != nil {
		return Service{Name: found(strings.TrimSpace(m[1])), State: serviceState(text)}, true
	}
	return nil, false
}

var (
	reMustNotInstall = regexp.MustCompile(`(?i)\b(?:is|are)\s+installed,?\s+this\s+is\s+a\s+finding|\b(?:must|should|shall)\s+not\s+be\s+installed|\bmust\s+be\s+removed\b|\buninstall\b`)
	reMustInstall    = regexp.MustCompile(`(?i)\b(?:is|are)\s+not\s+installed,?\s+this\s+is\s+a\s+finding|\b(?:must|should|shall)\s+be\s+installed|\bnot\s+installed\b.*\bfinding\b`)
)

func matchPackageManager(text string) (Variant, bool) {
	m := rePackage.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	v := Package{Name: found(m[1]), Presence: missing()}
	switch {
	case reMustNotInstall.MatchString(text):
		v.Presence = found("absent")
	case reMustInstall.MatchString(text):
		v.Presence = found("present")
	}
	return v, true
}

var (
	reRowsFinding   = regexp.MustCompile(`(?i)\bif\s+(?:any|one\s+or\s+more)\s+[\w\s\-"']{0,60}?\s+(?:are|is)\s+(?:returned|listed|displayed|present)`)
	reNoRowsFinding = regexp.MustCompile(`(?i)\bif\s+(?:no|zero)\s+[\w\s\-"']{0,60}?\s+(?:are|is)\s+(?:returned|listed|displayed)`)
)

func sqlExpected(text string) Field {
	switch {
	case reRowsFinding.MatchString(text):
		return found("empty")
	case reNoRowsFinding.MatchString(text):
		return found("nonempty")
	}
	if v := setToValue(text); v != "" {
		return found(v)
	}
	return missing()
}

func matchSelect(text string) (Variant, bool) {
	m := reSelect.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	query := strings.Join(strings.Fields(m[1]), " ")
	return SQL{Query: found(query), Expected: sqlExpected(text)}, true
}

func matchShowSetting(text string) (Variant, bool) {
	m := reShowSetting.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return SQL{Query: found(strings.Join(strings.Fields(m[1]), " ")), Expected: sqlExpected(text)}, true
}

var (
	reLineMissingFinding = regexp.MustCompile(`(?i)\b(?:is\s+not|are\s+not|does\s+not|do\s+not)\s+(?:configured|present|exist|enabled|set|shown|displayed)\b|\bis\s+missing\b`)
	reLinePresentFinding = regexp.MustCompile(`(?i)\b(?:is|are)\s+(?:configured|present|enabled|displayed),?\s+this\s+is\s+a\s+finding`)
)

func matchShowCommand(text string) (Variant, bool) {
	m := reShowCommand.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	cmd := strings.TrimRight(strings.TrimSpace(m[1]), ".:")
	// "show running-config | include foo" carries its own pattern.
	v := NetworkCommand{Command: found(cmd), Pattern: missing(), Expected: missing()}
	if i := strings.Index(cmd, "|"); i >= 0 {
		filter := strings.Fields(cmd[i+1:])
		if len(filter) >= 2 && (strings.HasPrefix(filter[0], "i") || strings.HasPrefix(filter[0], "s")) {
			v.Pattern = found(strings.Join(filter[1:], " "))
		}
	}
	for _, q := range reQuoted.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(q[1])
		if strings.HasPrefix(strings.ToLower(candidate), "show ") {
			continue
		}
		v.Pattern = found(candidate)
		break
	}
	switch {
	case reLinePresentFinding.MatchString(text):
		v.Expected = found("absent")
	case reLineMissingFinding.MatchString(text):
		v.Expected = found("present")
	}
	return v, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
