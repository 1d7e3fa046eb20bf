package record

import (
	"regexp"
	"strings"
)

// Platform is the kind of system a check targets. It selects the script
// language and template set.
type Platform string

const (
	PlatformLinux    Platform = "linux"
	PlatformWindows  Platform = "windows"
	PlatformDatabase Platform = "database"
	PlatformNetwork  Platform = "network"
)

// Platforms lists every platform in registry order.
var Platforms = []Platform{PlatformLinux, PlatformWindows, PlatformDatabase, PlatformNetwork}

// ParsePlatform returns "" for unrecognized names.
func ParsePlatform(s string) Platform {
	for _, p := range Platforms {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p
		}
	}
	return ""
}

type platformCue struct {
	platform Platform
	re       *regexp.Regexp
}

// benchmarkCues are tried against the benchmark name in order; database
// products come first because their names often mention the host OS.
var benchmarkCues = []platformCue{
	{PlatformDatabase, regexp.MustCompile(`(?i)\b(?:sql\s+server|postgres(?:ql)?|mysql|mariadb|oracle\s+database|mongodb|db2|database|dbms|edb)\b`)},
	{PlatformWindows, regexp.MustCompile(`(?i)\b(?:windows|microsoft|iis|active\s+directory|asp\.net|dotnet|exchange|sharepoint|defender|edge)\b`)},
	{PlatformNetwork, regexp.MustCompile(`(?i)\b(?:cisco|juniper|router|switch|firewall|ios(?:-xe|-xr)?|nx-os|junos|palo\s+alto|f5|arista|network\s+device|ndm|rtr|l2s)\b`)},
	{PlatformLinux, regexp.MustCompile(`(?i)\b(?:linux|rhel|red\s+hat|ubuntu|suse|sles|debian|centos|unix|solaris|aix|almalinux|rocky)\b`)},
}

// textCues are weaker signals read from the check text when the benchmark
// name is silent.
var textCues = []platformCue{
	{PlatformWindows, regexp.MustCompile(`(?i)\bHK(?:LM|CU|EY_[A-Z_]+)\b|\bgpedit\.msc\b|\bsecpol\.msc\b|\bPowerShell\b|\bGet-[A-Z]\w+|Computer\s+Configuration\s*>>`)},
	{PlatformDatabase, regexp.MustCompile(`(?i)\bSELECT\b[\s\S]+?\bFROM\b|\bpsql\b|\bsqlplus\b|\bsqlcmd\b|\bmysql\s+-`)},
	{PlatformNetwork, regexp.MustCompile(`(?i)\bshow\s+(?:running-config|run|startup-config|version|interfaces?)\b|\bconfigure\s+terminal\b`)},
}

// DetectPlatform infers the target platform from the benchmark name, then
// from the check text, defaulting to linux.
func DetectPlatform(r CheckRecord) Platform {
	for _, c := range benchmarkCues {
		if c.re.MatchString(r.Benchmark) {
			return c.platform
		}
	}
	text := r.Text()
	for _, c := range textCues {
		if c.re.MatchString(text) {
			return c.platform
		}
	}
	return PlatformLinux
}
