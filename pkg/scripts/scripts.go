// Package scripts holds the template registry for generated check scripts:
// per-language skeletons implementing the result contract, per
// (check type, platform) logic templates, and the extension-point markers
// the patcher looks for.
package scripts

import (
	"strconv"
	"strings"

	"github.com/user/stigforge/pkg/record"
)

// Language is the scripting language of a generated artifact.
type Language string

const (
	LanguageBash       Language = "bash"
	LanguagePowerShell Language = "powershell"
	LanguagePython     Language = "python"
)

// LanguageFor returns the language scripts for a platform are written in.
// Database checks run as bash driving the configured SQL client; network
// checks run as Python over captured or SSH-fetched device output.
func LanguageFor(p record.Platform) Language {
	switch p {
	case record.PlatformWindows:
		return LanguagePowerShell
	case record.PlatformNetwork:
		return LanguagePython
	default:
		return LanguageBash
	}
}

// Ext returns the file extension, with the dot.
func (l Language) Ext() string {
	switch l {
	case LanguagePowerShell:
		return ".ps1"
	case LanguagePython:
		return ".py"
	default:
		return ".sh"
	}
}

// Extension-point and generated-region sentinels. All three languages use
// '#' line comments, so one set serves every skeleton.
const (
	ExtensionBegin = "# >>> STIGFORGE EXTENSION POINT: check_logic >>>"
	ExtensionEnd   = "# <<< STIGFORGE EXTENSION POINT: check_logic <<<"
	GeneratedBegin = "# >>> STIGFORGE GENERATED: check_logic >>>"
	GeneratedEnd   = "# <<< STIGFORGE GENERATED: check_logic <<<"
)

// StubRegion is the unimplemented extension point: the marker pair around a
// body that reports Not_Reviewed.
func StubRegion(lang Language) string {
	var body string
	switch lang {
	case LanguagePowerShell:
		body = "Write-Result -Status 'Not_Reviewed' -Details 'Check logic has not been implemented.'"
	case LanguagePython:
		body = `report("Not_Reviewed", "Check logic has not been implemented.")`
	default:
		body = `report "Not_Reviewed" "Check logic has not been implemented."`
	}
	return ExtensionBegin + "\n" + body + "\n" + ExtensionEnd
}

// GeneratedRegion wraps rendered check logic in the generated sentinels.
func GeneratedRegion(logic string) string {
	return GeneratedBegin + "\n" + strings.Trim(logic, "\n") + "\n" + GeneratedEnd
}

// Indent prefixes every non-empty line of s with n spaces.
func Indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// shellQuote quotes s as a single bash word.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// psQuote quotes s as a PowerShell verbatim string.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// pyQuote quotes s as a Python string literal. Go's escapes are a subset of
// Python's.
func pyQuote(s string) string {
	return strconv.Quote(s)
}

// comment flattens s onto one line so it can follow a '#'.
func comment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
