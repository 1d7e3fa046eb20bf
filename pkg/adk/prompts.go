package adk

import (
	_ "embed"
	"strings"
)

//go:embed prompts/system_prompt.md
var systemPrompt string

// GetSystemPrompt returns the instruction that tells the model which engine
// tools exist and how to report their results.
func GetSystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}
