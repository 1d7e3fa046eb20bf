package wrappers

import (
	"context"
	"fmt"
	"strings"
)

// TemplatesWrapper implements the Tool interface for listing templates
type TemplatesWrapper struct {
	Engine *Engine
}

func (t *TemplatesWrapper) Name() string {
	return "ListTemplates"
}

func (t *TemplatesWrapper) Description() string {
	return "Lists the script templates stigforge can render, one per check type and platform, with the parameters each one needs."
}

func (t *TemplatesWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"platform": map[string]interface{}{
				"type":        "string",
				"description": "Only list templates for this platform. Lists all when omitted.",
			},
		},
	}
}

func (t *TemplatesWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	reg := t.Engine.registry()
	platform, _ := args["platform"].(string)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Templates (version %s):\n", reg.Version)
	n := 0
	for _, tmpl := range reg.List() {
		if platform != "" && !strings.EqualFold(string(tmpl.Platform), platform) {
			continue
		}
		n++
		kind := string(tmpl.CheckType)
		if tmpl.Manual {
			kind = "manual"
		}
		fmt.Fprintf(&sb, "- %s: %s on %s", tmpl.ID, kind, tmpl.Platform)
		if len(tmpl.Slots) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(tmpl.Slots, ", "))
		}
		sb.WriteString("\n")
	}
	if n == 0 {
		return fmt.Sprintf("No templates found for platform '%s'.", platform), nil
	}
	return sb.String(), nil
}
