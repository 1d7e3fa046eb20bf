package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/stigforge/pkg/pipeline"
)

// RenderWrapper implements the Tool interface for rendering an audit script
type RenderWrapper struct {
	Engine *Engine
}

func (r *RenderWrapper) Name() string {
	return "RenderScript"
}

func (r *RenderWrapper) Description() string {
	return "Renders the audit script for one STIG check procedure. Falls back to a manual-review script when a value cannot be extracted. Set stub to get an extension-point skeleton instead."
}

func (r *RenderWrapper) Schema() map[string]interface{} {
	return checkArgs(map[string]interface{}{
		"stub": map[string]interface{}{
			"type":        "boolean",
			"description": "Render an extension-point stub instead of generated check logic.",
		},
	})
}

func (r *RenderWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	mode := pipeline.ModeGenerate
	if stub, _ := args["stub"].(bool); stub {
		mode = pipeline.ModeStub
	}
	if progress != nil {
		progress(fmt.Sprintf("Rendering %s script...", mode))
	}

	o, err := r.Engine.run(ctx, args, mode)
	if err != nil {
		return fmt.Sprintf("Error rendering script: %v", err), nil
	}
	art := o.Artifact
	if art == nil {
		return "No script was rendered for this check.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rendered %s (%s, template %s, status %s)\n", art.Path, art.Language, art.TemplateID, art.Status)
	if art.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", art.Reason)
	}
	for _, in := range art.ConfigInputs {
		fmt.Fprintf(&sb, "Config input %s (suggested %q)\n", in.Key, in.Suggested)
	}
	sb.WriteString("\n")
	sb.WriteString(art.Source)
	return sb.String(), nil
}
