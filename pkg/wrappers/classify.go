package wrappers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/user/stigforge/pkg/pipeline"
)

// ClassifyWrapper implements the Tool interface for classifying a check
type ClassifyWrapper struct {
	Engine *Engine
}

func (c *ClassifyWrapper) Name() string {
	return "ClassifyCheck"
}

func (c *ClassifyWrapper) Description() string {
	return "Classifies one STIG check procedure as fully_automated, automated_with_config, manual_review or needs_analysis, and reports the detected check type, extracted parameters and the reasons for the decision."
}

func (c *ClassifyWrapper) Schema() map[string]interface{} {
	return checkArgs(nil)
}

func (c *ClassifyWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if progress != nil {
		progress("Classifying check...")
	}
	o, err := c.Engine.run(ctx, args, pipeline.ModeClassify)
	if err != nil {
		return fmt.Sprintf("Error classifying check: %v", err), nil
	}

	cl := o.Classification
	var sb strings.Builder
	fmt.Fprintf(&sb, "Classification for %s:\n", firstNonEmpty(cl.StigID, cl.VulnID))
	fmt.Fprintf(&sb, "  Category:   %s\n", cl.Category)
	fmt.Fprintf(&sb, "  Check type: %s (confidence %s)\n", cl.CheckType, cl.Confidence)
	fmt.Fprintf(&sb, "  Platform:   %s\n", cl.Platform)
	fmt.Fprintf(&sb, "  Reasons:    %s\n", strings.Join(cl.Reasons, ", "))

	if slots := o.Parameters.PlaceholderSlots(); len(slots) > 0 {
		sort.Strings(slots)
		fmt.Fprintf(&sb, "  Missing:    %s\n", strings.Join(slots, ", "))
	}
	params, err := json.MarshalIndent(o.Parameters, "  ", "  ")
	if err == nil {
		fmt.Fprintf(&sb, "  Parameters: %s\n", params)
	}
	return sb.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
