// Package wrappers exposes the stigforge engine to the assistant as tools.
package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/pipeline"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/scripts"
)

// adhocID identifies records built from a chat request that names no check.
const adhocID = "ADHOC-0001"

// Engine is the configuration the tools share. Tools never write to disk.
type Engine struct {
	Rules    *classify.Ruleset
	Registry *scripts.Registry
	Platform record.Platform
}

func (e *Engine) registry() *scripts.Registry {
	if e == nil || e.Registry == nil {
		return scripts.Default()
	}
	return e.Registry
}

// checkArgs is the argument schema shared by the per-record tools.
func checkArgs(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"check_content": map[string]interface{}{
			"type":        "string",
			"description": "The check procedure text, as written in the benchmark.",
		},
		"vuln_id": map[string]interface{}{
			"type":        "string",
			"description": "Vulnerability ID (e.g., 'V-230221'). Optional.",
		},
		"stig_id": map[string]interface{}{
			"type":        "string",
			"description": "STIG ID (e.g., 'RHEL-08-010000'). Optional.",
		},
		"title": map[string]interface{}{
			"type":        "string",
			"description": "Rule title. Optional.",
		},
		"platform": map[string]interface{}{
			"type":        "string",
			"description": "Force a platform: linux, windows, database or network. Detected when omitted.",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"check_content"},
	}
}

// run builds a record from tool arguments and runs it through the pipeline
// without touching the filesystem.
func (e *Engine) run(ctx context.Context, args map[string]interface{}, mode pipeline.Mode) (pipeline.Outcome, error) {
	content, _ := args["check_content"].(string)
	if strings.TrimSpace(content) == "" {
		return pipeline.Outcome{}, fmt.Errorf("check_content is required")
	}

	raw := map[string]any{"check_content": content}
	for _, k := range []string{"vuln_id", "stig_id", "title"} {
		if v, ok := args[k].(string); ok && v != "" {
			raw[k] = v
		}
	}
	if raw["vuln_id"] == nil && raw["stig_id"] == nil {
		raw["vuln_id"] = adhocID
	}
	rec, err := record.Normalize(raw)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	platform := record.Platform("")
	if e != nil {
		platform = e.Platform
	}
	if v, ok := args["platform"].(string); ok && v != "" {
		if platform = record.ParsePlatform(v); platform == "" {
			return pipeline.Outcome{}, fmt.Errorf("unknown platform %q, must be one of %v", v, record.Platforms)
		}
	}

	opts := pipeline.Options{Mode: mode, Workers: 1, Platform: platform, Registry: e.registry(), DryRun: true}
	if e != nil {
		opts.Rules = e.Rules
	}
	res, err := pipeline.Run(ctx, []record.CheckRecord{rec}, opts)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	o := res.Outcomes[0]
	return o, o.Err()
}
