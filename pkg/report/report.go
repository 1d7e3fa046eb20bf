// Package report exports the classification stream as JSON or CSV and
// prints the terminal summary of a run.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/patch"
)

// Format of an exported classification stream.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFor picks the format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

var csvHeader = []string{
	"vuln_id", "stig_id", "rule_id", "severity", "platform", "category",
	"check_type", "confidence", "tier", "reasons", "ruleset_version",
}

// WriteJSON writes the classifications as an indented JSON array. An empty
// stream is written as [].
func WriteJSON(w io.Writer, cs []classify.Classification) error {
	if cs == nil {
		cs = []classify.Classification{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cs); err != nil {
		return fmt.Errorf("encode classifications: %w", err)
	}
	return nil
}

// WriteCSV writes one row per classification. Reasons are joined with ';'.
func WriteCSV(w io.Writer, cs []classify.Classification) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range cs {
		row := []string{
			c.VulnID, c.StigID, c.RuleID, string(c.Severity), string(c.Platform),
			string(c.Category), string(c.CheckType), string(c.Confidence), c.Tier,
			strings.Join(c.Reasons, ";"), c.RulesetVersion,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", c.StigID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the stream to path in the format its extension selects,
// replacing the file atomically.
func Export(path string, cs []classify.Classification) error {
	var buf bytes.Buffer
	var err error
	switch FormatFor(path) {
	case FormatCSV:
		err = WriteCSV(&buf, cs)
	default:
		err = WriteJSON(&buf, cs)
	}
	if err != nil {
		return err
	}
	if err := (patch.Patcher{}).WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

