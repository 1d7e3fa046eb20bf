package pipeline

import (
	"fmt"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/patch"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/synth"
)

// Stats tallies a run. Each worker keeps its own and the reducer merges
// them, so no counter is shared between goroutines.
type Stats struct {
	Total      int                       `json:"total"`
	Categories map[classify.Category]int `json:"categories"`
	Platforms  map[record.Platform]int   `json:"platforms"`

	Synthesized       int `json:"synthesized"`
	ManualPlaceholder int `json:"manual_placeholder"`
	PatchFailed       int `json:"patch_failed"`

	Applied int `json:"applied"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Errors  int `json:"errors"`
}

func NewStats() Stats {
	return Stats{
		Categories: make(map[classify.Category]int),
		Platforms:  make(map[record.Platform]int),
	}
}

// Add counts one outcome.
func (s *Stats) Add(o Outcome) {
	s.Total++
	s.Categories[o.Classification.Category]++
	s.Platforms[o.Classification.Platform]++
	if o.err != nil {
		s.Errors++
	}
	// A skipped file keeps its earlier content, so its synthesis status
	// is not counted again.
	written := o.Patch == nil || o.Patch.Outcome != patch.OutcomeSkipped
	if o.Artifact != nil && written {
		switch o.Artifact.Status {
		case synth.StatusSynthesized:
			s.Synthesized++
		case synth.StatusManualPlaceholder:
			s.ManualPlaceholder++
		case synth.StatusPatchFailed:
			s.PatchFailed++
		}
	}
	if o.Patch != nil {
		switch o.Patch.Outcome {
		case patch.OutcomeApplied:
			s.Applied++
			if o.Patch.Created {
				s.Created++
			}
		case patch.OutcomeSkipped:
			s.Skipped++
		case patch.OutcomeFailed:
			s.Failed++
		}
	}
}

// Merge folds other into s.
func (s *Stats) Merge(other Stats) {
	s.Total += other.Total
	for k, v := range other.Categories {
		s.Categories[k] += v
	}
	for k, v := range other.Platforms {
		s.Platforms[k] += v
	}
	s.Synthesized += other.Synthesized
	s.ManualPlaceholder += other.ManualPlaceholder
	s.PatchFailed += other.PatchFailed
	s.Applied += other.Applied
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Errors += other.Errors
}

// Summary is the one-line count of synthesized, manual, skipped and failed
// artifacts. The four counts are disjoint.
func (s Stats) Summary() string {
	return fmt.Sprintf("%d record(s): %d synthesized, %d manual placeholder, %d skipped, %d failed, %d error(s)",
		s.Total, s.Synthesized, s.ManualPlaceholder, s.Skipped, s.Failed, s.Errors)
}
