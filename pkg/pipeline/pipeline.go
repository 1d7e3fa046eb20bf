// Package pipeline drives records through extraction, classification,
// synthesis and patching on a fixed worker pool.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/patch"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/scripts"
	"github.com/user/stigforge/pkg/synth"
)

// ConfigSampleName is the file generate writes next to the artifacts.
const ConfigSampleName = "stigforge-config.sample.json"

// Mode selects what a run produces.
type Mode string

const (
	// ModeClassify classifies records without rendering anything.
	ModeClassify Mode = "classify"
	// ModeGenerate renders check logic and patches or creates artifacts.
	ModeGenerate Mode = "generate"
	// ModeStub writes extension-point stubs for records that have no file.
	ModeStub Mode = "stub"
)

// Options configures a run. Zero values select the embedded rule table and
// templates and one worker per CPU.
type Options struct {
	Mode     Mode
	OutDir   string
	Workers  int
	Platform record.Platform
	Rules    *classify.Ruleset
	Registry *scripts.Registry
	Patcher  patch.Patcher
	// DryRun renders artifacts without touching the filesystem.
	DryRun bool
}

// Outcome is the result for one record. Outcomes are stored by record
// index.
type Outcome struct {
	Index          int                         `json:"index"`
	Record         record.CheckRecord          `json:"-"`
	Parameters     extract.ExtractedParameters `json:"parameters"`
	Classification classify.Classification     `json:"classification"`
	Artifact       *synth.GeneratedArtifact    `json:"artifact,omitempty"`
	Patch          *patch.Result               `json:"patch,omitempty"`
	Error          string                      `json:"error,omitempty"`
	err            error
	done           bool
}

// Err returns the record's render or write error.
func (o Outcome) Err() error { return o.err }

// Result is a completed run.
type Result struct {
	RunID        string    `json:"run_id"`
	Mode         Mode      `json:"mode"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	Outcomes     []Outcome `json:"outcomes"`
	Stats        Stats     `json:"stats"`
	ConfigSample string    `json:"config_sample,omitempty"`
}

// Classifications returns the classification stream in record order.
func (r *Result) Classifications() []classify.Classification {
	out := make([]classify.Classification, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Classification)
	}
	return out
}

type job struct {
	index    int
	platform record.Platform
	path     string
}

// Run processes records. A failure on one record is recorded on its
// Outcome and counted; the batch continues. When ctx is cancelled no new
// records are scheduled, in-flight records finish, and the partial result
// is returned with ctx.Err().
func Run(ctx context.Context, records []record.CheckRecord, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = ModeGenerate
	}
	if opts.Rules == nil {
		opts.Rules = classify.Default()
	}
	if opts.Registry == nil {
		opts.Registry = scripts.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(records) && len(records) > 0 {
		workers = len(records)
	}

	res := &Result{RunID: uuid.NewString(), Mode: opts.Mode, Started: time.Now().UTC()}
	logging.Infof("run %s: %s %d record(s) with %d worker(s)", res.RunID, opts.Mode, len(records), workers)

	s := synth.New(opts.Registry, opts.OutDir)
	jobs := plan(s, records, opts.Platform)
	outcomes := make([]Outcome, len(records))

	queue := make(chan job)
	tallies := make(chan Stats, workers)
	for w := 0; w < workers; w++ {
		go func() {
			local := NewStats()
			for j := range queue {
				o := process(s, records[j.index], j, opts)
				outcomes[j.index] = o
				local.Add(o)
			}
			tallies <- local
		}()
	}

	var runErr error
dispatch:
	for _, j := range jobs {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case queue <- j:
		}
	}
	close(queue)
	if runErr != nil {
		logging.Warnf("run %s cancelled: %v", res.RunID, runErr)
	}

	res.Stats = NewStats()
	for w := 0; w < workers; w++ {
		res.Stats.Merge(<-tallies)
	}

	for _, o := range outcomes {
		if o.done {
			res.Outcomes = append(res.Outcomes, o)
		}
	}

	if opts.Mode == ModeGenerate && !opts.DryRun {
		path, err := writeConfigSample(opts.Patcher, opts.OutDir, res.Outcomes)
		if err != nil {
			logging.Warnf("config sample: %v", err)
			res.Stats.Errors++
		}
		res.ConfigSample = path
	}

	res.Finished = time.Now().UTC()
	logging.Infof("run %s finished: %s", res.RunID, res.Stats.Summary())
	return res, runErr
}

// plan assigns every record its platform and a unique output path before
// any work is dispatched. Colliding names get _2, _3, ... in record order.
func plan(s *synth.Synthesizer, records []record.CheckRecord, forced record.Platform) []job {
	jobs := make([]job, len(records))
	used := make(map[string]bool, len(records))
	for i, rec := range records {
		p := forced
		if p == "" {
			p = record.DetectPlatform(rec)
		}
		path := s.DefaultPath(rec, p)
		if used[strings.ToLower(path)] {
			ext := filepath.Ext(path)
			base := strings.TrimSuffix(path, ext)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
				if !used[strings.ToLower(candidate)] {
					path = candidate
					break
				}
			}
		}
		used[strings.ToLower(path)] = true
		jobs[i] = job{index: i, platform: p, path: path}
	}
	return jobs
}

func process(s *synth.Synthesizer, rec record.CheckRecord, j job, opts Options) Outcome {
	o := Outcome{Index: j.index, Record: rec, done: true}

	text := rec.Text()
	o.Parameters = extract.Extract(text, opts.Rules.DetectCheckType(text))
	o.Classification = classify.Classifier{Rules: opts.Rules, Platform: j.platform}.Classify(rec, o.Parameters)
	if opts.Mode == ModeClassify {
		return o
	}

	var (
		art synth.GeneratedArtifact
		err error
	)
	if opts.Mode == ModeStub {
		art, err = s.Stub(rec, j.platform)
	} else {
		art, err = s.Render(o.Classification.CheckType, j.platform, o.Parameters, rec)
	}
	if err != nil {
		logging.Warnf("%s: %v", rec.ID(), err)
		o.err, o.Error = err, err.Error()
		return o
	}
	art.Path = j.path
	o.Artifact = &art
	if opts.DryRun {
		return o
	}

	pr := opts.Patcher.Patch(art)
	o.Patch = &pr
	if pr.Outcome == patch.OutcomeFailed {
		o.Artifact.Status = synth.StatusPatchFailed
	}
	return o
}

// ConfigSample collects every organization-defined input, first occurrence
// by record order, as key to suggested value.
func ConfigSample(outcomes []Outcome) map[string]string {
	sample := map[string]string{}
	for _, o := range outcomes {
		for _, in := range o.Parameters.ConfigInputs {
			if _, ok := sample[in.Key]; !ok {
				sample[in.Key] = in.Suggested
			}
		}
	}
	return sample
}

func writeConfigSample(p patch.Patcher, outDir string, outcomes []Outcome) (string, error) {
	sample := ConfigSample(outcomes)
	if len(sample) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	logging.Debugf("config sample keys: %s", strings.Join(keys, ", "))

	// encoding/json writes map keys sorted.
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode config sample: %w", err)
	}
	path := filepath.Join(outDir, ConfigSampleName)
	if err := p.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
