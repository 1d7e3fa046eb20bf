// Package patch writes generated check logic into existing scripts by
// replacing their extension point, leaving every other line untouched.
package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/scripts"
	"github.com/user/stigforge/pkg/synth"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second

	dirPerm    = 0o755
	scriptPerm = 0o755
)

// Outcome of patching one file.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

var (
	// ErrNoMarkers is returned for files with neither an extension point
	// nor a generated region.
	ErrNoMarkers = errors.New("no extension point markers")
	// ErrAmbiguousMarkers is returned when a marker appears more than once.
	ErrAmbiguousMarkers = errors.New("extension point markers are ambiguous")
	// ErrUnterminated is returned when a begin marker has no matching end
	// marker after it.
	ErrUnterminated = errors.New("extension point is not terminated")
)

// Result reports what happened to one file.
type Result struct {
	Path    string  `json:"path"`
	Outcome Outcome `json:"outcome"`
	Created bool    `json:"created,omitempty"`
	Error   string  `json:"error,omitempty"`
	err     error
}

// Err returns the failure, if any.
func (r Result) Err() error { return r.err }

// Patcher replaces extension points. The zero value retries writes with the
// default backoff.
type Patcher struct {
	Attempts uint
	Delay    time.Duration
}

// Patch writes an artifact to its path. Stub artifacts carry no region and
// never overwrite an existing file.
func (p Patcher) Patch(art synth.GeneratedArtifact) Result {
	return p.Apply(art.Path, art.Region, art.Source)
}

// Apply writes region into the extension point of the file at path. A
// missing file is created with source. A file whose logic was already
// generated, or any existing file when region is empty, is skipped. A
// failed patch leaves the file byte-for-byte unchanged.
func (p Patcher) Apply(path, region, source string) Result {
	res := Result{Path: path}

	current, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := p.write(path, []byte(source), scriptPerm); err != nil {
			return res.fail(err)
		}
		res.Outcome, res.Created = OutcomeApplied, true
		logging.Debugf("created %s", path)
		return res
	}
	if err != nil {
		return res.fail(fmt.Errorf("read %s: %w", path, err))
	}
	if region == "" {
		res.Outcome = OutcomeSkipped
		return res
	}

	patched, outcome, err := Splice(string(current), region)
	if err != nil {
		return res.fail(fmt.Errorf("%s: %w", path, err))
	}
	if outcome == OutcomeSkipped {
		res.Outcome = OutcomeSkipped
		logging.Debugf("%s already carries generated logic; skipped", path)
		return res
	}

	mode := os.FileMode(scriptPerm)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := p.write(path, []byte(patched), mode); err != nil {
		return res.fail(err)
	}
	res.Outcome = OutcomeApplied
	logging.Debugf("patched %s", path)
	return res
}

func (r Result) fail(err error) Result {
	r.Outcome = OutcomeFailed
	r.Error = err.Error()
	r.err = err
	logging.Warnf("patch failed: %v", err)
	return r
}

// Splice returns content with its single extension point replaced by
// region, re-indented to the begin marker's indentation. Lines outside the
// extension point are returned byte for byte; the replacement takes the
// begin marker's line ending.
func Splice(content, region string) (string, Outcome, error) {
	// Each line keeps its trailing \r; locate compares trimmed lines.
	lines := strings.Split(content, "\n")

	begin, end, err := locate(lines, scripts.ExtensionBegin, scripts.ExtensionEnd)
	if errors.Is(err, ErrNoMarkers) {
		if _, _, gerr := locate(lines, scripts.GeneratedBegin, scripts.GeneratedEnd); gerr == nil {
			return "", OutcomeSkipped, nil
		}
		return "", OutcomeFailed, ErrNoMarkers
	}
	if err != nil {
		return "", OutcomeFailed, err
	}

	marker := lines[begin]
	eol := ""
	if strings.HasSuffix(marker, "\r") {
		eol = "\r"
	}
	indent := marker[:len(marker)-len(strings.TrimLeft(marker, " \t"))]
	region = strings.Trim(strings.ReplaceAll(region, "\r\n", "\n"), "\n")
	replacement := strings.Split(indentWith(indent, region), "\n")
	for i := range replacement {
		replacement[i] += eol
	}

	out := make([]string, 0, len(lines)-(end-begin+1)+len(replacement))
	out = append(out, lines[:begin]...)
	out = append(out, replacement...)
	out = append(out, lines[end+1:]...)
	return strings.Join(out, "\n"), OutcomeApplied, nil
}

// locate finds the single begin/end pair.
func locate(lines []string, beginMarker, endMarker string) (int, int, error) {
	begin, end := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case beginMarker:
			if begin >= 0 {
				return 0, 0, ErrAmbiguousMarkers
			}
			begin = i
		case endMarker:
			if end >= 0 {
				return 0, 0, ErrAmbiguousMarkers
			}
			end = i
		}
	}
	switch {
	case begin < 0 && end < 0:
		return 0, 0, ErrNoMarkers
	case begin < 0 || end < begin:
		return 0, 0, ErrUnterminated
	}
	return begin, end, nil
}

func indentWith(prefix, s string) string {
	if prefix == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// WriteFile atomically replaces path with data, retrying transient errors.
func (p Patcher) WriteFile(path string, data []byte, mode os.FileMode) error {
	return p.write(path, data, mode)
}

// write replaces path atomically: a temp file in the same directory is
// renamed over it.
func (p Patcher) write(path string, data []byte, mode os.FileMode) error {
	attempts, delay := p.Attempts, p.Delay
	if attempts == 0 {
		attempts = maxRetries
	}
	if delay == 0 {
		delay = initialBackoff
	}
	return retry.Do(func() error {
		return writeAtomic(path, data, mode)
	}, retry.Attempts(attempts), retry.Delay(delay), retry.MaxDelay(maxBackoff))
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
