package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are not JSON, JSON lines
// or YAML.
var ErrUnsupportedFormat = errors.New("unsupported record file format")

// wrapperKeys are the top-level keys under which exports nest their records.
var wrapperKeys = []string{"rules", "checks", "records", "findings", "stigs", "data"}

// LoadPaths loads records from files and directories. Directories are walked
// for .json, .jsonl, .yaml and .yml files in lexical order. Per-record
// problems are returned as warnings; err is set only when nothing could be
// read at all.
func LoadPaths(paths []string) ([]CheckRecord, []error, error) {
	var (
		records  []CheckRecord
		warnings []error
		files    []string
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, warnings, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, warnings, fmt.Errorf("scan %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	for _, f := range files {
		recs, warns, err := LoadFile(f)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		records = append(records, recs...)
		warnings = append(warnings, warns...)
	}
	if len(records) == 0 && len(warnings) > 0 {
		return nil, warnings, fmt.Errorf("no records loaded from %d file(s)", len(files))
	}
	return records, warnings, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads a single record file.
func LoadFile(path string) ([]CheckRecord, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raws []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		raws, err = flatten(doc)
	case ".jsonl":
		raws, err = parseJSONLines(data)
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		raws, err = flatten(doc)
	default:
		return nil, nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]CheckRecord, 0, len(raws))
	var warnings []error
	for i, raw := range raws {
		rec, err := Normalize(raw)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: record #%d: %w", path, i+1, err))
			continue
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}

func parseJSONLines(data []byte) ([]map[string]any, error) {
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}

// flatten accepts an array of objects, an object wrapping such an array, a
// single record object, or an object keyed by vulnerability ID.
func flatten(doc any) ([]map[string]any, error) {
	switch t := doc.(type) {
	case []any:
		return objects(t)
	case map[string]any:
		for _, key := range wrapperKeys {
			for k, v := range t {
				if !strings.EqualFold(k, key) {
					continue
				}
				if list, ok := v.([]any); ok {
					return objects(list)
				}
			}
		}
		if looksLikeRecord(t) {
			return []map[string]any{t}, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []map[string]any
		for _, k := range keys {
			m, ok := t[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("unrecognized record layout at key %q", k)
			}
			rec := make(map[string]any, len(m)+1)
			for mk, mv := range m {
				rec[mk] = mv
			}
			if _, ok := rec["vuln_id"]; !ok {
				rec["vuln_id"] = k
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, errors.New("document is neither an object nor an array")
	}
}

func objects(list []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item #%d is not an object", i+1)
		}
		out = append(out, m)
	}
	return out, nil
}

func looksLikeRecord(m map[string]any) bool {
	for k := range m {
		switch aliasKey(k) {
		case "checkcontent", "checktext", "vulnid", "stigid", "groupid", "ruleid":
			return true
		}
	}
	return false
}
