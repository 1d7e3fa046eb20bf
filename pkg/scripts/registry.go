package scripts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/record"
)

//go:embed templates
var templateFS embed.FS

// ErrTemplateMissing is returned when no template serves a
// (check type, platform) pair.
var ErrTemplateMissing = errors.New("no template for check type and platform")

// Template is one registry entry from the manifest.
type Template struct {
	ID          string            `yaml:"id" json:"id"`
	CheckType   extract.CheckType `yaml:"check_type,omitempty" json:"check_type,omitempty"`
	Platform    record.Platform   `yaml:"platform" json:"platform"`
	File        string            `yaml:"file" json:"file"`
	Slots       []string          `yaml:"slots" json:"slots"`
	Manual      bool              `yaml:"manual,omitempty" json:"manual,omitempty"`
	Description string            `yaml:"description" json:"description"`
}

// Language of the template's platform.
func (t Template) Language() Language { return LanguageFor(t.Platform) }

type manifest struct {
	Version   string              `yaml:"version"`
	Skeletons map[Language]string `yaml:"skeletons"`
	Partials  []string            `yaml:"partials"`
	Templates []Template          `yaml:"templates"`
}

type pair struct {
	checkType extract.CheckType
	platform  record.Platform
}

// Registry maps (check type, platform) to logic templates. It is read-only
// after Load and safe for concurrent use.
type Registry struct {
	Version   string
	templates map[pair]Template
	manual    map[record.Platform]Template
	skeletons map[Language]string
	set       *template.Template
}

// LogicData is the data a logic template renders with.
type LogicData struct {
	Target       string
	ValueName    string
	Pattern      string
	Comparison   string
	Expected     extract.Field
	HasExpected  bool
	ConfigInputs []extract.ConfigInput
	OnPass       string
	OnFail       string
}

// SkeletonData is the data a skeleton renders with. Region is placed at the
// extension point, indented to the body of the check function.
type SkeletonData struct {
	VulnID    string
	StigID    string
	RuleID    string
	Severity  string
	Title     string
	Benchmark string
	Platform  string
	Region    string
}

var funcs = template.FuncMap{
	"sq":      shellQuote,
	"psq":     psQuote,
	"pyq":     pyQuote,
	"comment": comment,
	"indent":  Indent,
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the embedded registry, loaded on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Load()
		if err != nil {
			panic(fmt.Sprintf("embedded templates: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Load parses the embedded manifest and templates.
func Load() (*Registry, error) {
	data, err := templateFS.ReadFile("templates/index.yaml")
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	r := &Registry{
		Version:   m.Version,
		templates: make(map[pair]Template),
		manual:    make(map[record.Platform]Template),
		skeletons: m.Skeletons,
		set:       template.New("scripts").Funcs(funcs),
	}

	files := append([]string{}, m.Partials...)
	for _, f := range m.Skeletons {
		files = append(files, f)
	}
	for _, t := range m.Templates {
		if t.Platform == "" || record.ParsePlatform(string(t.Platform)) == "" {
			return nil, fmt.Errorf("template %s: unknown platform %q", t.ID, t.Platform)
		}
		if t.Manual {
			r.manual[t.Platform] = t
		} else {
			if extract.ParseCheckType(string(t.CheckType)) == extract.TypeUnknown {
				return nil, fmt.Errorf("template %s: unknown check type %q", t.ID, t.CheckType)
			}
			r.templates[pair{t.CheckType, t.Platform}] = t
		}
		files = append(files, t.File)
	}
	sort.Strings(files)
	for _, f := range files {
		if r.set.Lookup(f) != nil {
			continue
		}
		src, err := templateFS.ReadFile(path.Join("templates", f))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", f, err)
		}
		if _, err := r.set.New(f).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", f, err)
		}
	}

	for _, p := range record.Platforms {
		if _, ok := r.manual[p]; !ok {
			return nil, fmt.Errorf("no manual template for platform %s", p)
		}
		if _, ok := r.skeletons[LanguageFor(p)]; !ok {
			return nil, fmt.Errorf("no skeleton for language %s", LanguageFor(p))
		}
	}
	return r, nil
}

// Lookup returns the template for a pair.
func (r *Registry) Lookup(ct extract.CheckType, p record.Platform) (Template, bool) {
	t, ok := r.templates[pair{ct, p}]
	return t, ok
}

// Manual returns the platform's manual-review template.
func (r *Registry) Manual(p record.Platform) Template {
	return r.manual[p]
}

// List returns every template, ordered by platform then ID.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.templates)+len(r.manual))
	for _, t := range r.templates {
		out = append(out, t)
	}
	for _, t := range r.manual {
		out = append(out, t)
	}
	rank := make(map[record.Platform]int, len(record.Platforms))
	for i, p := range record.Platforms {
		rank[p] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return rank[out[i].Platform] < rank[out[j].Platform]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RenderLogic renders a logic template to the unindented region body.
func (r *Registry) RenderLogic(t Template, data LogicData) (string, error) {
	return r.execute(t.File, data)
}

// RenderSkeleton renders the full script for a language around data.Region.
func (r *Registry) RenderSkeleton(lang Language, data SkeletonData) (string, error) {
	name, ok := r.skeletons[lang]
	if !ok {
		return "", fmt.Errorf("no skeleton for language %s", lang)
	}
	return r.execute(name, data)
}

func (r *Registry) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.set.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
