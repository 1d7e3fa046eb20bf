// Package extract pulls typed verification parameters (paths, modes,
// registry values, kernel parameters, packages, services, SQL, directives)
// out of free-text check descriptions.
package extract

import (
	"encoding/json"
	"sort"
)

// CheckType is the kind of verification a check performs. It keys both the
// parameter variant and the script template.
type CheckType string

const (
	TypeFilePermission  CheckType = "file_permission"
	TypeRegistryValue   CheckType = "registry_value"
	TypeServiceStatus   CheckType = "service_status"
	TypeKernelParameter CheckType = "kernel_parameter"
	TypeConfigGrep      CheckType = "config_grep"
	TypePackagePresence CheckType = "package_presence"
	TypeSQLQuery        CheckType = "sql_query"
	TypeNetworkCommand  CheckType = "network_command"
	TypeGUIManual       CheckType = "gui_manual"
	TypeUnknown         CheckType = "unknown"
)

// AllTypes lists every check type in declaration order.
var AllTypes = []CheckType{
	TypeFilePermission, TypeRegistryValue, TypeServiceStatus, TypeKernelParameter,
	TypeConfigGrep, TypePackagePresence, TypeSQLQuery, TypeNetworkCommand,
	TypeGUIManual, TypeUnknown,
}

// ParseCheckType returns TypeUnknown for unrecognized names.
func ParseCheckType(s string) CheckType {
	for _, t := range AllTypes {
		if string(t) == s {
			return t
		}
	}
	return TypeUnknown
}

// Confidence grades how much of a parameter set was actually found in text.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Comparison operators carried by the comparison slot.
const (
	CompareEqual   = "eq"
	CompareAtMost  = "le"
	CompareAtLeast = "ge"
	// CompareMode passes when the actual octal mode grants no bit the
	// expected mode does not.
	CompareMode = "mode"
)

// Slot names shared with the template manifest.
const (
	SlotTarget     = "target"
	SlotExpected   = "expected"
	SlotComparison = "comparison"
	SlotValueName  = "value_name"
	SlotPattern    = "pattern"
)

// Field is one extracted value. A placeholder field was not found in the
// text; a field with a ConfigKey is supplied at script runtime from the
// --config file.
type Field struct {
	Value       string `json:"value,omitempty"`
	ConfigKey   string `json:"config_key,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

func found(v string) Field { return Field{Value: v} }
func missing() Field { return Field{Placeholder: true} }
func fromConfig(key string) Field { return Field{ConfigKey: key} }

// Resolved reports whether the field carries a usable value.
func (f Field) Resolved() bool {
	return !f.Placeholder && (f.Value != "" || f.ConfigKey != "")
}

// Variant is one arm of the parameter union.
type Variant interface {
	CheckType() CheckType
	// Slots maps template slot names to fields. Optional slots that were not
	// mentioned in the text are zero Fields, not placeholders.
	Slots() map[string]Field
}

// FilePermission checks that a file is no more permissive than Mode.
type FilePermission struct {
	Path Field
	Mode Field
}

func (FilePermission) CheckType() CheckType { return TypeFilePermission }

func (p FilePermission) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:     p.Path,
		SlotExpected:   p.Mode,
		SlotComparison: found(CompareMode),
	}
}

// Registry checks a Windows registry value.
type Registry struct {
	Path       Field
	ValueName  Field
	Expected   Field
	Comparison Field
}

func (Registry) CheckType() CheckType { return TypeRegistryValue }

func (r Registry) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:     r.Path,
		SlotValueName:  r.ValueName,
		SlotExpected:   r.Expected,
		SlotComparison: r.Comparison,
	}
}

// Sysctl checks a kernel parameter.
type Sysctl struct {
	Param      Field
	Expected   Field
	Comparison Field
}

func (Sysctl) CheckType() CheckType { return TypeKernelParameter }

func (s Sysctl) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:     s.Param,
		SlotExpected:   s.Expected,
		SlotComparison: s.Comparison,
	}
}

// Package checks that a software package is present or absent. Presence is
// "present" or "absent".
type Package struct {
	Name     Field
	Presence Field
}

func (Package) CheckType() CheckType { return TypePackagePresence }

// MustBePresent reports whether the package is required rather than banned.
func (p Package) MustBePresent() bool { return p.Presence.Value == "present" }

func (p Package) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:   p.Name,
		SlotExpected: p.Presence,
	}
}

// Service checks a service's enablement or run state.
type Service struct {
	Name  Field
	State Field
}

func (Service) CheckType() CheckType { return TypeServiceStatus }

func (s Service) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:   s.Name,
		SlotExpected: s.State,
	}
}

// ConfigGrep checks a directive in a configuration file. Expected is
// optional; without it the check only requires the directive to be set.
type ConfigGrep struct {
	File       Field
	Pattern    Field
	Expected   Field
	Comparison Field
}

func (ConfigGrep) CheckType() CheckType { return TypeConfigGrep }

func (c ConfigGrep) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:     c.File,
		SlotPattern:    c.Pattern,
		SlotExpected:   c.Expected,
		SlotComparison: c.Comparison,
	}
}

// SQL checks the result of a query. Expected is "empty", "nonempty" or a
// literal value the first column must equal.
type SQL struct {
	Query    Field
	Expected Field
}

func (SQL) CheckType() CheckType { return TypeSQLQuery }

func (s SQL) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:   s.Query,
		SlotExpected: s.Expected,
	}
}

// NetworkCommand checks device command output for a configuration line.
// Expected is "present" or "absent".
type NetworkCommand struct {
	Command  Field
	Pattern  Field
	Expected Field
}

func (NetworkCommand) CheckType() CheckType { return TypeNetworkCommand }

func (n NetworkCommand) Slots() map[string]Field {
	return map[string]Field{
		SlotTarget:   n.Command,
		SlotPattern:  n.Pattern,
		SlotExpected: n.Expected,
	}
}

// ConfigInput is an organization-defined value the generated script reads
// from its --config file instead of hard-coding.
type ConfigInput struct {
	Key        string `json:"key"`
	Suggested  string `json:"suggested,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Comparison string `json:"comparison,omitempty"`
	Source     string `json:"source,omitempty"`
}

// ExtractedParameters is the result of Extract.
type ExtractedParameters struct {
	Type         CheckType
	Variant      Variant
	ConfigInputs []ConfigInput
	Confidence   Confidence
	Placeholder  bool
}

// Slots returns the variant's slots, or nil when nothing was extracted.
func (p ExtractedParameters) Slots() map[string]Field {
	if p.Variant == nil {
		return nil
	}
	return p.Variant.Slots()
}

// PlaceholderSlots lists the slot names that were defaulted, sorted.
func (p ExtractedParameters) PlaceholderSlots() []string {
	var out []string
	for name, f := range p.Slots() {
		if f.Placeholder {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// MarshalJSON flattens the variant into a "fields" object.
func (p ExtractedParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         CheckType        `json:"check_type"`
		Fields       map[string]Field `json:"fields,omitempty"`
		ConfigInputs []ConfigInput    `json:"config_inputs,omitempty"`
		Confidence   Confidence       `json:"confidence"`
		Placeholder  bool             `json:"placeholder"`
	}{p.Type, p.Slots(), p.ConfigInputs, p.Confidence, p.Placeholder})
}

// emptyVariant returns the placeholder-filled variant for a type, or nil for
// types that carry no parameters.
func emptyVariant(t CheckType) Variant {
	switch t {
	case TypeFilePermission:
		return FilePermission{Path: missing(), Mode: missing()}
	case TypeRegistryValue:
		return Registry{Path: missing(), ValueName: missing(), Expected: missing(), Comparison: found(CompareEqual)}
	case TypeKernelParameter:
		return Sysctl{Param: missing(), Expected: missing(), Comparison: found(CompareEqual)}
	case TypePackagePresence:
		return Package{Name: missing(), Presence: missing()}
	case TypeServiceStatus:
		return Service{Name: missing(), State: missing()}
	case TypeConfigGrep:
		return ConfigGrep{File: missing(), Pattern: missing()}
	case TypeSQLQuery:
		return SQL{Query: missing(), Expected: missing()}
	case TypeNetworkCommand:
		return NetworkCommand{Command: missing(), Pattern: missing(), Expected: missing()}
	}
	return nil
}
