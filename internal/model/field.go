package model

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// FieldType is the type tag of a component schema field.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldTextarea   FieldType = "textarea"
	FieldRichtext   FieldType = "richtext"
	FieldMarkdown   FieldType = "markdown"
	FieldNumber     FieldType = "number"
	FieldDatetime   FieldType = "datetime"
	FieldBoolean    FieldType = "boolean"
	FieldOption     FieldType = "option"
	FieldOptions    FieldType = "options"
	FieldAsset      FieldType = "asset"
	FieldMultiasset FieldType = "multiasset"
	FieldMultilink  FieldType = "multilink"
	FieldTable      FieldType = "table"
	FieldBloks      FieldType = "bloks"
	FieldSection    FieldType = "section"
	FieldTab        FieldType = "tab"
	FieldCustom     FieldType = "custom"
)

var knownFieldTypes = map[FieldType]bool{
	FieldText: true, FieldTextarea: true, FieldRichtext: true, FieldMarkdown: true,
	FieldNumber: true, FieldDatetime: true, FieldBoolean: true, FieldOption: true,
	FieldOptions: true, FieldAsset: true, FieldMultiasset: true, FieldMultilink: true,
	FieldTable: true, FieldBloks: true, FieldSection: true, FieldTab: true, FieldCustom: true,
}

// IsMarker reports whether the type groups other fields (tab or section)
// rather than holding a value.
func (t FieldType) IsMarker() bool {
	return t == FieldTab || t == FieldSection
}

// Option is one static choice of an option/options field.
type Option struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Field is a component schema field definition.
// Pos is derived from tab placement during reconciliation and never read from
// migration files. Attributes the model does not know are kept in Extra and
// written back unchanged.
type Field struct {
	Type               FieldType      `json:"type" yaml:"type"`
	Pos                int            `json:"pos" yaml:"-"`
	DisplayName        string         `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description        string         `json:"description,omitempty" yaml:"description,omitempty"`
	Required           bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Translatable       bool           `json:"translatable,omitempty" yaml:"translatable,omitempty"`
	DefaultValue       string         `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Regex              string         `json:"regex,omitempty" yaml:"regex,omitempty"`
	MaxLength          *int           `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinValue           *float64       `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue           *float64       `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	DecimalPlaces      *int           `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	CustomizeToolbar   bool           `json:"customize_toolbar,omitempty" yaml:"customize_toolbar,omitempty"`
	Toolbar            []string       `json:"toolbar,omitempty" yaml:"toolbar,omitempty"`
	Options            []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Source             string         `json:"source,omitempty" yaml:"source,omitempty"`
	DatasourceSlug     string         `json:"datasource_slug,omitempty" yaml:"datasource_slug,omitempty"`
	Filetypes          []string       `json:"filetypes,omitempty" yaml:"filetypes,omitempty"`
	RestrictComponents bool           `json:"restrict_components,omitempty" yaml:"restrict_components,omitempty"`
	ComponentWhitelist []string       `json:"component_whitelist,omitempty" yaml:"component_whitelist,omitempty"`
	Maximum            *int           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Keys               []string       `json:"keys,omitempty" yaml:"keys,omitempty"`
	FieldType          string         `json:"field_type,omitempty" yaml:"field_type,omitempty"`
	Extra              map[string]any `json:"-" yaml:",inline"`
}

type fieldAlias Field

// MarshalJSON writes the known attributes plus any preserved extras.
func (f Field) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(fieldAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(f.Extra)+8)
	for k, v := range f.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field attribute %q: %w", k, err)
		}
		merged[k] = raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known attributes and keeps the rest in Extra.
func (f *Field) UnmarshalJSON(data []byte) error {
	var alias fieldAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownFieldKeys {
		delete(all, k)
	}
	alias.Extra = nil
	if len(all) > 0 {
		alias.Extra = all
	}
	*f = Field(alias)
	return nil
}

var knownFieldKeys = []string{
	"type", "pos", "display_name", "description", "required", "translatable",
	"default_value", "regex", "max_length", "min_value", "max_value", "decimals",
	"customize_toolbar", "toolbar", "options", "source", "datasource_slug",
	"filetypes", "restrict_components", "component_whitelist", "maximum", "keys",
	"field_type",
}

// Validate checks the type tag and the type-specific attributes.
func (f Field) Validate(key string) error {
	if !knownFieldTypes[f.Type] {
		return fmt.Errorf("field %q: unknown type %q", key, f.Type)
	}
	switch {
	case f.Regex != "" && f.Type != FieldText && f.Type != FieldTextarea:
		return fmt.Errorf("field %q: regex is only valid on text fields", key)
	case f.MaxLength != nil && !(f.Type == FieldText || f.Type == FieldTextarea || f.Type == FieldMarkdown || f.Type == FieldRichtext):
		return fmt.Errorf("field %q: max_length is not valid on %s fields", key, f.Type)
	case (f.MinValue != nil || f.MaxValue != nil) && f.Type != FieldNumber:
		return fmt.Errorf("field %q: numeric bounds are only valid on number fields", key)
	case len(f.Toolbar) > 0 && f.Type != FieldRichtext && f.Type != FieldMarkdown:
		return fmt.Errorf("field %q: toolbar is only valid on richtext/markdown fields", key)
	case len(f.Keys) > 0 && !f.Type.IsMarker():
		return fmt.Errorf("field %q: keys are only valid on tab/section fields", key)
	case f.Type == FieldCustom && f.FieldType == "":
		return fmt.Errorf("field %q: custom fields need a field_type plugin name", key)
	}
	if f.Regex != "" {
		if _, err := regexp.Compile(f.Regex); err != nil {
			return fmt.Errorf("field %q: invalid regex: %w", key, err)
		}
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return fmt.Errorf("field %q: min_value exceeds max_value", key)
	}
	if (f.Type == FieldOption || f.Type == FieldOptions) && f.Source == "internal" && f.DatasourceSlug == "" {
		return fmt.Errorf("field %q: datasource option source needs datasource_slug", key)
	}
	return nil
}
