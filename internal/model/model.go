// Package model defines the domain models for storymig.
// Remote resources (stories, components, groups, datasources) mirror the
// management API JSON shapes; migration payloads live in migration.go.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Story represents a content entry in a space.
// Content is the raw nested component tree; its root always carries a
// "component" key.
type Story struct {
	ID                 int64          `json:"id,omitempty" yaml:"id,omitempty"`
	UUID               string         `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Name               string         `json:"name" yaml:"name"`
	Slug               string         `json:"slug" yaml:"slug"`
	FullSlug           string         `json:"full_slug,omitempty" yaml:"full_slug,omitempty"`
	ParentID           *int64         `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	IsFolder           bool           `json:"is_folder,omitempty" yaml:"is_folder,omitempty"`
	IsStartpage        bool           `json:"is_startpage,omitempty" yaml:"is_startpage,omitempty"`
	Content            map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	Published          bool           `json:"published,omitempty" yaml:"published,omitempty"`
	UnpublishedChanges bool           `json:"unpublished_changes,omitempty" yaml:"unpublished_changes,omitempty"`
	TagList            []string       `json:"tag_list,omitempty" yaml:"tag_list,omitempty"`
	Position           int            `json:"position,omitempty" yaml:"position,omitempty"`
	CreatedAt          *time.Time     `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt          *time.Time     `json:"updated_at,omitempty" yaml:"-"`
}

// ContentComponent returns the component name of the story's root node.
func (s *Story) ContentComponent() string {
	if s == nil || s.Content == nil {
		return ""
	}
	name, _ := s.Content["component"].(string)
	return name
}

// Clone returns a deep copy of the story via its JSON form. It fails when the
// content holds values that have no JSON encoding.
func (s *Story) Clone() (*Story, error) {
	if s == nil {
		return nil, nil
	}
	var out Story
	if err := cloneJSON(s, &out); err != nil {
		return nil, fmt.Errorf("failed to clone story %q: %w", s.FullSlug, err)
	}
	return &out, nil
}

// Component represents a content-type definition (component schema).
type Component struct {
	ID                 int64            `json:"id,omitempty"`
	Name               string           `json:"name"`
	DisplayName        string           `json:"display_name,omitempty"`
	IsRoot             bool             `json:"is_root"`
	IsNestable         bool             `json:"is_nestable"`
	ComponentGroupUUID string           `json:"component_group_uuid,omitempty"`
	Schema             map[string]Field `json:"schema"`
	PresetID           *int64           `json:"preset_id,omitempty"`
	Color              string           `json:"color,omitempty"`
	Icon               string           `json:"icon,omitempty"`
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() (*Component, error) {
	if c == nil {
		return nil, nil
	}
	var out Component
	if err := cloneJSON(c, &out); err != nil {
		return nil, fmt.Errorf("failed to clone component %q: %w", c.Name, err)
	}
	if out.Schema == nil {
		out.Schema = map[string]Field{}
	}
	return &out, nil
}

// ComponentGroup is a folder-like grouping for components.
type ComponentGroup struct {
	ID         int64  `json:"id,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Name       string `json:"name"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	ParentUUID string `json:"parent_uuid,omitempty"`
}

// Datasource is a named enumeration ("taxonomy") of selectable values.
type Datasource struct {
	ID         int64       `json:"id,omitempty"`
	Name       string      `json:"name"`
	Slug       string      `json:"slug"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
}

// Dimension is a datasource dimension (e.g. a language).
type Dimension struct {
	ID         int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string `json:"name" yaml:"name"`
	EntryValue string `json:"entry_value" yaml:"entry_value"`
}

// DatasourceEntry is one value of a datasource.
// Identity within a datasource is the (Name, Value) pair.
type DatasourceEntry struct {
	ID             int64  `json:"id,omitempty" yaml:"id,omitempty"`
	DatasourceID   int64  `json:"datasource_id,omitempty" yaml:"datasource_id,omitempty"`
	Name           string `json:"name" yaml:"name" validate:"required"`
	Value          string `json:"value" yaml:"value"`
	DimensionValue string `json:"dimension_value,omitempty" yaml:"dimension_value,omitempty"`
}

// Key returns the set-diff identity of the entry.
func (e DatasourceEntry) Key() EntryKey {
	return EntryKey{Name: e.Name, Value: e.Value}
}

// EntryKey is the (name, value) identity of a datasource entry.
type EntryKey struct {
	Name  string
	Value string
}

// RunState represents the state of a journaled migration run.
type RunState string

const (
	RunStatePending    RunState = "pending"
	RunStateCommitted  RunState = "committed"
	RunStateRolledBack RunState = "rolled_back"
)

// RunRecord is one journaled migration run.
type RunRecord struct {
	ID            int64      `json:"id"`
	RunID         string     `json:"run_id"` // UUID
	MigrationType Type       `json:"migration_type"`
	Source        string     `json:"source"`
	DryRun        bool       `json:"dry_run"`
	State         RunState   `json:"state"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func cloneJSON(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
