package model

import (
	"github.com/contentops/storymig/internal/content"
)

// Type is the discriminant of a migration.
type Type string

const (
	TypeCreateComponentGroup  Type = "create-component-group"
	TypeUpdateComponentGroup  Type = "update-component-group"
	TypeDeleteComponentGroup  Type = "delete-component-group"
	TypeCreateComponent       Type = "create-component"
	TypeUpdateComponent       Type = "update-component"
	TypeDeleteComponent       Type = "delete-component"
	TypeCreateStory           Type = "create-story"
	TypeUpdateStory           Type = "update-story"
	TypeDeleteStory           Type = "delete-story"
	TypeCreateDatasource      Type = "create-datasource"
	TypeUpdateDatasource      Type = "update-datasource"
	TypeDeleteDatasource      Type = "delete-datasource"
	TypeCreateDatasourceEntry Type = "create-datasource-entry"
	TypeUpdateDatasourceEntry Type = "update-datasource-entry"
	TypeDeleteDatasourceEntry Type = "delete-datasource-entry"
	TypeTransformEntries      Type = "transform-entries"
)

// Types lists every migration type in declaration order.
var Types = []Type{
	TypeCreateComponentGroup, TypeUpdateComponentGroup, TypeDeleteComponentGroup,
	TypeCreateComponent, TypeUpdateComponent, TypeDeleteComponent,
	TypeCreateStory, TypeUpdateStory, TypeDeleteStory,
	TypeCreateDatasource, TypeUpdateDatasource, TypeDeleteDatasource,
	TypeCreateDatasourceEntry, TypeUpdateDatasourceEntry, TypeDeleteDatasourceEntry,
	TypeTransformEntries,
}

// Migration is a closed union of migration variants. Only types in this
// package implement it.
type Migration interface {
	Type() Type
	isMigration()
}

// --- Component groups ---

// GroupSpec declares one component group.
type GroupSpec struct {
	Name string `json:"name" yaml:"name" validate:"required"`
}

// CreateComponentGroup creates each listed group unless it exists by name.
type CreateComponentGroup struct {
	Groups []GroupSpec `json:"groups" yaml:"groups" validate:"required,min=1,dive"`
}

// UpdateComponentGroup renames the group matched by id or name.
type UpdateComponentGroup struct {
	Group string `json:"group" yaml:"group" validate:"required"`
	Name  string `json:"name" yaml:"name" validate:"required"`
}

// DeleteComponentGroup deletes the group matched by id or name.
type DeleteComponentGroup struct {
	Group string `json:"group" yaml:"group" validate:"required"`
}

// --- Components ---

// ComponentSpec is a declared component schema.
type ComponentSpec struct {
	Name               string   `json:"name" yaml:"name" validate:"required"`
	DisplayName        string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	IsRoot             bool     `json:"is_root" yaml:"is_root"`
	IsNestable         bool     `json:"is_nestable" yaml:"is_nestable"`
	ComponentGroupName string   `json:"component_group_name,omitempty" yaml:"component_group_name,omitempty"`
	Fields             Fields   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Tabs               Tabs     `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	Deprecated         []string `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// CreateComponent creates a component unless one with the same name exists.
type CreateComponent struct {
	Component ComponentSpec `json:"component" yaml:"component" validate:"required"`
}

// UpdateComponent reconciles the fields of an existing component. Nil flag
// pointers leave the remote value unchanged.
type UpdateComponent struct {
	Name               string   `json:"name" yaml:"name" validate:"required"`
	DisplayName        *string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	IsRoot             *bool    `json:"is_root,omitempty" yaml:"is_root,omitempty"`
	IsNestable         *bool    `json:"is_nestable,omitempty" yaml:"is_nestable,omitempty"`
	ComponentGroupName *string  `json:"component_group_name,omitempty" yaml:"component_group_name,omitempty"`
	Fields             Fields   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Tabs               Tabs     `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	Deprecated         []string `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// DeleteComponent deletes the component matched by name or id.
type DeleteComponent struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty" validate:"required_without=ID"`
	ID   int64  `json:"id,omitempty" yaml:"id,omitempty" validate:"required_without=Name"`
}

// --- Stories ---

// StorySpec is a declared story.
type StorySpec struct {
	Name      string         `json:"name" yaml:"name" validate:"required"`
	Slug      string         `json:"slug,omitempty" yaml:"slug,omitempty"`
	ParentID  *int64         `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	IsFolder  bool           `json:"is_folder,omitempty" yaml:"is_folder,omitempty"`
	Content   map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	TagList   []string       `json:"tag_list,omitempty" yaml:"tag_list,omitempty"`
	Publish   bool           `json:"publish,omitempty" yaml:"publish,omitempty"`
	ReleaseID int64          `json:"release_id,omitempty" yaml:"release_id,omitempty"`
}

// CreateStory creates a story unless one with the same slug or name exists
// under the same folder.
type CreateStory struct {
	Story StorySpec `json:"story" yaml:"story" validate:"required"`
}

// UpdateStory shallow-merges Content into the story matched by id or slug.
type UpdateStory struct {
	ID        int64          `json:"id,omitempty" yaml:"id,omitempty" validate:"required_without=Slug"`
	Slug      string         `json:"slug,omitempty" yaml:"slug,omitempty" validate:"required_without=ID"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Content   map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	ReleaseID int64          `json:"release_id,omitempty" yaml:"release_id,omitempty"`
	Lang      string         `json:"lang,omitempty" yaml:"lang,omitempty"`
}

// DeleteStory deletes the story matched by id or slug.
type DeleteStory struct {
	ID   int64  `json:"id,omitempty" yaml:"id,omitempty" validate:"required_without=Slug"`
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty" validate:"required_without=ID"`
}

// --- Datasources ---

// DatasourceSpec is a declared datasource with its desired entries.
type DatasourceSpec struct {
	Name       string            `json:"name" yaml:"name" validate:"required"`
	Slug       string            `json:"slug" yaml:"slug" validate:"required,slug"`
	Dimensions []Dimension       `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Entries    []DatasourceEntry `json:"entries,omitempty" yaml:"entries,omitempty" validate:"dive"`
}

// CreateDatasource creates a datasource unless one exists by name or slug.
type CreateDatasource struct {
	Datasource DatasourceSpec `json:"datasource" yaml:"datasource" validate:"required"`
}

// UpdateDatasource renames a datasource and, when Entries is non-nil,
// reconciles its entries by (name, value) set difference.
type UpdateDatasource struct {
	ID      int64             `json:"id" yaml:"id" validate:"required"`
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Slug    string            `json:"slug,omitempty" yaml:"slug,omitempty"`
	Entries []DatasourceEntry `json:"entries,omitempty" yaml:"entries,omitempty" validate:"dive"`
}

// DeleteDatasource deletes a datasource by id.
type DeleteDatasource struct {
	ID int64 `json:"id" yaml:"id" validate:"required"`
}

// CreateDatasourceEntry adds one entry to a datasource.
type CreateDatasourceEntry struct {
	DatasourceID int64           `json:"datasource_id" yaml:"datasource_id" validate:"required"`
	Entry        DatasourceEntry `json:"entry" yaml:"entry" validate:"required"`
}

// UpdateDatasourceEntry replaces the name/value of one entry.
type UpdateDatasourceEntry struct {
	ID    int64           `json:"id" yaml:"id" validate:"required"`
	Entry DatasourceEntry `json:"entry" yaml:"entry" validate:"required"`
}

// DeleteDatasourceEntry deletes one entry by id.
type DeleteDatasourceEntry struct {
	ID int64 `json:"id" yaml:"id" validate:"required"`
}

// --- Bulk transform ---

// FieldOpKind names a declarative transform operation.
type FieldOpKind string

const (
	FieldOpSet    FieldOpKind = "set"
	FieldOpRename FieldOpKind = "rename"
	FieldOpRemove FieldOpKind = "remove"
)

// FieldOp is one declarative field operation applied to every matched node.
type FieldOp struct {
	Op    FieldOpKind `json:"op" yaml:"op" validate:"required,oneof=set rename remove"`
	Field string      `json:"field" yaml:"field" validate:"required"`
	To    string      `json:"to,omitempty" yaml:"to,omitempty"`
	Value any         `json:"value,omitempty" yaml:"value,omitempty"`
}

// TransformEntries runs a transform over every node of Component in every
// story that contains it. Transform is resolved at load time from either a
// registered transform name or the declarative Operations.
type TransformEntries struct {
	Component     string                `json:"component" yaml:"component" validate:"required"`
	TransformName string                `json:"transform,omitempty" yaml:"transform,omitempty"`
	Operations    []FieldOp             `json:"operations,omitempty" yaml:"operations,omitempty" validate:"dive"`
	StartsWith    string                `json:"starts_with,omitempty" yaml:"starts_with,omitempty"`
	Transform     content.TransformFunc `json:"-" yaml:"-"`
}

func (CreateComponentGroup) Type() Type  { return TypeCreateComponentGroup }
func (UpdateComponentGroup) Type() Type  { return TypeUpdateComponentGroup }
func (DeleteComponentGroup) Type() Type  { return TypeDeleteComponentGroup }
func (CreateComponent) Type() Type       { return TypeCreateComponent }
func (UpdateComponent) Type() Type       { return TypeUpdateComponent }
func (DeleteComponent) Type() Type       { return TypeDeleteComponent }
func (CreateStory) Type() Type           { return TypeCreateStory }
func (UpdateStory) Type() Type           { return TypeUpdateStory }
func (DeleteStory) Type() Type           { return TypeDeleteStory }
func (CreateDatasource) Type() Type      { return TypeCreateDatasource }
func (UpdateDatasource) Type() Type      { return TypeUpdateDatasource }
func (DeleteDatasource) Type() Type      { return TypeDeleteDatasource }
func (CreateDatasourceEntry) Type() Type { return TypeCreateDatasourceEntry }
func (UpdateDatasourceEntry) Type() Type { return TypeUpdateDatasourceEntry }
func (DeleteDatasourceEntry) Type() Type { return TypeDeleteDatasourceEntry }
func (TransformEntries) Type() Type      { return TypeTransformEntries }

func (CreateComponentGroup) isMigration()  {}
func (UpdateComponentGroup) isMigration()  {}
func (DeleteComponentGroup) isMigration()  {}
func (CreateComponent) isMigration()       {}
func (UpdateComponent) isMigration()       {}
func (DeleteComponent) isMigration()       {}
func (CreateStory) isMigration()           {}
func (UpdateStory) isMigration()           {}
func (DeleteStory) isMigration()           {}
func (CreateDatasource) isMigration()      {}
func (UpdateDatasource) isMigration()      {}
func (DeleteDatasource) isMigration()      {}
func (CreateDatasourceEntry) isMigration() {}
func (UpdateDatasourceEntry) isMigration() {}
func (DeleteDatasourceEntry) isMigration() {}
func (TransformEntries) isMigration()      {}
