package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/contentops/storymig/internal/model"
)

// ComponentService manages component schemas.
type ComponentService struct {
	c *Client
}

type componentEnvelope struct {
	Component *model.Component `json:"component"`
}

type componentList struct {
	Components []model.Component `json:"components"`
}

// List returns all components of the space.
func (s *ComponentService) List(ctx context.Context) ([]model.Component, error) {
	resp, err := s.c.get(ctx, "components", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	var out componentList
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Components, nil
}

// Get fetches a component by numeric id or by name.
func (s *ComponentService) Get(ctx context.Context, idOrName string) (*model.Component, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		resp, err := s.c.get(ctx, fmt.Sprintf("components/%d", id), nil)
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				return nil, NotFound("component", idOrName)
			}
			return nil, fmt.Errorf("failed to get component %d: %w", id, err)
		}
		var env componentEnvelope
		if err := resp.Decode(&env); err != nil {
			return nil, err
		}
		if env.Component == nil {
			return nil, NotFound("component", idOrName)
		}
		return env.Component, nil
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if c := FindComponent(all, idOrName, 0); c != nil {
		return c, nil
	}
	return nil, NotFound("component", idOrName)
}

// FindComponent matches a component by name, or by id when id is non-zero.
func FindComponent(all []model.Component, name string, id int64) *model.Component {
	for i := range all {
		if (name != "" && all[i].Name == name) || (id != 0 && all[i].ID == id) {
			return &all[i]
		}
	}
	return nil
}

// Create creates a component.
func (s *ComponentService) Create(ctx context.Context, comp *model.Component) (*model.Component, error) {
	resp, err := s.c.do(ctx, http.MethodPost, "components", nil, componentEnvelope{Component: comp})
	if err != nil {
		return nil, fmt.Errorf("failed to create component %q: %w", comp.Name, err)
	}
	var env componentEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Component, nil
}

// Update saves a full component, schema included.
func (s *ComponentService) Update(ctx context.Context, comp *model.Component) (*model.Component, error) {
	if comp.ID == 0 {
		return nil, fmt.Errorf("component %q has no ID", comp.Name)
	}
	resp, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("components/%d", comp.ID), nil, componentEnvelope{Component: comp})
	if err != nil {
		return nil, fmt.Errorf("failed to update component %q: %w", comp.Name, err)
	}
	var env componentEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Component, nil
}

// Delete deletes a component by id.
func (s *ComponentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("components/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete component %d: %w", id, err)
	}
	return nil
}

// ComponentGroupService manages component groups.
type ComponentGroupService struct {
	c *Client
}

type groupEnvelope struct {
	ComponentGroup *model.ComponentGroup `json:"component_group"`
}

type groupList struct {
	ComponentGroups []model.ComponentGroup `json:"component_groups"`
}

// List returns all component groups.
func (s *ComponentGroupService) List(ctx context.Context) ([]model.ComponentGroup, error) {
	resp, err := s.c.get(ctx, "component_groups", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list component groups: %w", err)
	}
	var out groupList
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.ComponentGroups, nil
}

// Get returns the group whose id or name equals ref.
func (s *ComponentGroupService) Get(ctx context.Context, ref string) (*model.ComponentGroup, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if g := FindGroup(all, ref); g != nil {
		return g, nil
	}
	return nil, NotFound("component group", ref)
}

// FindGroup matches a group by id (as a string), uuid or name.
func FindGroup(all []model.ComponentGroup, ref string) *model.ComponentGroup {
	for i := range all {
		g := &all[i]
		if g.Name == ref || (g.UUID != "" && g.UUID == ref) || (g.ID != 0 && strconv.FormatInt(g.ID, 10) == ref) {
			return g
		}
	}
	return nil
}

// Create creates a group.
func (s *ComponentGroupService) Create(ctx context.Context, g *model.ComponentGroup) (*model.ComponentGroup, error) {
	resp, err := s.c.do(ctx, http.MethodPost, "component_groups", nil, groupEnvelope{ComponentGroup: g})
	if err != nil {
		return nil, fmt.Errorf("failed to create component group %q: %w", g.Name, err)
	}
	var env groupEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.ComponentGroup, nil
}

// Update saves a group.
func (s *ComponentGroupService) Update(ctx context.Context, g *model.ComponentGroup) (*model.ComponentGroup, error) {
	resp, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("component_groups/%d", g.ID), nil, groupEnvelope{ComponentGroup: g})
	if err != nil {
		return nil, fmt.Errorf("failed to update component group %q: %w", g.Name, err)
	}
	var env groupEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.ComponentGroup, nil
}

// Delete deletes a group by id.
func (s *ComponentGroupService) Delete(ctx context.Context, id int64) error {
	if _, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("component_groups/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete component group %d: %w", id, err)
	}
	return nil
}
