package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/contentops/storymig/internal/model"
)

// StoryService manages content entries.
type StoryService struct {
	c *Client
}

// StoryFilter narrows a story listing.
type StoryFilter struct {
	StartsWith       string
	ContainComponent string
	PerPage          int
}

// StoryWrite carries the publish/release parameters of a create or update.
type StoryWrite struct {
	Publish     bool
	ReleaseID   int64
	Lang        string
	ForceUpdate bool
}

type storyEnvelope struct {
	Story *model.Story `json:"story"`
}

type storyPayload struct {
	Story       *model.Story `json:"story"`
	Publish     int          `json:"publish,omitempty"`
	ReleaseID   int64        `json:"release_id,omitempty"`
	Lang        string       `json:"lang,omitempty"`
	ForceUpdate string       `json:"force_update,omitempty"`
}

func newStoryPayload(s *model.Story, w StoryWrite) storyPayload {
	p := storyPayload{Story: s, ReleaseID: w.ReleaseID, Lang: w.Lang}
	if w.Publish {
		p.Publish = 1
	}
	if w.ForceUpdate {
		p.ForceUpdate = "1"
	}
	return p
}

// List returns every story matching the filter, across all pages.
// Listings do not include content; use Get for that.
func (s *StoryService) List(ctx context.Context, f StoryFilter) ([]model.Story, error) {
	q := url.Values{}
	if f.StartsWith != "" {
		q.Set("starts_with", f.StartsWith)
	}
	if f.ContainComponent != "" {
		q.Set("contain_component", f.ContainComponent)
	}
	if f.PerPage > 0 {
		q.Set("per_page", fmt.Sprint(f.PerPage))
	}
	agg, err := s.c.fetchAll(ctx, "stories", q, KeyStories)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	var stories []model.Story
	if err := agg.DecodeItems(KeyStories, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// Get fetches a story with its content. A missing story yields (nil, nil):
// the remote payload is passed up as-is for the caller to judge.
func (s *StoryService) Get(ctx context.Context, id int64) (*model.Story, error) {
	resp, err := s.c.get(ctx, fmt.Sprintf("stories/%d", id), nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get story %d: %w", id, err)
	}
	var env storyEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Story, nil
}

// GetBySlug resolves a slash-delimited slug. The remote has no slug lookup,
// so the folder prefix is listed and scanned for an exact slug or name match,
// then the match is re-fetched by id. A miss yields (nil, nil).
func (s *StoryService) GetBySlug(ctx context.Context, slug string) (*model.Story, error) {
	slug = strings.Trim(slug, "/")
	folder, leaf := SplitSlug(slug)

	stories, err := s.List(ctx, StoryFilter{StartsWith: folder})
	if err != nil {
		return nil, err
	}
	if st := matchStory(stories, slug, leaf); st != nil {
		return s.Get(ctx, st.ID)
	}
	return nil, nil
}

// matchStory prefers an exact full-slug match, then a leaf slug or name match.
func matchStory(stories []model.Story, fullSlug, leaf string) *model.Story {
	for i := range stories {
		if stories[i].FullSlug == fullSlug {
			return &stories[i]
		}
	}
	for i := range stories {
		if stories[i].Slug == leaf || stories[i].Name == leaf {
			return &stories[i]
		}
	}
	return nil
}

// SplitSlug splits "a/b/c" into folder prefix "a/b/" and leaf "c".
func SplitSlug(slug string) (folder, leaf string) {
	i := strings.LastIndex(slug, "/")
	if i < 0 {
		return "", slug
	}
	return slug[:i+1], slug[i+1:]
}

// Create creates a story.
func (s *StoryService) Create(ctx context.Context, story *model.Story, w StoryWrite) (*model.Story, error) {
	resp, err := s.c.do(ctx, http.MethodPost, "stories", nil, newStoryPayload(story, w))
	if err != nil {
		return nil, fmt.Errorf("failed to create story %q: %w", story.Slug, err)
	}
	var env storyEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Story, nil
}

// Update replaces a story.
func (s *StoryService) Update(ctx context.Context, story *model.Story, w StoryWrite) (*model.Story, error) {
	if story.ID == 0 {
		return nil, fmt.Errorf("story %q has no ID", story.Slug)
	}
	resp, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("stories/%d", story.ID), nil, newStoryPayload(story, w))
	if err != nil {
		return nil, fmt.Errorf("failed to update story %d: %w", story.ID, err)
	}
	var env storyEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Story, nil
}

// Delete deletes a story by id.
func (s *StoryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("stories/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete story %d: %w", id, err)
	}
	return nil
}
