package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/contentops/storymig/internal/model"
)

// KeyDatasources is the collection key of paginated datasource listings.
// It is not one of the default aggregate keys, so List asks for it explicitly.
const KeyDatasources = "datasources"

// DatasourceService manages datasources.
type DatasourceService struct {
	c *Client
}

type datasourceEnvelope struct {
	Datasource *model.Datasource `json:"datasource"`
}

// List returns all datasources across pages.
func (s *DatasourceService) List(ctx context.Context) ([]model.Datasource, error) {
	agg, err := s.c.fetchAll(ctx, "datasources", nil, KeyDatasources)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	var out []model.Datasource
	if err := agg.DecodeItems(KeyDatasources, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a datasource by id.
func (s *DatasourceService) Get(ctx context.Context, id int64) (*model.Datasource, error) {
	resp, err := s.c.get(ctx, fmt.Sprintf("datasources/%d", id), nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, NotFound("datasource", id)
		}
		return nil, fmt.Errorf("failed to get datasource %d: %w", id, err)
	}
	var env datasourceEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.Datasource == nil {
		return nil, NotFound("datasource", id)
	}
	return env.Datasource, nil
}

// FindDatasource matches by name or slug.
func FindDatasource(all []model.Datasource, name, slug string) *model.Datasource {
	for i := range all {
		if (name != "" && all[i].Name == name) || (slug != "" && all[i].Slug == slug) {
			return &all[i]
		}
	}
	return nil
}

// Create creates a datasource.
func (s *DatasourceService) Create(ctx context.Context, ds *model.Datasource) (*model.Datasource, error) {
	resp, err := s.c.do(ctx, http.MethodPost, "datasources", nil, datasourceEnvelope{Datasource: ds})
	if err != nil {
		return nil, fmt.Errorf("failed to create datasource %q: %w", ds.Slug, err)
	}
	var env datasourceEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Datasource, nil
}

// Update saves a datasource.
func (s *DatasourceService) Update(ctx context.Context, ds *model.Datasource) (*model.Datasource, error) {
	resp, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("datasources/%d", ds.ID), nil, datasourceEnvelope{Datasource: ds})
	if err != nil {
		return nil, fmt.Errorf("failed to update datasource %d: %w", ds.ID, err)
	}
	var env datasourceEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.Datasource, nil
}

// Delete deletes a datasource by id.
func (s *DatasourceService) Delete(ctx context.Context, id int64) error {
	if _, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("datasources/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete datasource %d: %w", id, err)
	}
	return nil
}

// DatasourceEntryService manages datasource entries.
type DatasourceEntryService struct {
	c *Client
}

type entryEnvelope struct {
	DatasourceEntry *model.DatasourceEntry `json:"datasource_entry"`
}

// List returns every entry of a datasource across pages.
func (s *DatasourceEntryService) List(ctx context.Context, datasourceID int64) ([]model.DatasourceEntry, error) {
	q := url.Values{}
	q.Set("datasource_id", strconv.FormatInt(datasourceID, 10))
	agg, err := s.c.fetchAll(ctx, "datasource_entries", q, KeyDatasourceEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries of datasource %d: %w", datasourceID, err)
	}
	var out []model.DatasourceEntry
	if err := agg.DecodeItems(KeyDatasourceEntries, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one entry by id.
func (s *DatasourceEntryService) Get(ctx context.Context, id int64) (*model.DatasourceEntry, error) {
	resp, err := s.c.get(ctx, fmt.Sprintf("datasource_entries/%d", id), nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, NotFound("datasource entry", id)
		}
		return nil, fmt.Errorf("failed to get datasource entry %d: %w", id, err)
	}
	var env entryEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.DatasourceEntry == nil {
		return nil, NotFound("datasource entry", id)
	}
	return env.DatasourceEntry, nil
}

// Create creates an entry.
func (s *DatasourceEntryService) Create(ctx context.Context, e *model.DatasourceEntry) (*model.DatasourceEntry, error) {
	resp, err := s.c.do(ctx, http.MethodPost, "datasource_entries", nil, entryEnvelope{DatasourceEntry: e})
	if err != nil {
		return nil, fmt.Errorf("failed to create datasource entry %q: %w", e.Name, err)
	}
	var env entryEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.DatasourceEntry, nil
}

// Update saves an entry.
func (s *DatasourceEntryService) Update(ctx context.Context, e *model.DatasourceEntry) (*model.DatasourceEntry, error) {
	resp, err := s.c.do(ctx, http.MethodPut, fmt.Sprintf("datasource_entries/%d", e.ID), nil, entryEnvelope{DatasourceEntry: e})
	if err != nil {
		return nil, fmt.Errorf("failed to update datasource entry %d: %w", e.ID, err)
	}
	var env entryEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return env.DatasourceEntry, nil
}

// Delete deletes an entry by id.
func (s *DatasourceEntryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.c.do(ctx, http.MethodDelete, fmt.Sprintf("datasource_entries/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete datasource entry %d: %w", id, err)
	}
	return nil
}
