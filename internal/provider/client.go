// Package provider provides the typed management API facade.
//
// INVARIANTS:
// - Every call resolves credentials first and fails with a ConfigError before
//   touching the transport
// - Every call goes through the shared RequestQueue
// - Lookups that miss return a *NotFoundError, except Stories.Get and
//   Stories.GetBySlug which return a nil story
package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Client is the API facade over one Transport and one RequestQueue.
type Client struct {
	transport Transport
	queue     *RequestQueue
	creds     CredentialSource

	Stories           *StoryService
	Components        *ComponentService
	ComponentGroups   *ComponentGroupService
	Datasources       *DatasourceService
	DatasourceEntries *DatasourceEntryService
}

// NewClient creates an API client. A nil queue gets a private DefaultRate queue.
func NewClient(t Transport, q *RequestQueue, creds CredentialSource) *Client {
	if q == nil {
		q = NewRequestQueue(DefaultRate)
	}
	c := &Client{transport: t, queue: q, creds: creds}
	c.Stories = &StoryService{c: c}
	c.Components = &ComponentService{c: c}
	c.ComponentGroups = &ComponentGroupService{c: c}
	c.Datasources = &DatasourceService{c: c}
	c.DatasourceEntries = &DatasourceEntryService{c: c}
	return c
}

func (c *Client) credentials() (*Credentials, error) {
	if c.creds == nil {
		return nil, ErrMissingOAuthToken
	}
	creds, err := c.creds()
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.OAuthToken == "" {
		return nil, ErrMissingOAuthToken
	}
	if creds.SpaceID == "" {
		return nil, ErrMissingSpaceID
	}
	return creds, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	creds, err := c.credentials()
	if err != nil {
		return nil, err
	}
	req := &Request{
		Method:  method,
		SpaceID: creds.SpaceID,
		Path:    path,
		Query:   query,
		Body:    body,
		Token:   creds.OAuthToken,
		Region:  creds.Region,
	}
	return c.queue.Enqueue(ctx, func(ctx context.Context) (*Response, error) {
		return c.transport.Do(ctx, req)
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) fetchAll(ctx context.Context, path string, query url.Values, keys ...string) (*Aggregate, error) {
	if _, err := c.credentials(); err != nil {
		return nil, err
	}
	if query == nil {
		query = url.Values{}
	}
	return fetchAll(ctx, c.get, path, query, keys)
}

func isStatus(err error, status int) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == status
}
