// Package provider defines the remote management API boundary.
// The Transport is a plugin: no CMS-specific HTTP logic lives outside it.
// Everything above the transport (queue, pagination, typed resource calls)
// is provider-agnostic.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Credentials identify the space and authorize management calls.
type Credentials struct {
	SpaceID    string `json:"space_id" yaml:"space_id"`
	OAuthToken string `json:"oauth_token" yaml:"oauth_token"`
	Region     string `json:"region" yaml:"region"`
}

// CredentialSource loads the active credentials. It is called once per API
// call so a changed config is picked up between calls.
type CredentialSource func() (*Credentials, error)

// StaticCredentials returns a CredentialSource that always yields c.
func StaticCredentials(c Credentials) CredentialSource {
	return func() (*Credentials, error) {
		cp := c
		return &cp, nil
	}
}

// Request is one call against spaces/{SpaceID}/{Path}.
type Request struct {
	Method  string
	SpaceID string
	Path    string
	Query   url.Values
	Body    any
	Token   string
	Region  string
}

// Response is the decoded remote answer. Total is the paginated item count
// reported by the remote (0 when the endpoint is not paginated).
type Response struct {
	Data   json.RawMessage
	Total  int
	Status int
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Transport executes requests against the remote management API.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// --- Errors ---

// ConfigError reports missing or invalid credentials. It surfaces before any
// remote call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// ErrMissingOAuthToken is returned when no OAuth token is configured.
var ErrMissingOAuthToken = &ConfigError{Field: "oauth_token", Reason: "missing OAuth token"}

// ErrMissingSpaceID is returned when no space id is configured.
var ErrMissingSpaceID = &ConfigError{Field: "space_id", Reason: "missing space id"}

// NotFoundError reports a resource that was expected to exist.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

// NotFound builds a NotFoundError.
func NotFound(kind string, ref any) error {
	return &NotFoundError{Kind: kind, Ref: fmt.Sprint(ref)}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// RemoteError is a non-2xx answer from the remote API.
type RemoteError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Body)
}
