// Package fake provides an in-memory remote space implementing
// provider.Transport. It records every request so tests can assert on call
// counts, order and payloads.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   json.RawMessage
}

// Decode unmarshals the recorded request body into v.
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

// Space is an in-memory management API.
type Space struct {
	mu sync.Mutex

	nextID      int64
	components  []model.Component
	groups      []model.ComponentGroup
	stories     []model.Story
	datasources []model.Datasource
	entries     []model.DatasourceEntry

	calls    []Call
	failures map[string]error
}

// New creates an empty space.
func New() *Space {
	return &Space{nextID: 1000, failures: make(map[string]error)}
}

var _ provider.Transport = (*Space)(nil)

// --- Seeding ---

func (s *Space) id() int64 {
	s.nextID++
	return s.nextID
}

// AddComponent seeds a component and returns it with its assigned id.
func (s *Space) AddComponent(c model.Component) model.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.Schema == nil {
		c.Schema = map[string]model.Field{}
	}
	s.components = append(s.components, *mustClone(c.Clone()))
	return c
}

// AddGroup seeds a component group.
func (s *Space) AddGroup(g model.ComponentGroup) model.ComponentGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		g.ID = s.id()
	}
	if g.UUID == "" {
		g.UUID = fmt.Sprintf("group-%d", g.ID)
	}
	s.groups = append(s.groups, g)
	return g
}

// AddStory seeds a story. FullSlug defaults to Slug.
func (s *Space) AddStory(st model.Story) model.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.id()
	}
	if st.FullSlug == "" {
		st.FullSlug = st.Slug
	}
	s.stories = append(s.stories, *mustClone(st.Clone()))
	return st
}

// AddDatasource seeds a datasource and its entries.
func (s *Space) AddDatasource(ds model.Datasource, entries ...model.DatasourceEntry) model.Datasource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds.ID == 0 {
		ds.ID = s.id()
	}
	s.datasources = append(s.datasources, ds)
	for _, e := range entries {
		if e.ID == 0 {
			e.ID = s.id()
		}
		e.DatasourceID = ds.ID
		s.entries = append(s.entries, e)
	}
	return ds
}

// FailWith makes every request matching method and path fail with err.
// An empty method matches any method.
func (s *Space) FailWith(method, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = err
}

// --- Inspection ---

// Calls returns every recorded request in order.
func (s *Space) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded requests with the given method whose path
// starts with prefix. An empty method matches any method.
func (s *Space) CallsTo(method, prefix string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns every non-GET request.
func (s *Space) Writes() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (s *Space) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Components returns a snapshot of the stored components.
func (s *Space) Components() []model.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Component, len(s.components))
	for i := range s.components {
		out[i] = *mustClone(s.components[i].Clone())
	}
	return out
}

// Groups returns a snapshot of the stored groups.
func (s *Space) Groups() []model.ComponentGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ComponentGroup(nil), s.groups...)
}

// Story returns a stored story by id.
func (s *Space) Story(id int64) *model.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.storyIndex(id); i >= 0 {
		return mustClone(s.stories[i].Clone())
	}
	return nil
}

// Stories returns a snapshot of the stored stories.
func (s *Space) Stories() []model.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Story, len(s.stories))
	for i := range s.stories {
		out[i] = *mustClone(s.stories[i].Clone())
	}
	return out
}

// Datasources returns a snapshot of the stored datasources.
func (s *Space) Datasources() []model.Datasource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Datasource(nil), s.datasources...)
}

// Entries returns the stored entries of a datasource.
func (s *Space) Entries(datasourceID int64) []model.DatasourceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DatasourceEntry
	for _, e := range s.entries {
		if e.DatasourceID == datasourceID {
			out = append(out, e)
		}
	}
	return out
}

// --- Transport ---

// Do serves one request against the in-memory state.
func (s *Space) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{Method: req.Method, Path: req.Path, Query: req.Query}
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		call.Body = data
	}
	s.calls = append(s.calls, call)

	if err := s.failure(req.Method, req.Path); err != nil {
		return nil, err
	}

	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	var id int64
	if len(parts) > 1 {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, s.notFound(req)
		}
		id = n
	}

	switch parts[0] {
	case "components":
		return s.serveComponents(req, call, id, len(parts) > 1)
	case "component_groups":
		return s.serveGroups(req, call, id, len(parts) > 1)
	case "stories":
		return s.serveStories(req, call, id, len(parts) > 1)
	case "datasources":
		return s.serveDatasources(req, call, id, len(parts) > 1)
	case "datasource_entries":
		return s.serveEntries(req, call, id, len(parts) > 1)
	default:
		return nil, s.notFound(req)
	}
}

func (s *Space) failure(method, path string) error {
	if err, ok := s.failures[method+" "+path]; ok {
		return err
	}
	if err, ok := s.failures[" "+path]; ok {
		return err
	}
	return nil
}

func (s *Space) notFound(req *provider.Request) error {
	return &provider.RemoteError{Method: req.Method, Path: req.Path, Status: http.StatusNotFound, Body: `{"error":"not found"}`}
}

func ok(v any) (*provider.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &provider.Response{Data: data, Status: http.StatusOK}, nil
}

func paged(key string, items []json.RawMessage, q url.Values) (*provider.Response, error) {
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 {
		perPage = 25
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	resp, err := ok(map[string]any{key: items[start:end]})
	if err != nil {
		return nil, err
	}
	resp.Total = len(items)
	return resp, nil
}

func rawList[T any](items []T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		data, _ := json.Marshal(it)
		out = append(out, data)
	}
	return out
}

// --- Components ---

func (s *Space) serveComponents(req *provider.Request, call Call, id int64, byID bool) (*provider.Response, error) {
	switch {
	case req.Method == http.MethodGet && !byID:
		return ok(map[string]any{"components": s.components})
	case req.Method == http.MethodPost:
		var env struct {
			Component model.Component `json:"component"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		env.Component.ID = s.id()
		if env.Component.Schema == nil {
			env.Component.Schema = map[string]model.Field{}
		}
		s.components = append(s.components, env.Component)
		return ok(map[string]any{"component": env.Component})
	}

	idx := -1
	for i := range s.components {
		if s.components[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return nil, s.notFound(req)
	}
	switch req.Method {
	case http.MethodGet:
		return ok(map[string]any{"component": s.components[idx]})
	case http.MethodPut:
		var env struct {
			Component model.Component `json:"component"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		env.Component.ID = id
		s.components[idx] = env.Component
		return ok(map[string]any{"component": env.Component})
	case http.MethodDelete:
		s.components = append(s.components[:idx], s.components[idx+1:]...)
		return ok(map[string]any{})
	}
	return nil, s.notFound(req)
}

// --- Component groups ---

func (s *Space) serveGroups(req *provider.Request, call Call, id int64, byID bool) (*provider.Response, error) {
	switch {
	case req.Method == http.MethodGet && !byID:
		return ok(map[string]any{"component_groups": s.groups})
	case req.Method == http.MethodPost:
		var env struct {
			ComponentGroup model.ComponentGroup `json:"component_group"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		g := env.ComponentGroup
		g.ID = s.id()
		g.UUID = fmt.Sprintf("group-%d", g.ID)
		s.groups = append(s.groups, g)
		return ok(map[string]any{"component_group": g})
	}

	idx := -1
	for i := range s.groups {
		if s.groups[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return nil, s.notFound(req)
	}
	switch req.Method {
	case http.MethodGet:
		return ok(map[string]any{"component_group": s.groups[idx]})
	case http.MethodPut:
		var env struct {
			ComponentGroup model.ComponentGroup `json:"component_group"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		g := env.ComponentGroup
		g.ID = id
		if g.UUID == "" {
			g.UUID = s.groups[idx].UUID
		}
		s.groups[idx] = g
		return ok(map[string]any{"component_group": g})
	case http.MethodDelete:
		s.groups = append(s.groups[:idx], s.groups[idx+1:]...)
		return ok(map[string]any{})
	}
	return nil, s.notFound(req)
}

// --- Stories ---

type storyBody struct {
	Story       model.Story `json:"story"`
	Publish     int         `json:"publish"`
	ForceUpdate string      `json:"force_update"`
	Lang        string      `json:"lang"`
}

func (s *Space) storyIndex(id int64) int {
	for i := range s.stories {
		if s.stories[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Space) serveStories(req *provider.Request, call Call, id int64, byID bool) (*provider.Response, error) {
	switch {
	case req.Method == http.MethodGet && !byID:
		return s.listStories(req.Query)
	case req.Method == http.MethodPost:
		var body storyBody
		if err := call.Decode(&body); err != nil {
			return nil, err
		}
		st := body.Story
		st.ID = s.id()
		st.FullSlug = st.Slug
		if st.ParentID != nil {
			if p := s.storyIndex(*st.ParentID); p >= 0 {
				st.FullSlug = s.stories[p].FullSlug + "/" + st.Slug
			}
		}
		st.Published = body.Publish == 1
		s.stories = append(s.stories, st)
		return ok(map[string]any{"story": st})
	}

	idx := s.storyIndex(id)
	if idx < 0 {
		return nil, s.notFound(req)
	}
	switch req.Method {
	case http.MethodGet:
		return ok(map[string]any{"story": s.stories[idx]})
	case http.MethodPut:
		var body storyBody
		if err := call.Decode(&body); err != nil {
			return nil, err
		}
		prev := s.stories[idx]
		st := body.Story
		st.ID = id
		if st.FullSlug == "" {
			st.FullSlug = prev.FullSlug
		}
		if body.Publish == 1 {
			st.Published = true
			st.UnpublishedChanges = false
		} else {
			st.Published = prev.Published
			st.UnpublishedChanges = prev.Published
		}
		s.stories[idx] = st
		return ok(map[string]any{"story": st})
	case http.MethodDelete:
		s.stories = append(s.stories[:idx], s.stories[idx+1:]...)
		return ok(map[string]any{})
	}
	return nil, s.notFound(req)
}

func (s *Space) listStories(q url.Values) (*provider.Response, error) {
	prefix := q.Get("starts_with")
	component := q.Get("contain_component")

	var matched []model.Story
	for _, st := range s.stories {
		if prefix != "" && !strings.HasPrefix(st.FullSlug, prefix) {
			continue
		}
		if component != "" && !containsComponent(st.Content, component) {
			continue
		}
		listed := *mustClone(st.Clone())
		listed.Content = nil
		matched = append(matched, listed)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return paged("stories", rawList(matched), q)
}

func containsComponent(v any, name string) bool {
	switch t := v.(type) {
	case map[string]any:
		if c, _ := t["component"].(string); c == name {
			return true
		}
		for _, child := range t {
			if containsComponent(child, name) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if containsComponent(child, name) {
				return true
			}
		}
	}
	return false
}

// --- Datasources ---

func (s *Space) serveDatasources(req *provider.Request, call Call, id int64, byID bool) (*provider.Response, error) {
	switch {
	case req.Method == http.MethodGet && !byID:
		return paged("datasources", rawList(s.datasources), req.Query)
	case req.Method == http.MethodPost:
		var env struct {
			Datasource model.Datasource `json:"datasource"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		ds := env.Datasource
		ds.ID = s.id()
		s.datasources = append(s.datasources, ds)
		return ok(map[string]any{"datasource": ds})
	}

	idx := -1
	for i := range s.datasources {
		if s.datasources[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return nil, s.notFound(req)
	}
	switch req.Method {
	case http.MethodGet:
		return ok(map[string]any{"datasource": s.datasources[idx]})
	case http.MethodPut:
		var env struct {
			Datasource model.Datasource `json:"datasource"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		ds := env.Datasource
		ds.ID = id
		s.datasources[idx] = ds
		return ok(map[string]any{"datasource": ds})
	case http.MethodDelete:
		s.datasources = append(s.datasources[:idx], s.datasources[idx+1:]...)
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.DatasourceID != id {
				kept = append(kept, e)
			}
		}
		s.entries = kept
		return ok(map[string]any{})
	}
	return nil, s.notFound(req)
}

// --- Datasource entries ---

func (s *Space) serveEntries(req *provider.Request, call Call, id int64, byID bool) (*provider.Response, error) {
	switch {
	case req.Method == http.MethodGet && !byID:
		dsID, _ := strconv.ParseInt(req.Query.Get("datasource_id"), 10, 64)
		var matched []model.DatasourceEntry
		for _, e := range s.entries {
			if dsID == 0 || e.DatasourceID == dsID {
				matched = append(matched, e)
			}
		}
		return paged("datasource_entries", rawList(matched), req.Query)
	case req.Method == http.MethodPost:
		var env struct {
			DatasourceEntry model.DatasourceEntry `json:"datasource_entry"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		e := env.DatasourceEntry
		e.ID = s.id()
		s.entries = append(s.entries, e)
		return ok(map[string]any{"datasource_entry": e})
	}

	idx := -1
	for i := range s.entries {
		if s.entries[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return nil, s.notFound(req)
	}
	switch req.Method {
	case http.MethodGet:
		return ok(map[string]any{"datasource_entry": s.entries[idx]})
	case http.MethodPut:
		var env struct {
			DatasourceEntry model.DatasourceEntry `json:"datasource_entry"`
		}
		if err := call.Decode(&env); err != nil {
			return nil, err
		}
		e := env.DatasourceEntry
		e.ID = id
		if e.DatasourceID == 0 {
			e.DatasourceID = s.entries[idx].DatasourceID
		}
		s.entries[idx] = e
		return ok(map[string]any{"datasource_entry": e})
	case http.MethodDelete:
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
		return ok(map[string]any{})
	}
	return nil, s.notFound(req)
}

// mustClone panics on a copy failure. Stored records round-trip through JSON,
// so only a test seeding unencodable data can trigger it.
func mustClone[T any](v *T, err error) *T {
	if err != nil {
		panic(err)
	}
	return v
}
