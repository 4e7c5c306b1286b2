// Package provider provides the paginated fetch aggregator.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// MaxPerPage is the hard page-size cap, even if the caller asks for more.
const MaxPerPage = 100

// Collection keys the aggregator knows how to merge.
const (
	KeyStories           = "stories"
	KeyDatasourceEntries = "datasource_entries"
)

// DefaultAggregateKeys are the array-valued collections merged across pages.
var DefaultAggregateKeys = []string{KeyStories, KeyDatasourceEntries}

// Aggregate is the merged result of all pages. Collections holds every
// aggregated key, present as an empty array when no page carried it.
type Aggregate struct {
	Collections map[string][]json.RawMessage
	Total       int
	Pages       int
}

// Items returns the merged items of one collection.
func (a *Aggregate) Items(key string) []json.RawMessage {
	if a == nil {
		return nil
	}
	return a.Collections[key]
}

// DecodeItems unmarshals every item of a collection into out, which must be a
// pointer to a slice.
func (a *Aggregate) DecodeItems(key string, out any) error {
	items := a.Items(key)
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// pageFetcher issues a single GET for a page.
type pageFetcher func(ctx context.Context, path string, query url.Values) (*Response, error)

// fetchAll requests page after page until total <= page*perPage, merging the
// given collection keys by concatenation.
func fetchAll(ctx context.Context, get pageFetcher, path string, query url.Values, keys []string) (*Aggregate, error) {
	if len(keys) == 0 {
		keys = DefaultAggregateKeys
	}

	perPage := MaxPerPage
	if v := query.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < MaxPerPage {
			perPage = n
		}
	}

	agg := &Aggregate{Collections: make(map[string][]json.RawMessage, len(keys))}
	for _, k := range keys {
		agg.Collections[k] = []json.RawMessage{}
	}

	for page := 1; ; page++ {
		q := cloneValues(query)
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))

		resp, err := get(ctx, path, q)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s page %d: %w", path, page, err)
		}
		agg.Pages = page
		agg.Total = resp.Total

		var body map[string]json.RawMessage
		if err := resp.Decode(&body); err != nil {
			return nil, err
		}
		merged := 0
		for _, k := range keys {
			raw, ok := body[k]
			if !ok || string(raw) == "null" {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to decode %s page %d: %w", k, page, err)
			}
			agg.Collections[k] = append(agg.Collections[k], items...)
			merged += len(items)
		}

		// An empty page ends the walk even if total claims more.
		if merged == 0 || resp.Total <= page*perPage {
			return agg, nil
		}
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
