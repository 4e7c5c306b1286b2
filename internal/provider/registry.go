// Package provider provides the region registry.
package provider

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultRegion is used when credentials do not name one.
const DefaultRegion = "eu"

// RegionRegistry maps region codes to management API base URLs.
type RegionRegistry struct {
	regions map[string]string
	mu      sync.RWMutex
}

// NewRegionRegistry creates a registry preloaded with the public regions.
func NewRegionRegistry() *RegionRegistry {
	return &RegionRegistry{
		regions: map[string]string{
			"eu": "https://mapi.storyblok.com/v1",
			"us": "https://api-us.storyblok.com/v1",
			"ap": "https://api-ap.storyblok.com/v1",
			"ca": "https://api-ca.storyblok.com/v1",
			"cn": "https://app.storyblokchina.cn/v1",
		},
	}
}

// Register adds or overrides a region.
func (r *RegionRegistry) Register(code, baseURL string) error {
	if code == "" || baseURL == "" {
		return fmt.Errorf("region code and base URL are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.regions[code] = baseURL
	return nil
}

// BaseURL returns the base URL for a region. An empty code means DefaultRegion.
func (r *RegionRegistry) BaseURL(code string) (string, error) {
	if code == "" {
		code = DefaultRegion
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.regions[code]
	if !ok {
		return "", &ConfigError{Field: "region", Reason: fmt.Sprintf("unknown region %q", code)}
	}
	return u, nil
}

// Codes returns all registered region codes, sorted.
func (r *RegionRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.regions))
	for c := range r.regions {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
