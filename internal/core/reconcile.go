// Package core provides the schema field reconciler.
//
// INVARIANTS:
// - The result is a full replacement schema, never a partial patch
// - A declared field replaces the existing one wholesale, unknown attributes
//   included; only pos is derived
// - pos is derived from tab order; value fields outside every tab sort last,
//   stable by their previous position
// - Only when tabs are declared, value fields outside every tab are deprecated
//   and made non-required
// - Tab and section markers are not value fields and never get deprecated
// - A deprecated key is listed only by the deprecated marker; undeclared
//   tab markers drop it
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/contentops/storymig/internal/model"
)

// DeprecatedTabName is the display name of the synthesized deprecated tab.
const DeprecatedTabName = "Deprecated"

// FieldChanges are the declared changes to a component schema.
type FieldChanges struct {
	Fields     model.Fields
	Tabs       model.Tabs
	Deprecated []string
}

// Reconciliation is the outcome of reconciling a schema.
type Reconciliation struct {
	Schema     map[string]model.Field
	Order      []string // value field keys in pos order
	Deprecated []string
}

// ReconcileSchema merges changes into existing and derives field order,
// deprecation and tab markers. existing is not modified.
func ReconcileSchema(existing map[string]model.Field, changes FieldChanges) (*Reconciliation, error) {
	schema := make(map[string]model.Field, len(existing)+len(changes.Fields))
	for k, f := range existing {
		schema[k] = f
	}

	prior := priorOrder(existing, changes.Fields)

	for _, nf := range changes.Fields {
		schema[nf.Key] = nf.Field
	}

	if err := checkTabKeys(schema, changes.Tabs); err != nil {
		return nil, err
	}

	order := sortValueKeys(schema, changes.Tabs.Order(), prior)
	for i, k := range order {
		f := schema[k]
		f.Pos = i
		schema[k] = f
	}

	deprecated := dedupe(changes.Deprecated)
	if len(changes.Tabs) > 0 {
		referenced := referencedKeys(schema, changes.Tabs)
		seen := toSet(deprecated)
		for _, k := range order {
			if !referenced[k] && !seen[k] {
				deprecated = append(deprecated, k)
				seen[k] = true
			}
		}
	}
	for _, k := range deprecated {
		if f, ok := schema[k]; ok && !f.Type.IsMarker() {
			f.Required = false
			schema[k] = f
		}
	}

	writeTabMarkers(schema, changes.Tabs, deprecated, len(order))

	return &Reconciliation{Schema: schema, Order: order, Deprecated: deprecated}, nil
}

// priorOrder ranks value keys by where they sat before: existing fields by
// pos, then newly declared fields in declaration order.
func priorOrder(existing map[string]model.Field, declared model.Fields) map[string]int {
	keys := make([]string, 0, len(existing))
	for k, f := range existing {
		if !f.Type.IsMarker() {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := existing[keys[i]].Pos, existing[keys[j]].Pos
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	rank := make(map[string]int, len(keys)+len(declared))
	for i, k := range keys {
		rank[k] = i
	}
	for _, nf := range declared {
		if _, ok := rank[nf.Key]; !ok {
			rank[nf.Key] = len(rank)
		}
	}
	return rank
}

func sortValueKeys(schema map[string]model.Field, tabOrder []string, prior map[string]int) []string {
	rank := make(map[string]int, len(tabOrder))
	for _, k := range tabOrder {
		if _, ok := rank[k]; !ok {
			rank[k] = len(rank)
		}
	}

	keys := make([]string, 0, len(schema))
	for k, f := range schema {
		if !f.Type.IsMarker() {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		pi, pj := prior[keys[i]], prior[keys[j]]
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// referencedKeys collects keys named by tabs, plus the keys of any section
// marker that a tab names.
func referencedKeys(schema map[string]model.Field, tabs model.Tabs) map[string]bool {
	refs := make(map[string]bool)
	for _, k := range tabs.Order() {
		refs[k] = true
		if f, ok := schema[k]; ok && f.Type == model.FieldSection {
			for _, sk := range f.Keys {
				refs[sk] = true
			}
		}
	}
	return refs
}

func checkTabKeys(schema map[string]model.Field, tabs model.Tabs) error {
	for _, tab := range tabs {
		for _, k := range tab.Keys {
			if _, ok := schema[k]; !ok {
				return fmt.Errorf("tab %q references unknown field %q", tab.Name, k)
			}
		}
	}
	return nil
}

// writeTabMarkers upserts one tab marker per declared tab (except the implicit
// general/default bucket) and the deprecated marker after them. Markers are
// matched to existing ones by display name so their keys stay stable. Tab
// markers left over from earlier runs keep their place but lose any key that
// is now deprecated.
func writeTabMarkers(schema map[string]model.Field, tabs model.Tabs, deprecated []string, valueCount int) {
	byName := make(map[string]string)
	for k, f := range schema {
		if f.Type == model.FieldTab {
			byName[strings.ToLower(f.DisplayName)] = k
		}
	}

	written := make(map[string]bool)
	pos := valueCount
	for _, tab := range tabs {
		if isImplicitTab(tab.Name) {
			continue
		}
		written[upsertMarker(schema, byName, tab.Name, tab.Keys, pos)] = true
		pos++
	}

	switch {
	case len(deprecated) > 0:
		written[upsertMarker(schema, byName, DeprecatedTabName, deprecated, pos)] = true
	case len(tabs) > 0:
		if k, ok := byName[strings.ToLower(DeprecatedTabName)]; ok {
			delete(schema, k)
		}
	}

	if len(deprecated) == 0 {
		return
	}
	gone := toSet(deprecated)
	for k, f := range schema {
		if f.Type != model.FieldTab || written[k] {
			continue
		}
		kept := make([]string, 0, len(f.Keys))
		for _, fk := range f.Keys {
			if !gone[fk] {
				kept = append(kept, fk)
			}
		}
		f.Keys = kept
		schema[k] = f
	}
}

func upsertMarker(schema map[string]model.Field, byName map[string]string, name string, keys []string, pos int) string {
	key, ok := byName[strings.ToLower(name)]
	marker := model.Field{}
	if ok {
		marker = schema[key]
	} else {
		key = "tab-" + uuid.NewString()
		byName[strings.ToLower(name)] = key
	}
	marker.Type = model.FieldTab
	marker.DisplayName = name
	marker.Keys = append([]string(nil), keys...)
	marker.Pos = pos
	schema[key] = marker
	return key
}

func isImplicitTab(name string) bool {
	switch strings.ToLower(name) {
	case "general", "default":
		return true
	}
	return false
}

func dedupe(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
