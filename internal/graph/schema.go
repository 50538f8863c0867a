// Package graph extracts entities and relationships from chunk text through
// an LLM, normalizes them against a fixed schema and writes them to a graph
// store.
package graph

import "strings"

// Canonical defaults for types that match nothing in the schema.
const (
	DefaultEntityType       = "Concept"
	DefaultRelationshipType = "RELATED_TO"
	DefaultColor            = "#9E9E9E"
)

// SchemaProvider maps free-form type strings onto canonical types.
type SchemaProvider interface {
	NormalizeEntityType(t string) string
	NormalizeRelationshipType(t string) string
	EntityTypes() []string
	RelationshipTypes() []string
	Color(entityType string) string
}

type typeEntry struct {
	name     string
	synonyms []string
}

// Registry is an immutable SchemaProvider built from ordered type tables.
// Order matters: the first table entry with a matching synonym wins.
type Registry struct {
	entities      []typeEntry
	relationships []typeEntry
	colors        map[string]string
}

var _ SchemaProvider = (*Registry)(nil)

// NewRegistry returns the registry with the built-in schema.
func NewRegistry() *Registry {
	return &Registry{
		entities: []typeEntry{
			{"Person", []string{"person", "individual", "people", "human"}},
			{"Organization", []string{"organization", "company", "corporation", "institution", "agency", "firm"}},
			{"Location", []string{"location", "place", "country", "city", "region", "area", "territory"}},
			{"Event", []string{"event", "occurrence", "happening", "incident"}},
			{"Date", []string{"date", "time", "period", "year", "month", "day"}},
			{"Technology", []string{"technology", "tech", "application", "system", "platform", "software", "hardware"}},
			{"Concept", []string{"concept", "idea", "theory", "notion", "principle"}},
			{"Product", []string{"product", "goods", "service", "offering"}},
			{"Topic", []string{"topic", "subject", "theme", "field"}},
			{"Document", []string{"document", "file", "report", "paper", "publication"}},
		},
		relationships: []typeEntry{
			{"RELATED_TO", []string{"related to", "associated with", "connected to", "linked to"}},
			{"PART_OF", []string{"part of", "belongs to", "member of", "component of", "element of"}},
			{"CREATED", []string{"created", "developed", "produced", "made", "built", "designed"}},
			{"LOCATED_IN", []string{"located in", "based in", "situated in", "found in"}},
			{"WORKS_FOR", []string{"works for", "employed by", "staff of", "personnel of"}},
			{"OWNED_BY", []string{"owned by", "belongs to", "property of", "possession of"}},
			{"KNOWS", []string{"knows", "familiar with", "acquainted with", "associated with"}},
			{"HAPPENED_ON", []string{"happened on", "occurred on", "took place on"}},
			{"REFERS_TO", []string{"refers to", "mentions", "cites", "discusses", "describes"}},
			{"USES", []string{"uses", "utilizes", "employs", "leverages", "applies"}},
		},
		colors: map[string]string{
			"Person":       "#E91E63",
			"Organization": "#2196F3",
			"Location":     "#4CAF50",
			"Date":         "#FF9800",
			"Concept":      "#9C27B0",
			"Event":        "#F44336",
			"Topic":        "#00BCD4",
			"Product":      "#FFEB3B",
			"Technology":   "#607D8B",
			"Document":     "#795548",
		},
	}
}

// NormalizeEntityType implements SchemaProvider.
func (r *Registry) NormalizeEntityType(t string) string {
	return normalize(r.entities, t, DefaultEntityType)
}

// NormalizeRelationshipType implements SchemaProvider. Underscores and
// hyphens count as spaces when matching synonyms, so "works_for" and
// "WORKS-FOR" both resolve to WORKS_FOR.
func (r *Registry) NormalizeRelationshipType(t string) string {
	return normalize(r.relationships, t, DefaultRelationshipType)
}

// EntityTypes implements SchemaProvider.
func (r *Registry) EntityTypes() []string { return names(r.entities) }

// RelationshipTypes implements SchemaProvider.
func (r *Registry) RelationshipTypes() []string { return names(r.relationships) }

// Color implements SchemaProvider.
func (r *Registry) Color(entityType string) string {
	if c, ok := r.colors[entityType]; ok {
		return c
	}
	return DefaultColor
}

func normalize(table []typeEntry, t, fallback string) string {
	key := strings.ToLower(strings.TrimSpace(t))
	if key == "" {
		return fallback
	}
	for _, e := range table {
		if key == strings.ToLower(e.name) {
			return e.name
		}
	}

	phrase := strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
	for _, e := range table {
		for _, s := range e.synonyms {
			if phrase == s {
				return e.name
			}
		}
	}
	for _, e := range table {
		for _, s := range e.synonyms {
			if strings.Contains(phrase, s) {
				return e.name
			}
		}
	}
	return fallback
}

func names(table []typeEntry) []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.name
	}
	return out
}
