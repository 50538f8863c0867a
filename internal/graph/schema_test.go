package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEntityType(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"Person":            "Person",
		"  person ":         "Person",
		"COMPANY":           "Organization",
		"software":          "Technology",
		"city":              "Location",
		"Research Paper":    "Document",
		"historical event":  "Event",
		"gizmo":             "Concept",
		"":                  "Concept",
		"government agency": "Organization",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.NormalizeEntityType(in), "input %q", in)
	}
}

func TestNormalizeRelationshipType(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"WORKS_FOR":       "WORKS_FOR",
		"works_for":       "WORKS_FOR",
		"employed by":     "WORKS_FOR",
		"is located in":   "LOCATED_IN",
		"Belongs-To":      "PART_OF",
		"mentions":        "REFERS_TO",
		"sponsors":        "RELATED_TO",
		"":                "RELATED_TO",
		"was created by":  "CREATED",
		"took place on":   "HAPPENED_ON",
		"heavily uses":    "USES",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.NormalizeRelationshipType(in), "input %q", in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	inputs := []string{"person", "firm", "unknown thing", "tech stack", "datetime", "", "Topic", "cites", "zzz", "part of"}
	for _, in := range inputs {
		once := r.NormalizeEntityType(in)
		assert.Equal(t, once, r.NormalizeEntityType(once), "entity %q", in)
		relOnce := r.NormalizeRelationshipType(in)
		assert.Equal(t, relOnce, r.NormalizeRelationshipType(relOnce), "relationship %q", in)
	}
}

func TestRegistryTablesAndColors(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.EntityTypes(), 10)
	assert.Len(t, r.RelationshipTypes(), 10)
	assert.Equal(t, "#E91E63", r.Color("Person"))
	assert.Equal(t, "#795548", r.Color("Document"))
	assert.Equal(t, DefaultColor, r.Color("Spaceship"))
	for _, et := range r.EntityTypes() {
		assert.NotEqual(t, DefaultColor, r.Color(et), et)
	}
}
