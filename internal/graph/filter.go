package graph

import (
	"regexp"
	"strings"
)

// MaxFilterRatio is the share of entities the legacy filter may remove. A
// filter that would remove more is assumed to be misfiring and is skipped.
const MaxFilterRatio = 0.9

var legacyArtifactNames = []string{
	"normal", "normal.dot", "normal.dotm", "normal.dotx",
	"microsoft word", "microsoft office", "microsoft office word", "word.document", "word.document.8",
	"msworddoc", "worddocument", "summaryinformation", "documentsummaryinformation",
	"compobj", "root entry", "1table", "0table", "objectpool", "data",
	"times new roman", "arial", "calibri", "cambria", "symbol", "wingdings", "courier new",
	"default paragraph font", "table normal", "no list", "normal table", "heading 1", "heading 2",
	"hyperlink", "title", "subtitle", "openoffice", "libreoffice", "writer", "docprops",
}

var legacyArtifactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(xml|rels|dotx?|dotm|emf|wmf|thmx)$`),
	regexp.MustCompile(`(?i)^(word|docprops|_rels|customxml|xl|ppt)/`),
	regexp.MustCompile(`(?i)\[content_types\]`),
	regexp.MustCompile(`(?i)^(ms|microsoft)\s*(word|office)\b`),
}

// LegacyFilter removes entities that are artifacts of legacy binary document
// formats (template names, font names, stream names, markup paths) rather
// than document content.
type LegacyFilter struct {
	names    map[string]bool
	patterns []*regexp.Regexp
	maxRatio float64
}

// NewLegacyFilter returns the filter with the built-in artifact lists.
func NewLegacyFilter() *LegacyFilter {
	names := make(map[string]bool, len(legacyArtifactNames))
	for _, n := range legacyArtifactNames {
		names[n] = true
	}
	return &LegacyFilter{names: names, patterns: legacyArtifactPatterns, maxRatio: MaxFilterRatio}
}

// IsArtifact reports whether e looks like a format artifact.
func (f *LegacyFilter) IsArtifact(e Entity) bool {
	for _, s := range []string{e.Name, e.ID} {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if f.names[key] {
			return true
		}
		for _, p := range f.patterns {
			if p.MatchString(key) {
				return true
			}
		}
	}
	return false
}

// Apply returns ext without artifact entities and the relationships that
// touch them, and the number of entities removed. When the filter would
// remove more than the allowed share of entities it returns ext unchanged
// with applied set to false.
func (f *LegacyFilter) Apply(ext Extraction) (out Extraction, removed int, applied bool) {
	if len(ext.Entities) == 0 {
		return ext, 0, true
	}

	drop := make(map[string]bool)
	for _, e := range ext.Entities {
		if f.IsArtifact(e) {
			drop[e.ID] = true
			removed++
		}
	}
	if float64(removed) > f.maxRatio*float64(len(ext.Entities)) {
		return ext, 0, false
	}

	for _, e := range ext.Entities {
		if !drop[e.ID] {
			out.Entities = append(out.Entities, e)
		}
	}
	for _, r := range ext.Relationships {
		if !drop[r.Source] && !drop[r.Target] {
			out.Relationships = append(out.Relationships, r)
		}
	}
	return out, removed, true
}
