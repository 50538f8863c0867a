package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Property keys stamped on every extracted entity and relationship.
const (
	PropDocumentID = "document_id"
	PropChunkIndex = "chunk_index"
)

// Entity is a node extracted from text.
type Entity struct {
	ID         string         `json:"id" msgpack:"id"`
	Type       string         `json:"type" msgpack:"type"`
	Name       string         `json:"name" msgpack:"name"`
	Properties map[string]any `json:"properties,omitempty" msgpack:"properties,omitempty"`
}

// Relationship is a typed edge between two entity ids.
type Relationship struct {
	Source     string         `json:"source" msgpack:"source"`
	Type       string         `json:"type" msgpack:"type"`
	Target     string         `json:"target" msgpack:"target"`
	Properties map[string]any `json:"properties,omitempty" msgpack:"properties,omitempty"`
}

// Extraction is the validated result for one chunk.
type Extraction struct {
	Entities      []Entity       `json:"entities" msgpack:"entities"`
	Relationships []Relationship `json:"relationships" msgpack:"relationships"`
}

// Counts summarizes a ProcessDocument run.
type Counts struct {
	Entities      int  `json:"entities"`
	Relationships int  `json:"relationships"`
	FailedChunks  int  `json:"failed_chunks"`
	Filtered      int  `json:"filtered"`
	Persisted     bool `json:"persisted"`
}

// Slug derives a stable entity id from a name: lower-cased letters and
// digits with every other run collapsed to one underscore.
func Slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

type rawEntity struct {
	ID         any            `json:"id"`
	Type       string         `json:"type"`
	Name       any            `json:"name"`
	Properties map[string]any `json:"properties"`
}

type rawRelationship struct {
	Source     any            `json:"source"`
	Type       string         `json:"type"`
	Target     any            `json:"target"`
	Properties map[string]any `json:"properties"`
}

type rawExtraction struct {
	Entities      []rawEntity       `json:"entities"`
	Relationships []rawRelationship `json:"relationships"`
}

// ParseExtraction decodes an LLM response into an Extraction. The JSON may
// be wrapped in a fenced code block or surrounded by prose. Entities without
// a usable name or id are dropped; relationship endpoints are resolved to
// entity ids and dropped when either side is missing. Types are left as
// given.
func ParseExtraction(response string) (Extraction, error) {
	body := jsonBody(response)
	if body == "" {
		return Extraction{}, fmt.Errorf("no JSON object in response")
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}

	var ext Extraction
	ids := make(map[string]string)
	seen := make(map[string]bool)
	for _, re := range raw.Entities {
		rawID, name := scalar(re.ID), scalar(re.Name)
		if name == "" {
			name = rawID
		}
		id := Slug(name)
		if id == "" {
			id = Slug(rawID)
		}
		if id == "" {
			continue
		}
		if rawID != "" {
			ids[rawID] = id
		}
		ids[name] = id
		if seen[id] {
			continue
		}
		seen[id] = true
		ext.Entities = append(ext.Entities, Entity{
			ID:         id,
			Type:       strings.TrimSpace(re.Type),
			Name:       name,
			Properties: primitives(re.Properties),
		})
	}

	resolve := func(v any) string {
		s := scalar(v)
		if id, ok := ids[s]; ok {
			return id
		}
		if id := Slug(s); seen[id] {
			return id
		}
		return ""
	}
	for _, rr := range raw.Relationships {
		src, dst := resolve(rr.Source), resolve(rr.Target)
		if src == "" || dst == "" {
			continue
		}
		ext.Relationships = append(ext.Relationships, Relationship{
			Source:     src,
			Type:       strings.TrimSpace(rr.Type),
			Target:     dst,
			Properties: primitives(rr.Properties),
		})
	}
	return ext, nil
}

// jsonBody returns the contents of a ```json fence if present, else the
// first balanced top-level object.
func jsonBody(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, bool:
		return fmt.Sprint(val)
	}
	return ""
}

// primitives keeps string, number and bool properties and stringifies the
// rest, since graph stores accept only scalar property values.
func primitives(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+2)
	for k, v := range props {
		if k == "id" || k == "name" {
			continue
		}
		switch val := v.(type) {
		case nil:
		case string, bool, float64:
			out[k] = val
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	return out
}
