package language

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// Profile describes one language the pipeline treats specially.
type Profile struct {
	Tag            string   `yaml:"tag"`
	Name           string   `yaml:"name"`
	OCRPack        string   `yaml:"ocr_pack"`
	LegacyCharset  string   `yaml:"legacy_charset"`
	Characters     string   `yaml:"characters"`
	MinCharHits    int      `yaml:"min_char_hits"`
	Keywords       []string `yaml:"keywords"`
	MinKeywordHits int      `yaml:"min_keyword_hits"`
	Misdetections  []string `yaml:"misdetections"`
	Conjunctions   []string `yaml:"conjunctions"`
}

// Table is the language profile table. It is data so that new languages
// can be added without code changes.
type Table struct {
	Default    string    `yaml:"default"`
	SampleSize int       `yaml:"sample_size"`
	Structural []string  `yaml:"separators"`
	Profiles   []Profile `yaml:"profiles"`
}

// DefaultTable returns the built-in profile table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultProfiles)
	if err != nil {
		panic(fmt.Sprintf("language: built-in profile table: %v", err))
	}
	return t
}

// LoadTable reads a profile table from a YAML file. An empty path returns
// the built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language profiles: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML profile table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse language profiles: %w", err)
	}
	if t.Default == "" {
		t.Default = "en"
	}
	if t.SampleSize <= 0 {
		t.SampleSize = 1000
	}
	seen := make(map[string]bool, len(t.Profiles))
	for i := range t.Profiles {
		p := &t.Profiles[i]
		if p.Tag == "" {
			return nil, fmt.Errorf("parse language profiles: profile %d has no tag", i)
		}
		if seen[p.Tag] {
			return nil, fmt.Errorf("parse language profiles: duplicate tag %q", p.Tag)
		}
		seen[p.Tag] = true
		if p.MinCharHits <= 0 {
			p.MinCharHits = 3
		}
		if p.MinKeywordHits <= 0 {
			p.MinKeywordHits = 3
		}
	}
	return &t, nil
}

// Profile returns the profile for tag.
func (t *Table) Profile(tag string) (Profile, bool) {
	for _, p := range t.Profiles {
		if p.Tag == tag {
			return p, true
		}
	}
	return Profile{}, false
}

// OCRPack returns the OCR language pack for tag, falling back to the
// default language's pack and finally to "eng".
func (t *Table) OCRPack(tag string) string {
	if p, ok := t.Profile(tag); ok && p.OCRPack != "" {
		return p.OCRPack
	}
	if p, ok := t.Profile(t.Default); ok && p.OCRPack != "" {
		return p.OCRPack
	}
	return "eng"
}

// OCRPacks returns every configured OCR pack joined the way tesseract
// expects ("eng+lit+lav"), default language first.
func (t *Table) OCRPacks() string {
	packs := []string{t.OCRPack(t.Default)}
	for _, p := range t.Profiles {
		if p.OCRPack == "" || slices.Contains(packs, p.OCRPack) {
			continue
		}
		packs = append(packs, p.OCRPack)
	}
	return strings.Join(packs, "+")
}

// Separators returns the ordered separator list for tag: the shared
// structural separators, the language's conjunctions and dashes, then
// whitespace and the character boundary.
func (t *Table) Separators(tag string) []string {
	seps := make([]string, 0, len(t.Structural)+8)
	seps = append(seps, t.Structural...)
	p, ok := t.Profile(tag)
	if !ok {
		p, _ = t.Profile(t.Default)
	}
	for _, c := range p.Conjunctions {
		if !slices.Contains(seps, c) {
			seps = append(seps, c)
		}
	}
	return append(seps, " ", "")
}
