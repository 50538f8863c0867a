// Package language guesses the dominant language of extracted text. It is
// used to pick OCR language packs and chunk separators.
package language

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// ErrUndetermined is returned by a Statistical detector that cannot name a
// language for a sample.
var ErrUndetermined = errors.New("language could not be determined")

// minStatisticalRunes is the shortest text handed to the statistical stage.
const minStatisticalRunes = 20

// Statistical guesses an ISO 639-1 tag for a text sample.
type Statistical interface {
	Detect(sample string) (string, error)
}

// Whatlang is the Statistical detector backed by whatlanggo.
type Whatlang struct {
	// MinConfidence below which a guess is rejected.
	MinConfidence float64
}

// Detect implements Statistical.
func (w Whatlang) Detect(sample string) (string, error) {
	info := whatlanggo.Detect(sample)
	tag := info.Lang.Iso6391()
	if tag == "" || info.Confidence < w.MinConfidence {
		return "", ErrUndetermined
	}
	return tag, nil
}

// Detector applies, in order of precedence: keyword vocabulary, distinctive
// characters, sampled statistical detection with misdetection remapping,
// and finally the table's default language.
type Detector struct {
	table  *Table
	stat   Statistical
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithStatistical replaces the statistical stage.
func WithStatistical(s Statistical) Option {
	return func(d *Detector) { d.stat = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a detector over table. A nil table uses the built-in
// profiles.
func NewDetector(table *Table, opts ...Option) *Detector {
	if table == nil {
		table = DefaultTable()
	}
	d := &Detector{
		table:  table,
		stat:   Whatlang{MinConfidence: 0.1},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the profile table the detector uses.
func (d *Detector) Table() *Table {
	return d.table
}

// Detect returns a language tag for text. It never fails.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return d.table.Default
	}
	if tag, ok := d.byKeywords(text); ok {
		return tag
	}
	if tag, ok := d.byCharacters(text); ok {
		return tag
	}
	if tag, ok := d.byStatistics(text); ok {
		return tag
	}
	return d.table.Default
}

func (d *Detector) byKeywords(text string) (string, bool) {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[w] = struct{}{}
	}

	best, bestHits := "", 0
	for _, p := range d.table.Profiles {
		if len(p.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range p.Keywords {
			if _, ok := words[strings.ToLower(kw)]; ok {
				hits++
			}
		}
		if hits >= p.MinKeywordHits && hits > bestHits {
			best, bestHits = p.Tag, hits
		}
	}
	return best, best != ""
}

func (d *Detector) byCharacters(text string) (string, bool) {
	best, bestHits := "", 0
	for _, p := range d.table.Profiles {
		if p.Characters == "" {
			continue
		}
		hits := 0
		for _, r := range text {
			if strings.ContainsRune(p.Characters, r) {
				hits++
			}
		}
		if hits >= p.MinCharHits && hits > bestHits {
			best, bestHits = p.Tag, hits
		}
	}
	return best, best != ""
}

func (d *Detector) byStatistics(text string) (string, bool) {
	if d.stat == nil {
		return "", false
	}
	samples := sample(text, d.table.SampleSize)
	votes := make(map[string]int, len(samples))
	var order []string
	for i, s := range samples {
		if len([]rune(s)) < minStatisticalRunes {
			continue
		}
		tag, err := d.detectSample(s)
		if err != nil {
			d.logger.Debug("language sample skipped", "sample", i, "error", err)
			continue
		}
		tag = d.remap(tag)
		if votes[tag] == 0 {
			order = append(order, tag)
		}
		votes[tag]++
	}
	if len(order) == 0 {
		return "", false
	}
	best := order[0]
	for _, tag := range order[1:] {
		if votes[tag] > votes[best] {
			best = tag
		}
	}
	return best, true
}

// detectSample shields the caller from a panicking detector.
func (d *Detector) detectSample(s string) (tag string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("statistical detector panic: %v", r)
		}
	}()
	return d.stat.Detect(s)
}

func (d *Detector) remap(tag string) string {
	for _, p := range d.table.Profiles {
		if slices.Contains(p.Misdetections, tag) {
			return p.Tag
		}
	}
	return tag
}

// sample returns the head, middle and tail of text, each at most size runes.
// Text shorter than three samples is returned whole.
func sample(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size*3 {
		return []string{text}
	}
	mid := len(runes)/2 - size/2
	return []string{
		string(runes[:size]),
		string(runes[mid : mid+size]),
		string(runes[len(runes)-size:]),
	}
}
