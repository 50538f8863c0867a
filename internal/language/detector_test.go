package language

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStat struct {
	tags  []string
	calls int
	panic bool
}

func (f *fakeStat) Detect(string) (string, error) {
	defer func() { f.calls++ }()
	if f.panic {
		panic("boom")
	}
	if f.calls >= len(f.tags) {
		return "", ErrUndetermined
	}
	if f.tags[f.calls] == "" {
		return "", errors.New("detector failed")
	}
	return f.tags[f.calls], nil
}

func TestDetect_KeywordsOverrideEverything(t *testing.T) {
	stat := &fakeStat{tags: []string{"de"}}
	d := NewDetector(nil, WithStatistical(stat))

	// Ascii-only Lithuanian, no distinctive characters.
	text := "Sutartis yra pasirasyta, kad abi salys sutinka. Taip pat bei kiti punktai."
	assert.Equal(t, "lt", d.Detect(text))
	assert.Equal(t, 0, stat.calls)
}

func TestDetect_DistinctiveCharacters(t *testing.T) {
	d := NewDetector(nil, WithStatistical(&fakeStat{}))

	assert.Equal(t, "lt", d.Detect("Vėjas ąžuolų šakose ūžė, žąsys įskrido į kiemą per langą."))
	assert.Equal(t, "lv", d.Detect("Ļoti skaista māja ar ģimeni un ķiršu dārzu pie ēkas."))
}

func TestDetect_StatisticalMajorityVote(t *testing.T) {
	text := strings.Repeat("plain words without any special marks at all ", 100)
	d := NewDetector(nil, WithStatistical(&fakeStat{tags: []string{"de", "fr", "fr"}}))

	assert.Equal(t, "fr", d.Detect(text))
}

func TestDetect_MisdetectionRemapped(t *testing.T) {
	text := "plain words without any special marks at all"
	d := NewDetector(nil, WithStatistical(&fakeStat{tags: []string{"sk"}}))

	assert.Equal(t, "lt", d.Detect(text))
}

func TestDetect_SampleFailuresSkipped(t *testing.T) {
	text := strings.Repeat("plain words without any special marks at all ", 100)
	d := NewDetector(nil, WithStatistical(&fakeStat{tags: []string{"", "", "es"}}))

	assert.Equal(t, "es", d.Detect(text))
}

func TestDetect_TotalFailureFallsBackToDefault(t *testing.T) {
	text := strings.Repeat("plain words without any special marks at all ", 100)

	assert.Equal(t, "en", NewDetector(nil, WithStatistical(&fakeStat{panic: true})).Detect(text))
	assert.Equal(t, "en", NewDetector(nil, WithStatistical(&fakeStat{})).Detect(text))
	assert.Equal(t, "en", NewDetector(nil).Detect(""))
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector(nil)
	text := "The quick brown fox jumps over the lazy dog while the committee reviews the annual report."
	first := d.Detect(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.Detect(text))
	}
}

func TestTable_Lookups(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, "lit", table.OCRPack("lt"))
	assert.Equal(t, "eng", table.OCRPack("xx"))
	assert.Equal(t, "eng+lit+lav", table.OCRPacks())

	seps := table.Separators("lt")
	require.NotEmpty(t, seps)
	assert.Equal(t, "\n\n", seps[0])
	assert.Equal(t, "", seps[len(seps)-1])
	assert.Contains(t, seps, " ir ")
	assert.NotContains(t, table.Separators("en"), " ir ")
}

func TestParseTable_RejectsDuplicateTags(t *testing.T) {
	_, err := ParseTable([]byte("profiles:\n  - tag: lt\n  - tag: lt\n"))
	require.Error(t, err)
}

func TestParseTable_StructuralSeparatorsLeadEveryList(t *testing.T) {
	table, err := ParseTable([]byte("default: en\nseparators: [\"\\n\\n\", \"\\n\"]\nprofiles:\n  - tag: en\n    conjunctions: [\" and \"]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"\n\n", "\n"}, table.Structural)
	seps := table.Separators("en")
	require.GreaterOrEqual(t, len(seps), 3)
	assert.Equal(t, []string{"\n\n", "\n", " and "}, seps[:3])
	assert.Equal(t, seps, table.Separators("unknown"))
}
