package splitter

import (
	"strings"
	"unicode/utf8"
)

// span is a byte range of the source text with its length in runes.
type span struct {
	start int
	end   int
	runes int
}

type merger struct {
	size    int
	overlap int
}

// split cuts text (which starts at byte offset base in the source) at the
// first separator present, recursing with the remaining separators into
// pieces that are still too long. Runs of pieces that fit are merged into
// chunks with overlap.
func (m merger) split(text string, base int, seps []string) []span {
	sep, rest := "", []string(nil)
	for i, c := range seps {
		if c == "" || strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}

	var out, good []span
	flush := func() {
		if len(good) > 0 {
			out = append(out, m.merge(good)...)
			good = nil
		}
	}
	for _, p := range cut(text, base, sep) {
		if p.runes <= m.size {
			good = append(good, p)
			continue
		}
		flush()
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, m.split(text[p.start-base:p.end-base], p.start, rest)...)
	}
	flush()
	return out
}

// merge packs consecutive pieces into chunks of at most size runes. After a
// chunk is emitted, trailing pieces totalling at most overlap runes are
// carried into the next one.
func (m merger) merge(pieces []span) []span {
	var out, cur []span
	total := 0
	for _, p := range pieces {
		if total+p.runes > m.size && len(cur) > 0 {
			out = append(out, join(cur, total))
			for len(cur) > 0 && (total > m.overlap || total+p.runes > m.size) {
				total -= cur[0].runes
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += p.runes
	}
	if len(cur) > 0 {
		out = append(out, join(cur, total))
	}
	return out
}

func join(pieces []span, runes int) span {
	return span{start: pieces[0].start, end: pieces[len(pieces)-1].end, runes: runes}
}

// cut splits text at sep, keeping each separator at the end of the piece
// before it so that the pieces cover text exactly. An empty sep cuts at
// every character.
func cut(text string, base int, sep string) []span {
	var pieces []span
	if sep == "" {
		for i, r := range text {
			pieces = append(pieces, span{start: base + i, end: base + i + utf8.RuneLen(r), runes: 1})
		}
		return pieces
	}
	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], sep)
		end := len(text)
		if idx >= 0 {
			end = start + idx + len(sep)
		}
		pieces = append(pieces, span{
			start: base + start,
			end:   base + end,
			runes: utf8.RuneCountInString(text[start:end]),
		})
		start = end
	}
	return pieces
}

// windows is the fallback: fixed character windows with overlap.
func windows(text string, size, overlap int) []span {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	n := len(offsets) - 1

	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []span
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		out = append(out, span{start: offsets[start], end: offsets[end], runes: end - start})
		if end == n {
			break
		}
	}
	return out
}
