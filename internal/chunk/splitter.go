package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidChunking is returned for chunking parameters that violate the
// chunk_overlap < chunk_size invariant.
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// Splitter splits document text into overlapping chunks. It is stateless
// and safe for concurrent use; a fresh Split call is made per document.
//
// Text is split at paragraph boundaries first, then at sentence boundaries
// for paragraphs that exceed the chunk size. Sentences are greedily
// accumulated; when the next sentence would overflow, the buffer is emitted
// and the new buffer is seeded with the trailing overlap of the previous one.
type Splitter struct {
	chunkSize int // maximum chunk length in runes
	overlap   int // runes carried over between consecutive chunks
}

// NewSplitter creates a splitter. chunkSize must be positive and overlap
// must satisfy 0 <= overlap < chunkSize; violations are rejected here,
// before any document is processed.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunking, overlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// span is a byte range into the original text.
type span struct {
	start, end int
}

// Split splits text into ordered chunks. Empty or whitespace-only input
// yields zero chunks; input shorter than the chunk size yields exactly one.
// A single sentence longer than the chunk size is emitted as its own
// oversized chunk rather than dropped.
//
// Chunk offsets are byte offsets into the original text, so callers can
// slice text[c.Start:c.End] for provenance or highlighting.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	units := s.units(text)

	var chunks []Chunk
	bufStart, bufEnd := -1, -1
	bufRunes := 0

	emit := func() {
		sp, ok := trimSpan(text, bufStart, bufEnd)
		if !ok {
			return
		}
		chunks = append(chunks, Chunk{
			Content: text[sp.start:sp.end],
			Index:   len(chunks),
			Start:   sp.start,
			End:     sp.end,
		})
	}

	for _, u := range units {
		unitRunes := utf8.RuneCountInString(text[u.start:u.end])
		if bufStart < 0 {
			bufStart, bufEnd, bufRunes = u.start, u.end, unitRunes
			continue
		}

		// The buffer is always a contiguous byte range, so separator
		// bytes between the buffer and the next unit count toward size.
		gapRunes := utf8.RuneCountInString(text[bufEnd:u.start])

		if bufRunes+gapRunes+unitRunes > s.chunkSize {
			emit()
			// Seed the next buffer with the trailing overlap of the
			// previous one so boundary context is not lost.
			bufStart = backupRunes(text, bufEnd, s.overlap)
			bufRunes = utf8.RuneCountInString(text[bufStart:u.end])
			bufEnd = u.end
		} else {
			bufRunes += gapRunes + unitRunes
			bufEnd = u.end
		}
	}
	if bufStart >= 0 {
		emit()
	}

	return chunks
}

// units returns the byte spans the accumulator works over: whole paragraphs
// when they fit in a chunk, individual sentences otherwise.
func (s *Splitter) units(text string) []span {
	var units []span
	for _, p := range paragraphs(text) {
		if utf8.RuneCountInString(text[p.start:p.end]) <= s.chunkSize {
			units = append(units, p)
			continue
		}
		units = append(units, sentences(text, p)...)
	}
	return units
}

// paragraphs splits text on blank lines.
func paragraphs(text string) []span {
	var spans []span
	start := 0
	for {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			break
		}
		if sp, ok := trimSpan(text, start, start+idx); ok {
			spans = append(spans, sp)
		}
		start = start + idx + 2
	}
	if sp, ok := trimSpan(text, start, len(text)); ok {
		spans = append(spans, sp)
	}
	return spans
}

// sentences splits a paragraph after each sentence terminator. CJK
// terminators are recognized alongside Latin punctuation and newlines so
// Chinese prose does not degenerate into paragraph-sized sentences.
func sentences(text string, p span) []span {
	var spans []span
	start := p.start
	for i, r := range text[p.start:p.end] {
		if !isTerminator(r) {
			continue
		}
		end := p.start + i + utf8.RuneLen(r)
		if sp, ok := trimSpan(text, start, end); ok {
			spans = append(spans, sp)
		}
		start = end
	}
	if sp, ok := trimSpan(text, start, p.end); ok {
		spans = append(spans, sp)
	}
	return spans
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '.', '!', '?', '\n':
		return true
	}
	return false
}

// trimSpan shrinks [start, end) to exclude surrounding whitespace.
// Reports false when nothing but whitespace remains.
func trimSpan(text string, start, end int) (span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// backupRunes returns the byte offset n runes before end, never crossing
// the start of the text.
func backupRunes(text string, end, n int) int {
	off := end
	for i := 0; i < n && off > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:off])
		off -= size
	}
	return off
}
