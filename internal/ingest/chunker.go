package ingest

import (
	"strings"
	"unicode"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// ChunkConfig controls document chunking.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 100,
	}
}

// ChunkDraft is a pre-embedding chunk: content plus best-effort structural
// metadata. StartOffset is the rune offset into the source text, so the
// sequence is restartable and coverage is verifiable.
type ChunkDraft struct {
	Index         int
	Content       string
	StartOffset   int
	PageNumber    int
	SectionHeader string
	Type          domain.ChunkType
}

// Split cuts text into an ordered sequence of overlapping windows. Every rune
// of the source appears in at least one chunk; windows advance by
// Size - Overlap and are pulled back to the nearest whitespace so words are
// not split when avoidable.
func Split(text string, cfg ChunkConfig) []ChunkDraft {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 2
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	pages := pageOffsets(runes)
	sections := sectionOffsets(runes)

	drafts := make([]ChunkDraft, 0, len(runes)/cfg.Size+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			// Pull the cut back to a word boundary, but never shrink the
			// window below half its size or overlap progress could stall.
			minCut := start + cfg.Size/2
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		content := string(runes[start:end])
		drafts = append(drafts, ChunkDraft{
			Index:         len(drafts),
			Content:       content,
			StartOffset:   start,
			PageNumber:    pageAt(pages, start),
			SectionHeader: sectionAt(sections, start),
			Type:          Classify(content),
		})

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return drafts
}

// pageOffsets returns the rune offsets of form-feed page breaks.
func pageOffsets(runes []rune) []int {
	var offsets []int
	for i, r := range runes {
		if r == '\f' {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// pageAt returns the 1-based page containing the given offset.
func pageAt(breaks []int, offset int) int {
	page := 1
	for _, b := range breaks {
		if b < offset {
			page++
		} else {
			break
		}
	}
	return page
}

type sectionMark struct {
	offset int
	header string
}

// sectionOffsets records markdown-style headings and their rune offsets.
func sectionOffsets(runes []rune) []sectionMark {
	var marks []sectionMark
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i == len(runes) || runes[i] == '\n' {
			line := string(runes[lineStart:i])
			if header := headerText(line); header != "" {
				marks = append(marks, sectionMark{offset: lineStart, header: header})
			}
			lineStart = i + 1
		}
	}
	return marks
}

// sectionAt returns the last heading at or before the given offset.
func sectionAt(marks []sectionMark, offset int) string {
	header := ""
	for _, m := range marks {
		if m.offset <= offset {
			header = m.header
		} else {
			break
		}
	}
	return header
}

func headerText(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
}
