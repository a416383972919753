package ingestion

import (
	"fmt"
	"sort"
	"strings"
)

// sentenceBoundaries are the separators tried when no paragraph break fits
// in the window, in preference order. Each boundary keeps its separator in
// the preceding chunk.
var sentenceBoundaries = []string{". ", "! ", "? ", "\n"}

// Split cuts text into chunks of at most chunkSize runes, with consecutive
// chunks sharing exactly chunkOverlap trailing/leading runes. Cut points
// prefer paragraph breaks, then sentence boundaries, then an arbitrary rune
// position, falling through to the coarser strategy only when the preferred
// one cannot satisfy chunkSize.
//
// Every chunk is an exact substring of text: concatenating the first chunk
// with each subsequent chunk minus its leading chunkOverlap runes
// reconstructs text exactly.
func Split(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("ingestion: chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	if text == "" {
		return nil, nil
	}

	// bounds[i] is the byte offset of the i-th rune, with a final entry at
	// len(text). Sizes count runes, not bytes, so a hard cut can never land
	// inside a multi-byte encoding.
	bounds := runeBounds(text)
	n := len(bounds) - 1

	var chunks []string
	start := 0
	for {
		end := start + chunkSize
		if end >= n {
			chunks = append(chunks, text[bounds[start]:])
			return chunks, nil
		}

		// The cut must land after start+chunkOverlap so the next window
		// advances; otherwise fall through to a harder boundary.
		cut := cutPoint(text, bounds[start+chunkOverlap], bounds[end])
		chunks = append(chunks, text[bounds[start]:cut])
		start = runeIndex(bounds, cut) - chunkOverlap
	}
}

// runeBounds returns the byte offsets of every rune start in text, plus a
// final entry at len(text).
func runeBounds(text string) []int {
	bounds := make([]int, 0, len(text)+1)
	for i := range text {
		bounds = append(bounds, i)
	}
	return append(bounds, len(text))
}

// runeIndex converts a byte offset back to its rune index. off must be a
// rune boundary, which holds for every cut: the sentence and paragraph
// separators end in ASCII and the hard-cut fallback comes from bounds.
func runeIndex(bounds []int, off int) int {
	return sort.SearchInts(bounds, off)
}

// cutPoint returns the best cut position in (lo, hi]: the last paragraph
// break, else the last sentence boundary, else hi. The separator itself
// stays in the preceding chunk.
func cutPoint(text string, lo, hi int) int {
	if p := lastBoundary(text, "\n\n", lo, hi); p > 0 {
		return p
	}
	for _, sep := range sentenceBoundaries {
		if p := lastBoundary(text, sep, lo, hi); p > 0 {
			return p
		}
	}
	return hi
}

// lastBoundary returns the position just after the last occurrence of sep
// that ends within (lo, hi], or 0 if there is none.
func lastBoundary(text, sep string, lo, hi int) int {
	i := strings.LastIndex(text[:hi], sep)
	if i < 0 {
		return 0
	}
	end := i + len(sep)
	if end <= lo {
		return 0
	}
	return end
}
