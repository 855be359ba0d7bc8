package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"textbook-rag/internal/models"
)

const (
	DefaultChunkSize   = 1000 // runes
	paragraphSeparator = "\n\n"
)

// SplitContent splits text into chunks on blank-line paragraph boundaries.
// Paragraphs are accumulated greedily while the buffer stays under maxLength
// runes. A paragraph longer than maxLength is emitted on its own and never cut.
// If nothing is emitted the original text is returned as the only chunk.
func SplitContent(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		currentLen = 0
	}

	for _, para := range strings.Split(text, paragraphSeparator) {
		paraLen := utf8.RuneCountInString(para)
		if currentLen+paraLen >= maxLength {
			flush()
		}
		current.WriteString(para)
		current.WriteString(paragraphSeparator)
		currentLen += paraLen + len(paragraphSeparator)
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// PartLabels derives one source label per chunk. Documents that fit in one
// chunk keep their label; split documents get a 1-based part suffix.
func PartLabels(source string, n int) []string {
	labels := make([]string, n)
	for i := range labels {
		if n > 1 {
			labels[i] = fmt.Sprintf(models.PartLabelFormat, source, i+1)
		} else {
			labels[i] = source
		}
	}
	return labels
}
