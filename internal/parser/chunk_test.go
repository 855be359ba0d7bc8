package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitContent_FitsInOneChunk(t *testing.T) {
	chunks := SplitContent("Para1\n\nPara2\n\nPara3\n", 1000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Para1\n\nPara2\n\nPara3", chunks[0])
}

func TestSplitContent_MergesUntilLimit(t *testing.T) {
	p1 := strings.Repeat("a", 400)
	p2 := strings.Repeat("b", 400)
	p3 := strings.Repeat("c", 400)

	chunks := SplitContent(p1+"\n\n"+p2+"\n\n"+p3, 1000)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0])
	assert.LessOrEqual(t, len(chunks[0]), 1000)
	assert.Equal(t, p3, chunks[1])
}

func TestSplitContent_OversizedParagraphKeptWhole(t *testing.T) {
	small := "intro"
	big := strings.Repeat("x", 250)

	chunks := SplitContent(small+"\n\n"+big+"\n\nouttro", 100)

	require.Len(t, chunks, 3)
	assert.Equal(t, small, chunks[0])
	assert.Equal(t, big, chunks[1])
	assert.Equal(t, "outtro", chunks[2])
}

func TestSplitContent_Fallback(t *testing.T) {
	t.Run("whitespace only", func(t *testing.T) {
		text := "\n\n  \n\n"
		assert.Equal(t, []string{text}, SplitContent(text, 1000))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, []string{""}, SplitContent("", 1000))
	})
}

func TestSplitContent_DefaultMaxLength(t *testing.T) {
	p := strings.Repeat("y", 600)
	chunks := SplitContent(p+"\n\n"+p, 0)
	assert.Len(t, chunks, 2)
}

func TestSplitContent_CRLF(t *testing.T) {
	chunks := SplitContent("one\r\n\r\ntwo", 5)
	assert.Equal(t, []string{"one", "two"}, chunks)
}

func TestSplitContent_Properties(t *testing.T) {
	paragraphs := []string{
		"Physical AI couples perception with actuation.",
		strings.TrimSpace(strings.Repeat("Humanoid robots balance dynamically. ", 12)),
		"Sensors: IMU, joint encoders, cameras.",
		strings.Repeat("z", 180),
		"Control loops run at a fixed frequency.",
		"ROS 2 nodes communicate over DDS topics.",
	}
	text := strings.Join(paragraphs, "\n\n")

	for _, maxLen := range []int{50, 120, 200, 500, 5000} {
		chunks := SplitContent(text, maxLen)
		again := SplitContent(text, maxLen)
		assert.Equal(t, chunks, again, "deterministic for max %d", maxLen)

		// Reassembling the chunks yields the original paragraphs in order.
		var rebuilt []string
		for _, c := range chunks {
			rebuilt = append(rebuilt, strings.Split(c, "\n\n")...)
		}
		assert.Equal(t, paragraphs, rebuilt, "content preserved for max %d", maxLen)

		for _, c := range chunks {
			if utf8.RuneCountInString(c) > maxLen {
				assert.NotContains(t, c, "\n\n", "only a lone paragraph may exceed max %d", maxLen)
			}
		}
	}
}

func TestSplitContent_CountsRunes(t *testing.T) {
	p := strings.Repeat("é", 40)
	chunks := SplitContent(p+"\n\n"+p, 100)
	assert.Len(t, chunks, 1)
}

func TestPartLabels(t *testing.T) {
	assert.Equal(t, []string{"intro.md"}, PartLabels("intro.md", 1))
	assert.Equal(t,
		[]string{"ch1/robots.md (Part 1)", "ch1/robots.md (Part 2)"},
		PartLabels("ch1/robots.md", 2))
	assert.Empty(t, PartLabels("x.md", 0))
}
