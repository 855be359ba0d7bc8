package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hello\n\nworld")

	text, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello\n\nworld", text)
}

func TestParseFile_MarkdownRaw(t *testing.T) {
	src := "# Sensors\n\nAn **IMU** measures acceleration."
	path := writeFile(t, t.TempDir(), "ch1.md", src)

	text, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, src, text)
}

func TestParseFile_MarkdownStripped(t *testing.T) {
	src := "# Sensors\n\nAn **IMU** measures `acceleration` rates\nand rotation.\n\n- joint encoders\n- cameras\n\n```python\nprint('hi')\n```\n"
	path := writeFile(t, t.TempDir(), "ch1.md", src)

	text, err := ParseFile(path, Options{StripMarkdown: true})
	require.NoError(t, err)
	assert.Equal(t,
		"Sensors\n\nAn IMU measures acceleration rates\nand rotation.\n\njoint encoders\n\ncameras\n\nprint('hi')",
		text)
}

func TestMarkdownToText_Table(t *testing.T) {
	src := "| Joint | DoF |\n|---|---|\n| hip | 3 |\n"
	assert.Equal(t, "Joint | DoF\n\nhip | 3", MarkdownToText([]byte(src)))
}

func TestParseFile_Unsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "image.png", "not text")

	_, err := ParseFile(path, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.md"), Options{})
	assert.Error(t, err)
}

func TestParseFile_PPTX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide2.xml": `<p:sld><a:t>Second</a:t><a:t>slide</a:t></p:sld>`,
		"ppt/slides/slide1.xml": `<p:sld><a:t>First &amp; best</a:t></p:sld>`,
		"ppt/presentation.xml":  `<a:t>ignored</a:t>`,
	}
	for _, name := range []string{"ppt/slides/slide2.xml", "ppt/slides/slide1.xml", "ppt/presentation.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(slides[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	text, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "First & best\n\nSecond slide", text)
}

func TestExtractDocxText(t *testing.T) {
	xml := `<w:body><w:p w:rsidR="1"><w:r><w:t>Degrees of</w:t></w:r><w:r><w:t xml:space="preserve"> freedom</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t></w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Kinematics &lt;2&gt;</w:t></w:r></w:p></w:body>`

	assert.Equal(t, "Degrees of freedom\n\nKinematics <2>", extractDocxText(xml))
}

func TestFormatSheet(t *testing.T) {
	rows := [][]string{{"joint", "torque"}, {"", ""}, {"knee", "40"}}
	assert.Equal(t, "## Sheet: Specs\njoint\ttorque\nknee\t40", formatSheet("Specs", rows))
	assert.Equal(t, "", formatSheet("Empty", [][]string{{""}}))
}
