package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)

	_, err = uuid.Parse(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"chunks": 3}))
	assert.Equal(t, "{\n  \"chunks\": 3\n}\n", buf.String())

	assert.Error(t, WriteJSON(&buf, make(chan int)))
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "nested")
	require.NoError(t, CreateFolder(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, CreateFolder(dir))
	assert.NoError(t, CreateFolder("."))
}
