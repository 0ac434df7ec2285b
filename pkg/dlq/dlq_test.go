package dlq

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_WritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	q, err := New(Config{Directory: dir})
	require.NoError(t, err)
	defer q.Close()

	q.Add("remote", "max retries exceeded", []byte("payload-1"))
	assert.EqualValues(t, 1, q.Total())

	f, err := os.Open(filepath.Join(dir, "deadletter.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "payload-1")
	assert.Contains(t, scanner.Text(), "max retries exceeded")
}

func TestAdd_RotatesPastMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	q, err := New(Config{Directory: dir, MaxFileSize: 1})
	require.NoError(t, err)
	defer q.Close()

	q.Add("remote", "boom", []byte("x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var archived bool
	for _, e := range entries {
		if e.Name() != "deadletter.jsonl" {
			archived = true
		}
	}
	assert.True(t, archived, "expected rotation to produce an archived file")
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dlq")
	q, err := New(Config{Directory: dir})
	require.NoError(t, err)
	defer q.Close()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
