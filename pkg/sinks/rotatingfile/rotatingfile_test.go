package rotatingfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
	"fieldlog/pkg/severity"
)

func newEvent(text string) *event.Event {
	return event.New(severity.Info, event.StringMessage(text))
}

func testConfig(dir string) Config {
	return Config{
		Directory:  dir,
		Prefix:     "app-",
		Extension:  "log",
		Formatters: []format.Field{format.MessageField()},
	}
}

func TestNew_CreatesFirstSegmentAtZero(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, s.counter)
	_, err = os.Stat(filepath.Join(dir, "app-0.log"))
	assert.NoError(t, err)
}

func TestRecord_AppendsLine(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Record(newEvent("hello")))
	data, err := os.ReadFile(filepath.Join(dir, "app-0.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestRecord_RotatesAtMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxFileSize = 10
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.True(t, s.Record(newEvent("0123456789")))
	}

	assert.True(t, s.counter > 0)
	_, err = os.Stat(filepath.Join(dir, "app-0.log"))
	assert.NoError(t, err)
	currentPath := s.segmentPath(s.counter)
	_, err = os.Stat(currentPath)
	assert.NoError(t, err)
}

func TestNew_RecoversHighestCounterOnRestart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-0.log"), []byte("a\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-3.log"), []byte("b\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-2.log"), []byte("c\n"), 0644))

	s, err := New(testConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.counter)
}

func TestRotate_PrunesOldestArchiveBeyondMaxFilesCount(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxFileSize = 5
	cfg.MaxFilesCount = 2
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 30; i++ {
		s.Record(newEvent("x"))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "app-*"))
	require.NoError(t, err)

	archiveCount := 0
	for _, m := range matches {
		if m != s.segmentPath(s.counter) {
			archiveCount++
		}
	}
	assert.LessOrEqual(t, archiveCount, cfg.MaxFilesCount)
}

func TestRotate_PrunesArchivesBeyondMaxTotalBytes(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxFileSize = 5
	cfg.MaxFilesCount = 100 // effectively unbounded, isolate the total-bytes limit
	cfg.MaxTotalBytes = 20
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 30; i++ {
		s.Record(newEvent("x"))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "app-*"))
	require.NoError(t, err)

	var total int64
	for _, m := range matches {
		if m == s.segmentPath(s.counter) {
			continue
		}
		info, err := os.Stat(m)
		require.NoError(t, err)
		total += info.Size()
	}
	assert.LessOrEqual(t, total, cfg.MaxTotalBytes)
}

func TestRotate_CompressesArchiveWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxFileSize = 5
	cfg.CompressArchives = true
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.Record(newEvent("x"))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "app-*.gz"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	matches, err = filepath.Glob(filepath.Join(dir, "app-*.log"))
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, s.segmentPath(s.counter), m)
	}
}

func TestRecord_DisabledSinkRejects(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	s.SetEnabled(false)
	assert.False(t, s.Record(newEvent("dropped")))
	assert.False(t, s.Enabled())
}

func TestRecord_FailsGracefullyWhenDirectoryRemoved(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Close())
	require.NoError(t, os.RemoveAll(dir))

	s.mu.Lock()
	s.current = nil
	s.writer = nil
	s.mu.Unlock()

	assert.False(t, s.Record(newEvent("x")))
	assert.True(t, s.Degraded())
}

func TestSegmentPath_UsesConfiguredPrefixAndExtension(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Prefix = "seg-"
	cfg.Extension = "bin"
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, strings.HasSuffix(s.segmentPath(7), "seg-7.bin"))
}
