package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerake/tablerake/internal/record"
)

func testSet() record.Set {
	a := record.New()
	a.Set("id", "1")
	a.Set("title", "Old")
	a.Set("price", float64(10))

	b := record.New()
	b.Set("id", "2")
	b.Set("title", "New")
	b.Set("note", nil)

	return record.Set{a, b}
}

func assertSetsEqual(t *testing.T, want, got record.Set) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "record %d differs", i)
		assert.Equal(t, want[i].Fields(), got[i].Fields(), "record %d field order differs", i)
	}
}

func TestLocalFile_LoadMissingFileIsEmpty(t *testing.T) {
	backend := NewLocalFile(filepath.Join(t.TempDir(), "never-written.json"))

	records, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLocalFile_RoundTrip(t *testing.T) {
	backend := NewLocalFile(filepath.Join(t.TempDir(), "data.json"))
	want := testSet()

	require.NoError(t, backend.Save(context.Background(), want))

	got, err := backend.Load(context.Background())
	require.NoError(t, err)
	assertSetsEqual(t, want, got)
}

func TestLocalFile_SaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "data.json")
	backend := NewLocalFile(path)

	require.NoError(t, backend.Save(context.Background(), testSet()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLocalFile_SaveReplacesWholesale(t *testing.T) {
	backend := NewLocalFile(filepath.Join(t.TempDir(), "data.json"))
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, testSet()))

	one := record.New()
	one.Set("id", "only")
	require.NoError(t, backend.Save(ctx, record.Set{one}))

	got, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	v, _ := got[0].Get("id")
	assert.Equal(t, "only", v)
}

func TestLocalFile_SaveEmptySet(t *testing.T) {
	backend := NewLocalFile(filepath.Join(t.TempDir(), "data.json"))
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, record.Set{}))
	got, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocalFile_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	backend := NewLocalFile(path)
	_, err := backend.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsCorrupt(err), "corrupt state must not be treated as empty")
}

func TestLocalFile_FailedSaveLeavesPriorState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	backend := NewLocalFile(path)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, testSet()))

	// Replace the target's parent with a read-only dir to force the
	// next save to fail at the temp-file step.
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	one := record.New()
	one.Set("id", "should-not-land")
	err := backend.Save(ctx, record.Set{one})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))

	require.NoError(t, os.Chmod(dir, 0o755))
	got, err := backend.Load(ctx)
	require.NoError(t, err)
	assertSetsEqual(t, testSet(), got)
}

func TestLocalFile_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	backend := NewLocalFile(filepath.Join(dir, "data.json"))

	require.NoError(t, backend.Save(context.Background(), testSet()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}
