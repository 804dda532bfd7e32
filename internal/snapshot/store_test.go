package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dcat-harvester/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "jsons"))
	require.NoError(t, err)
	return s
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name   string
		want   Key
		wantOK bool
	}{
		{"04a-01_20240105.json", Key{Portal: "04a-01", Date: "20240105"}, true},
		{"city_parks_20240105.json", Key{Portal: "city_parks", Date: "20240105"}, true},
		{"city_2024010.json", Key{}, false},
		{"city_2024O105.json", Key{}, false},
		{"city_20240105.csv", Key{}, false},
		{"_20240105.json", Key{}, false},
		{"nounderscore.json", Key{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFileName(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "p_20240105.json", FileName(Key{Portal: "p", Date: "20240105"}))
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := Key{Portal: "05a-01", Date: "20240105"}

	ok, err := s.Exists(key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(key)
	assert.ErrorIs(t, err, ErrNotFound)

	doc := []byte(`{"dataset":[{"identifier":"a"},{"identifier":"b"}]}`)
	require.NoError(t, s.Write(key, doc))

	ok, err = s.Exists(key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Read(key)
	require.NoError(t, err)

	before, err := model.DecodeCatalog(key.Portal, key.Date, doc)
	require.NoError(t, err)
	after, err := model.DecodeCatalog(key.Portal, key.Date, got)
	require.NoError(t, err)
	assert.Equal(t, len(before.Lookup()), len(after.Lookup()))
	for id := range before.Lookup() {
		assert.Contains(t, after.Lookup(), id)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_Previous(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{
		"city_20240101.json",
		"city_20240301.json",
		"city_20240501.json",
		"city_parks_20240401.json",
		"city_notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(s.dir, name), []byte("{}"), 0o644))
	}

	date, ok, err := s.Previous("city", "20240501")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20240301", date)

	date, ok, err = s.Previous("city", "20240101")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, date)

	date, ok, err = s.Previous("city_parks", "20250101")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20240401", date)
}

func TestWriteAtomic_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.csv")
	require.NoError(t, WriteAtomic(path, []byte("one")))
	require.NoError(t, WriteAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
