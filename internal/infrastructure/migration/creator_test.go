package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/alttext/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sites table", "add_sites_table"},
		{"Add-Sites-Table", "add_sites_table"},
		{"ADD_SITES_TABLE", "add_sites_table"},
		{"add__sites__table", "add_sites_table"},
		{"Add Sites 123", "add_sites_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add site notes", "Free-form notes per site")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_site_notes.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_site_notes.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add site notes")
	assert.Contains(t, string(up), "Free-form notes per site")
	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	second, err := CreateMigration(dir, "index usage by user", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	source := fstest.MapFS{
		"000002_create_sites.up.sql":    {Data: []byte("")},
		"000002_create_sites.down.sql":  {Data: []byte("")},
		"000001_create_licenses.up.sql": {Data: []byte("")},
		"README.md":                     {Data: []byte("")},
		"bad_name.up.sql":               {Data: []byte("")},
		"000003.up.sql":                 {Data: []byte("")},
	}

	got, err := ListMigrations(source)

	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: 1, Name: "create_licenses"},
		{Version: 2, Name: "create_sites", HasDown: true},
	}, got)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)

	require.Len(t, got, 4)
	for i, m := range got {
		assert.Equal(t, uint(i+1), m.Version, "versions are contiguous")
		assert.True(t, m.HasDown, "%s has a rollback", m.Name)
	}
	assert.Equal(t, "create_licenses", got[0].Name)
	assert.Equal(t, "create_quota_summaries", got[3].Name)
}
