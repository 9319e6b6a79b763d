// ABOUTME: Tests for the pulselog-admin recent and export commands
// ABOUTME: Runs against the in-memory MockStore

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pulselog/internal/report"
	"github.com/2389/pulselog/internal/store"
)

func seededStore(t *testing.T) *store.MockStore {
	t.Helper()
	color.NoColor = true

	st := store.NewMockStore()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		st.Now = func() time.Time { return at }
		_, err := st.Append(context.Background(), "@alice:example.org", 120+i, 80, 70)
		require.NoError(t, err)
	}
	return st
}

func TestCmdRecent(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	require.NoError(t, cmdRecent(context.Background(), &out, st, []string{"@alice:example.org", "2"}))

	text := out.String()
	assert.Contains(t, text, "Measurements for @alice:example.org")
	assert.Contains(t, text, "122")
	assert.Contains(t, text, "121")
	assert.NotContains(t, text, "120 ")
	assert.Less(t, strings.Index(text, "122"), strings.Index(text, "121"), "newest first")
	assert.Contains(t, text, "2024-03-01 10:00:00")
}

func TestCmdRecentEmpty(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	require.NoError(t, cmdRecent(context.Background(), &out, st, []string{"@bob:example.org"}))
	assert.Contains(t, out.String(), "(no measurements)")
}

func TestCmdRecentBadArgs(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	assert.Error(t, cmdRecent(context.Background(), &out, st, nil))
	assert.Error(t, cmdRecent(context.Background(), &out, st, []string{"@alice:example.org", "zero"}))
	assert.Error(t, cmdRecent(context.Background(), &out, st, []string{"@alice:example.org", "-1"}))
}

func TestCmdExportStdout(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	require.NoError(t, cmdExport(context.Background(), &out, st, []string{"@alice:example.org"}))

	rows, err := report.ReadCSV(&out)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCmdExportFile(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "alice.csv")

	require.NoError(t, cmdExport(context.Background(), &out, st, []string{"@alice:example.org", path}))
	assert.Contains(t, out.String(), "Exported 3 measurements")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := report.ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCmdExportNoData(t *testing.T) {
	st := seededStore(t)
	var out bytes.Buffer

	err := cmdExport(context.Background(), &out, st, []string{"@bob:example.org"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no measurements")
}

func TestDatabasePath_ConfigWithoutToken(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "custom", "bp.db")
	cfgPath := filepath.Join(dir, "config.toml")
	content := `[matrix]
homeserver = "https://matrix.example.org"
user_id = "@pulselog:example.org"
access_token = "${PULSELOG_MATRIX_TOKEN}"

[database]
path = "` + dbPath + `"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	t.Setenv("PULSELOG_CONFIG", cfgPath)
	t.Setenv("PULSELOG_MATRIX_TOKEN", "")
	t.Setenv("PULSELOG_DB", "")
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg"))

	got, err := databasePath()
	require.NoError(t, err)
	assert.Equal(t, dbPath, got)
}

func TestDatabasePath_EnvWins(t *testing.T) {
	t.Setenv("PULSELOG_DB", "/srv/pulselog.db")

	got, err := databasePath()
	require.NoError(t, err)
	assert.Equal(t, "/srv/pulselog.db", got)
}

func TestDatabasePath_NoConfigFallsBackToDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PULSELOG_CONFIG", filepath.Join(dir, "missing.toml"))
	t.Setenv("PULSELOG_DB", "")
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg"))

	got, err := databasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "xdg", "pulselog", "pulselog.db"), got)
}

func TestDatabasePath_BrokenConfigIsAnError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[database\npath = "), 0600))

	t.Setenv("PULSELOG_CONFIG", cfgPath)
	t.Setenv("PULSELOG_DB", "")

	_, err := databasePath()
	assert.Error(t, err)
}
