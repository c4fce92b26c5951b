package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadflow/internal/config"
)

// useConfig installs a config backed by a temporary SQLite database for the
// duration of the test.
func useConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load()
	require.NoError(t, err)
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "leadflow.db")
	c.Google.SheetsRPS = 0
	c.Auth.JWTSecret = "test-secret"

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func writeWorkbook(t *testing.T, tabs map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range tabs {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, cells := range rows {
			row := sheet.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}
