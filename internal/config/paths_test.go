package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths_RelativeToBaseDir(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.BaseDir = base

	paths, err := cfg.GetPaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "exports"), paths.ExportsDir)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)

	require.NoError(t, paths.EnsureDirectories())
	info, err := os.Stat(paths.ExportsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetPaths_AbsoluteEntriesKept(t *testing.T) {
	abs := t.TempDir()
	cfg := Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Paths.ExportsDir = abs

	paths, err := cfg.GetPaths()
	require.NoError(t, err)
	assert.Equal(t, abs, paths.ExportsDir)
}

func TestGetExportPath(t *testing.T) {
	paths := &Paths{ExportsDir: "/srv/exports"}

	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{"plain name", "view.csv", filepath.Join("/srv/exports", "view.csv"), false},
		{"nested name", "2024/view.xlsx", filepath.Join("/srv/exports", "2024", "view.xlsx"), false},
		{"parent escape", "../etc/passwd", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paths.GetExportPath(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
