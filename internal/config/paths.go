package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths holds the resolved directories the application writes to.
type Paths struct {
	BaseDir    string
	ExportsDir string
	LogsDir    string
}

// GetPaths resolves the configured directories. Relative entries are joined
// to BaseDir, which defaults to the directory of the running executable.
func (c *Config) GetPaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %v", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
		}
		base = filepath.Dir(exe)
	}

	return &Paths{
		BaseDir:    base,
		ExportsDir: resolve(base, c.Paths.ExportsDir),
		LogsDir:    resolve(base, c.Paths.LogsDir),
	}, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ExportsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetExportPath returns a path inside the exports directory. Names that try
// to escape the directory are rejected.
func (p *Paths) GetExportPath(filename string) (string, error) {
	clean := filepath.Clean(filename)
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid export file name %q", filename)
	}
	return filepath.Join(p.ExportsDir, clean), nil
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		))
}
