package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileContent string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultSourceURL, cfg.Source.URL)
				assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
				assert.Equal(t, "first_valid", cfg.Analysis.LatitudePolicy)
				assert.Equal(t, 20, cfg.Analysis.HistogramBins)
				assert.Equal(t, 10, cfg.Analysis.TopN)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "stdout", cfg.Logging.Output)
				assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
			},
		},
		{
			name: "file overrides defaults",
			fileContent: `
server:
  port: 9090
source:
  url: testdata/missions.csv
analysis:
  latitude_policy: first_row
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "testdata/missions.csv", cfg.Source.URL)
				assert.Equal(t, "first_row", cfg.Analysis.LatitudePolicy)
				// untouched sections keep defaults
				assert.Equal(t, 64, cfg.Session.MaxSessions)
			},
		},
		{
			name: "env overrides file",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_SERVER_PORT", "7070")
				t.Setenv("PKO_SOURCE_TIMEOUT", "5s")
				t.Setenv("PKO_SECURITY_ALLOWED_ORIGINS", "http://a.example,http://b.example")
			},
			fileContent: "server:\n  port: 9090\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Security.AllowedOrigins)
			},
		},
		{
			name: "unknown log output falls back to stdout",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_LOGGING_OUTPUT", "console")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "stdout", cfg.Logging.Output)
			},
		},
		{
			name: "invalid port",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_SERVER_PORT", "70000")
			},
			wantErr: "invalid server port",
		},
		{
			name: "unknown latitude policy",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_ANALYSIS_LATITUDE_POLICY", "median")
			},
			wantErr: "unknown latitude policy",
		},
		{
			name: "unsupported source scheme",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_SOURCE_URL", "ftp://example.org/pko.csv")
			},
			wantErr: "unsupported source scheme",
		},
		{
			name: "unsupported trace exporter",
			setupEnv: func(t *testing.T) {
				t.Setenv("PKO_TELEMETRY_TRACE_EXPORTER", "otlp")
			},
			wantErr: "unsupported trace exporter",
		},
		{
			name:        "malformed yaml",
			fileContent: "server: [",
			wantErr:     "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}
			path := ""
			if tt.fileContent != "" {
				path = writeConfigFile(t, tt.fileContent)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		source  string
		wantErr bool
	}{
		{DefaultSourceURL, false},
		{"http://localhost:9000/pko.csv", false},
		{"file:///var/data/pko.csv", false},
		{"data/pko.csv", false},
		{"", true},
		{"https://", true},
		{"s3://bucket/pko.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
