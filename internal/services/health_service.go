package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"pkoinsight/pkg/contracts"
)

// SessionCounter reports the number of open sessions.
type SessionCounter interface {
	Len() int
}

// ClientCounter reports the number of connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	source      string
	maxSessions int
	exportsDir  string
	sessions    SessionCounter
	clients     ClientCounter
	startTime   time.Time
	logger      *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// HealthOptions describes what the health checks inspect.
type HealthOptions struct {
	Source      string
	MaxSessions int
	ExportsDir  string
}

// NewHealthService creates a health service. clients may be nil.
func NewHealthService(opts HealthOptions, sessions SessionCounter, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("source", opts.Source))

	return &HealthService{
		source:      opts.Source,
		maxSessions: opts.MaxSessions,
		exportsDir:  opts.ExportsDir,
		sessions:    sessions,
		clients:     clients,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]interface{}{
			"source":    hs.checkSource(),
			"sessions":  hs.checkSessions(),
			"websocket": hs.checkWebSocket(),
			"exports":   hs.checkExports(),
		},
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "ReadinessCheck: service not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"api_version":  info.APIVersion,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

func (hs *HealthService) checkSource() ServiceHealth {
	if hs.source == "" {
		return ServiceHealth{Status: "not_ready", Message: "no default data source configured"}
	}
	return ServiceHealth{Status: "ready", Message: hs.source}
}

func (hs *HealthService) checkSessions() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "session manager not initialized"}
	}
	n := hs.sessions.Len()
	if hs.maxSessions > 0 && n >= hs.maxSessions {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("session limit reached (%d)", n)}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d open sessions", n),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "ready", Message: "WebSocket disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d connected clients", hs.clients.ClientCount()),
	}
}

// checkExports only reports; a missing exports directory is created on first export.
func (hs *HealthService) checkExports() ServiceHealth {
	if hs.exportsDir == "" {
		return ServiceHealth{Status: "ready", Message: "file exports disabled"}
	}
	if _, err := os.Stat(hs.exportsDir); err != nil {
		return ServiceHealth{Status: "ready", Message: fmt.Sprintf("exports directory not created yet: %s", hs.exportsDir)}
	}
	return ServiceHealth{Status: "ready", Message: "exports directory available"}
}
