package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pkoinsight/internal/config"
	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	"pkoinsight/internal/loader"
	mw "pkoinsight/internal/middleware"
	"pkoinsight/internal/services"
	"pkoinsight/internal/session"
	handlers "pkoinsight/internal/transport/http"
	ws "pkoinsight/internal/websocket"
	"pkoinsight/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Sessions      *session.Manager
	Dashboard     *services.DashboardService
	HealthService *services.HealthService
	WebSocketHub  *ws.Hub

	errorHandler *apperrors.ErrorHandler
	validator    *mw.Validator

	// background workers and WebSocket read loops run under ctx
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication loads the configuration, initializes the global logger and
// wires the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires an application from an already loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		errorHandler:  apperrors.NewErrorHandler(logger, false),
		validator:     mw.NewValidator(logger),
		ctx:           ctx,
		cancel:        cancel,
	}

	if err := a.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	src := a.Config.Source
	l := loader.New(loader.Options{
		Timeout:   src.Timeout,
		MaxBytes:  src.MaxBytes,
		UserAgent: src.UserAgent,
	}, a.Logger)

	a.Sessions = session.NewManager(l, session.Options{
		DefaultSource: src.URL,
		TTL:           a.Config.Session.TTL,
		MaxSessions:   a.Config.Session.MaxSessions,
		LoadTimeout:   src.Timeout,
	}, a.Metrics, a.Logger)

	opts, err := services.AnalysisOptionsFrom(a.Config.Analysis, src)
	if err != nil {
		return fmt.Errorf("invalid analysis options: %w", err)
	}
	a.Dashboard = services.NewDashboardService(a.Sessions, opts, a.Metrics, a.Logger)

	a.WebSocketHub = ws.NewHub(a.Metrics, a.Logger)
	a.Sessions.OnRemove(func(id, reason string) {
		a.WebSocketHub.CloseSession(id, reason)
	})

	a.HealthService = services.NewHealthService(services.HealthOptions{
		Source:      src.URL,
		MaxSessions: a.Config.Session.MaxSessions,
		ExportsDir:  a.Paths.ExportsDir,
	}, a.Sessions, a.WebSocketHub, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP for every route; the WebSocket route skips the
	// wrapping middleware below because it needs the raw ResponseWriter.
	r.Use(mw.RequestID)
	r.Use(mw.RealIP)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.With(apperrors.RecoveryMiddleware(a.errorHandler), mw.WebSocketTraceMiddleware(a.Logger)).
		Method(http.MethodGet, "/ws/sessions/{sessionID}", a.webSocketHandler())

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → limits → Timeout
		r.Use(mw.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(mw.StructuredLogger(a.Logger))
		r.Use(mw.Recoverer(a.Logger))
		r.Use(mw.DefaultSecureHeaders().Handler)

		if a.Config.Security.EnableCORS {
			r.Use(mw.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(mw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	r.Handle(config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(mw.Compress(5))
		r.Use(mw.Timeout(a.Config.Server.RequestTimeout))

		handlers.NewHealthHandler(a.HealthService, a.Logger).Routes(r)

		dashboard := handlers.NewDashboardHandler(a.Dashboard, a.validator, a.Logger, a.errorHandler)
		r.Mount("/sessions", dashboard.Routes())
	})
}

func (a *Application) webSocketHandler() http.Handler {
	queries := ws.NewQueryHandler(a.Dashboard, a.validator, a.Config.Server.RequestTimeout, a.Logger)
	return ws.NewHandler(a.ctx, a.WebSocketHub, queries, a.Dashboard, ws.HandlerOptions{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		AllowedOrigins:  a.allowedOrigins(),
		Timing: ws.Timing{
			PongWait:   a.Config.WebSocket.PongWait,
			PingPeriod: a.Config.WebSocket.PingPeriod,
		},
	}, a.errorHandler, a.Logger)
}

// getCORSConfig returns the CORS configuration for the API routes
func (a *Application) getCORSConfig() mw.CORSConfig {
	return mw.CORSConfig{
		AllowedOrigins: a.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition", "Location"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

func (a *Application) allowedOrigins() []string {
	if !a.Config.Security.EnableCORS {
		return nil
	}
	return a.Config.Security.AllowedOrigins
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// startBackground runs the session sweeper and the hub until Stop.
func (a *Application) startBackground() {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Sessions.Run(a.ctx, config.SessionSweepInterval)
	}()
	go func() {
		defer a.wg.Done()
		a.WebSocketHub.Run(a.ctx, config.SessionSweepInterval)
	}()
}

// Start starts the background workers and the HTTP server. A server
// failure cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("source", a.Config.Source.URL),
		slog.String("level", a.Config.Logging.Level))

	a.startBackground()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
	}

	// stops the sweeper and the hub; the hub disconnects every client
	a.cancel()
	a.wg.Wait()
	a.Sessions.CloseAll(shutdownCtx)

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return shutdownErr
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
