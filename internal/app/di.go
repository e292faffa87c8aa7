// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/qbdrelay/internal/config"
	"github.com/allisson/qbdrelay/internal/http"
	"github.com/allisson/qbdrelay/internal/metrics"
	"github.com/allisson/qbdrelay/internal/poller"
	"github.com/allisson/qbdrelay/internal/session"
	stagingHTTP "github.com/allisson/qbdrelay/internal/staging/http"
	"github.com/allisson/qbdrelay/internal/staging/repository"
	stagingUseCase "github.com/allisson/qbdrelay/internal/staging/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger       *slog.Logger
	store        *repository.BlobStore
	storeCleanup func()

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Session correlation
	sessionStore *session.Store

	// Use Cases
	stagingUseCase stagingUseCase.StagingUseCase

	// Handlers
	stagingHandler *stagingHTTP.StagingHandler

	// Servers and Workers
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	dispatcher    *poller.Poller

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	storeInit           sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	sessionStoreInit    sync.Once
	stagingUseCaseInit  sync.Once
	stagingHandlerInit  sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	dispatcherInit      sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Store returns the staging object store.
// It opens the configured bucket on first access.
func (c *Container) Store() (*repository.BlobStore, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, c.storeCleanup, err = repository.OpenBlobStore(context.Background(), c.config.BlobBucketURL)
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["store"]; exists {
		return nil, storedErr
	}
	return c.store, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
// Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// SessionStore returns the session correlation store.
func (c *Container) SessionStore() (*session.Store, error) {
	var err error
	c.sessionStoreInit.Do(func() {
		var store *repository.BlobStore
		store, err = c.Store()
		if err != nil {
			c.initErrors["sessionStore"] = err
			return
		}
		c.sessionStore = session.NewStore(store)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionStore"]; exists {
		return nil, storedErr
	}
	return c.sessionStore, nil
}

// StagingUseCase returns the staging engine instance.
func (c *Container) StagingUseCase() (stagingUseCase.StagingUseCase, error) {
	var err error
	c.stagingUseCaseInit.Do(func() {
		c.stagingUseCase, err = c.initStagingUseCase()
		if err != nil {
			c.initErrors["stagingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stagingUseCase"]; exists {
		return nil, storedErr
	}
	return c.stagingUseCase, nil
}

// StagingHandler returns the HTTP handler for the staging API.
func (c *Container) StagingHandler() (*stagingHTTP.StagingHandler, error) {
	var err error
	c.stagingHandlerInit.Do(func() {
		c.stagingHandler, err = c.initStagingHandler()
		if err != nil {
			c.initErrors["stagingHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stagingHandler"]; exists {
		return nil, storedErr
	}
	return c.stagingHandler, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Poller returns the dispatch poller instance.
func (c *Container) Poller() (*poller.Poller, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initPoller()
		if err != nil {
			c.initErrors["poller"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["poller"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close the bucket if opened
	if c.storeCleanup != nil {
		c.storeCleanup()
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initStagingUseCase creates the staging engine with all its dependencies.
func (c *Container) initStagingUseCase() (stagingUseCase.StagingUseCase, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for staging use case: %w", err)
	}

	sessions, err := c.SessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get session store for staging use case: %w", err)
	}

	engine := stagingUseCase.NewEngine(store, sessions, c.Logger())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for staging use case: %w", err)
		}
		return stagingUseCase.NewStagingUseCaseWithMetrics(engine, businessMetrics), nil
	}

	return engine, nil
}

// initStagingHandler creates the staging HTTP handler with all its dependencies.
func (c *Container) initStagingHandler() (*stagingHTTP.StagingHandler, error) {
	useCase, err := c.StagingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get staging use case for staging handler: %w", err)
	}

	return stagingHTTP.NewStagingHandler(useCase, c.config.Origin, c.Logger()), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for http server: %w", err)
	}

	stagingHandler, err := c.StagingHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get staging handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(store, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(http.RouterConfig{
		StagingHandler:          stagingHandler,
		MetricsProvider:         metricsProvider,
		MetricsNamespace:        c.config.MetricsNamespace,
		CORSEnabled:             c.config.CORSEnabled,
		CORSAllowOrigins:        c.config.CORSAllowOrigins,
		RateLimitEnabled:        c.config.RateLimitEnabled,
		RateLimitRequestsPerSec: c.config.RateLimitRequestsPerSec,
		RateLimitBurst:          c.config.RateLimitBurst,
	})

	return server, nil
}

// initMetricsServer creates the metrics server with all its dependencies.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}

// initPoller creates the dispatch poller with all its dependencies.
func (c *Container) initPoller() (*poller.Poller, error) {
	useCase, err := c.StagingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get staging use case for poller: %w", err)
	}

	logger := c.Logger()
	pollerConfig := poller.Config{
		Interval:      c.config.PollInterval,
		Origin:        c.config.Origin,
		ConnectionIDs: c.config.ConnectionIDs,
	}

	return poller.New(pollerConfig, useCase, poller.NewLogRequestBuilder(logger), logger), nil
}
