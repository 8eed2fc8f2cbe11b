package cli

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/coachpay/internal/app"
	"github.com/felixgeelhaar/coachpay/pkg/config"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

// App holds the CLI application dependencies. The container is built on
// first use so commands like version run without a database.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	logConfig observability.LogConfig

	mu        sync.Mutex
	container *app.Container
}

// NewApp creates the CLI application.
func NewApp(cfg *config.Config, logConfig observability.LogConfig) *App {
	return &App{
		Config:    cfg,
		Logger:    observability.NewLogger(logConfig),
		logConfig: logConfig,
	}
}

// LogConfigFor derives the logger settings from configuration.
func LogConfigFor(cfg *config.Config) observability.LogConfig {
	logConfig := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logConfig = observability.ProductionLogConfig()
	}
	if cfg.LogLevel != "" {
		logConfig.Level = observability.LogLevel(cfg.LogLevel)
	}
	logConfig.ServiceVersion = Version
	return logConfig
}

// EnableDebug switches the logger to debug level.
func (a *App) EnableDebug() {
	a.logConfig.Level = observability.LogLevelDebug
	a.Logger = observability.NewLogger(a.logConfig)
}

// Container returns the dependency container, building it on first call.
func (a *App) Container(ctx context.Context) (*app.Container, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.container != nil {
		return a.container, nil
	}
	c, err := app.NewContainer(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.container = c
	return c, nil
}

// Close releases the container if one was built.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.container != nil {
		a.container.Close()
		a.container = nil
	}
}

var (
	currentApp *App

	errAppNotInitialized = errors.New("app not initialized")
)

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	currentApp = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return currentApp
}

// containerFor resolves the container for a running command.
func containerFor(ctx context.Context) (*app.Container, error) {
	a := GetApp()
	if a == nil {
		return nil, errAppNotInitialized
	}
	return a.Container(ctx)
}
