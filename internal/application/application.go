package application

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/eugenenazirov/st2actioncontroller/internal/api"
	"github.com/eugenenazirov/st2actioncontroller/internal/config"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
}

// New initializes the application from the resolved configuration.
func New(cfg config.Config, options api.OptionReader, logger *zap.Logger) (*App, error) {
	if options == nil {
		return nil, errors.New("option reader is required")
	}

	apiRouter := api.NewRouter(api.NewHandler(options), logger,
		api.WithLogging(cfg.API.RequestLogging),
		api.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	)

	rootHandler := BuildRootHandler(apiRouter, cfg.Pecan.StaticRoot, logger)

	return &App{
		logger: logger,
		server: NewServer(cfg.API, rootHandler),
	}, nil
}

// BuildRootHandler routes API requests and serves static assets from
// staticRoot when that directory exists.
func BuildRootHandler(apiHandler http.Handler, staticRoot string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)

	if info, err := os.Stat(staticRoot); err == nil && info.IsDir() {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticRoot))))
	} else {
		logger.Debug("static root unavailable, not serving assets", zap.String("static_root", staticRoot))
	}

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/config", http.StatusFound)
	}))

	return mux
}

// NewServer creates and configures an HTTP server from the API options.
func NewServer(cfg config.APIConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listen address and serves in a goroutine. Bind errors are returned.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.listener = ln

	go func() {
		a.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
