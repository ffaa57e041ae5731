package teamsite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-barry/teamsite/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout = 30 * time.Second
	reloadDebounce  = 100 * time.Millisecond
	immutableCache  = "public, max-age=31536000, immutable"
	writeTimeout    = core.HandlerTimeout + 5*time.Second
)

type RuntimeConfig struct {
	Env         string
	EnableCache bool
	Host        string
	Port        int
}

// Server is a fully wired handler plus the background resources (watcher,
// live reload clients) that must be released when it stops.
type Server struct {
	Addr    string
	Handler http.Handler
	Logger  *slog.Logger
	closers []func() error
}

func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var ListenAndServe = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

var Exit = os.Exit

var Start = func(cfg RuntimeConfig) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "❌ Server failed:", err)
		Exit(1)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	server, err := BuildServer(cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	srv := &http.Server{
		Addr:         server.Addr,
		Handler:      server.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	fmt.Println("Starting teamsite in", cfg.Env, "mode...")
	fmt.Printf("✅ teamsite running at http://%s\n", displayAddr(cfg))

	serverErrors := make(chan error, 1)
	go func() {
		server.Logger.Info("server starting", "addr", srv.Addr, "env", cfg.Env)
		serverErrors <- ListenAndServe(srv)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		server.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	server.Logger.Info("server shut down gracefully")
	return nil
}

func BuildServer(cfg RuntimeConfig) (*Server, error) {
	config, err := core.LoadConfig(core.ConfigFile)
	if err != nil {
		return nil, err
	}
	// The config file can only turn the cache off.
	config.CacheEnabled = cfg.EnableCache && config.CacheEnabled

	logger := core.NewLogger(*config, os.Stdout)
	server := &Server{
		Addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Logger: logger,
	}

	mux := http.NewServeMux()

	if cfg.Env == "dev" {
		setupDevStaticRoutes(mux, config.PublicDir)

		reloader := core.NewLiveReloader()
		mux.HandleFunc(core.ReloadPath, reloader.Handler)
		server.closers = append(server.closers, reloader.Close)

		watcher, err := core.NewWatcher(
			[]string{config.TemplateDir, config.PublicDir},
			reloadDebounce,
			reloader.BroadcastReload,
			logger,
		)
		if err != nil {
			logger.Warn("live reload disabled", "error", err)
		} else {
			server.closers = append(server.closers, watcher.Close)
		}
	} else {
		setupProdStaticRoutes(mux, config.PublicDir, filepath.Join(config.OutputDir, "static"))
	}

	mux.Handle("/", core.NewRouter(*config, core.RuntimeContext{
		Env:    cfg.Env,
		Logger: logger,
	}))

	server.Handler = chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		core.RequestLogger(logger),
		middleware.Recoverer,
	).Handler(mux)

	return server, nil
}

func displayAddr(cfg RuntimeConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

func setupDevStaticRoutes(mux *http.ServeMux, publicDir string) {
	fileServer := http.FileServer(http.Dir(publicDir))
	mux.Handle("/static/", http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		fileServer.ServeHTTP(w, r)
	})))

	for _, name := range []string{"favicon.ico", "robots.txt"} {
		path := filepath.Join(publicDir, name)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			serveFileWithHeaders(w, r, path, "no-store")
		})
	}
}

func setupProdStaticRoutes(mux *http.ServeMux, publicDir, cacheDir string) {
	mux.Handle("/static/", makeStaticHandler(publicDir, cacheDir))

	for _, name := range []string{"favicon.ico", "robots.txt"} {
		path := filepath.Join(publicDir, name)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			serveFileWithHeaders(w, r, path, immutableCache)
		})
	}
}

// makeStaticHandler serves /static/ from the cache dir first (gzip when the
// client accepts it) and falls back to the public dir.
func makeStaticHandler(publicDir, cacheDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/static/")
		if rel == "" || strings.Contains(rel, "..") {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		cachedFile := filepath.Join(cacheDir, filepath.FromSlash(rel))

		if acceptsGzip(r) {
			if _, err := os.Stat(cachedFile + ".gz"); err == nil {
				w.Header().Set("Content-Type", detectMimeType(cachedFile))
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Set("Vary", "Accept-Encoding")
				serveFileWithHeaders(w, r, cachedFile+".gz", immutableCache)
				return
			}
		}

		if isRegularFile(cachedFile) {
			serveFileWithHeaders(w, r, cachedFile, immutableCache)
			return
		}

		publicFile := filepath.Join(publicDir, filepath.FromSlash(rel))
		if isRegularFile(publicFile) {
			serveFileWithHeaders(w, r, publicFile, immutableCache)
			return
		}

		http.NotFound(w, r)
	})
}

func serveFileWithHeaders(w http.ResponseWriter, r *http.Request, path, cacheControl string) {
	if !isRegularFile(path) {
		http.NotFound(w, r)
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", detectMimeType(path))
	}
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeFile(w, r, path)
}

func detectMimeType(path string) string {
	switch filepath.Ext(path) {
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}
