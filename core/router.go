package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// HandlerTimeout bounds page handlers. The server's WriteTimeout must be
// longer for the 504 to reach the client.
const HandlerTimeout = 10 * time.Second

// PageRoute binds a URL path to a page template. Data, when set, builds the
// template's data context for each request; returning ErrNotFound turns the
// request into a 404.
type PageRoute struct {
	Path     string
	Template string
	Data     func(*http.Request) (map[string]interface{}, error)
}

type RuntimeContext struct {
	Env    string
	Logger *slog.Logger
}

type Router struct {
	config   Config
	env      string
	logger   *slog.Logger
	renderer *Renderer
	routes   []PageRoute
	mux      chi.Router
}

// Pages lists the site's routes.
func Pages() []PageRoute {
	return []PageRoute{
		{Path: "/", Template: "home.html", Data: homeData},
		{Path: "/blog", Template: "blog.html"},
	}
}

func homeData(*http.Request) (map[string]interface{}, error) {
	return map[string]interface{}{"Team": TeamMembers()}, nil
}

var NewRouter = func(config Config, ctx RuntimeContext) http.Handler {
	return newRouter(config, ctx, Pages())
}

func newRouter(config Config, ctx RuntimeContext, routes []PageRoute) *Router {
	logger := ctx.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		config:   config,
		env:      ctx.Env,
		logger:   logger,
		renderer: NewRenderer(config, ctx.Env),
		routes:   routes,
	}
	r.mux = r.buildMux()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) buildMux() chi.Router {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.GetHead)
	mux.Use(middleware.Timeout(HandlerTimeout))

	for _, route := range r.routes {
		mux.Get(route.Path, r.pageHandler(route))
	}
	mux.Get("/healthz", r.health)
	mux.NotFound(r.notFound)

	return mux
}

func (r *Router) pageHandler(route PageRoute) http.HandlerFunc {
	routeKey := CacheKey(route.Path)

	return func(w http.ResponseWriter, req *http.Request) {
		if r.config.CacheEnabled {
			if html, ok := GetCachedHTML(r.config, routeKey); ok {
				r.writePage(w, req, route, html, "HIT")
				return
			}
		}

		data := map[string]interface{}{}
		if route.Data != nil {
			result, err := route.Data(req)
			if errors.Is(err, ErrNotFound) {
				r.notFound(w, req)
				return
			}
			if err != nil {
				r.fail(w, req, route, err)
				return
			}
			data = result
		}

		html, err := r.renderer.Render(route.Template, data)
		if err != nil {
			r.fail(w, req, route, err)
			return
		}

		if r.config.CacheEnabled {
			if err := SaveCachedHTML(r.config, routeKey, html); err != nil {
				r.logger.WarnContext(req.Context(), "cache write failed", "route", route.Path, "error", err)
			}
		}

		r.writePage(w, req, route, html, "MISS")
	}
}

func (r *Router) writePage(w http.ResponseWriter, req *http.Request, route PageRoute, html []byte, cacheStatus string) {
	etag := generateETag(html)

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("ETag", etag)
	if r.env == "dev" {
		h.Set("Cache-Control", "no-store")
	}
	if r.config.DebugHeaders {
		h.Set("X-Teamsite-Route", route.Template)
		if r.config.CacheEnabled {
			h.Set("X-Teamsite-Cache", cacheStatus)
		}
	}

	if etagMatches(req.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(html); err != nil {
		r.logger.DebugContext(req.Context(), "write response", "route", route.Path, "error", err)
	}
}

// fail reports a render failure. Details stay in the log; the client gets a
// generic 500.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, route PageRoute, err error) {
	r.logger.ErrorContext(req.Context(), "render failed",
		"route", route.Path,
		"template", route.Template,
		"error", err,
		"request_id", middleware.GetReqID(req.Context()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	html, err := r.renderer.Render("404.html", map[string]interface{}{"Path": req.URL.Path})
	if err != nil {
		if !IsNotFoundError(err) {
			r.logger.ErrorContext(req.Context(), "render 404 page", "error", err)
		}
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(html)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	render.Status(req, http.StatusOK)
	render.JSON(w, req, map[string]string{"status": "ok"})
}

func generateETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:])[:16] + `"`
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
