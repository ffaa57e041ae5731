package teamsite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-barry/teamsite/core"
)

type mockReloader struct {
	closed bool
}

func (m *mockReloader) BroadcastReload() {}
func (m *mockReloader) Handler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("reload ok"))
}
func (m *mockReloader) Close() error {
	m.closed = true
	return nil
}

func stubCore(t *testing.T, cfg core.Config, router http.Handler) *mockReloader {
	t.Helper()

	originalLoadConfig := core.LoadConfig
	originalNewRouter := core.NewRouter
	originalNewLiveReloader := core.NewLiveReloader
	t.Cleanup(func() {
		core.LoadConfig = originalLoadConfig
		core.NewRouter = originalNewRouter
		core.NewLiveReloader = originalNewLiveReloader
	})

	core.LoadConfig = func(path string) (*core.Config, error) {
		c := cfg
		return &c, nil
	}
	if router != nil {
		core.NewRouter = func(c core.Config, ctx core.RuntimeContext) http.Handler {
			return router
		}
	}

	reloader := &mockReloader{}
	core.NewLiveReloader = func() core.LiveReloaderInterface {
		return reloader
	}
	return reloader
}

func tempConfig(t *testing.T) core.Config {
	return core.Config{
		OutputDir:   t.TempDir(),
		TemplateDir: t.TempDir(),
		PublicDir:   t.TempDir(),
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := map[string]string{
		"file.css":     "text/css",
		"script.js":    "application/javascript",
		"image.webp":   "image/webp",
		"icon.svg":     "image/svg+xml",
		"photo.png":    "image/png",
		"photo.jpeg":   "image/jpeg",
		"favicon.ico":  "image/x-icon",
		"robots.txt":   "text/plain; charset=utf-8",
		"font.woff":    "font/woff",
		"font.woff2":   "font/woff2",
		"unknown.file": "application/octet-stream",
	}

	for filename, expected := range tests {
		t.Run(filename, func(t *testing.T) {
			mime := detectMimeType(filename)
			if mime != expected {
				t.Errorf("got %s, want %s", mime, expected)
			}
		})
	}
}

func TestAcceptsGzip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	if !acceptsGzip(req) {
		t.Error("expected true for Accept-Encoding with gzip")
	}

	req.Header.Set("Accept-Encoding", "br")
	if acceptsGzip(req) {
		t.Error("expected false for Accept-Encoding without gzip")
	}
}

func TestServeFileWithHeaders(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "data.bin")
	content := "Hello, team!"
	_ = os.WriteFile(filePath, []byte(content), 0644)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/static/data.bin", nil)

	serveFileWithHeaders(rec, req, filePath, "no-cache")

	resp := rec.Result()
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("unexpected content-type: %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("unexpected cache-control: %s", cc)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != content {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestServeFileWithHeaders_MissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)

	serveFileWithHeaders(rec, req, filepath.Join(t.TempDir(), "favicon.ico"), "no-store")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMakeStaticHandlerReturns404ForMissingFile(t *testing.T) {
	handler := makeStaticHandler(t.TempDir(), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/static/missing.txt", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMakeStaticHandlerServesPublicFile(t *testing.T) {
	publicDir := t.TempDir()
	expected := "Hello from public!"
	_ = os.WriteFile(filepath.Join(publicDir, "hello.txt"), []byte(expected), 0644)

	handler := makeStaticHandler(publicDir, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/static/hello.txt", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != immutableCache {
		t.Errorf("unexpected cache-control: %s", cc)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != expected {
		t.Errorf("expected body %q, got %q", expected, body)
	}
}

func TestMakeStaticHandlerRejectsTraversal(t *testing.T) {
	handler := makeStaticHandler(t.TempDir(), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/static/../secrets.txt", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 Bad Request, got %d", rec.Code)
	}
}

func TestMakeStaticHandlerServesGzipFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(cacheDir, "script.js.gz"), []byte("gzipped content"), 0644)

	handler := makeStaticHandler(t.TempDir(), cacheDir)

	req := httptest.NewRequest(http.MethodGet, "/static/script.js", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	resp := rec.Result()
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Error("expected gzip Content-Encoding")
	}
	if resp.Header.Get("Vary") != "Accept-Encoding" {
		t.Error("expected Vary: Accept-Encoding header")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("expected javascript content type, got %s", ct)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", resp.StatusCode)
	}
}

func TestMakeStaticHandlerServesNonGzipCacheFile(t *testing.T) {
	cacheDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(cacheDir, "styles.css"), []byte("cached css"), 0644)

	handler := makeStaticHandler(t.TempDir(), cacheDir)

	req := httptest.NewRequest(http.MethodGet, "/static/styles.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	resp := rec.Result()
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") != "" {
		t.Error("did not expect Content-Encoding for non-gzip file")
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "cached css" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestMakeStaticHandlerStripsQueryParams(t *testing.T) {
	publicDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(publicDir, "main.js"), []byte("main js"), 0644)

	handler := makeStaticHandler(publicDir, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/static/main.js?v=1234", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != "main js" {
		t.Errorf("expected file body to match, got %q", body)
	}
}

func TestSetupDevStaticRoutesFaviconAndRobots(t *testing.T) {
	publicDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(publicDir, "favicon.ico"), []byte("icon"), 0644)
	_ = os.WriteFile(filepath.Join(publicDir, "robots.txt"), []byte("robots"), 0644)

	mux := http.NewServeMux()
	setupDevStaticRoutes(mux, publicDir)

	tests := []struct {
		path     string
		expected string
	}{
		{"/favicon.ico", "icon"},
		{"/robots.txt", "robots"},
	}

	for _, test := range tests {
		req := httptest.NewRequest(http.MethodGet, test.path, nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if body := rec.Body.String(); body != test.expected {
			t.Errorf("expected %q, got %q", test.expected, body)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
			t.Errorf("expected Cache-Control: no-store for %s, got %s", test.path, cc)
		}
	}
}

func TestDevStaticRoutes_FileServerAddsNoStore(t *testing.T) {
	publicDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(publicDir, "test.js"), []byte("content"), 0644)

	mux := http.NewServeMux()
	setupDevStaticRoutes(mux, publicDir)

	req := httptest.NewRequest(http.MethodGet, "/static/test.js", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Body.String() != "content" {
		t.Errorf("expected file content, got %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected 'no-store', got %q", cc)
	}
}

func TestBuildServerInDev(t *testing.T) {
	reloader := stubCore(t, tempConfig(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "router ok")
	}))

	server, err := BuildServer(RuntimeConfig{Env: "dev", EnableCache: true, Port: 3001})
	if err != nil {
		t.Fatalf("BuildServer failed: %v", err)
	}

	if server.Addr != ":3001" {
		t.Errorf("expected :3001, got %s", server.Addr)
	}

	req := httptest.NewRequest(http.MethodGet, core.ReloadPath, nil)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "reload ok" {
		t.Errorf("expected 'reload ok', got %q", body)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	if !reloader.closed {
		t.Error("expected live reloader to be closed with the server")
	}
}

func TestBuildServerInProd(t *testing.T) {
	cfg := tempConfig(t)
	_ = os.WriteFile(filepath.Join(cfg.PublicDir, "favicon.ico"), []byte("icon"), 0644)
	_ = os.WriteFile(filepath.Join(cfg.PublicDir, "robots.txt"), []byte("robots"), 0644)

	stubCore(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "router")
	}))

	server, err := BuildServer(RuntimeConfig{Env: "prod", Host: "127.0.0.1", Port: 1234})
	if err != nil {
		t.Fatalf("BuildServer failed: %v", err)
	}
	defer server.Close()

	if server.Addr != "127.0.0.1:1234" {
		t.Errorf("expected 127.0.0.1:1234, got %s", server.Addr)
	}

	tests := []struct {
		path     string
		expected string
	}{
		{"/favicon.ico", "icon"},
		{"/robots.txt", "robots"},
		{"/", "router"},
	}

	for _, test := range tests {
		req := httptest.NewRequest(http.MethodGet, test.path, nil)
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)

		if body := rec.Body.String(); body != test.expected {
			t.Errorf("for %s: expected %q, got %q", test.path, test.expected, body)
		}
	}

	req := httptest.NewRequest(http.MethodGet, core.ReloadPath, nil)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	if rec.Body.String() == "reload ok" {
		t.Error("live reload endpoint must not exist in prod")
	}
}

func TestBuildServerConfigError(t *testing.T) {
	original := core.LoadConfig
	defer func() { core.LoadConfig = original }()

	core.LoadConfig = func(path string) (*core.Config, error) {
		return nil, errors.New("bad config")
	}

	if _, err := BuildServer(RuntimeConfig{Env: "prod", Port: 1}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestBuildServerServesSitePages(t *testing.T) {
	cfg := tempConfig(t)
	_ = os.WriteFile(filepath.Join(cfg.TemplateDir, "home.html"), []byte(`<ul>{{ range .Team }}<li>{{ . }}</li>{{ end }}</ul>`), 0644)
	_ = os.WriteFile(filepath.Join(cfg.TemplateDir, "blog.html"), []byte(`<h1>Blog</h1>`), 0644)

	stubCore(t, cfg, nil)

	server, err := BuildServer(RuntimeConfig{Env: "prod", Port: 8080})
	if err != nil {
		t.Fatalf("BuildServer failed: %v", err)
	}
	defer server.Close()

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "<li>Arslan</li><li>Muneer</li><li>Mahima</li><li>Shakshi</li>"},
		{"/blog", http.StatusOK, "<h1>Blog</h1>"},
		{"/missing", http.StatusNotFound, ""},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))

		if rec.Code != c.status {
			t.Errorf("%s: expected %d, got %d", c.path, c.status, rec.Code)
		}
		if c.body != "" && !strings.Contains(rec.Body.String(), c.body) {
			t.Errorf("%s: expected body to contain %q, got %q", c.path, c.body, rec.Body.String())
		}
	}
}

func TestBuildServerHonoursCacheSetting(t *testing.T) {
	cases := []struct {
		env         string
		enableCache bool
		configCache bool
		wantCached  bool
	}{
		{"prod", true, true, true},
		{"prod", true, false, false},
		{"dev", false, true, false},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%s/config=%v", c.env, c.configCache), func(t *testing.T) {
			cfg := tempConfig(t)
			cfg.CacheEnabled = c.configCache
			_ = os.WriteFile(filepath.Join(cfg.TemplateDir, "blog.html"), []byte(`<h1>Blog</h1>`), 0644)

			stubCore(t, cfg, nil)

			server, err := BuildServer(RuntimeConfig{Env: c.env, EnableCache: c.enableCache, Port: 8080})
			if err != nil {
				t.Fatalf("BuildServer failed: %v", err)
			}
			defer server.Close()

			rec := httptest.NewRecorder()
			server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}

			_, err = os.Stat(filepath.Join(cfg.OutputDir, "blog", "index.html"))
			if cached := err == nil; cached != c.wantCached {
				t.Errorf("cached = %v, want %v", cached, c.wantCached)
			}
		})
	}
}

func TestWriteTimeoutOutlastsHandlerTimeout(t *testing.T) {
	if writeTimeout <= core.HandlerTimeout {
		t.Errorf("write timeout %s must exceed handler timeout %s", writeTimeout, core.HandlerTimeout)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	stubCore(t, tempConfig(t), http.NotFoundHandler())

	original := ListenAndServe
	defer func() { ListenAndServe = original }()

	var gotAddr string
	ListenAndServe = func(srv *http.Server) error {
		gotAddr = srv.Addr
		stopped := make(chan struct{})
		srv.RegisterOnShutdown(func() { close(stopped) })
		<-stopped
		return http.ErrServerClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, RuntimeConfig{Env: "prod", Port: 4321})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if gotAddr != ":4321" {
		t.Errorf("expected addr ':4321', got %q", gotAddr)
	}
}

func TestStart_ExitsOnServerFailure(t *testing.T) {
	stubCore(t, tempConfig(t), http.NotFoundHandler())

	var exited bool
	var exitCode int

	originalExit := Exit
	originalListenAndServe := ListenAndServe
	defer func() {
		Exit = originalExit
		ListenAndServe = originalListenAndServe
	}()

	Exit = func(code int) {
		exited = true
		exitCode = code
	}

	ListenAndServe = func(srv *http.Server) error {
		return fmt.Errorf("simulated server failure")
	}

	r, w, _ := os.Pipe()
	stdErrBackup := os.Stderr
	os.Stderr = w

	Start(RuntimeConfig{Env: "prod", Port: 1234})

	_ = w.Close()
	os.Stderr = stdErrBackup
	buf, _ := io.ReadAll(r)
	stderr := string(buf)

	if !exited {
		t.Fatal("expected Exit to be called")
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr, "❌ Server failed: simulated server failure") {
		t.Errorf("unexpected stderr output: %q", stderr)
	}
}
