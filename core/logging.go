package core

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

func NewLogger(config Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if config.DebugLogs {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// RequestLogger writes one structured line per served request.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", loggedStatus(ww, r),
				"duration_ms", time.Since(t1).Milliseconds(),
				"bytes_written", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}

		return http.HandlerFunc(fn)
	}
}

// loggedStatus fills in the status a wrapped writer never saw: 101 for a
// hijacked websocket upgrade, 200 for a handler that wrote nothing.
func loggedStatus(ww middleware.WrapResponseWriter, r *http.Request) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	if websocket.IsWebSocketUpgrade(r) {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}
