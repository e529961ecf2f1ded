package http

import (
	"log/slog"
	"net/http"
	"time"

	"concurso-study-service/internal/app"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP surface: health probe, JSON API and session websocket.
func NewRouter(quiz *app.QuizService, tools *app.ToolsService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	ws := NewWSHandler(quiz, logger)
	NewAPIHandler(quiz, tools, ws, logger).RegisterRoutes(r)
	return r
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
