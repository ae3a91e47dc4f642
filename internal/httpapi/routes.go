package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wjkim9/fantasy11-draft-backend/internal/hub"
	"github.com/wjkim9/fantasy11-draft-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Post("/sessions", CreateSession(h, log))
	r.Post("/sessions/{code}/start", StartSession(h))
	r.Post("/sessions/{code}/cancel", CancelSession(h))
	r.Get("/sessions/{code}", GetSnapshot(h))
	r.Get("/sessions/{code}/claims", GetClaims(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	return r
}
