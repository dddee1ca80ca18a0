// Package api exposes the gift pipeline over HTTP: batch orchestration,
// single-item stage operations, CSV import/export and the approval webhook.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"giftflow/internal/orchestrator"
	"giftflow/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxUploadBytes caps request bodies, CSV uploads included.
const maxUploadBytes = 10 << 20

// Server holds the HTTP handlers' dependencies.
type Server struct {
	engine         *orchestrator.Engine
	store          store.Store
	logger         *zap.Logger
	requestTimeout time.Duration
}

// NewServer creates the API server.
func NewServer(engine *orchestrator.Engine, st store.Store, logger *zap.Logger, requestTimeout time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, store: st, logger: logger, requestTimeout: requestTimeout}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// A batch runs to completion once started, so it sits outside the
		// request timeout.
		r.Post("/orchestrate", s.handleOrchestrate)

		r.Group(func(r chi.Router) {
			if s.requestTimeout > 0 {
				r.Use(middleware.Timeout(s.requestTimeout))
			}

			r.Route("/gifts", func(r chi.Router) {
				r.Get("/", s.handleListGifts)
				r.Post("/", s.handleImportGifts)
				r.Delete("/", s.handleClearGifts)
				r.Get("/export", s.handleExportGifts)
				r.Get("/{id}", s.handleGetGift)
				r.Patch("/{id}", s.handlePatchGift)
			})

			r.Post("/discover", s.stageHandler(s.engine.Discover))
			r.Post("/order", s.stageHandler(s.engine.Order))
			r.Post("/riddle", s.stageHandler(s.engine.Riddle))
			r.Post("/card", s.stageHandler(s.engine.Card))

			r.Post("/webhook", s.handleWebhook)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// =============================================================================
// RESPONSES
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
