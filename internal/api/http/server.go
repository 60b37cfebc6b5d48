package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	appModeration "github.com/agromonitor/fincas-geom/internal/application/moderation"
	appQuery "github.com/agromonitor/fincas-geom/internal/application/query"
	"github.com/agromonitor/fincas-geom/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	moderationSvc *appModeration.Service
	querySvc      *appQuery.Service
	hub           *sse.Hub
	apiTokens     []string
	logger        zerolog.Logger
}

func NewServer(
	moderationSvc *appModeration.Service,
	querySvc *appQuery.Service,
	hub *sse.Hub,
	apiTokens []string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		moderationSvc: moderationSvc,
		querySvc:      querySvc,
		hub:           hub,
		apiTokens:     apiTokens,
		logger:        logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Recurso no encontrado")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Método no permitido")
	})

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/fincas-geom", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/capture-approve", s.approveCapture)
			r.Post("/capture-reject", s.rejectCapture)
			r.Get("/capture-detail", s.captureDetail)
			r.Get("/captures-list", s.capturesList)
			r.Get("/finca-history", s.farmHistory)
		})
		// The feed stays open until the client disconnects, so it sits
		// outside the request timeout.
		r.Get("/stream", s.stream)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "ok"})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError emits the uniform failure envelope shared by every endpoint.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
