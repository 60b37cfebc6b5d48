package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	appModeration "github.com/agromonitor/fincas-geom/internal/application/moderation"
	appQuery "github.com/agromonitor/fincas-geom/internal/application/query"
	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
)

type approveRequest struct {
	CaptureID int64   `json:"id_captura"`
	Comment   *string `json:"comentario,omitempty"`
}

type rejectRequest struct {
	CaptureID int64  `json:"id_captura"`
	Comment   string `json:"comentario"`
}

func (s *Server) approveCapture(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}
	comment := ""
	if req.Comment != nil {
		comment = *req.Comment
	}
	result, err := s.moderationSvc.Approve(r.Context(), appModeration.ApproveInput{
		CaptureID:  req.CaptureID,
		Comment:    comment,
		OperatorID: operatorIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeModerationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Captura aprobada correctamente",
		"data":    result,
	})
}

func (s *Server) rejectCapture(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}
	err := s.moderationSvc.Reject(r.Context(), appModeration.RejectInput{
		CaptureID:  req.CaptureID,
		Comment:    req.Comment,
		OperatorID: operatorIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeModerationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Captura rechazada",
	})
}

func (s *Server) captureDetail(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt64(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro id inválido")
		return
	}
	c, err := s.querySvc.Detail(r.Context(), id)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    c,
	})
}

func (s *Server) capturesList(w http.ResponseWriter, r *http.Request) {
	params := appQuery.ListParams{
		Search:    r.URL.Query().Get("q"),
		Status:    r.URL.Query().Get("estado"),
		Kind:      r.URL.Query().Get("tipo"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}
	var err error
	if params.FarmID, err = optionalInt64(r, "id_finca"); err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro id_finca inválido")
		return
	}
	if params.CapturedBy, err = optionalInt64(r, "capturado_por"); err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro capturado_por inválido")
		return
	}
	if params.From, err = optionalDate(r, "fecha_desde", false); err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro fecha_desde inválido")
		return
	}
	if params.To, err = optionalDate(r, "fecha_hasta", true); err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro fecha_hasta inválido")
		return
	}
	if v := r.URL.Query().Get("page"); v != "" {
		params.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		params.PageSize, _ = strconv.Atoi(v)
	}

	items, pagination, err := s.querySvc.List(r.Context(), params)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if items == nil {
		items = []*capture.Capture{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       items,
		"pagination": pagination,
	})
}

func (s *Server) farmHistory(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt64(r, "id_finca")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Parámetro id_finca inválido")
		return
	}
	entries, err := s.querySvc.FarmHistory(r.Context(), id)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if entries == nil {
		entries = []*farm.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entries,
	})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming no soportado")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := s.hub.Subscribe(uuid.NewString())
	defer s.hub.Unsubscribe(client.ID)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-client.Messages():
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeModerationError maps approve/reject failures onto the boundary
// contract: precondition failures are 404/422, geometry rejections are 422
// with the engine's reason, everything else is an opaque 500.
func (s *Server) writeModerationError(w http.ResponseWriter, err error) {
	var rejection *appModeration.GeometryRejection
	switch {
	case errors.As(err, &rejection):
		respondError(w, http.StatusUnprocessableEntity, rejection.Reason)
	case errors.Is(err, capture.ErrNotFound):
		respondError(w, http.StatusNotFound, "Captura no encontrada")
	case errors.Is(err, capture.ErrAlreadyProcessed):
		respondError(w, http.StatusUnprocessableEntity, "La captura ya fue procesada")
	case errors.Is(err, capture.ErrMissingGeometry):
		respondError(w, http.StatusUnprocessableEntity, "La captura no tiene geometría")
	case errors.Is(err, capture.ErrInvalidArgument):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error().Err(err).Msg("moderation request failed")
		respondError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, capture.ErrNotFound):
		respondError(w, http.StatusNotFound, "No encontrado")
	default:
		s.logger.Error().Err(err).Msg("query request failed")
		respondError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func queryInt64(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	return strconv.ParseInt(v, 10, 64)
}

func optionalInt64(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// optionalDate parses a YYYY-MM-DD query parameter. endOfDay moves the bound
// to the end of the named day so fecha_hasta is inclusive.
func optionalDate(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
