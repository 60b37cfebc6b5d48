package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/agromonitor/fincas-geom/internal/domain/audit"
	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

// DefaultApproveComment is stored when the operator approves without leaving
// a comment.
const DefaultApproveComment = "Aprobada"

// nonArealMessage is the fixed rejection reason for valid geometries that do
// not enclose an area.
const nonArealMessage = "La geometría de la finca debe ser de tipo Polygon o MultiPolygon"

var (
	approvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fincas_geom_captures_approved_total",
		Help: "Captures promoted to the authoritative farm geometry.",
	})
	rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fincas_geom_captures_rejected_total",
		Help: "Captures rejected by an operator.",
	})
	geometryRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fincas_geom_captures_geometry_rejected_total",
		Help: "Approve calls that committed a rejection due to invalid or non-areal geometry.",
	})
)

// GeometryRejection reports an approve call that committed the capture as
// REJECTED. It is a recorded outcome, not a transaction failure: the caller
// must not retry.
type GeometryRejection struct {
	Reason string
}

func (e *GeometryRejection) Error() string {
	return e.Reason
}

// AuditLogger records moderation decisions.
type AuditLogger interface {
	Log(ctx context.Context, entry *audit.Entry)
}

// Broadcaster pushes committed decisions to connected moderation screens.
type Broadcaster interface {
	Broadcast(event string, data []byte)
}

// ApproveInput carries one approve request.
type ApproveInput struct {
	CaptureID  int64
	Comment    string
	OperatorID *int64
}

// RejectInput carries one reject request. Comment is required.
type RejectInput struct {
	CaptureID  int64
	Comment    string
	OperatorID *int64
}

// Service implements the approval and rejection workflows.
type Service struct {
	repo   capture.Repository
	audits AuditLogger
	events Broadcaster
	srid   int
	logger zerolog.Logger
}

// NewService creates a moderation service. audits and events may be nil.
func NewService(repo capture.Repository, audits AuditLogger, events Broadcaster, srid int, logger zerolog.Logger) *Service {
	if srid == 0 {
		srid = geometry.SRIDWGS84
	}
	return &Service{
		repo:   repo,
		audits: audits,
		events: events,
		srid:   srid,
		logger: logger.With().Str("service", "moderation").Logger(),
	}
}

// Result is returned on a successful promotion.
type Result struct {
	AreaHectares float64         `json:"area_hectareas"`
	GeometryType string          `json:"geometry_type"`
	GeoJSON      json.RawMessage `json:"geom_geojson"`
}

// Approve runs the approval workflow for one capture. A valid areal geometry
// promotes the capture into the farm record and appends a history entry; an
// invalid or non-areal geometry commits the capture as REJECTED and returns
// *GeometryRejection. NotFound, AlreadyProcessed and MissingGeometry roll the
// transaction back without mutating state.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (*Result, error) {
	if in.CaptureID <= 0 {
		return nil, fmt.Errorf("%w: id_captura must be a positive integer", capture.ErrInvalidArgument)
	}

	var (
		result    *Result
		rejection *GeometryRejection
		locked    *capture.Capture
		stored    string
	)
	err := s.repo.Moderate(ctx, func(tx capture.ModerationTx) error {
		c, err := tx.LockCapture(ctx, in.CaptureID)
		if err != nil {
			return err
		}
		if c == nil {
			return capture.ErrNotFound
		}
		locked = c
		if !c.Status.Pending() {
			return capture.ErrAlreadyProcessed
		}
		if strings.TrimSpace(c.WKT) == "" {
			return capture.ErrMissingGeometry
		}

		v, err := tx.ValidateGeometry(ctx, c.WKT, s.srid)
		if err != nil {
			return err
		}

		comment := strings.TrimSpace(in.Comment)
		if !v.Valid {
			reason := "geometría inválida"
			if v.Reason != nil && *v.Reason != "" {
				reason = *v.Reason
			}
			if comment == "" {
				comment = reason
			}
			if err := tx.MarkProcessed(ctx, c.ID, capture.StatusRejected, comment); err != nil {
				return err
			}
			stored = comment
			rejection = &GeometryRejection{Reason: reason}
			return nil
		}
		if !v.Areal() {
			if comment == "" {
				comment = nonArealMessage
			}
			if err := tx.MarkProcessed(ctx, c.ID, capture.StatusRejected, comment); err != nil {
				return err
			}
			stored = comment
			rejection = &GeometryRejection{Reason: nonArealMessage}
			return nil
		}

		areaHa := geometry.HectaresFromSquareMeters(*v.AreaSquareMeters)
		if comment == "" {
			comment = DefaultApproveComment
		}
		entry := &farm.HistoryEntry{
			FarmID:       c.FarmID,
			WKT:          c.WKT,
			SRID:         s.srid,
			AreaHectares: areaHa,
			ApprovedBy:   in.OperatorID,
			Comment:      comment,
			ApprovedAt:   time.Now().UTC(),
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		if err := tx.UpdateFarmGeometry(ctx, c.FarmID, c.WKT, s.srid, areaHa); err != nil {
			return err
		}
		if err := tx.MarkProcessed(ctx, c.ID, capture.StatusValidated, comment); err != nil {
			return err
		}
		stored = comment
		result = &Result{
			AreaHectares: areaHa,
			GeometryType: *v.GeometryType,
			GeoJSON:      v.GeoJSON,
		}
		return nil
	})
	if err != nil {
		return nil, s.moderationError(err, in.CaptureID, "approve")
	}

	if rejection != nil {
		geometryRejectedTotal.Inc()
		s.logger.Info().
			Int64("captureId", in.CaptureID).
			Str("reason", rejection.Reason).
			Msg("capture rejected by geometry check")
		s.recordDecision(ctx, locked, capture.StatusRejected, stored, in.OperatorID, audit.ActionReject)
		return nil, rejection
	}

	approvedTotal.Inc()
	s.logger.Info().
		Int64("captureId", in.CaptureID).
		Int64("farmId", locked.FarmID).
		Float64("areaHectares", result.AreaHectares).
		Msg("capture approved")
	s.recordDecision(ctx, locked, capture.StatusValidated, stored, in.OperatorID, audit.ActionApprove)
	return result, nil
}

// Reject runs the rejection workflow for one capture. It never touches the
// farm record or the history ledger.
func (s *Service) Reject(ctx context.Context, in RejectInput) error {
	if in.CaptureID <= 0 {
		return fmt.Errorf("%w: id_captura must be a positive integer", capture.ErrInvalidArgument)
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return fmt.Errorf("%w: comentario is required", capture.ErrInvalidArgument)
	}
	stored := capture.AttributedComment(comment, in.OperatorID)

	var locked *capture.Capture
	err := s.repo.Moderate(ctx, func(tx capture.ModerationTx) error {
		c, err := tx.LockCapture(ctx, in.CaptureID)
		if err != nil {
			return err
		}
		if c == nil {
			return capture.ErrNotFound
		}
		locked = c
		if !c.Status.Pending() {
			return capture.ErrAlreadyProcessed
		}
		return tx.MarkProcessed(ctx, c.ID, capture.StatusRejected, stored)
	})
	if err != nil {
		return s.moderationError(err, in.CaptureID, "reject")
	}

	rejectedTotal.Inc()
	s.logger.Info().Int64("captureId", in.CaptureID).Msg("capture rejected")
	s.recordDecision(ctx, locked, capture.StatusRejected, stored, in.OperatorID, audit.ActionReject)
	return nil
}

func (s *Service) moderationError(err error, captureID int64, op string) error {
	if errors.Is(err, capture.ErrNotFound) || errors.Is(err, capture.ErrAlreadyProcessed) || errors.Is(err, capture.ErrMissingGeometry) {
		return err
	}
	s.logger.Error().Err(err).Int64("captureId", captureID).Str("op", op).Msg("moderation transaction failed")
	return fmt.Errorf("moderation failed for capture %d: %w", captureID, err)
}

func (s *Service) recordDecision(ctx context.Context, c *capture.Capture, status capture.Status, comment string, operatorID *int64, action audit.Action) {
	if s.audits != nil {
		actor := "system"
		if operatorID != nil {
			actor = fmt.Sprintf("#%d", *operatorID)
		}
		s.audits.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeCapture,
			EntityID:   fmt.Sprintf("%d", c.ID),
			Action:     action,
			Actor:      actor,
			Reason:     comment,
		})
	}
	if s.events != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"id_captura": c.ID,
			"id_finca":   c.FarmID,
			"estado":     status,
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal decision event")
			return
		}
		s.events.Broadcast("capture-decision", payload)
	}
}
