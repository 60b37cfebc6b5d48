package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents capture moderation status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusValidated Status = "VALIDATED"
	StatusRejected  Status = "REJECTED"
)

// Pending reports whether the capture is still awaiting moderation.
// Stored statuses from older ingests may carry mixed case.
func (s Status) Pending() bool {
	return strings.EqualFold(string(s), string(StatusPending))
}

// ParseStatus normalizes an external status value.
func ParseStatus(v string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(v))) {
	case StatusPending:
		return StatusPending, nil
	case StatusValidated:
		return StatusValidated, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, v)
}

// GeometryKind is the geometry type tag as submitted by the field device.
type GeometryKind string

const (
	KindPoint        GeometryKind = "POINT"
	KindPolygon      GeometryKind = "POLYGON"
	KindMultiPolygon GeometryKind = "MULTIPOLYGON"
)

// ParseKind normalizes an external geometry kind value.
func ParseKind(v string) (GeometryKind, error) {
	switch GeometryKind(strings.ToUpper(strings.TrimSpace(v))) {
	case KindPoint:
		return KindPoint, nil
	case KindPolygon:
		return KindPolygon, nil
	case KindMultiPolygon:
		return KindMultiPolygon, nil
	}
	return "", fmt.Errorf("%w: unknown geometry kind %q", ErrInvalidArgument, v)
}

// Sentinel errors for the moderation pipeline. NotFound, AlreadyProcessed and
// InvalidArgument roll the transaction back; every other moderation outcome
// commits.
var (
	ErrNotFound         = errors.New("capture not found")
	ErrAlreadyProcessed = errors.New("capture already processed")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMissingGeometry  = errors.New("capture has no geometry")
)

// Capture is a geometry submission pending moderation.
type Capture struct {
	ID          int64             `json:"id_captura"`
	FarmID      int64             `json:"id_finca"`
	FarmName    string            `json:"nombre_finca"`
	Kind        GeometryKind      `json:"tipo"`
	WKT         string            `json:"wkt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      Status            `json:"estado"`
	Source      string            `json:"origen"`
	CapturedBy  *int64            `json:"capturado_por,omitempty"`
	Comment     *string           `json:"comentario,omitempty"`
	CapturedAt  time.Time         `json:"fecha_captura"`
	ProcessedAt *time.Time        `json:"fecha_procesado,omitempty"`
}

// AttributedComment builds the stored rejection comment. The operator suffix
// is part of the external compatibility contract and stays embedded in the
// comment text.
func AttributedComment(comment string, operatorID *int64) string {
	if operatorID == nil {
		return comment
	}
	return fmt.Sprintf("%s (rejected by #%d)", comment, *operatorID)
}
