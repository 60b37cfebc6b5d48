package farm

import "time"

// Farm is the authoritative entity a capture may update. The WKT column
// mirrors the native geometry column; both are rewritten together on every
// approval.
type Farm struct {
	ID           int64     `json:"id_finca"`
	Name         string    `json:"nombre"`
	WKT          *string   `json:"wkt,omitempty"`
	AreaHectares *float64  `json:"area_hectareas,omitempty"`
	UpdatedAt    time.Time `json:"fecha_actualizacion"`
}

// HistoryEntry is an immutable ledger row recording one approved geometry
// version. Entries are append-only and ordered newest first in history views.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	FarmID       int64     `json:"id_finca"`
	WKT          string    `json:"wkt"`
	SRID         int       `json:"-"`
	AreaHectares float64   `json:"area_hectareas"`
	ApprovedBy   *int64    `json:"aprobado_por,omitempty"`
	Comment      string    `json:"comentario"`
	ApprovedAt   time.Time `json:"fecha_aprobacion"`
}
