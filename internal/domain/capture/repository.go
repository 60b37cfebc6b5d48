package capture

import (
	"context"
	"time"

	"github.com/agromonitor/fincas-geom/internal/domain/farm"
	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

// Filter controls capture listing.
type Filter struct {
	Search     *string
	Status     *Status
	Kind       *GeometryKind
	FarmID     *int64
	CapturedBy *int64
	From       *time.Time
	To         *time.Time
}

// Repository defines persistence for captures. Moderation mutations run
// inside a single database transaction owned by the repository: fn returning
// nil commits, any error rolls back.
type Repository interface {
	Moderate(ctx context.Context, fn func(tx ModerationTx) error) error
	GetByID(ctx context.Context, id int64) (*Capture, error)
	List(ctx context.Context, filter Filter, sortBy, sortOrder string, limit, offset int) ([]*Capture, int64, error)
	FarmExists(ctx context.Context, farmID int64) (bool, error)
	FarmHistory(ctx context.Context, farmID int64) ([]*farm.HistoryEntry, error)
}

// ModerationTx is the set of statements available inside one moderation
// transaction. LockCapture must run first; it takes a row-level exclusive
// lock so a concurrent moderation of the same capture blocks until this
// transaction finishes.
type ModerationTx interface {
	LockCapture(ctx context.Context, id int64) (*Capture, error)
	ValidateGeometry(ctx context.Context, wkt string, srid int) (*geometry.ValidationResult, error)
	MarkProcessed(ctx context.Context, id int64, status Status, comment string) error
	AppendHistory(ctx context.Context, entry *farm.HistoryEntry) error
	UpdateFarmGeometry(ctx context.Context, farmID int64, wkt string, srid int, areaHectares float64) error
}
