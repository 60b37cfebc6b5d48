package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

const captureColumns = `c.id, c.farm_id, f.name, c.kind, COALESCE(c.wkt, ''), COALESCE(c.metadata, '{}'::jsonb), c.status, COALESCE(c.source, ''), c.captured_by, c.comment, c.captured_at, c.processed_at`

// sortColumns maps external sort keys to safe column references. Anything not
// in this table falls back to the default ordering.
var sortColumns = map[string]string{
	"id":              "c.id",
	"fecha_captura":   "c.captured_at",
	"fecha_procesado": "c.processed_at",
	"estado":          "c.status",
	"tipo":            "c.kind",
	"id_finca":        "c.farm_id",
}

// CaptureRepository implements capture.Repository.
type CaptureRepository struct {
	pool *pgxpool.Pool
}

func NewCaptureRepository(pool *pgxpool.Pool) *CaptureRepository {
	return &CaptureRepository{pool: pool}
}

// Moderate runs fn inside one transaction. fn returning nil commits; any
// error rolls back.
func (r *CaptureRepository) Moderate(ctx context.Context, fn func(tx capture.ModerationTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin moderation transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&moderationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit moderation transaction: %w", err)
	}
	return nil
}

func (r *CaptureRepository) GetByID(ctx context.Context, id int64) (*capture.Capture, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+captureColumns+`
		FROM captures c JOIN farms f ON f.id = c.farm_id
		WHERE c.id = $1
	`, id)
	return scanCapture(row)
}

func (r *CaptureRepository) List(ctx context.Context, filter capture.Filter, sortBy, sortOrder string, limit, offset int) ([]*capture.Capture, int64, error) {
	conds := []string{}
	args := []interface{}{}
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Search != nil {
		add(`(f.name ILIKE '%%'||$%[1]d||'%%' OR c.source ILIKE '%%'||$%[1]d||'%%')`, *filter.Search)
	}
	if filter.Status != nil {
		add("UPPER(c.status) = $%d", string(*filter.Status))
	}
	if filter.Kind != nil {
		add("UPPER(c.kind) = $%d", string(*filter.Kind))
	}
	if filter.FarmID != nil {
		add("c.farm_id = $%d", *filter.FarmID)
	}
	if filter.CapturedBy != nil {
		add("c.captured_by = $%d", *filter.CapturedBy)
	}
	if filter.From != nil {
		add("c.captured_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("c.captured_at <= $%d", *filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM captures c JOIN farms f ON f.id = c.farm_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + captureColumns + ` FROM captures c JOIN farms f ON f.id = c.farm_id` + where +
		" ORDER BY " + orderClause(sortBy, sortOrder) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var captures []*capture.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, 0, err
		}
		captures = append(captures, c)
	}
	return captures, total, rows.Err()
}

func (r *CaptureRepository) FarmExists(ctx context.Context, farmID int64) (bool, error) {
	var v int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM farms WHERE id = $1`, farmID).Scan(&v)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *CaptureRepository) FarmHistory(ctx context.Context, farmID int64) ([]*farm.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, farm_id, wkt, area_hectares, approved_by, COALESCE(comment, ''), approved_at
		FROM farm_geom_history
		WHERE farm_id = $1
		ORDER BY approved_at DESC
	`, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*farm.HistoryEntry
	for rows.Next() {
		var e farm.HistoryEntry
		if err := rows.Scan(&e.ID, &e.FarmID, &e.WKT, &e.AreaHectares, &e.ApprovedBy, &e.Comment, &e.ApprovedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// moderationTx implements capture.ModerationTx over one pgx transaction.
type moderationTx struct {
	tx pgx.Tx
}

func (m *moderationTx) LockCapture(ctx context.Context, id int64) (*capture.Capture, error) {
	row := m.tx.QueryRow(ctx, `
		SELECT `+captureColumns+`
		FROM captures c JOIN farms f ON f.id = c.farm_id
		WHERE c.id = $1
		FOR UPDATE OF c
	`, id)
	return scanCapture(row)
}

// ValidateGeometry runs the validation statement inside a savepoint so a WKT
// parse error reported by PostGIS aborts only the savepoint, not the
// enclosing transaction. The reject path still has to commit.
func (m *moderationTx) ValidateGeometry(ctx context.Context, wkt string, srid int) (*geometry.ValidationResult, error) {
	sp, err := m.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open validation savepoint: %w", err)
	}
	res, err := validateGeometry(ctx, sp, wkt, srid)
	if err != nil {
		_ = sp.Rollback(ctx)
		if reason, ok := geometryErrorReason(err); ok {
			return &geometry.ValidationResult{Valid: false, Reason: &reason}, nil
		}
		return nil, err
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to release validation savepoint: %w", err)
	}
	return res, nil
}

func (m *moderationTx) MarkProcessed(ctx context.Context, id int64, status capture.Status, comment string) error {
	_, err := m.tx.Exec(ctx, `
		UPDATE captures
		SET status = $2, comment = $3, processed_at = now()
		WHERE id = $1
	`, id, status, comment)
	return err
}

func (m *moderationTx) AppendHistory(ctx context.Context, e *farm.HistoryEntry) error {
	_, err := m.tx.Exec(ctx, `
		INSERT INTO farm_geom_history (farm_id, wkt, geom, area_hectares, approved_by, comment, approved_at)
		VALUES ($1, $2, ST_GeomFromText($2, $3), $4, $5, $6, $7)
	`, e.FarmID, e.WKT, e.SRID, e.AreaHectares, e.ApprovedBy, e.Comment, e.ApprovedAt)
	return err
}

func (m *moderationTx) UpdateFarmGeometry(ctx context.Context, farmID int64, wkt string, srid int, areaHectares float64) error {
	_, err := m.tx.Exec(ctx, `
		UPDATE farms
		SET wkt = $2, geom = ST_GeomFromText($2, $3), area_hectares = $4, updated_at = now()
		WHERE id = $1
	`, farmID, wkt, srid, areaHectares)
	return err
}

func orderClause(sortBy, sortOrder string) string {
	col, ok := sortColumns[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		col = "c.captured_at"
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(sortOrder), "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

func scanCapture(row pgx.Row) (*capture.Capture, error) {
	var c capture.Capture
	if err := row.Scan(&c.ID, &c.FarmID, &c.FarmName, &c.Kind, &c.WKT, &c.Metadata, &c.Status, &c.Source, &c.CapturedBy, &c.Comment, &c.CapturedAt, &c.ProcessedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
