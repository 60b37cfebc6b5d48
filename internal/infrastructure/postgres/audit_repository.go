package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agromonitor/fincas-geom/internal/domain/audit"
)

// AuditRepository implements audit.Repository.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Create(ctx context.Context, e *audit.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO moderation_audit (audit_id, entity_type, entity_id, action, actor, reason, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.AuditID, e.EntityType, e.EntityID, e.Action, e.Actor, e.Reason, e.Signature, e.CreatedAt)
	return err
}
