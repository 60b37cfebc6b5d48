package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agromonitor/fincas-geom/internal/domain/audit"
)

// Service handles audit log operations.
type Service struct {
	repo    audit.Repository
	signKey []byte
	logger  zerolog.Logger
}

// NewService creates a new audit service. signKey may be nil, in which case
// entries are stored unsigned.
func NewService(repo audit.Repository, signKey []byte, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "audit").Logger(),
	}
}

// Log creates a new audit log entry asynchronously.
func (s *Service) Log(ctx context.Context, entry *audit.Entry) {
	go func() {
		if err := s.LogSync(context.Background(), entry); err != nil {
			s.logger.Error().Err(err).
				Str("entityId", entry.EntityID).
				Str("action", string(entry.Action)).
				Msg("failed to create audit log")
		}
	}()
}

// LogSync creates a new audit log entry synchronously.
func (s *Service) LogSync(ctx context.Context, entry *audit.Entry) error {
	if entry.AuditID == uuid.Nil {
		entry.AuditID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if len(s.signKey) > 0 {
		sig, err := audit.Sign(entry, s.signKey)
		if err != nil {
			return fmt.Errorf("failed to sign audit entry: %w", err)
		}
		entry.Signature = sig
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	s.logger.Debug().
		Str("auditId", entry.AuditID.String()).
		Str("entityId", entry.EntityID).
		Str("action", string(entry.Action)).
		Str("actor", entry.Actor).
		Msg("audit entry created")
	return nil
}
