package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agromonitor/fincas-geom/internal/domain/audit"
)

type fakeRepo struct {
	entries []*audit.Entry
	err     error
}

func (f *fakeRepo) Create(ctx context.Context, e *audit.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func TestLogSyncFillsIdentityAndSigns(t *testing.T) {
	repo := &fakeRepo{}
	key := []byte("audit-key")
	svc := NewService(repo, key, zerolog.Nop())

	entry := &audit.Entry{
		EntityType: audit.EntityTypeCapture,
		EntityID:   "42",
		Action:     audit.ActionApprove,
		Actor:      "#7",
		Reason:     "Aprobada",
	}
	if err := svc.LogSync(context.Background(), entry); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	saved := repo.entries[0]
	if saved.AuditID == uuid.Nil {
		t.Fatal("expected audit id to be assigned")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected created at to be assigned")
	}
	if saved.Signature == "" {
		t.Fatal("expected entry to be signed")
	}
	if !audit.Verify(saved, key) {
		t.Fatal("expected signature to verify")
	}
}

func TestLogSyncWithoutKeyStoresUnsigned(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil, zerolog.Nop())

	entry := &audit.Entry{
		EntityType: audit.EntityTypeCapture,
		EntityID:   "42",
		Action:     audit.ActionReject,
		Actor:      "system",
		Reason:     "borrosa",
	}
	if err := svc.LogSync(context.Background(), entry); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if repo.entries[0].Signature != "" {
		t.Fatal("expected unsigned entry")
	}
}
