package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSignAndVerify(t *testing.T) {
	key := []byte("0123456789abcdef")
	entry := &Entry{
		AuditID:    uuid.New(),
		EntityType: EntityTypeCapture,
		EntityID:   "42",
		Action:     ActionApprove,
		Actor:      "#7",
		Reason:     "Aprobada",
		CreatedAt:  time.Now().UTC(),
	}
	sig, err := Sign(entry, key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
	entry.Signature = sig
	if !Verify(entry, key) {
		t.Fatal("expected signature to verify")
	}

	entry.Actor = "#8"
	if Verify(entry, key) {
		t.Fatal("expected tampered entry to fail verification")
	}
}

func TestSignDeterministic(t *testing.T) {
	key := []byte("key")
	entry := &Entry{
		AuditID:    uuid.MustParse("61d7cd9e-8a4d-4a2c-9a6b-0a39f8f0a111"),
		EntityType: EntityTypeCapture,
		EntityID:   "1",
		Action:     ActionReject,
		Actor:      "system",
		Reason:     "geometría inválida",
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	a, err := Sign(entry, key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	b, err := Sign(entry, key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic signature, got %q and %q", a, b)
	}
}
