package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action represents an audited moderation action.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// EntityTypeCapture tags audit entries produced by the capture pipeline.
const EntityTypeCapture = "CAPTURE"

// Entry is one audit log row. Signature is set when the service is
// configured with a signing key.
type Entry struct {
	AuditID    uuid.UUID `json:"auditId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     Action    `json:"action"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"createdAt"`
	Signature  string    `json:"signature,omitempty"`
}

// Repository defines persistence for audit entries. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
}

// canonical is the signed projection of an entry. Field order is fixed so
// signatures stay stable across releases.
type canonical struct {
	AuditID    string `json:"auditId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"createdAt"`
}

// Sign computes the HMAC-SHA256 signature of an entry.
func Sign(e *Entry, key []byte) (string, error) {
	payload, err := json.Marshal(canonical{
		AuditID:    e.AuditID.String(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     string(e.Action),
		Actor:      e.Actor,
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks an entry's signature against a key.
func Verify(e *Entry, key []byte) bool {
	want, err := Sign(e, key)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(e.Signature))
}
