package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/agromonitor/fincas-geom/internal/domain/audit"
	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/capture/mocks"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func int64Ptr(n int64) *int64 { return &n }

func pendingCapture() *capture.Capture {
	return &capture.Capture{
		ID:       42,
		FarmID:   9,
		FarmName: "La Esperanza",
		Kind:     capture.KindPolygon,
		WKT:      "POLYGON((-90.35 15.45,-90.34 15.45,-90.34 15.46,-90.35 15.46,-90.35 15.45))",
		Status:   capture.StatusPending,
	}
}

func validPolygonResult() *geometry.ValidationResult {
	return &geometry.ValidationResult{
		Valid:            true,
		GeometryType:     strPtr("ST_Polygon"),
		AreaSquareMeters: floatPtr(10000),
		GeoJSON:          []byte(`{"type":"Polygon","coordinates":[]}`),
	}
}

func newRepo() *mocks.MockRepository {
	return &mocks.MockRepository{Tx: &mocks.MockModerationTx{}}
}

func newService(repo *mocks.MockRepository) *Service {
	return NewService(repo, nil, nil, 0, zerolog.Nop())
}

func TestApproveSuccess(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).Return(validPolygonResult(), nil)
	repo.Tx.On("AppendHistory", mock.Anything, mock.MatchedBy(func(e *farm.HistoryEntry) bool {
		return e.FarmID == 9 && e.WKT == c.WKT && e.AreaHectares == 1.0 && e.Comment == DefaultApproveComment
	})).Return(nil)
	repo.Tx.On("UpdateFarmGeometry", mock.Anything, int64(9), c.WKT, geometry.SRIDWGS84, 1.0).Return(nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusValidated, DefaultApproveComment).Return(nil)

	svc := newService(repo)
	result, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.AreaHectares != 1.0 {
		t.Fatalf("expected 1.0 ha, got %f", result.AreaHectares)
	}
	if result.GeometryType != "ST_Polygon" {
		t.Fatalf("unexpected geometry type %s", result.GeometryType)
	}
	if !repo.Committed {
		t.Fatal("expected transaction to commit")
	}
	repo.Tx.AssertExpectations(t)
}

func TestApproveKeepsOperatorComment(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).Return(validPolygonResult(), nil)
	repo.Tx.On("AppendHistory", mock.Anything, mock.MatchedBy(func(e *farm.HistoryEntry) bool {
		return e.Comment == "linderos verificados" && e.ApprovedBy != nil && *e.ApprovedBy == 7
	})).Return(nil)
	repo.Tx.On("UpdateFarmGeometry", mock.Anything, int64(9), c.WKT, geometry.SRIDWGS84, 1.0).Return(nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusValidated, "linderos verificados").Return(nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42, Comment: "linderos verificados", OperatorID: int64Ptr(7)})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	repo.Tx.AssertExpectations(t)
}

func TestApproveInvalidGeometryCommitsRejection(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	reason := "Self-intersection at or near point -90.34 15.45"
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).
		Return(&geometry.ValidationResult{Valid: false, Reason: &reason}, nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusRejected, reason).Return(nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	var rejection *GeometryRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected GeometryRejection, got %v", err)
	}
	if rejection.Reason != reason {
		t.Fatalf("expected engine reason verbatim, got %q", rejection.Reason)
	}
	if !repo.Committed {
		t.Fatal("expected rejection to commit")
	}
	repo.Tx.AssertNotCalled(t, "AppendHistory", mock.Anything, mock.Anything)
	repo.Tx.AssertNotCalled(t, "UpdateFarmGeometry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApprovePointRejected(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	c.Kind = capture.KindPoint
	c.WKT = "POINT(-90.35 15.45)"
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).
		Return(&geometry.ValidationResult{Valid: true, GeometryType: strPtr("ST_Point"), AreaSquareMeters: floatPtr(0)}, nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusRejected, mock.Anything).Return(nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	var rejection *GeometryRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected GeometryRejection, got %v", err)
	}
	if !repo.Committed {
		t.Fatal("expected rejection to commit")
	}
	repo.Tx.AssertNotCalled(t, "AppendHistory", mock.Anything, mock.Anything)
}

func TestApproveNotFoundRollsBack(t *testing.T) {
	repo := newRepo()
	repo.Tx.On("LockCapture", mock.Anything, int64(99)).Return(nil, nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 99})
	if !errors.Is(err, capture.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !repo.RolledBack {
		t.Fatal("expected transaction to roll back")
	}
}

func TestApproveAlreadyProcessedRollsBack(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	c.Status = capture.StatusValidated
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	if !errors.Is(err, capture.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if !repo.RolledBack {
		t.Fatal("expected transaction to roll back")
	}
	repo.Tx.AssertNotCalled(t, "ValidateGeometry", mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveLowercasePendingProceeds(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	c.Status = capture.Status("pending")
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).Return(validPolygonResult(), nil)
	repo.Tx.On("AppendHistory", mock.Anything, mock.Anything).Return(nil)
	repo.Tx.On("UpdateFarmGeometry", mock.Anything, int64(9), c.WKT, geometry.SRIDWGS84, 1.0).Return(nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusValidated, DefaultApproveComment).Return(nil)

	svc := newService(repo)
	if _, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestApproveMissingGeometryRollsBack(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	c.WKT = "   "
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	if !errors.Is(err, capture.ErrMissingGeometry) {
		t.Fatalf("expected ErrMissingGeometry, got %v", err)
	}
	if !repo.RolledBack {
		t.Fatal("expected transaction to roll back")
	}
}

func TestApproveInvalidIDFailsFast(t *testing.T) {
	repo := newRepo()
	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 0})
	if !errors.Is(err, capture.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if repo.Committed || repo.RolledBack {
		t.Fatal("expected no transaction")
	}
}

func TestApproveInfrastructureErrorRollsBack(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("ValidateGeometry", mock.Anything, c.WKT, geometry.SRIDWGS84).
		Return(nil, errors.New("connection reset"))

	svc := newService(repo)
	_, err := svc.Approve(context.Background(), ApproveInput{CaptureID: 42})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, capture.ErrNotFound) || errors.Is(err, capture.ErrAlreadyProcessed) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if !repo.RolledBack {
		t.Fatal("expected transaction to roll back")
	}
}

func TestRejectSuccessWithAttribution(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusRejected, "captura duplicada (rejected by #7)").Return(nil)

	svc := newService(repo)
	err := svc.Reject(context.Background(), RejectInput{CaptureID: 42, Comment: "captura duplicada", OperatorID: int64Ptr(7)})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !repo.Committed {
		t.Fatal("expected transaction to commit")
	}
	repo.Tx.AssertExpectations(t)
}

func TestRejectEmptyCommentFailsFast(t *testing.T) {
	repo := newRepo()
	svc := newService(repo)
	for _, comment := range []string{"", "   ", "\t"} {
		err := svc.Reject(context.Background(), RejectInput{CaptureID: 42, Comment: comment})
		if !errors.Is(err, capture.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %q, got %v", comment, err)
		}
	}
	if repo.Committed || repo.RolledBack {
		t.Fatal("expected no transaction")
	}
}

func TestRejectAlreadyProcessedRollsBack(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	c.Status = capture.StatusRejected
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)

	svc := newService(repo)
	err := svc.Reject(context.Background(), RejectInput{CaptureID: 42, Comment: "tarde"})
	if !errors.Is(err, capture.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if !repo.RolledBack {
		t.Fatal("expected transaction to roll back")
	}
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (a *auditRecorder) Log(ctx context.Context, entry *audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
	data   [][]byte
}

func (e *eventRecorder) Broadcast(event string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	e.data = append(e.data, data)
}

func TestRejectRecordsAuditAndEvent(t *testing.T) {
	repo := newRepo()
	c := pendingCapture()
	repo.Tx.On("LockCapture", mock.Anything, int64(42)).Return(c, nil)
	repo.Tx.On("MarkProcessed", mock.Anything, int64(42), capture.StatusRejected, mock.Anything).Return(nil)

	audits := &auditRecorder{}
	events := &eventRecorder{}
	svc := NewService(repo, audits, events, 0, zerolog.Nop())
	if err := svc.Reject(context.Background(), RejectInput{CaptureID: 42, Comment: "borrosa"}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if len(audits.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audits.entries))
	}
	if audits.entries[0].Action != audit.ActionReject {
		t.Fatalf("expected REJECT audit action, got %s", audits.entries[0].Action)
	}
	if audits.entries[0].Actor != "system" {
		t.Fatalf("expected system actor, got %s", audits.entries[0].Actor)
	}
	if len(events.events) != 1 || events.events[0] != "capture-decision" {
		t.Fatalf("expected one capture-decision event, got %v", events.events)
	}
}
