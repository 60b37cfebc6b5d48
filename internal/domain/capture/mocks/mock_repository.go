package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

// MockRepository is a mock implementation of capture.Repository. Moderate
// drives the callback against Tx and records whether the transaction would
// have committed or rolled back.
type MockRepository struct {
	mock.Mock
	Tx         *MockModerationTx
	BeginErr   error
	Committed  bool
	RolledBack bool
}

func (m *MockRepository) Moderate(ctx context.Context, fn func(tx capture.ModerationTx) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	if err := fn(m.Tx); err != nil {
		m.RolledBack = true
		return err
	}
	m.Committed = true
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*capture.Capture, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capture.Capture), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter capture.Filter, sortBy, sortOrder string, limit, offset int) ([]*capture.Capture, int64, error) {
	args := m.Called(ctx, filter, sortBy, sortOrder, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*capture.Capture), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) FarmExists(ctx context.Context, farmID int64) (bool, error) {
	args := m.Called(ctx, farmID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FarmHistory(ctx context.Context, farmID int64) ([]*farm.HistoryEntry, error) {
	args := m.Called(ctx, farmID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*farm.HistoryEntry), args.Error(1)
}

// MockModerationTx is a mock implementation of capture.ModerationTx.
type MockModerationTx struct {
	mock.Mock
}

func (m *MockModerationTx) LockCapture(ctx context.Context, id int64) (*capture.Capture, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capture.Capture), args.Error(1)
}

func (m *MockModerationTx) ValidateGeometry(ctx context.Context, wkt string, srid int) (*geometry.ValidationResult, error) {
	args := m.Called(ctx, wkt, srid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geometry.ValidationResult), args.Error(1)
}

func (m *MockModerationTx) MarkProcessed(ctx context.Context, id int64, status capture.Status, comment string) error {
	args := m.Called(ctx, id, status, comment)
	return args.Error(0)
}

func (m *MockModerationTx) AppendHistory(ctx context.Context, entry *farm.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockModerationTx) UpdateFarmGeometry(ctx context.Context, farmID int64, wkt string, srid int, areaHectares float64) error {
	args := m.Called(ctx, farmID, wkt, srid, areaHectares)
	return args.Error(0)
}
