// Package mocks provides mock implementations of the communication use cases for testing HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/communication/usecase"
)

var (
	_ usecase.DispatchUseCase  = (*MockDispatchUseCase)(nil)
	_ usecase.RecipientUseCase = (*MockRecipientUseCase)(nil)
	_ usecase.ScheduledUseCase = (*MockScheduledUseCase)(nil)
	_ usecase.TrackingUseCase  = (*MockTrackingUseCase)(nil)
)

// MockDispatchUseCase is a mock implementation of usecase.DispatchUseCase.
type MockDispatchUseCase struct {
	mock.Mock
}

func (m *MockDispatchUseCase) Send(ctx context.Context, communicationID uuid.UUID) (*domain.SendResult, error) {
	args := m.Called(ctx, communicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendResult), args.Error(1)
}

func (m *MockDispatchUseCase) SendToRecipient(ctx context.Context, recipientID uuid.UUID) (*domain.SendResult, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendResult), args.Error(1)
}

// MockRecipientUseCase is a mock implementation of usecase.RecipientUseCase.
type MockRecipientUseCase struct {
	mock.Mock
}

func (m *MockRecipientUseCase) List(
	ctx context.Context,
	communicationID uuid.UUID,
	offset, limit int,
) ([]*domain.RecipientDetail, error) {
	args := m.Called(ctx, communicationID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecipientDetail), args.Error(1)
}

func (m *MockRecipientUseCase) Count(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

// MockScheduledUseCase is a mock implementation of usecase.ScheduledUseCase.
type MockScheduledUseCase struct {
	mock.Mock
}

func (m *MockScheduledUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockScheduledUseCase) ProcessScheduled(ctx context.Context) (*domain.ScheduledRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledRun), args.Error(1)
}

func (m *MockScheduledUseCase) Schedule(ctx context.Context, communicationID uuid.UUID, at time.Time) error {
	return m.Called(ctx, communicationID, at).Error(0)
}

// MockTrackingUseCase is a mock implementation of usecase.TrackingUseCase.
type MockTrackingUseCase struct {
	mock.Mock
}

func (m *MockTrackingUseCase) TrackSMS(ctx context.Context, event usecase.SMSStatusEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockTrackingUseCase) TrackEmail(ctx context.Context, event usecase.EmailEvent) error {
	return m.Called(ctx, event).Error(0)
}
