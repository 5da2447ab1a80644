package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	"github.com/22club/communications/internal/communication/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockCommunicationRepository struct {
	mock.Mock
}

func (m *MockCommunicationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Communication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Communication), args.Error(1)
}

func (m *MockCommunicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockCommunicationRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.Status,
) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommunicationRepository) RefreshStats(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCommunicationRepository) ListDueScheduled(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Communication, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Communication), args.Error(1)
}

func (m *MockCommunicationRepository) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) CountByCommunication(ctx context.Context, communicationID uuid.UUID) (int, error) {
	args := m.Called(ctx, communicationID)
	return args.Int(0), args.Error(1)
}

func (m *MockRecipientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) FindByProviderMessageID(
	ctx context.Context,
	ch domain.Channel,
	messageID string,
) (*domain.Recipient, error) {
	args := m.Called(ctx, ch, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.RecipientUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockRecipientRepository) ListByCommunication(
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

type MockRecipientResolver struct {
	mock.Mock
}

func (m *MockRecipientResolver) EnsureRecipients(ctx context.Context, communication *domain.Communication) (int, error) {
	args := m.Called(ctx, communication)
	return args.Int(0), args.Error(1)
}

func (m *MockRecipientResolver) Count(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

type MockChannelSender struct {
	mock.Mock
	channel domain.Channel
}

func newMockSender(ch domain.Channel) *MockChannelSender {
	return &MockChannelSender{channel: ch}
}

func (m *MockChannelSender) Channel() domain.Channel { return m.channel }

func (m *MockChannelSender) Send(ctx context.Context, communicationID uuid.UUID) (domain.SendResult, error) {
	args := m.Called(ctx, communicationID)
	return args.Get(0).(domain.SendResult), args.Error(1)
}

func (m *MockChannelSender) SendToRecipient(ctx context.Context, recipientID uuid.UUID) (domain.SendResult, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(domain.SendResult), args.Error(1)
}

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

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(
	ctx context.Context,
	operation, status string,
	duration time.Duration,
) {
	m.Called(ctx, operation, status, duration)
}
