package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/testutil"
)

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

func (m *MockCommunicationRepository) RefreshStats(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) ListPending(
	ctx context.Context,
	communicationID uuid.UUID,
	ch domain.Channel,
) ([]*domain.Recipient, error) {
	args := m.Called(ctx, communicationID, ch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.RecipientUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) ContactsByUserIDs(
	ctx context.Context,
	userIDs []uuid.UUID,
) (map[uuid.UUID]domain.Contact, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]domain.Contact), args.Error(1)
}

func (m *MockDirectoryRepository) ListActivePushTokens(ctx context.Context, userID uuid.UUID) ([]domain.PushToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PushToken), args.Error(1)
}

func (m *MockDirectoryRepository) DeactivatePushToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubDeliverer fails the users listed in failures and records every call.
type stubDeliverer struct {
	channel  domain.Channel
	failures map[uuid.UUID]error

	mu        sync.Mutex
	delivered []uuid.UUID
}

func (s *stubDeliverer) Channel() domain.Channel { return s.channel }

func (s *stubDeliverer) Deliver(
	_ context.Context,
	_ *domain.Communication,
	recipient *domain.Recipient,
	_ domain.Contact,
) (domain.Metadata, error) {
	s.mu.Lock()
	s.delivered = append(s.delivered, recipient.UserID)
	s.mu.Unlock()

	if err := s.failures[recipient.UserID]; err != nil {
		return nil, err
	}
	return domain.Metadata{domain.MetadataEmailMessageID: "re_" + recipient.ID.String()[:8]}, nil
}

// statusStore is an in-memory CommunicationRepository holding one communication.
type statusStore struct {
	mu            sync.Mutex
	communication *domain.Communication
}

func (s *statusStore) Get(_ context.Context, _ uuid.UUID) (*domain.Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.communication
	return &c, nil
}

func (s *statusStore) UpdateStatus(_ context.Context, _ uuid.UUID, update domain.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communication.Status = update.Status
	return nil
}

func (s *statusStore) RefreshStats(context.Context, uuid.UUID) error { return nil }

func (s *statusStore) status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.communication.Status
}

// deliveryCounter counts RecordDelivery calls by channel and status.
type deliveryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (d *deliveryCounter) RecordDelivery(_ context.Context, channel, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = map[string]int{}
	}
	d.counts[channel+"/"+status]++
}

type senderMocks struct {
	communications *MockCommunicationRepository
	recipients     *MockRecipientRepository
	directory      *MockDirectoryRepository
}

func newTestSender(deliverer Deliverer, config Config) (Sender, *senderMocks) {
	m := &senderMocks{
		communications: &MockCommunicationRepository{},
		recipients:     &MockRecipientRepository{},
		directory:      &MockDirectoryRepository{},
	}
	return NewBatchSender(deliverer, m.communications, m.recipients, m.directory, config, testutil.DiscardLogger()), m
}

func (m *senderMocks) assert(t *testing.T) {
	m.communications.AssertExpectations(t)
	m.recipients.AssertExpectations(t)
	m.directory.AssertExpectations(t)
}

func pendingRecipient(communicationID uuid.UUID, ch domain.Channel) *domain.Recipient {
	return &domain.Recipient{
		ID:              uuid.New(),
		CommunicationID: communicationID,
		UserID:          uuid.New(),
		RecipientType:   ch,
		Status:          domain.RecipientStatusPending,
	}
}

func statusIs(status domain.Status) any {
	return mock.MatchedBy(func(u domain.StatusUpdate) bool { return u.Status == status })
}

func recipientStatusIs(status domain.RecipientStatus) any {
	return mock.MatchedBy(func(u domain.RecipientUpdate) bool { return u.Status == status })
}

func TestBatchSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_MixedOutcomes", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeEmail, Title: "Orari"}
		first := pendingRecipient(communication.ID, domain.ChannelEmail)
		second := pendingRecipient(communication.ID, domain.ChannelEmail)
		third := pendingRecipient(communication.ID, domain.ChannelEmail)

		deliverer := &stubDeliverer{
			channel:  domain.ChannelEmail,
			failures: map[uuid.UUID]error{second.UserID: ErrNoEmailAddress},
		}
		counter := &deliveryCounter{}
		sender, m := newTestSender(deliverer, Config{BatchSize: 2, BatchDelay: time.Millisecond, Metrics: counter})

		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.communications.On("UpdateStatus", ctx, communication.ID, domain.StatusUpdate{Status: domain.StatusSending}).
			Return(nil)
		m.recipients.On("ListPending", ctx, communication.ID, domain.ChannelEmail).
			Return([]*domain.Recipient{first, second, third}, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{first.UserID, second.UserID}).
			Return(map[uuid.UUID]domain.Contact{first.UserID: {UserID: first.UserID, Email: "a@22club.it"}}, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{third.UserID}).
			Return(map[uuid.UUID]domain.Contact{}, nil)
		m.recipients.On("UpdateStatus", mock.Anything, first.ID, mock.MatchedBy(func(u domain.RecipientUpdate) bool {
			return u.Status == domain.RecipientStatusSent && u.SentAt != nil && u.Metadata.String("email_id") != ""
		})).Return(nil)
		m.recipients.On("UpdateStatus", mock.Anything, second.ID, mock.MatchedBy(func(u domain.RecipientUpdate) bool {
			return u.Status == domain.RecipientStatusFailed && u.FailedAt != nil &&
				u.ErrorMessage != nil && *u.ErrorMessage == "No email address"
		})).Return(nil)
		m.recipients.On("UpdateStatus", mock.Anything, third.ID, recipientStatusIs(domain.RecipientStatusSent)).
			Return(nil)
		m.communications.On("RefreshStats", ctx, communication.ID).Return(nil)
		m.communications.On("UpdateStatus", ctx, communication.ID, mock.MatchedBy(func(u domain.StatusUpdate) bool {
			return u.Status == domain.StatusSent && u.SentAt != nil
		})).Return(nil)

		result, err := sender.Send(ctx, communication.ID)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.Sent)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, []string{"User " + second.UserID.String() + ": No email address"}, result.Errors)
		assert.Len(t, deliverer.delivered, 3)
		assert.Equal(t, map[string]int{"email/sent": 2, "email/failed": 1}, counter.counts)
		m.assert(t)
	})

	t.Run("Success_NoPendingRecipients", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeAll}
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelSMS}, Config{BatchSize: 10})

		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.recipients.On("ListPending", ctx, communication.ID, domain.ChannelSMS).Return([]*domain.Recipient{}, nil)

		result, err := sender.Send(ctx, communication.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.SendResult{Success: true}, result)
		m.communications.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		m.communications.AssertNotCalled(t, "RefreshStats", mock.Anything, mock.Anything)
		m.assert(t)
	})

	t.Run("Success_EmptyLastChannelKeepsTerminalStatus", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeAll, Status: domain.StatusDraft}
		communications := &statusStore{communication: communication}
		pending := map[domain.Channel][]*domain.Recipient{
			domain.ChannelPush:  {pendingRecipient(communication.ID, domain.ChannelPush)},
			domain.ChannelEmail: {pendingRecipient(communication.ID, domain.ChannelEmail)},
			domain.ChannelSMS:   {},
		}

		var results []domain.SendResult
		for _, ch := range []domain.Channel{domain.ChannelPush, domain.ChannelEmail, domain.ChannelSMS} {
			recipients := &MockRecipientRepository{}
			directory := &MockDirectoryRepository{}
			recipients.On("ListPending", ctx, communication.ID, ch).Return(pending[ch], nil)
			recipients.On("UpdateStatus", mock.Anything, mock.Anything, recipientStatusIs(domain.RecipientStatusSent)).
				Return(nil)
			directory.On("ContactsByUserIDs", ctx, mock.Anything).Return(map[uuid.UUID]domain.Contact{}, nil)

			sender := NewBatchSender(&stubDeliverer{channel: ch}, communications, recipients, directory,
				Config{BatchSize: 10}, testutil.DiscardLogger())
			result, err := sender.Send(ctx, communication.ID)
			require.NoError(t, err)
			results = append(results, result)
		}

		merged := domain.MergeResults(results...)
		assert.True(t, merged.Success)
		assert.Equal(t, 2, merged.Sent)
		assert.Equal(t, 2, merged.Total)
		assert.Equal(t, domain.StatusSent, communications.status())
	})

	t.Run("Failure_AllRecipientsFailed", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypePush}
		recipient := pendingRecipient(communication.ID, domain.ChannelPush)

		directory := &MockDirectoryRepository{}
		deliverer := NewPushDeliverer(PushConfig{}, directory, nil, testutil.DiscardLogger())
		sender, m := newTestSender(deliverer, Config{BatchSize: 10})

		directory.On("ListActivePushTokens", mock.Anything, recipient.UserID).Return([]domain.PushToken{}, nil)
		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.communications.On("UpdateStatus", ctx, communication.ID, statusIs(domain.StatusSending)).Return(nil)
		m.recipients.On("ListPending", ctx, communication.ID, domain.ChannelPush).
			Return([]*domain.Recipient{recipient}, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{recipient.UserID}).
			Return(map[uuid.UUID]domain.Contact{}, nil)
		m.recipients.On("UpdateStatus", mock.Anything, recipient.ID, recipientStatusIs(domain.RecipientStatusFailed)).
			Return(nil)
		m.communications.On("RefreshStats", ctx, communication.ID).Return(nil)
		m.communications.On("UpdateStatus", ctx, communication.ID, statusIs(domain.StatusFailed)).Return(nil)

		result, err := sender.Send(ctx, communication.ID)

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, "Tutti i 1 destinatari sono falliti. Verifica i token push attivi.", result.Error)
		assert.True(t, result.TotalFailure())
		m.assert(t)
		directory.AssertExpectations(t)
	})

	t.Run("Error_TypeMismatch", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeEmail}
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelSMS}, Config{})

		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)

		result, err := sender.Send(ctx, communication.ID)

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "Communication type is not SMS", result.Error)
		m.assert(t)
	})

	t.Run("Error_CommunicationNotFound", func(t *testing.T) {
		id := uuid.New()
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelPush}, Config{})

		m.communications.On("Get", ctx, id).Return(nil, domain.ErrCommunicationNotFound)

		_, err := sender.Send(ctx, id)

		assert.ErrorIs(t, err, domain.ErrCommunicationNotFound)
		m.assert(t)
	})

	t.Run("Error_ListPendingMarksFailed", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeEmail}
		dbErr := errors.New("connection reset")
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelEmail}, Config{})

		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.recipients.On("ListPending", ctx, communication.ID, domain.ChannelEmail).Return(nil, dbErr)
		m.communications.On("UpdateStatus", mock.Anything, communication.ID, mock.MatchedBy(func(u domain.StatusUpdate) bool {
			return u.Status == domain.StatusFailed && u.Failure != nil && u.Failure.Error == "connection reset"
		})).Return(nil)

		_, err := sender.Send(ctx, communication.ID)

		assert.ErrorIs(t, err, dbErr)
		m.assert(t)
	})

	t.Run("Error_RecipientUpdateAbortsRun", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeEmail}
		recipient := pendingRecipient(communication.ID, domain.ChannelEmail)
		dbErr := errors.New("deadlock detected")
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelEmail}, Config{BatchSize: 5})

		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.communications.On("UpdateStatus", ctx, communication.ID, statusIs(domain.StatusSending)).Return(nil)
		m.recipients.On("ListPending", ctx, communication.ID, domain.ChannelEmail).
			Return([]*domain.Recipient{recipient}, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{recipient.UserID}).
			Return(map[uuid.UUID]domain.Contact{}, nil)
		m.recipients.On("UpdateStatus", mock.Anything, recipient.ID, mock.Anything).Return(dbErr)
		m.communications.On("UpdateStatus", mock.Anything, communication.ID, statusIs(domain.StatusFailed)).Return(nil)

		_, err := sender.Send(ctx, communication.ID)

		assert.ErrorIs(t, err, dbErr)
		m.communications.AssertNotCalled(t, "RefreshStats", mock.Anything, mock.Anything)
		m.assert(t)
	})
}

func TestBatchSender_SendToRecipient(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeEmail}
		recipient := pendingRecipient(communication.ID, domain.ChannelEmail)
		recipient.Status = domain.RecipientStatusFailed
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelEmail}, Config{})

		m.recipients.On("GetByID", ctx, recipient.ID).Return(recipient, nil)
		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{recipient.UserID}).
			Return(map[uuid.UUID]domain.Contact{recipient.UserID: {Email: "giulia@22club.it"}}, nil)
		m.recipients.On("UpdateStatus", ctx, recipient.ID, recipientStatusIs(domain.RecipientStatusSent)).Return(nil)
		m.communications.On("RefreshStats", ctx, communication.ID).Return(nil)

		result, err := sender.SendToRecipient(ctx, recipient.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.SendResult{Success: true, Sent: 1, Total: 1}, result)
		m.assert(t)
	})

	t.Run("Failure_ReportedInResult", func(t *testing.T) {
		communication := &domain.Communication{ID: uuid.New(), Type: domain.TypeSMS}
		recipient := pendingRecipient(communication.ID, domain.ChannelSMS)
		deliverer := &stubDeliverer{
			channel:  domain.ChannelSMS,
			failures: map[uuid.UUID]error{recipient.UserID: ErrInvalidPhoneNumber},
		}
		sender, m := newTestSender(deliverer, Config{})

		m.recipients.On("GetByID", ctx, recipient.ID).Return(recipient, nil)
		m.communications.On("Get", ctx, communication.ID).Return(communication, nil)
		m.directory.On("ContactsByUserIDs", ctx, []uuid.UUID{recipient.UserID}).
			Return(map[uuid.UUID]domain.Contact{}, nil)
		m.recipients.On("UpdateStatus", ctx, recipient.ID, recipientStatusIs(domain.RecipientStatusFailed)).Return(nil)
		m.communications.On("RefreshStats", ctx, communication.ID).Return(nil)

		result, err := sender.SendToRecipient(ctx, recipient.ID)

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, "Invalid phone number format (must start with +)", result.Error)
		m.assert(t)
	})

	t.Run("Error_ChannelMismatch", func(t *testing.T) {
		recipient := pendingRecipient(uuid.New(), domain.ChannelPush)
		sender, m := newTestSender(&stubDeliverer{channel: domain.ChannelEmail}, Config{})

		m.recipients.On("GetByID", ctx, recipient.ID).Return(recipient, nil)

		_, err := sender.SendToRecipient(ctx, recipient.ID)

		assert.ErrorIs(t, err, domain.ErrChannelMismatch)
		m.assert(t)
	})
}

func TestBatchSender_Pacer(t *testing.T) {
	s := &batchSender{config: Config{BatchDelay: 20 * time.Millisecond}}
	pacer := s.pacer()

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background()))
	require.NoError(t, pacer.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	unpaced := (&batchSender{}).pacer()
	for range 5 {
		require.NoError(t, unpaced.Wait(context.Background()))
	}
}
