package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/communication/http/dto"
	"github.com/22club/communications/internal/communication/usecase/mocks"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/httputil"
)

type handlerMocks struct {
	dispatch  *mocks.MockDispatchUseCase
	recipient *mocks.MockRecipientUseCase
	scheduled *mocks.MockScheduledUseCase
}

func setupTestHandler(t *testing.T) (*CommunicationHandler, *handlerMocks) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	m := &handlerMocks{
		dispatch:  &mocks.MockDispatchUseCase{},
		recipient: &mocks.MockRecipientUseCase{},
		scheduled: &mocks.MockScheduledUseCase{},
	}
	t.Cleanup(func() {
		m.dispatch.AssertExpectations(t)
		m.recipient.AssertExpectations(t)
		m.scheduled.AssertExpectations(t)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCommunicationHandler(m.dispatch, m.recipient, m.scheduled, logger), m
}

func createTestContext(method, url string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, url, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeSendResponse(t *testing.T, w *httptest.ResponseRecorder) dto.SendResponse {
	t.Helper()
	var resp dto.SendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCommunicationHandler_SendHandler(t *testing.T) {
	id := uuid.New()
	body := map[string]string{"communicationId": id.String()}

	t.Run("Success", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).Return(&domain.SendResult{
			Success: true, Sent: 6, Failed: 3, Total: 9, Errors: []string{"User a: No email address"},
		}, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeSendResponse(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, 6, resp.Sent)
		assert.Equal(t, 3, resp.Failed)
		assert.Equal(t, 9, resp.Total)
		assert.Equal(t, "Communication sent: 6/9 recipients", resp.Message)
		assert.Len(t, resp.Errors, 1)
	})

	t.Run("TotalFailureIsStill200", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).
			Return(&domain.SendResult{Failed: 2, Total: 2}, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeSendResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "Invio fallito: 2/2 destinatari falliti", resp.Message)
	})

	t.Run("ZeroRecipients", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).Return(nil, domain.ErrNoRecipients).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		assert.Equal(t, false, raw["success"])
		assert.EqualValues(t, 0, raw["sent"])
		assert.EqualValues(t, 0, raw["failed"])
		assert.EqualValues(t, 0, raw["total"])
		assert.Equal(t, "Nessun destinatario valido trovato", raw["message"])
		assert.Contains(t, raw["error"], "Nessun destinatario valido trovato.")
	})

	t.Run("Timeout", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).
			Return(nil, &domain.TimeoutError{Timeout: 3 * time.Minute}).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusRequestTimeout, w.Code)
		resp := decodeSendResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, 0, resp.Total)
		assert.Regexp(t, `^Send timeout: operation exceeded \d+ minutes$`, resp.Error)
		assert.Equal(t, "Invio interrotto per timeout", resp.Message)
	})

	t.Run("NotFound", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).Return(nil, domain.ErrCommunicationNotFound).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Communication not found"}`, w.Body.String())
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).Return(nil, domain.ErrInvalidStatus).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t,
			`{"error":"Communication is not in draft, scheduled, sending, or failed status"}`,
			w.Body.String())
	})

	t.Run("UnexpectedError", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		m.dispatch.On("Send", mock.Anything, id).
			Return(nil, apperrors.Wrap(errors.New("pq: connection reset"), "failed to send communication")).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", body)
		handler.SendHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeSendResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "Internal server error", resp.Error)
		assert.Equal(t, "Errore durante l'invio della comunicazione", resp.Message)
		assert.NotContains(t, w.Body.String(), "pq:")
	})

	t.Run("MissingCommunicationID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", map[string]string{})
		handler.SendHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"communicationId is required"}`, w.Body.String())
	})

	t.Run("MalformedCommunicationID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/communications/send",
			map[string]string{"communicationId": "42"})
		handler.SendHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"communicationId must be a valid UUID"}`, w.Body.String())
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/communications/send", "{not json")
		handler.SendHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCommunicationHandler_ResendRecipientHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		id := uuid.New()
		m.dispatch.On("SendToRecipient", mock.Anything, id).
			Return(&domain.SendResult{Success: true, Sent: 1, Total: 1}, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/recipients/"+id.String()+"/resend", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.ResendRecipientHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Communication sent: 1/1 recipients", decodeSendResponse(t, w).Message)
	})

	t.Run("ChannelMismatch", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		id := uuid.New()
		m.dispatch.On("SendToRecipient", mock.Anything, id).Return(nil, domain.ErrChannelMismatch).Once()

		c, w := createTestContext(http.MethodPost, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.ResendRecipientHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: "nope"}}
		handler.ResendRecipientHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCommunicationHandler_ListRecipientsHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		commID := uuid.New()
		sentAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		email := "giulia@example.com"
		m.recipient.On("List", mock.Anything, commID, 0, 100).Return([]*domain.RecipientDetail{{
			Recipient: domain.Recipient{
				ID:            uuid.New(),
				UserID:        uuid.New(),
				RecipientType: domain.ChannelEmail,
				Status:        domain.RecipientStatusSent,
				SentAt:        &sentAt,
			},
			Name:  "Giulia Bianchi",
			Email: &email,
		}}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/communications/recipients?communication_id="+commID.String(), nil)
		handler.ListRecipientsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.ListRecipientsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Recipients, 1)
		assert.Equal(t, "Giulia Bianchi", resp.Recipients[0].Name)
		assert.Equal(t, "email", resp.Recipients[0].RecipientType)
		assert.Nil(t, resp.Recipients[0].Phone)
	})

	t.Run("EmptyListIsArray", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		commID := uuid.New()
		m.recipient.On("List", mock.Anything, commID, 10, 20).Return([]*domain.RecipientDetail{}, nil).Once()

		c, w := createTestContext(http.MethodGet,
			"/v1/communications/recipients?communication_id="+commID.String()+"&offset=10&limit=20", nil)
		handler.ListRecipientsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"recipients":[]}`, w.Body.String())
	})

	t.Run("MissingCommunicationID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/communications/recipients", nil)
		handler.ListRecipientsHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"communication_id is required"}`, w.Body.String())
	})

	t.Run("CommunicationNotFound", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		commID := uuid.New()
		m.recipient.On("List", mock.Anything, commID, 0, 100).Return(nil, domain.ErrCommunicationNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/communications/recipients?communication_id="+commID.String(), nil)
		handler.ListRecipientsHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCommunicationHandler_CountRecipientsHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		athlete := uuid.New()
		m.recipient.On("Count", mock.Anything, domain.RecipientFilter{AthleteIDs: []uuid.UUID{athlete}}).
			Return(1, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/communications/recipients/count",
			map[string]any{"athlete_ids": []string{athlete.String()}})
		handler.CountRecipientsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":1}`, w.Body.String())
	})

	t.Run("InvalidAthleteID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/communications/recipients/count",
			map[string]any{"athlete_ids": []string{"x"}})
		handler.CountRecipientsHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp httputil.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "athlete_ids")
	})
}

func TestCommunicationHandler_ScheduleHandler(t *testing.T) {
	at := time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		id := uuid.New()
		m.scheduled.On("Schedule", mock.Anything, id, mock.MatchedBy(at.Equal)).Return(nil).Once()

		c, w := createTestContext(http.MethodPost, "/", map[string]string{"scheduled_for": at.Format(time.RFC3339)})
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.ScheduleHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.ScheduleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "scheduled", resp.Status)
		assert.True(t, at.Equal(resp.ScheduledFor))
	})

	t.Run("InPast", func(t *testing.T) {
		handler, m := setupTestHandler(t)
		id := uuid.New()
		m.scheduled.On("Schedule", mock.Anything, id, mock.Anything).Return(domain.ErrScheduleInPast).Once()

		c, w := createTestContext(http.MethodPost, "/", map[string]string{"scheduled_for": at.Format(time.RFC3339)})
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		handler.ScheduleHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Scheduled time must be in the future"}`, w.Body.String())
	})

	t.Run("MissingTime", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/", map[string]string{})
		c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}
		handler.ScheduleHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
