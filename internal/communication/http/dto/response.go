package dto

import (
	"time"

	"github.com/22club/communications/internal/communication/domain"
)

// Caller-facing summaries for failed sends.
const (
	MessageNoRecipients = "Nessun destinatario valido trovato"
	MessageTimeout      = "Invio interrotto per timeout"
	MessageSendError    = "Errore durante l'invio della comunicazione"
)

// SendResponse is the outcome of a dispatch. Error responses share the shape
// with zero counters.
type SendResponse struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message"`
}

// MapSendResultToResponse converts a dispatch result to its response.
func MapSendResultToResponse(result *domain.SendResult) SendResponse {
	return SendResponse{
		Success: result.Success,
		Sent:    result.Sent,
		Failed:  result.Failed,
		Total:   result.Total,
		Errors:  result.Errors,
		Error:   result.Error,
		Message: result.Message(),
	}
}

// NewSendFailure builds the zero-count response of a send that never produced a result.
func NewSendFailure(errMsg, message string) SendResponse {
	return SendResponse{Error: errMsg, Message: message}
}

// RecipientResponse is one recipient row as shown to staff.
type RecipientResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	RecipientType string     `json:"recipient_type"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sent_at"`
	DeliveredAt   *time.Time `json:"delivered_at"`
	OpenedAt      *time.Time `json:"opened_at"`
	FailedAt      *time.Time `json:"failed_at"`
	ErrorMessage  *string    `json:"error_message"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListRecipientsResponse wraps a page of recipients.
type ListRecipientsResponse struct {
	Recipients []RecipientResponse `json:"recipients"`
}

// MapRecipientsToListResponse converts recipient details to the list response.
func MapRecipientsToListResponse(recipients []*domain.RecipientDetail) ListRecipientsResponse {
	items := make([]RecipientResponse, 0, len(recipients))
	for _, r := range recipients {
		items = append(items, RecipientResponse{
			ID:            r.ID.String(),
			UserID:        r.UserID.String(),
			Name:          r.Name,
			Email:         r.Email,
			Phone:         r.Phone,
			RecipientType: string(r.RecipientType),
			Status:        string(r.Status),
			SentAt:        r.SentAt,
			DeliveredAt:   r.DeliveredAt,
			OpenedAt:      r.OpenedAt,
			FailedAt:      r.FailedAt,
			ErrorMessage:  r.ErrorMessage,
			CreatedAt:     r.CreatedAt,
		})
	}
	return ListRecipientsResponse{Recipients: items}
}

// RecipientCountResponse is the audience size of a filter.
type RecipientCountResponse struct {
	Count int `json:"count"`
}

// ScheduleResponse confirms a scheduled communication.
type ScheduleResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ScheduledFor time.Time `json:"scheduled_for"`
}
