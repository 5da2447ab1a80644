// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/22club/communications/internal/communication/domain"
	customValidation "github.com/22club/communications/internal/validation"
)

// SendCommunicationRequest contains the communication to dispatch.
type SendCommunicationRequest struct {
	CommunicationID string `json:"communicationId"`
}

// Validate checks if the send request is valid.
func (r *SendCommunicationRequest) Validate() error {
	return validation.Validate(r.CommunicationID,
		validation.Required.Error("communicationId is required"),
		customValidation.UUID.Error("communicationId must be a valid UUID"),
	)
}

// ID returns the parsed communication id. Call Validate first.
func (r *SendCommunicationRequest) ID() uuid.UUID {
	return uuid.MustParse(r.CommunicationID)
}

// RecipientCountRequest is a recipient filter whose audience size is requested.
type RecipientCountRequest struct {
	Role       string   `json:"role"`
	AthleteIDs []string `json:"athlete_ids"`
	AllUsers   bool     `json:"all_users"`
}

// Validate checks if the count request is valid.
func (r *RecipientCountRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Role, validation.Length(0, 50)),
		validation.Field(&r.AthleteIDs, customValidation.EachUUID),
	)
}

// Filter converts the request into a domain filter. Call Validate first.
func (r *RecipientCountRequest) Filter() domain.RecipientFilter {
	filter := domain.RecipientFilter{Role: r.Role, AllUsers: r.AllUsers}
	for _, id := range r.AthleteIDs {
		filter.AthleteIDs = append(filter.AthleteIDs, uuid.MustParse(id))
	}
	return filter
}

// ScheduleCommunicationRequest contains the delivery time of a communication.
type ScheduleCommunicationRequest struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Validate checks if the schedule request is valid.
func (r *ScheduleCommunicationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ScheduledFor, validation.Required),
	)
}

// ResendEvent is the body of a Resend webhook call.
type ResendEvent struct {
	Type    string `json:"type"`
	EmailID string `json:"email_id"`
	Link    string `json:"link"`
	Data    struct {
		EmailID string `json:"email_id"`
		Link    string `json:"link"`
	} `json:"data"`
}

// MessageID returns data.email_id, falling back to the top-level email_id.
func (e *ResendEvent) MessageID() string {
	if e.Data.EmailID != "" {
		return e.Data.EmailID
	}
	return e.EmailID
}

// ClickedLink returns data.link, falling back to the top-level link.
func (e *ResendEvent) ClickedLink() string {
	if e.Data.Link != "" {
		return e.Data.Link
	}
	return e.Link
}
