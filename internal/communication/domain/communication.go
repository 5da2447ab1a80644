// Package domain defines the communication campaign model, its recipients and
// the results produced while dispatching them.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is the delivery channel selection of a communication.
type Type string

const (
	TypePush  Type = "push"
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
	TypeAll   Type = "all"
)

// Channels returns the channels a communication of this type is delivered on,
// in dispatch order. Unknown types yield nil.
func (t Type) Channels() []Channel {
	switch t {
	case TypePush:
		return []Channel{ChannelPush}
	case TypeEmail:
		return []Channel{ChannelEmail}
	case TypeSMS:
		return []Channel{ChannelSMS}
	case TypeAll:
		return []Channel{ChannelPush, ChannelEmail, ChannelSMS}
	default:
		return nil
	}
}

// Includes reports whether a communication of this type is delivered on ch.
func (t Type) Includes(ch Channel) bool {
	for _, c := range t.Channels() {
		if c == ch {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a communication.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Communication is one outbound messaging campaign.
type Communication struct {
	ID              uuid.UUID
	CreatedBy       uuid.UUID
	Title           string
	Message         string
	Type            Type
	Status          Status
	ScheduledFor    *time.Time
	SentAt          *time.Time
	RecipientFilter RecipientFilter
	TotalRecipients int
	TotalSent       int
	TotalDelivered  int
	TotalOpened     int
	TotalFailed     int
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanDispatch reports whether the communication may enter the send pipeline.
func (c *Communication) CanDispatch() bool {
	switch c.Status {
	case StatusDraft, StatusScheduled, StatusSending, StatusFailed:
		return true
	default:
		return false
	}
}

// CanSchedule reports whether the communication may be scheduled for later delivery.
func (c *Communication) CanSchedule() bool {
	return c.Status == StatusDraft || c.Status == StatusFailed
}

// Metadata is the free-form context bag stored with communications and recipients.
type Metadata map[string]any

// String returns the string stored under key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// ParseMetadata decodes a JSON object. Empty or null input yields an empty Metadata.
func ParseMetadata(raw []byte) (Metadata, error) {
	m := Metadata{}
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// StatusUpdate is the typed payload for changing a communication's status.
// Failure, when set, is merged into the stored metadata.
type StatusUpdate struct {
	Status Status
	SentAt *time.Time
	// SetSentAt clears sent_at when SentAt is nil.
	SetSentAt bool
	Failure   *Failure
}

// Failure describes why a communication ended in the failed state.
type Failure struct {
	Error    string    `json:"error"`
	Errors   []string  `json:"errors,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}

// MetadataPatch renders the failure as a metadata patch.
func (f *Failure) MetadataPatch() Metadata {
	if f == nil {
		return nil
	}
	m := Metadata{
		"error":     f.Error,
		"failed_at": f.FailedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(f.Errors) > 0 {
		m["errors"] = f.Errors
	}
	return m
}

// Stats are the aggregate delivery counters of a communication.
type Stats struct {
	TotalSent      int
	TotalDelivered int
	TotalOpened    int
	TotalFailed    int
}
