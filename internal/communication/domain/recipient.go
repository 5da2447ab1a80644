package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is a single delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// RecipientStatus is the per-channel delivery state of a recipient.
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusOpened    RecipientStatus = "opened"
	RecipientStatusFailed    RecipientStatus = "failed"
	RecipientStatusBounced   RecipientStatus = "bounced"
)

// Recipient is one resolved target user of a communication on one channel.
type Recipient struct {
	ID              uuid.UUID
	CommunicationID uuid.UUID
	UserID          uuid.UUID
	RecipientType   Channel
	Status          RecipientStatus
	SentAt          *time.Time
	DeliveredAt     *time.Time
	OpenedAt        *time.Time
	FailedAt        *time.Time
	ErrorMessage    *string
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecipientDetail is a recipient joined with the profile fields shown to staff.
type RecipientDetail struct {
	Recipient
	Name  string
	Email *string
	Phone *string
}

// RecipientUpdate is the typed payload for changing a recipient's delivery state.
type RecipientUpdate struct {
	Status       RecipientStatus
	SentAt       *time.Time
	DeliveredAt  *time.Time
	OpenedAt     *time.Time
	FailedAt     *time.Time
	ErrorMessage *string
	// Metadata is merged into the stored metadata.
	Metadata Metadata
}

// Provider message id keys stored in recipient metadata.
const (
	MetadataSMSMessageID   = "message_id"
	MetadataEmailMessageID = "email_id"
)

// ProviderMessageKey returns the metadata key holding the provider message id for ch.
func ProviderMessageKey(ch Channel) string {
	switch ch {
	case ChannelSMS:
		return MetadataSMSMessageID
	case ChannelEmail:
		return MetadataEmailMessageID
	default:
		return ""
	}
}

// RecipientFilter selects the audience of a communication.
type RecipientFilter struct {
	Role       string      `json:"role,omitempty"`
	AthleteIDs []uuid.UUID `json:"athlete_ids,omitempty"`
	AllUsers   bool        `json:"all_users,omitempty"`
}

// IsEmpty reports whether the filter selects nobody.
func (f RecipientFilter) IsEmpty() bool {
	return !f.AllUsers && f.Role == "" && len(f.AthleteIDs) == 0
}

// Roles expands the role filter; "atleta" also matches the legacy "athlete" value.
func (f RecipientFilter) Roles() []string {
	switch f.Role {
	case "":
		return nil
	case "atleta":
		return []string{"atleta", "athlete"}
	default:
		return []string{f.Role}
	}
}

// Normalized returns a copy with sorted, de-duplicated athlete ids.
func (f RecipientFilter) Normalized() RecipientFilter {
	ids := slices.Clone(f.AthleteIDs)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return RecipientFilter{Role: f.Role, AthleteIDs: slices.Compact(ids), AllUsers: f.AllUsers}
}

// CacheKey is a stable key for equal filters regardless of athlete id order.
func (f RecipientFilter) CacheKey() string {
	n := f.Normalized()
	ids := make([]string, len(n.AthleteIDs))
	for i, id := range n.AthleteIDs {
		ids[i] = id.String()
	}
	b, _ := json.Marshal(struct {
		Role       string   `json:"role"`
		AthleteIDs []string `json:"athlete_ids"`
		AllUsers   bool     `json:"all_users"`
	}{n.Role, ids, n.AllUsers})
	return "recipients:count:" + string(b)
}

// ParseRecipientFilter decodes a stored filter. Empty or null input yields the empty filter.
func ParseRecipientFilter(raw []byte) (RecipientFilter, error) {
	var f RecipientFilter
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return RecipientFilter{}, err
	}
	return f, nil
}

// Contact is an active user who can be targeted by a communication.
type Contact struct {
	UserID       uuid.UUID
	Email        string
	Phone        string
	Role         string
	HasPushToken bool
}

// PushToken is an active Web Push subscription of a user.
type PushToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Token      string
	DeviceType string
}

// NewRecipient is a recipient row about to be created.
type NewRecipient struct {
	ID              uuid.UUID
	CommunicationID uuid.UUID
	UserID          uuid.UUID
	RecipientType   Channel
}
