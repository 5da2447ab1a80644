// Package repository implements communication persistence for PostgreSQL and MySQL.
//
// All repositories are transaction-aware via database.GetTx(). UUIDs are native
// on PostgreSQL and CHAR(36) on MySQL; JSON columns are jsonb and JSON respectively.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

const communicationColumns = `id, created_by, title, message, type, status, scheduled_for, sent_at,
	recipient_filter, COALESCE(total_recipients, 0), COALESCE(total_sent, 0), COALESCE(total_delivered, 0),
	COALESCE(total_opened, 0), COALESCE(total_failed, 0), metadata, created_at, updated_at`

const recipientColumns = `r.id, r.communication_id, r.user_id, r.recipient_type, r.status, r.sent_at,
	r.delivered_at, r.opened_at, r.failed_at, r.error_message, r.metadata, r.created_at, r.updated_at`

// JSON merge expressions; %s is the placeholder of the patch object.
const (
	postgresMergeJSON = "COALESCE(metadata, '{}'::jsonb) || %s::jsonb"
	mysqlMergeJSON    = "JSON_MERGE_PATCH(COALESCE(metadata, JSON_OBJECT()), CAST(%s AS JSON))"
)

// insertChunkSize bounds the number of rows per multi-row INSERT.
const insertChunkSize = 500

type scanner interface {
	Scan(dest ...any) error
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func mysqlPlaceholder(int) string { return "?" }

// recipientInsert renders a multi-row recipient INSERT between head and tail.
func recipientInsert(head, tail string, rows []domain.NewRecipient, now time.Time, placeholder func(int) string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(head)
	sb.WriteString(" (id, communication_id, user_id, recipient_type, status, metadata, created_at, updated_at) VALUES ")

	args := make([]any, 0, len(rows)*7)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		phs := make([]any, 7)
		for j, v := range []any{
			row.ID, row.CommunicationID, row.UserID, string(row.RecipientType),
			string(domain.RecipientStatusPending), now, now,
		} {
			args = append(args, v)
			phs[j] = placeholder(len(args))
		}
		fmt.Fprintf(&sb, "(%s, %s, %s, %s, %s, '{}', %s, %s)", phs...)
	}
	sb.WriteString(tail)
	return sb.String(), args
}

// updateBuilder assembles an UPDATE statement with driver specific placeholders.
type updateBuilder struct {
	placeholder func(int) string
	sets        []string
	args        []any
}

func newUpdateBuilder(placeholder func(int) string) *updateBuilder {
	return &updateBuilder{placeholder: placeholder}
}

// arg registers a value and returns its placeholder.
func (b *updateBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return b.placeholder(len(b.args))
}

func (b *updateBuilder) set(column string, value any) {
	b.sets = append(b.sets, column+" = "+b.arg(value))
}

// setExpr adds "column = expr" where expr contains a single %s for the value placeholder.
func (b *updateBuilder) setExpr(column, expr string, value any) {
	b.sets = append(b.sets, column+" = "+fmt.Sprintf(expr, b.arg(value)))
}

// build renders the statement; where contains %s placeholders for whereArgs in order.
func (b *updateBuilder) build(table, where string, whereArgs ...any) (string, []any) {
	phs := make([]any, len(whereArgs))
	for i, a := range whereArgs {
		phs[i] = b.arg(a)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(b.sets, ", "), fmt.Sprintf(where, phs...)), b.args
}

func scanCommunication(s scanner) (*domain.Communication, error) {
	var c domain.Communication
	var typ, status string
	var filterRaw, metadataRaw []byte
	var scheduledFor, sentAt sql.NullTime

	err := s.Scan(
		&c.ID,
		&c.CreatedBy,
		&c.Title,
		&c.Message,
		&typ,
		&status,
		&scheduledFor,
		&sentAt,
		&filterRaw,
		&c.TotalRecipients,
		&c.TotalSent,
		&c.TotalDelivered,
		&c.TotalOpened,
		&c.TotalFailed,
		&metadataRaw,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.Type(typ)
	c.Status = domain.Status(status)
	if scheduledFor.Valid {
		c.ScheduledFor = &scheduledFor.Time
	}
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	if c.RecipientFilter, err = domain.ParseRecipientFilter(filterRaw); err != nil {
		return nil, fmt.Errorf("invalid recipient_filter: %w", err)
	}
	if c.Metadata, err = domain.ParseMetadata(metadataRaw); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return &c, nil
}

func scanRecipient(s scanner, extra ...any) (*domain.Recipient, error) {
	var r domain.Recipient
	var channel, status string
	var sentAt, deliveredAt, openedAt, failedAt sql.NullTime
	var errorMessage sql.NullString
	var metadataRaw []byte

	dest := []any{
		&r.ID,
		&r.CommunicationID,
		&r.UserID,
		&channel,
		&status,
		&sentAt,
		&deliveredAt,
		&openedAt,
		&failedAt,
		&errorMessage,
		&metadataRaw,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	r.RecipientType = domain.Channel(channel)
	r.Status = domain.RecipientStatus(status)
	r.SentAt = nullTime(sentAt)
	r.DeliveredAt = nullTime(deliveredAt)
	r.OpenedAt = nullTime(openedAt)
	r.FailedAt = nullTime(failedAt)
	if errorMessage.Valid {
		r.ErrorMessage = &errorMessage.String
	}
	var err error
	if r.Metadata, err = domain.ParseMetadata(metadataRaw); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return &r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// marshalPatch renders a metadata patch; nil patches render as an empty object.
func marshalPatch(m domain.Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// recipientDisplayName is "nome cognome", the email when both are empty, or a
// placeholder when the user has no profile.
func recipientDisplayName(hasProfile bool, name, surname, email sql.NullString) string {
	if !hasProfile {
		return "Nome non disponibile"
	}
	full := strings.TrimSpace(name.String + " " + surname.String)
	if full == "" {
		return email.String
	}
	return full
}

const statsQuery = `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN status IN ('sent', 'delivered', 'opened') THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status IN ('delivered', 'opened') THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'opened' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status IN ('failed', 'bounced') THEN 1 ELSE 0 END), 0)
	FROM communication_recipients`

func aggregateStats(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) (int, domain.Stats, error) {
	var total int
	var stats domain.Stats
	err := querier.QueryRowContext(ctx, query, args...).Scan(
		&total,
		&stats.TotalSent,
		&stats.TotalDelivered,
		&stats.TotalOpened,
		&stats.TotalFailed,
	)
	if err != nil {
		return 0, domain.Stats{}, apperrors.Wrap(err, "failed to aggregate recipient stats")
	}
	return total, stats, nil
}

func collectCommunications(rows *sql.Rows) ([]*domain.Communication, error) {
	defer func() { _ = rows.Close() }()

	var communications []*domain.Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan communication")
		}
		communications = append(communications, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate communications")
	}
	return communications, nil
}

func collectRecipients(rows *sql.Rows) ([]*domain.Recipient, error) {
	defer func() { _ = rows.Close() }()

	var recipients []*domain.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan recipient")
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate recipients")
	}
	return recipients, nil
}

func collectRecipientDetails(rows *sql.Rows) ([]*domain.RecipientDetail, error) {
	defer func() { _ = rows.Close() }()

	var details []*domain.RecipientDetail
	for rows.Next() {
		var hasProfile bool
		var name, surname, email, phone sql.NullString
		r, err := scanRecipient(rows, &hasProfile, &name, &surname, &email, &phone)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan recipient")
		}
		details = append(details, &domain.RecipientDetail{
			Recipient: *r,
			Name:      recipientDisplayName(hasProfile, name, surname, email),
			Email:     nullString(email),
			Phone:     nullString(phone),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate recipients")
	}
	return details, nil
}

// applyRecipientUpdate adds the non-nil fields of update to b. mergeExpr merges
// the JSON patch into the stored metadata.
func applyRecipientUpdate(b *updateBuilder, update domain.RecipientUpdate, mergeExpr string) error {
	b.set("status", string(update.Status))
	if update.SentAt != nil {
		b.set("sent_at", *update.SentAt)
	}
	if update.DeliveredAt != nil {
		b.set("delivered_at", *update.DeliveredAt)
	}
	if update.OpenedAt != nil {
		b.set("opened_at", *update.OpenedAt)
	}
	if update.FailedAt != nil {
		b.set("failed_at", *update.FailedAt)
	}
	if update.ErrorMessage != nil {
		b.set("error_message", *update.ErrorMessage)
	}
	if len(update.Metadata) > 0 {
		patch, err := marshalPatch(update.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to encode recipient metadata")
		}
		b.setExpr("metadata", mergeExpr, patch)
	}
	b.set("updated_at", time.Now().UTC())
	return nil
}

func execRecipientUpdate(ctx context.Context, querier database.Querier, query string, args []any) error {
	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update recipient")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update recipient")
	}
	if rows == 0 {
		return domain.ErrRecipientNotFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func collectContacts(rows *sql.Rows) ([]domain.Contact, error) {
	defer func() { _ = rows.Close() }()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.UserID, &c.Email, &c.Phone, &c.Role, &c.HasPushToken); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan contact")
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate contacts")
	}
	return contacts, nil
}

func contactsByUser(contacts []domain.Contact) map[uuid.UUID]domain.Contact {
	out := make(map[uuid.UUID]domain.Contact, len(contacts))
	for _, c := range contacts {
		out[c.UserID] = c
	}
	return out
}

func collectPushTokens(rows *sql.Rows) ([]domain.PushToken, error) {
	defer func() { _ = rows.Close() }()

	var tokens []domain.PushToken
	for rows.Next() {
		var t domain.PushToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceType); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan push token")
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate push tokens")
	}
	return tokens, nil
}

// inList renders "(ph, ph, ...)" for values and appends them to args.
func inList(args []any, values []string, placeholder func(int) string) (string, []any) {
	phs := make([]string, len(values))
	for i, v := range values {
		args = append(args, v)
		phs[i] = placeholder(len(args))
	}
	return "(" + strings.Join(phs, ", ") + ")", args
}
