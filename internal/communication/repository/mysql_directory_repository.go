package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

// MySQLDirectoryRepository reads user contacts and push subscriptions from MySQL.
type MySQLDirectoryRepository struct {
	db *sql.DB
}

// ListActiveContacts returns the active users matching the filter. An empty
// filter matches nobody.
func (m *MySQLDirectoryRepository) ListActiveContacts(
	ctx context.Context,
	filter domain.RecipientFilter,
) ([]domain.Contact, error) {
	if filter.IsEmpty() {
		return nil, nil
	}
	querier := database.GetTx(ctx, m.db)

	where, args := mysqlContactWhere(filter)
	query := `SELECT ` + contactColumns + ` FROM profiles p WHERE ` + where + ` ORDER BY p.created_at ASC, p.user_id ASC`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list contacts")
	}
	return collectContacts(rows)
}

// CountActiveContacts returns the number of active users matching the filter.
func (m *MySQLDirectoryRepository) CountActiveContacts(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	if filter.IsEmpty() {
		return 0, nil
	}
	querier := database.GetTx(ctx, m.db)

	where, args := mysqlContactWhere(filter)
	query := `SELECT COUNT(*) FROM profiles p WHERE ` + where

	var count int
	if err := querier.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count contacts")
	}
	return count, nil
}

// ContactsByUserIDs returns the contacts of the given users keyed by user ID.
// Users without a profile are absent from the map.
func (m *MySQLDirectoryRepository) ContactsByUserIDs(
	ctx context.Context,
	userIDs []uuid.UUID,
) (map[uuid.UUID]domain.Contact, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]domain.Contact{}, nil
	}
	querier := database.GetTx(ctx, m.db)

	in, args := inList(nil, uuidStrings(userIDs), mysqlPlaceholder)
	query := `SELECT ` + contactColumns + ` FROM profiles p WHERE p.user_id IN ` + in

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load contacts")
	}
	contacts, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}
	return contactsByUser(contacts), nil
}

// ListActivePushTokens returns the active push subscriptions of a user.
func (m *MySQLDirectoryRepository) ListActivePushTokens(
	ctx context.Context,
	userID uuid.UUID,
) ([]domain.PushToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, user_id, token, COALESCE(device_type, '') FROM user_push_tokens
			  WHERE user_id = ? AND is_active = TRUE
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list push tokens")
	}
	return collectPushTokens(rows)
}

// DeactivatePushToken marks a push subscription as inactive.
func (m *MySQLDirectoryRepository) DeactivatePushToken(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE user_push_tokens SET is_active = FALSE, updated_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return apperrors.Wrap(err, "failed to deactivate push token")
	}
	return nil
}

// NewMySQLDirectoryRepository creates a new MySQL directory repository.
func NewMySQLDirectoryRepository(db *sql.DB) *MySQLDirectoryRepository {
	return &MySQLDirectoryRepository{db: db}
}

func mysqlContactWhere(filter domain.RecipientFilter) (string, []any) {
	conds := []string{"p.user_id IS NOT NULL", "p.stato = 'attivo'"}
	var args []any
	var in string
	if roles := filter.Roles(); len(roles) > 0 {
		in, args = inList(args, roles, mysqlPlaceholder)
		conds = append(conds, "p.role IN "+in)
	}
	if len(filter.AthleteIDs) > 0 {
		in, args = inList(args, uuidStrings(filter.AthleteIDs), mysqlPlaceholder)
		conds = append(conds, "p.user_id IN "+in)
	}
	return strings.Join(conds, " AND "), args
}
