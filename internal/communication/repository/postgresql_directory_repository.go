package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

const contactColumns = `p.user_id, COALESCE(p.email, ''), COALESCE(p.telefono, ''), COALESCE(p.role, ''),
	EXISTS (SELECT 1 FROM user_push_tokens t WHERE t.user_id = p.user_id AND t.is_active = TRUE)`

// PostgreSQLDirectoryRepository reads user contacts and push subscriptions from PostgreSQL.
type PostgreSQLDirectoryRepository struct {
	db *sql.DB
}

// ListActiveContacts returns the active users matching the filter. An empty
// filter matches nobody.
func (p *PostgreSQLDirectoryRepository) ListActiveContacts(
	ctx context.Context,
	filter domain.RecipientFilter,
) ([]domain.Contact, error) {
	if filter.IsEmpty() {
		return nil, nil
	}
	querier := database.GetTx(ctx, p.db)

	where, args := postgresContactWhere(filter)
	query := `SELECT ` + contactColumns + ` FROM profiles p WHERE ` + where + ` ORDER BY p.created_at ASC, p.user_id ASC`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list contacts")
	}
	return collectContacts(rows)
}

// CountActiveContacts returns the number of active users matching the filter.
func (p *PostgreSQLDirectoryRepository) CountActiveContacts(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	if filter.IsEmpty() {
		return 0, nil
	}
	querier := database.GetTx(ctx, p.db)

	where, args := postgresContactWhere(filter)
	query := `SELECT COUNT(*) FROM profiles p WHERE ` + where

	var count int
	if err := querier.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count contacts")
	}
	return count, nil
}

// ContactsByUserIDs returns the contacts of the given users keyed by user ID.
// Users without a profile are absent from the map.
func (p *PostgreSQLDirectoryRepository) ContactsByUserIDs(
	ctx context.Context,
	userIDs []uuid.UUID,
) (map[uuid.UUID]domain.Contact, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]domain.Contact{}, nil
	}
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + contactColumns + ` FROM profiles p WHERE p.user_id = ANY($1::uuid[])`

	rows, err := querier.QueryContext(ctx, query, pq.Array(uuidStrings(userIDs)))
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
func (p *PostgreSQLDirectoryRepository) ListActivePushTokens(
	ctx context.Context,
	userID uuid.UUID,
) ([]domain.PushToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, user_id, token, COALESCE(device_type, '') FROM user_push_tokens
			  WHERE user_id = $1 AND is_active = TRUE
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list push tokens")
	}
	return collectPushTokens(rows)
}

// DeactivatePushToken marks a push subscription as inactive.
func (p *PostgreSQLDirectoryRepository) DeactivatePushToken(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE user_push_tokens SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return apperrors.Wrap(err, "failed to deactivate push token")
	}
	return nil
}

// NewPostgreSQLDirectoryRepository creates a new PostgreSQL directory repository.
func NewPostgreSQLDirectoryRepository(db *sql.DB) *PostgreSQLDirectoryRepository {
	return &PostgreSQLDirectoryRepository{db: db}
}

func postgresContactWhere(filter domain.RecipientFilter) (string, []any) {
	conds := []string{"p.user_id IS NOT NULL", "p.stato = 'attivo'"}
	var args []any
	if roles := filter.Roles(); len(roles) > 0 {
		args = append(args, pq.Array(roles))
		conds = append(conds, "p.role = ANY("+postgresPlaceholder(len(args))+")")
	}
	if len(filter.AthleteIDs) > 0 {
		args = append(args, pq.Array(uuidStrings(filter.AthleteIDs)))
		conds = append(conds, "p.user_id = ANY("+postgresPlaceholder(len(args))+"::uuid[])")
	}
	return strings.Join(conds, " AND "), args
}
