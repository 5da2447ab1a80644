package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

// MySQLRecipientRepository implements Recipient persistence for MySQL.
type MySQLRecipientRepository struct {
	db *sql.DB
}

// CountByCommunication returns the number of recipient rows of a communication.
func (m *MySQLRecipientRepository) CountByCommunication(ctx context.Context, communicationID uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM communication_recipients WHERE communication_id = ?`

	var count int
	if err := querier.QueryRowContext(ctx, query, communicationID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count recipients")
	}
	return count, nil
}

// CreateBatch inserts recipients in chunks, skipping rows that already exist for
// the same communication, user and channel. Returns the number of rows inserted.
func (m *MySQLRecipientRepository) CreateBatch(ctx context.Context, recipients []domain.NewRecipient) (int, error) {
	querier := database.GetTx(ctx, m.db)
	now := time.Now().UTC()

	inserted := 0
	for start := 0; start < len(recipients); start += insertChunkSize {
		end := min(start+insertChunkSize, len(recipients))
		query, args := recipientInsert(
			"INSERT IGNORE INTO communication_recipients",
			"",
			recipients[start:end],
			now,
			mysqlPlaceholder,
		)

		result, err := querier.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, apperrors.Wrap(err, "failed to create recipients")
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, apperrors.Wrap(err, "failed to create recipients")
		}
		inserted += int(rows)
	}
	return inserted, nil
}

// ListPending returns the pending recipients of a communication on one channel.
func (m *MySQLRecipientRepository) ListPending(
	ctx context.Context,
	communicationID uuid.UUID,
	channel domain.Channel,
) ([]*domain.Recipient, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r
			  WHERE r.communication_id = ? AND r.recipient_type = ? AND r.status = 'pending'
			  ORDER BY r.created_at ASC, r.id ASC`

	rows, err := querier.QueryContext(ctx, query, communicationID, string(channel))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending recipients")
	}
	return collectRecipients(rows)
}

// GetByID retrieves a recipient. Returns ErrRecipientNotFound if missing.
func (m *MySQLRecipientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r WHERE r.id = ?`

	return getRecipient(querier.QueryRowContext(ctx, query, id))
}

// FindByProviderMessageID retrieves the recipient whose metadata carries the
// provider message id of the given channel.
func (m *MySQLRecipientRepository) FindByProviderMessageID(
	ctx context.Context,
	channel domain.Channel,
	messageID string,
) (*domain.Recipient, error) {
	key := domain.ProviderMessageKey(channel)
	if key == "" || messageID == "" {
		return nil, domain.ErrRecipientNotFound
	}
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r
			  WHERE r.recipient_type = ? AND JSON_UNQUOTE(JSON_EXTRACT(r.metadata, ?)) = ?
			  ORDER BY r.created_at DESC
			  LIMIT 1`

	return getRecipient(querier.QueryRowContext(ctx, query, string(channel), "$."+key, messageID))
}

// UpdateStatus applies a delivery state change to a recipient.
func (m *MySQLRecipientRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update domain.RecipientUpdate,
) error {
	querier := database.GetTx(ctx, m.db)

	b := newUpdateBuilder(mysqlPlaceholder)
	if err := applyRecipientUpdate(b, update, mysqlMergeJSON); err != nil {
		return err
	}
	query, args := b.build("communication_recipients", "id = %s", id)

	return execRecipientUpdate(ctx, querier, query, args)
}

// ListByCommunication returns a page of recipients joined with their profiles, newest first.
func (m *MySQLRecipientRepository) ListByCommunication(
	ctx context.Context,
	communicationID uuid.UUID,
	offset, limit int,
) ([]*domain.RecipientDetail, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recipientColumns + `, p.user_id IS NOT NULL, p.nome, p.cognome, p.email, p.telefono
			  FROM communication_recipients r
			  LEFT JOIN profiles p ON p.user_id = r.user_id
			  WHERE r.communication_id = ?
			  ORDER BY r.created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, communicationID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list recipients")
	}
	return collectRecipientDetails(rows)
}

// NewMySQLRecipientRepository creates a new MySQL recipient repository.
func NewMySQLRecipientRepository(db *sql.DB) *MySQLRecipientRepository {
	return &MySQLRecipientRepository{db: db}
}
