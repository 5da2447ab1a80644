package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

// PostgreSQLRecipientRepository implements Recipient persistence for PostgreSQL.
type PostgreSQLRecipientRepository struct {
	db *sql.DB
}

// CountByCommunication returns the number of recipient rows of a communication.
func (p *PostgreSQLRecipientRepository) CountByCommunication(ctx context.Context, communicationID uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM communication_recipients WHERE communication_id = $1`

	var count int
	if err := querier.QueryRowContext(ctx, query, communicationID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count recipients")
	}
	return count, nil
}

// CreateBatch inserts recipients in chunks, skipping rows that already exist for
// the same communication, user and channel. Returns the number of rows inserted.
func (p *PostgreSQLRecipientRepository) CreateBatch(ctx context.Context, recipients []domain.NewRecipient) (int, error) {
	querier := database.GetTx(ctx, p.db)
	now := time.Now().UTC()

	inserted := 0
	for start := 0; start < len(recipients); start += insertChunkSize {
		end := min(start+insertChunkSize, len(recipients))
		query, args := recipientInsert(
			"INSERT INTO communication_recipients",
			" ON CONFLICT (communication_id, user_id, recipient_type) DO NOTHING",
			recipients[start:end],
			now,
			postgresPlaceholder,
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
func (p *PostgreSQLRecipientRepository) ListPending(
	ctx context.Context,
	communicationID uuid.UUID,
	channel domain.Channel,
) ([]*domain.Recipient, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r
			  WHERE r.communication_id = $1 AND r.recipient_type = $2 AND r.status = 'pending'
			  ORDER BY r.created_at ASC, r.id ASC`

	rows, err := querier.QueryContext(ctx, query, communicationID, string(channel))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending recipients")
	}
	return collectRecipients(rows)
}

// GetByID retrieves a recipient. Returns ErrRecipientNotFound if missing.
func (p *PostgreSQLRecipientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r WHERE r.id = $1`

	return getRecipient(querier.QueryRowContext(ctx, query, id))
}

// FindByProviderMessageID retrieves the recipient whose metadata carries the
// provider message id of the given channel.
func (p *PostgreSQLRecipientRepository) FindByProviderMessageID(
	ctx context.Context,
	channel domain.Channel,
	messageID string,
) (*domain.Recipient, error) {
	key := domain.ProviderMessageKey(channel)
	if key == "" || messageID == "" {
		return nil, domain.ErrRecipientNotFound
	}
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recipientColumns + ` FROM communication_recipients r
			  WHERE r.recipient_type = $1 AND r.metadata->>$2 = $3
			  ORDER BY r.created_at DESC
			  LIMIT 1`

	return getRecipient(querier.QueryRowContext(ctx, query, string(channel), key, messageID))
}

// UpdateStatus applies a delivery state change to a recipient.
func (p *PostgreSQLRecipientRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update domain.RecipientUpdate,
) error {
	querier := database.GetTx(ctx, p.db)

	b := newUpdateBuilder(postgresPlaceholder)
	if err := applyRecipientUpdate(b, update, postgresMergeJSON); err != nil {
		return err
	}
	query, args := b.build("communication_recipients", "id = %s", id)

	return execRecipientUpdate(ctx, querier, query, args)
}

// ListByCommunication returns a page of recipients joined with their profiles, newest first.
func (p *PostgreSQLRecipientRepository) ListByCommunication(
	ctx context.Context,
	communicationID uuid.UUID,
	offset, limit int,
) ([]*domain.RecipientDetail, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recipientColumns + `, p.user_id IS NOT NULL, p.nome, p.cognome, p.email, p.telefono
			  FROM communication_recipients r
			  LEFT JOIN profiles p ON p.user_id = r.user_id
			  WHERE r.communication_id = $1
			  ORDER BY r.created_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, communicationID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list recipients")
	}
	return collectRecipientDetails(rows)
}

// NewPostgreSQLRecipientRepository creates a new PostgreSQL recipient repository.
func NewPostgreSQLRecipientRepository(db *sql.DB) *PostgreSQLRecipientRepository {
	return &PostgreSQLRecipientRepository{db: db}
}

func getRecipient(row *sql.Row) (*domain.Recipient, error) {
	recipient, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get recipient")
	}
	return recipient, nil
}
