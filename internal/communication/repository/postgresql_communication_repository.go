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

// PostgreSQLCommunicationRepository implements Communication persistence for PostgreSQL.
type PostgreSQLCommunicationRepository struct {
	db *sql.DB
}

// Get retrieves a communication by ID. Returns ErrCommunicationNotFound if missing.
func (p *PostgreSQLCommunicationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Communication, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + communicationColumns + ` FROM communications WHERE id = $1`

	communication, err := scanCommunication(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCommunicationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get communication")
	}
	return communication, nil
}

// UpdateStatus changes the status of a communication, optionally setting sent_at
// and merging failure details into metadata.
func (p *PostgreSQLCommunicationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update domain.StatusUpdate,
) error {
	querier := database.GetTx(ctx, p.db)

	b := newUpdateBuilder(postgresPlaceholder)
	b.set("status", string(update.Status))
	if update.SentAt != nil || update.SetSentAt {
		b.set("sent_at", update.SentAt)
	}
	if update.Failure != nil {
		patch, err := marshalPatch(update.Failure.MetadataPatch())
		if err != nil {
			return apperrors.Wrap(err, "failed to encode failure metadata")
		}
		b.setExpr("metadata", postgresMergeJSON, patch)
	}
	b.set("updated_at", time.Now().UTC())
	query, args := b.build("communications", "id = %s", id)

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update communication status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update communication status")
	}
	if rows == 0 {
		return domain.ErrCommunicationNotFound
	}
	return nil
}

// TransitionStatus moves a communication from one status to another only when it
// is currently in the expected status. Returns false when another worker won.
func (p *PostgreSQLCommunicationRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.Status,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE communications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, apperrors.Wrap(err, "failed to transition communication status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to transition communication status")
	}
	return rows > 0, nil
}

// SetTotalRecipients stores the resolved recipient count.
func (p *PostgreSQLCommunicationRepository) SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE communications SET total_recipients = $1, updated_at = $2 WHERE id = $3`

	if _, err := querier.ExecContext(ctx, query, total, time.Now().UTC(), id); err != nil {
		return apperrors.Wrap(err, "failed to set total recipients")
	}
	return nil
}

// RefreshStats recomputes the aggregate counters from the recipient rows.
// Communications without recipients are left untouched.
func (p *PostgreSQLCommunicationRepository) RefreshStats(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	total, stats, err := aggregateStats(ctx, querier, statsQuery+` WHERE communication_id = $1`, id)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	query := `UPDATE communications
			  SET total_recipients = $1, total_sent = $2, total_delivered = $3, total_opened = $4,
			      total_failed = $5, updated_at = $6
			  WHERE id = $7`

	_, err = querier.ExecContext(
		ctx,
		query,
		total,
		stats.TotalSent,
		stats.TotalDelivered,
		stats.TotalOpened,
		stats.TotalFailed,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update communication stats")
	}
	return nil
}

// ListDueScheduled returns scheduled communications whose time has come, oldest first.
func (p *PostgreSQLCommunicationRepository) ListDueScheduled(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Communication, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + communicationColumns + ` FROM communications
			  WHERE status = 'scheduled' AND scheduled_for <= $1
			  ORDER BY scheduled_for ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list scheduled communications")
	}
	return collectCommunications(rows)
}

// Schedule marks a draft or failed communication for delivery at the given time.
// Returns false when the communication is not in a schedulable status.
func (p *PostgreSQLCommunicationRepository) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE communications SET status = 'scheduled', scheduled_for = $1, updated_at = $2
			  WHERE id = $3 AND status IN ('draft', 'failed')`

	result, err := querier.ExecContext(ctx, query, at, time.Now().UTC(), id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to schedule communication")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to schedule communication")
	}
	return rows > 0, nil
}

// NewPostgreSQLCommunicationRepository creates a new PostgreSQL communication repository.
func NewPostgreSQLCommunicationRepository(db *sql.DB) *PostgreSQLCommunicationRepository {
	return &PostgreSQLCommunicationRepository{db: db}
}
