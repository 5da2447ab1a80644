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

// MySQLCommunicationRepository implements Communication persistence for MySQL.
type MySQLCommunicationRepository struct {
	db *sql.DB
}

// Get retrieves a communication by ID. Returns ErrCommunicationNotFound if missing.
func (m *MySQLCommunicationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Communication, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + communicationColumns + ` FROM communications WHERE id = ?`

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
func (m *MySQLCommunicationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update domain.StatusUpdate,
) error {
	querier := database.GetTx(ctx, m.db)

	b := newUpdateBuilder(mysqlPlaceholder)
	b.set("status", string(update.Status))
	if update.SentAt != nil || update.SetSentAt {
		b.set("sent_at", update.SentAt)
	}
	if update.Failure != nil {
		patch, err := marshalPatch(update.Failure.MetadataPatch())
		if err != nil {
			return apperrors.Wrap(err, "failed to encode failure metadata")
		}
		b.setExpr("metadata", mysqlMergeJSON, patch)
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
func (m *MySQLCommunicationRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.Status,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE communications SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

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
func (m *MySQLCommunicationRepository) SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE communications SET total_recipients = ?, updated_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, total, time.Now().UTC(), id); err != nil {
		return apperrors.Wrap(err, "failed to set total recipients")
	}
	return nil
}

// RefreshStats recomputes the aggregate counters from the recipient rows.
// Communications without recipients are left untouched.
func (m *MySQLCommunicationRepository) RefreshStats(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	total, stats, err := aggregateStats(ctx, querier, statsQuery+` WHERE communication_id = ?`, id)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	query := `UPDATE communications
			  SET total_recipients = ?, total_sent = ?, total_delivered = ?, total_opened = ?,
			      total_failed = ?, updated_at = ?
			  WHERE id = ?`

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
func (m *MySQLCommunicationRepository) ListDueScheduled(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Communication, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + communicationColumns + ` FROM communications
			  WHERE status = 'scheduled' AND scheduled_for <= ?
			  ORDER BY scheduled_for ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list scheduled communications")
	}
	return collectCommunications(rows)
}

// Schedule marks a draft or failed communication for delivery at the given time.
// Returns false when the communication is not in a schedulable status.
func (m *MySQLCommunicationRepository) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE communications SET status = 'scheduled', scheduled_for = ?, updated_at = ?
			  WHERE id = ? AND status IN ('draft', 'failed')`

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

// NewMySQLCommunicationRepository creates a new MySQL communication repository.
func NewMySQLCommunicationRepository(db *sql.DB) *MySQLCommunicationRepository {
	return &MySQLCommunicationRepository{db: db}
}
