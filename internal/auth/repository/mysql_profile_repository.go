package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	authDomain "github.com/22club/communications/internal/auth/domain"
	"github.com/22club/communications/internal/database"
)

// MySQLProfileRepository implements profile lookups for MySQL.
type MySQLProfileRepository struct {
	db *sql.DB
}

// GetByUserID retrieves the profile of a user. Returns ErrProfileNotFound if missing.
func (m *MySQLProfileRepository) GetByUserID(
	ctx context.Context,
	userID uuid.UUID,
) (*authDomain.Profile, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, user_id, COALESCE(nome, ''), COALESCE(cognome, ''), email, telefono, role, stato
			  FROM profiles WHERE user_id = ?`

	return scanProfile(querier.QueryRowContext(ctx, query, userID))
}

// NewMySQLProfileRepository creates a new MySQL profile repository.
func NewMySQLProfileRepository(db *sql.DB) *MySQLProfileRepository {
	return &MySQLProfileRepository{db: db}
}
