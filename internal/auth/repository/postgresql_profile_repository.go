// Package repository implements profile persistence for PostgreSQL and MySQL.
//
// Both implementations are transaction-aware via database.GetTx(). UUIDs are
// native on PostgreSQL and CHAR(36) on MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	authDomain "github.com/22club/communications/internal/auth/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

// PostgreSQLProfileRepository implements profile lookups for PostgreSQL.
type PostgreSQLProfileRepository struct {
	db *sql.DB
}

// GetByUserID retrieves the profile of a user. Returns ErrProfileNotFound if missing.
func (p *PostgreSQLProfileRepository) GetByUserID(
	ctx context.Context,
	userID uuid.UUID,
) (*authDomain.Profile, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, user_id, COALESCE(nome, ''), COALESCE(cognome, ''), email, telefono, role, stato
			  FROM profiles WHERE user_id = $1`

	return scanProfile(querier.QueryRowContext(ctx, query, userID))
}

// NewPostgreSQLProfileRepository creates a new PostgreSQL profile repository.
func NewPostgreSQLProfileRepository(db *sql.DB) *PostgreSQLProfileRepository {
	return &PostgreSQLProfileRepository{db: db}
}

func scanProfile(row *sql.Row) (*authDomain.Profile, error) {
	var profile authDomain.Profile
	var email, phone sql.NullString
	var role string

	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&profile.Surname,
		&email,
		&phone,
		&role,
		&profile.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrProfileNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get profile")
	}

	profile.Role = authDomain.Role(role)
	if email.Valid {
		profile.Email = &email.String
	}
	if phone.Valid {
		profile.Phone = &phone.String
	}
	return &profile, nil
}
