// Package testutil provides shared helpers for unit tests.
//
// Database Setup:
//
//	db, mock := testutil.NewMockDB(t)
//	mock.ExpectQuery(testutil.Query("SELECT ... WHERE id = $1")).WillReturnRows(...)
//	// ... exercise the repository ...
//	testutil.AssertExpectations(t, mock)
package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// NewMockDB returns a sqlmock backed *sql.DB that is closed when the test ends.
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

// Query escapes a literal SQL fragment for sqlmock's regexp matcher.
func Query(sql string) string {
	return regexp.QuoteMeta(sql)
}

// AssertExpectations fails the test when any sqlmock expectation is unmet.
func AssertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	require.NoError(t, mock.ExpectationsWereMet())
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
