package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auditRows = []string{"id", "email", "level", "location", "proc_type", "log", "created_at"}

func TestAuditLogListCapsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	begin := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM audit_logs").
		WithArgs(begin, end, 0, maxAuditLogLimit).
		WillReturnRows(sqlmock.NewRows(auditRows))

	repo := NewAuditLogRepository(db)
	entries, err := repo.List(context.Background(), AuditLogFilter{
		BeginDate: begin,
		EndDate:   end,
		Skip:      -5,
		Limit:     10000,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogListDefaultsToLastDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 3, 50).
		WillReturnRows(sqlmock.NewRows(auditRows).
			AddRow(int64(1), "admin@example.com", "INFO", "Users", "Add", []byte(`{"id":7}`), now))

	repo := NewAuditLogRepository(db)
	entries, err := repo.List(context.Background(), AuditLogFilter{Skip: 3, Limit: 50})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Add", entries[0].Action)
	assert.JSONEq(t, `{"id":7}`, string(entries[0].Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}
