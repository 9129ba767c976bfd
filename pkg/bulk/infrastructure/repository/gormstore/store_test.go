package gormstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/infrastructure/repository/gormstore"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

// setupMockStore wires a GormTraceStore over a mocked SQL connection.
func setupMockStore(t *testing.T) (*gormstore.GormTraceStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	assert.NoError(t, err)

	store := gormstore.NewGormTraceStoreWithDB(gormDB)
	cleanup := func() {
		mock.ExpectClose()
		assert.NoError(t, store.Close())
	}
	return store, mock, cleanup
}

func sampleTrace() *model.RecordTrace {
	return &model.RecordTrace{
		ID:        "trace-001",
		Sequence:  1,
		Object:    "Widget",
		Kind:      model.OpInsert,
		RecordID:  "w-001",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppend(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `record_traces`").
		WithArgs("trace-001", int64(1), "Widget", "INSERT", "w-001", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Append(context.Background(), sampleTrace())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFailure(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `record_traces`").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.Append(context.Background(), sampleTrace())
	assert.True(t, exception.IsClass(err, exception.ClassInternal))
}

func TestListSince(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	columns := []string{"id", "sequence", "object", "kind", "record_id", "rolled_back", "timestamp"}
	mock.ExpectQuery("SELECT \\* FROM `record_traces` WHERE sequence > \\?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("trace-006", int64(6), "Widget", "INSERT", "w-006", false, time.Now()).
			AddRow("trace-007", int64(7), "Widget", "UPSERT", "w-007", true, time.Now()))

	traces, err := store.ListSince(context.Background(), 5)
	assert.NoError(t, err)
	assert.Len(t, traces, 2)
	assert.Equal(t, int64(6), traces[0].Sequence)
	assert.Equal(t, model.OpInsert, traces[0].Kind)
	assert.Equal(t, model.OpUpsert, traces[1].Kind)
	assert.True(t, traces[1].RolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRolledBack(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `record_traces` SET `rolled_back`").
		WithArgs(true, "trace-001", "trace-002").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.MarkRolledBack(context.Background(), []string{"trace-001", "trace-002"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRolledBackMissingTrace(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `record_traces` SET `rolled_back`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.MarkRolledBack(context.Background(), []string{"trace-001", "no-such-trace"})
	assert.ErrorIs(t, err, port.ErrTraceNotFound)
}

func TestMarkRolledBackEmptyList(t *testing.T) {
	store, _, cleanup := setupMockStore(t)
	defer cleanup()

	assert.NoError(t, store.MarkRolledBack(context.Background(), nil))
}

func TestCount(t *testing.T) {
	store, mock, cleanup := setupMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `record_traces`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(int64(42)))

	n, err := store.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsupportedDriverRejected(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Bulkhead.Database.Driver = "oracle"

	_, err := gormstore.NewGormTraceStore(cfg)
	assert.True(t, exception.IsClass(err, exception.ClassValidation))
}
