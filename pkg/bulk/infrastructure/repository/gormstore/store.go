// Package gormstore provides a database-backed implementation of the
// TraceStore interface using GORM. It supports the sqlite, postgres and
// mysql dialects, selected by configuration, so a trace log can outlive the
// process that wrote it and cleanup predicates can be generated in a later
// session.
package gormstore

import (
	"context"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "gormstore"

// traceRow is the persistence shape of a RecordTrace.
type traceRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	Sequence   int64  `gorm:"uniqueIndex"`
	Object     string `gorm:"size:255;index"`
	Kind       string `gorm:"size:32"`
	RecordID   string `gorm:"size:255;index"`
	RolledBack bool
	Timestamp  time.Time
}

// TableName keeps the table name stable across GORM naming strategies.
func (traceRow) TableName() string { return "record_traces" }

// GormTraceStore is a TraceStore backed by a relational database through
// GORM.
type GormTraceStore struct {
	db *gorm.DB
}

// NewGormTraceStore opens the configured database and migrates the trace
// table. The dialect is selected by the database driver configuration.
func NewGormTraceStore(cfg *config.Config) (*GormTraceStore, error) {
	dbCfg := cfg.Bulkhead.Database

	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(dbCfg.DSN)
	case "postgres":
		dialector = postgres.Open(dbCfg.DSN)
	case "mysql":
		dialector = mysql.Open(dbCfg.DSN)
	default:
		return nil, exception.Newf(moduleName, exception.ClassValidation,
			"unsupported trace store driver %q", dbCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassTransientUnavailable,
			"failed to open trace store database", err)
	}
	if err := db.AutoMigrate(&traceRow{}); err != nil {
		return nil, exception.New(moduleName, exception.ClassInternal,
			"failed to migrate trace store schema", err)
	}

	logger.Infof("GormTraceStore: opened %s trace store.", dbCfg.Driver)
	return &GormTraceStore{db: db}, nil
}

// NewGormTraceStoreWithDB wraps an already opened GORM handle. The caller
// owns migration and connection lifecycle.
func NewGormTraceStoreWithDB(db *gorm.DB) *GormTraceStore {
	return &GormTraceStore{db: db}
}

// Append stores one trace.
func (s *GormTraceStore) Append(ctx context.Context, trace *model.RecordTrace) error {
	row := traceRow{
		ID:         trace.ID,
		Sequence:   trace.Sequence,
		Object:     trace.Object,
		Kind:       trace.Kind.String(),
		RecordID:   trace.RecordID,
		RolledBack: trace.RolledBack,
		Timestamp:  trace.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return exception.New(moduleName, exception.ClassInternal, "failed to append trace", err)
	}
	return nil
}

// ListSince returns traces after the sequence, oldest first.
func (s *GormTraceStore) ListSince(ctx context.Context, afterSequence int64) ([]*model.RecordTrace, error) {
	var rows []traceRow
	err := s.db.WithContext(ctx).
		Where("sequence > ?", afterSequence).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassInternal, "failed to list traces", err)
	}

	out := make([]*model.RecordTrace, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.RecordTrace{
			ID:         row.ID,
			Sequence:   row.Sequence,
			Object:     row.Object,
			Kind:       model.OperationKind(row.Kind),
			RecordID:   row.RecordID,
			RolledBack: row.RolledBack,
			Timestamp:  row.Timestamp,
		})
	}
	return out, nil
}

// MarkRolledBack flags the traces as compensated.
func (s *GormTraceStore) MarkRolledBack(ctx context.Context, traceIDs []string) error {
	if len(traceIDs) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&traceRow{}).
		Where("id IN ?", traceIDs).
		Update("rolled_back", true)
	if result.Error != nil {
		return exception.New(moduleName, exception.ClassInternal, "failed to mark traces rolled back", result.Error)
	}
	if result.RowsAffected < int64(len(traceIDs)) {
		return port.ErrTraceNotFound
	}
	return nil
}

// Count returns the number of stored traces.
func (s *GormTraceStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&traceRow{}).Count(&n).Error; err != nil {
		return 0, exception.New(moduleName, exception.ClassInternal, "failed to count traces", err)
	}
	return n, nil
}

// Close releases the underlying database connection.
func (s *GormTraceStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ port.TraceStore = (*GormTraceStore)(nil)
