package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLConfig holds connection settings for the gorm-backed store.
type MySQLConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func (c MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// MySQLStore persists execution records in MySQL through gorm.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore connects, creating the database and schema when missing.
func NewMySQLStore(cfg MySQLConfig) (*MySQLStore, error) {
	gcfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.dsn()), gcfg)
	if err != nil {
		if strings.Contains(err.Error(), "Unknown database") && cfg.Database != "" {
			if cerr := createDatabase(cfg); cerr != nil {
				return nil, fmt.Errorf("create database failed: %w", cerr)
			}
			db, err = gorm.Open(mysql.Open(cfg.dsn()), gcfg)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	if err := db.AutoMigrate(&ExecutionRecord{}); err != nil {
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

func createDatabase(cfg MySQLConfig) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", cfg.Database))
	return err
}

// DB exposes the underlying connection for the schema-migration runner.
func (s *MySQLStore) DB() (*sql.DB, error) {
	return s.db.DB()
}

// conn returns the transactional handle installed by Transaction when the
// context carries one, otherwise the root handle.
func (s *MySQLStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := GormTxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

// Begin creates a pending record, resetting the existing row for the same
// name and kind when one is present.
func (s *MySQLStore) Begin(ctx context.Context, name, kind string, method Method) (*ExecutionRecord, error) {
	now := time.Now()

	existing, err := s.Find(ctx, name, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		err := s.conn(ctx).WithContext(ctx).Model(existing).Updates(map[string]interface{}{
			"type":           string(method),
			"executed_at":    now,
			"completed_at":   nil,
			"failed_at":      nil,
			"skipped_at":     nil,
			"skip_reason":    "",
			"rolled_back_at": nil,
		}).Error
		if err != nil {
			return nil, err
		}
		return &ExecutionRecord{ID: existing.ID, Name: name, Kind: kind, Type: method, ExecutedAt: now}, nil
	}

	rec := &ExecutionRecord{
		Name:       name,
		Kind:       kind,
		Type:       method,
		ExecutedAt: now,
	}
	if err := s.conn(ctx).WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MySQLStore) MarkCompleted(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.CompletedAt = &now
	return s.conn(ctx).WithContext(ctx).Model(rec).Update("completed_at", now).Error
}

func (s *MySQLStore) MarkFailed(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.FailedAt = &now
	return s.conn(ctx).WithContext(ctx).Model(rec).Update("failed_at", now).Error
}

func (s *MySQLStore) MarkSkipped(ctx context.Context, rec *ExecutionRecord, reason string) error {
	now := time.Now()
	rec.SkippedAt = &now
	rec.SkipReason = reason
	return s.conn(ctx).WithContext(ctx).Model(rec).
		Updates(map[string]interface{}{"skipped_at": now, "skip_reason": reason}).Error
}

func (s *MySQLStore) MarkRolledBack(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.RolledBackAt = &now
	return s.conn(ctx).WithContext(ctx).Model(rec).Update("rolled_back_at", now).Error
}

func (s *MySQLStore) Find(ctx context.Context, name, kind string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	err := s.conn(ctx).WithContext(ctx).Where("name = ? AND kind = ?", name, kind).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MySQLStore) Satisfied(ctx context.Context, name string) (bool, error) {
	var recs []ExecutionRecord
	if err := s.conn(ctx).WithContext(ctx).Where("name = ?", name).Find(&recs).Error; err != nil {
		return false, err
	}
	for i := range recs {
		if recs[i].Satisfies() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MySQLStore) List(ctx context.Context) ([]*ExecutionRecord, error) {
	var recs []*ExecutionRecord
	if err := s.conn(ctx).WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Transaction runs fn inside a database transaction. The transactional
// handle rides the context fn receives, so store calls made by fn execute on
// it and roll back together when fn errors.
func (s *MySQLStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withGormTx(ctx, tx))
	})
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
