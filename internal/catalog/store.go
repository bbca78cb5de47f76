// Package catalog persists probe results so hosts can list what the
// adapter has seen without reopening files.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mantonx/avinput/internal/config"
	"github.com/mantonx/avinput/internal/logger"
)

// Store is the probe catalog.
type Store struct {
	db *gorm.DB
}

// Open connects the catalog per the database configuration and runs
// migrations.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
	default:
		return nil, fmt.Errorf("catalog: unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: connect %s: %w", cfg.Type, err)
	}

	logger.Debug("probe catalog connected (%s)", cfg.Type)
	return NewStore(db)
}

// NewStore wraps an existing database connection and runs migrations.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ProbeRecord{}); err != nil {
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores one probe result. ProbedAt is stamped if unset.
func (s *Store) Record(rec *ProbeRecord) error {
	if rec.ProbedAt.IsZero() {
		rec.ProbedAt = time.Now()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("catalog: record %s: %w", rec.Path, err)
	}
	return nil
}

// Recent returns the newest probe records, most recent first.
func (s *Store) Recent(limit int) ([]ProbeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ProbeRecord
	err := s.db.Order("probed_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list recent: %w", err)
	}
	return records, nil
}

// ByPath returns the latest probe record for a path, or nil when the
// path has never been probed.
func (s *Store) ByPath(path string) (*ProbeRecord, error) {
	var rec ProbeRecord
	err := s.db.Where("path = ?", path).Order("probed_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: lookup %s: %w", path, err)
	}
	return &rec, nil
}
