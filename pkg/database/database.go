// Package database opens the relational store behind the advisor.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options configures Open. Dialector overrides URL, which lets tests run on sqlite.
type Options struct {
	URL             string
	Dialector       gorm.Dialector
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          *logrus.Logger
	SlowQuery       time.Duration
}

type DB struct {
	*gorm.DB
}

func Open(opts Options) (*DB, error) {
	dialector := opts.Dialector
	if dialector == nil {
		if opts.URL == "" {
			return nil, fmt.Errorf("database URL is required")
		}
		dialector = postgres.Open(opts.URL)
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 10
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 50
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = time.Hour
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:  newGormLogger(opts.Logger, opts.SlowQuery),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	db := &DB{DB: gormDB}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables for the given models.
func (db *DB) Migrate(models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

// Ping satisfies the readiness check.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
