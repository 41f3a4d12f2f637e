package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the persistence layer of the engine.
type DB interface {
	ActivityDB
	PendingDB
	SeriesDB
	HistoryDB

	Close() error
}

var _ DB = (*Client)(nil) // Ensure Client implements DB

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
// A database file that cannot be opened or migrated is moved aside and recreated empty.
func New(dbpath string) (*Client, error) {
	if dir := filepath.Dir(dbpath); dir != "" && dbpath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	client, err := open(dbpath)
	if err == nil {
		return client, nil
	}

	if _, statErr := os.Stat(dbpath); statErr != nil {
		return nil, err
	}

	corrupt := fmt.Sprintf("%s.corrupt-%d", dbpath, time.Now().Unix())
	log.Error("database is unusable, moving it aside and starting empty", "path", dbpath, "moved_to", corrupt, "error", err)
	if renameErr := os.Rename(dbpath, corrupt); renameErr != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to move corrupt database: %w", renameErr))
	}

	return open(dbpath)
}

func open(dbpath string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&ActivityRecord{},
		&PendingDeletion{},
		&RejectedEpisode{},
		&SeriesAssignment{},
		&HistoryEvent{},
	); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close() //nolint: errcheck,gosec
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
