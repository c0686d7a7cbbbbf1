package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ReportStore defines the persistence operations for metric reports
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetLatestReport(ctx context.Context, owner, repo string) (*models.Report, error)
	ListReports(ctx context.Context, owner, repo string, limit int) ([]*models.Report, error)
	Close() error
}

// PostgresStore implements ReportStore on PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore opens and pings the database behind connectionString
func NewPostgresStore(connectionString string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Migrate applies the embedded schema migrations
func (s *PostgresStore) Migrate() error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info("Database migrations applied")
	return nil
}

// Close closes the underlying connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
