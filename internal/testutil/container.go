package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // migrate source
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a postgres testcontainer.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer creates a new PostgreSQL container for testing.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portal"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		ConnectionString:  connStr,
	}, nil
}

// Migrate applies every migration in dir (a file:// source path) to the database.
func Migrate(dir, connStr string) error {
	migrator, err := migrate.New("file://"+dir, connStr)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = migrator.Close() }()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SeedIncidents replaces the contents of the incidents table.
func SeedIncidents(ctx context.Context, db *pgxpool.Pool, list []domain.Incident) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE incidents`); err != nil {
		return fmt.Errorf("truncate incidents: %w", err)
	}

	for _, inc := range list {
		_, err := tx.Exec(ctx, `
			INSERT INTO incidents (id, title, severity, status, brand, market, start_time, last_update, description, impact)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			inc.ID, inc.Title, inc.Severity, inc.Status, inc.Brand, inc.Market,
			inc.StartTime, inc.LastUpdate, inc.Description, inc.Impact,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", inc.ID, err)
		}
	}

	return tx.Commit(ctx)
}
