// Package postgres provides a read-only PostgreSQL incident source.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/incidents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements incidents.Source using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListIncidents retrieves incidents matching params in start-time order.
func (r *Repository) ListIncidents(ctx context.Context, params incidents.ListParams) ([]domain.Incident, error) {
	query, args := buildListQuery(params)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanIncident)
	if err != nil {
		return nil, fmt.Errorf("scan incidents: %w", err)
	}

	return list, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func buildListQuery(params incidents.ListParams) (string, []any) {
	query := `
		SELECT
			id, title, severity, status, brand, market,
			start_time, last_update, description, impact
		FROM incidents
		WHERE 1=1
	`
	args := []any{}
	argNum := 1

	if params.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(params.Status))
		argNum++
	}

	if params.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, string(params.Severity))
		argNum++
	}

	if params.Brand != "" {
		query += fmt.Sprintf(" AND brand = $%d", argNum)
		args = append(args, params.Brand)
		argNum++
	}

	if params.Market != "" {
		query += fmt.Sprintf(" AND market = $%d", argNum)
		args = append(args, params.Market)
		argNum++
	}

	if !params.Since.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argNum)
		args = append(args, params.Since)
		argNum++
	}

	if !params.Until.IsZero() {
		query += fmt.Sprintf(" AND start_time <= $%d", argNum)
		args = append(args, params.Until)
	}

	query += " ORDER BY start_time DESC, id"

	return query, args
}

func scanIncident(row pgx.CollectableRow) (domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Severity,
		&inc.Status,
		&inc.Brand,
		&inc.Market,
		&inc.StartTime,
		&inc.LastUpdate,
		&inc.Description,
		&inc.Impact,
	)
	if err != nil {
		return domain.Incident{}, err
	}
	inc.StartTime = inc.StartTime.UTC()
	inc.LastUpdate = inc.LastUpdate.UTC()
	return inc, nil
}
