package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// TechnicianRepository handles persistence for technicians.
type TechnicianRepository interface {
	// Resolve returns the technician bound to profile.ExternalID, adopting a roster row with the
	// same name or creating one. Concurrent calls for one identity yield one row.
	Resolve(ctx context.Context, profile domain.TechnicianProfile) (*domain.Technician, error)
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
}

// TechnicianFilter defines query params for technician listing.
type TechnicianFilter struct {
	Status *domain.TechnicianStatus
	Limit  int
	Offset int
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `id, COALESCE(external_id, ''), name, specialization, rating, rating_count,
        active_orders, completed_orders, status, created_at, updated_at`

func (r *technicianRepository) Resolve(ctx context.Context, profile domain.TechnicianProfile) (*domain.Technician, error) {
	if profile.ExternalID == "" {
		return nil, errors.New("technician external id required")
	}
	name := profile.Name
	if name == "" {
		name = profile.ExternalID
	}

	query := `
        WITH by_ext AS (
            SELECT ` + technicianColumns + ` FROM technicians WHERE external_id=$1
        ), adopted AS (
            UPDATE technicians SET external_id=$1, updated_at=NOW()
            WHERE id = (
                SELECT id FROM technicians
                WHERE name=$2 AND external_id IS NULL AND NOT EXISTS (SELECT 1 FROM by_ext)
                ORDER BY created_at LIMIT 1
            ) AND external_id IS NULL
            RETURNING ` + technicianColumns + `
        ), inserted AS (
            INSERT INTO technicians (external_id, name, specialization, status)
            SELECT $1, $2, $3, $4
            WHERE NOT EXISTS (SELECT 1 FROM by_ext) AND NOT EXISTS (SELECT 1 FROM adopted)
            ON CONFLICT (external_id) DO NOTHING
            RETURNING ` + technicianColumns + `
        )
        SELECT * FROM by_ext
        UNION ALL SELECT * FROM adopted
        UNION ALL SELECT * FROM inserted
        LIMIT 1`

	tech, err := scanTechnician(r.pool.QueryRow(ctx, query,
		profile.ExternalID, name, profile.Specialization, domain.TechnicianStatusActive))
	if errors.Is(err, pgx.ErrNoRows) {
		// lost an insert race; the winner's row is visible now
		return scanTechnician(r.pool.QueryRow(ctx,
			`SELECT `+technicianColumns+` FROM technicians WHERE external_id=$1`, profile.ExternalID))
	}
	return tech, err
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	return scanTechnician(r.pool.QueryRow(ctx,
		`SELECT `+technicianColumns+` FROM technicians WHERE id=$1`, id))
}

func (r *technicianRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Technician, error) {
	return scanTechnician(r.pool.QueryRow(ctx,
		`SELECT `+technicianColumns+` FROM technicians WHERE external_id=$1`, externalID))
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	args := []any{}
	clauses := []string{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY rating DESC, name ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tech)
	}
	return result, rows.Err()
}

func scanTechnician(row pgx.Row) (*domain.Technician, error) {
	var tech domain.Technician
	if err := row.Scan(
		&tech.ID,
		&tech.ExternalID,
		&tech.Name,
		&tech.Specialization,
		&tech.Rating,
		&tech.RatingCount,
		&tech.ActiveOrders,
		&tech.CompletedOrders,
		&tech.Status,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}
