package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// CustomerRepository defines persistence access for chat customers.
type CustomerRepository interface {
	// Resolve upserts the customer keyed by ExternalID and refreshes its display fields.
	Resolve(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) Resolve(ctx context.Context, customer *domain.Customer) error {
	if customer.ExternalID == "" {
		return errors.New("customer external id required")
	}
	const query = `
        INSERT INTO customers (external_id, username, name, phone)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (external_id) DO UPDATE
        SET username = EXCLUDED.username,
            name = EXCLUDED.name,
            phone = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
            updated_at = NOW()
        RETURNING id, phone, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		customer.ExternalID,
		customer.Username,
		customer.Name,
		customer.Phone,
	).Scan(&customer.ID, &customer.Phone, &customer.CreatedAt, &customer.UpdatedAt)
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, external_id, username, name, phone, created_at, updated_at
        FROM customers WHERE id=$1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

func (r *customerRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Customer, error) {
	const query = `
        SELECT id, external_id, username, name, phone, created_at, updated_at
        FROM customers WHERE external_id=$1`
	return scanCustomer(r.pool.QueryRow(ctx, query, externalID))
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var customer domain.Customer
	if err := row.Scan(
		&customer.ID,
		&customer.ExternalID,
		&customer.Username,
		&customer.Name,
		&customer.Phone,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}
