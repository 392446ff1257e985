package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repair-desk/internal/domain"
)

var (
	// ErrAlreadyAssigned is matched by *AssignmentConflict.
	ErrAlreadyAssigned = errors.New("ticket already has a technician")
	ErrTicketClosed    = errors.New("ticket is closed")
	ErrStatusConflict  = errors.New("ticket status changed concurrently")
	ErrAlreadyRated    = errors.New("ticket already rated")
	ErrNotRatable      = errors.New("ticket is not eligible for rating")
)

// AssignmentConflict reports the technician that holds the ticket.
type AssignmentConflict struct {
	TechnicianID string
}

func (e *AssignmentConflict) Error() string {
	return fmt.Sprintf("ticket already assigned to technician %s", e.TechnicianID)
}

func (e *AssignmentConflict) Is(target error) bool {
	return target == ErrAlreadyAssigned
}

// TicketRepository encapsulates ticket persistence. Assignment, status and rating writes are
// conditional so concurrent callers cannot both succeed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns matching tickets, newest first.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// AssignTechnician binds the technician only while the ticket is unassigned and open,
	// moves a NEW ticket to DIAGNOSING and bumps the technician's active orders.
	AssignTechnician(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error)
	// UpdateStatus moves the ticket from `from` to `to`; ErrStatusConflict when the stored status differs.
	UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error)
	// RecordRating marks the ticket rated and folds score into its technician's mean.
	RecordRating(ctx context.Context, ticketID string, score int, at time.Time) (*domain.RatingChange, error)
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	CustomerID   *string
	TechnicianID *string
	// OpenOnly skips DONE tickets.
	OpenOnly bool
	Limit    int
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, channel, courier_address, courier_phone, courier_date, courier_notes,
        walkin_name, walkin_phone, branch, category, subcategory, brand, problem, urgency, photos,
        status, customer_id, technician_id, created_at, updated_at, completed_at, rated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	var courierAddress, courierPhone, courierDate, courierNotes, walkinName, walkinPhone *string
	if c := ticket.Courier; c != nil {
		courierAddress, courierPhone, courierDate, courierNotes = &c.Address, &c.Phone, &c.Date, c.Notes
	}
	if w := ticket.WalkIn; w != nil {
		walkinName, walkinPhone = &w.Name, &w.Phone
	}
	photos := ticket.Photos
	if photos == nil {
		photos = []string{}
	}

	const query = `
        INSERT INTO tickets (external_key, channel, courier_address, courier_phone, courier_date, courier_notes,
            walkin_name, walkin_phone, branch, category, subcategory, brand, problem, urgency, photos, status, customer_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Channel,
		courierAddress,
		courierPhone,
		courierDate,
		courierNotes,
		walkinName,
		walkinPhone,
		ticket.Branch,
		ticket.Category,
		ticket.Subcategory,
		ticket.Brand,
		ticket.Problem,
		ticket.Urgency,
		photos,
		ticket.Status,
		ticket.CustomerID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{}
	clauses := []string{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.OpenOnly {
		args = append(args, domain.TicketStatusDone)
		clauses = append(clauses, fmt.Sprintf("status<>$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) AssignTechnician(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        UPDATE tickets
        SET technician_id=$2,
            status = CASE WHEN status = $3 THEN $4 ELSE status END,
            updated_at=NOW()
        WHERE id=$1 AND technician_id IS NULL AND status <> $5
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID, technicianID,
		domain.TicketStatusNew, domain.TicketStatusDiagnosing, domain.TicketStatusDone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, explainAssignMiss(ctx, tx, ticketID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE technicians SET active_orders = active_orders + 1, updated_at=NOW() WHERE id=$1`,
		technicianID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func explainAssignMiss(ctx context.Context, tx pgx.Tx, ticketID string) error {
	var technicianID *string
	var status domain.TicketStatus
	err := tx.QueryRow(ctx, `SELECT technician_id, status FROM tickets WHERE id=$1`, ticketID).
		Scan(&technicianID, &status)
	if err != nil {
		return err
	}
	if technicianID != nil {
		return &AssignmentConflict{TechnicianID: *technicianID}
	}
	return ErrTicketClosed
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        UPDATE tickets
        SET status=$3::text,
            completed_at = CASE WHEN $3::text = $5::text THEN $4::timestamptz ELSE completed_at END,
            updated_at=NOW()
        WHERE id=$1 AND status=$2
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID, from, to, at, domain.TicketStatusDone))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticketID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, pgx.ErrNoRows
		}
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}

	if to == domain.TicketStatusDone && ticket.HasTechnician() {
		if _, err := tx.Exec(ctx, `
            UPDATE technicians
            SET active_orders = GREATEST(active_orders - 1, 0),
                completed_orders = completed_orders + 1,
                updated_at = NOW()
            WHERE id=$1`, *ticket.TechnicianID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) RecordRating(ctx context.Context, ticketID string, score int, at time.Time) (*domain.RatingChange, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var technicianID string
	err = tx.QueryRow(ctx, `
        UPDATE tickets SET rated_at=$2, updated_at=NOW()
        WHERE id=$1 AND rated_at IS NULL AND status=$3 AND technician_id IS NOT NULL
        RETURNING technician_id`, ticketID, at, domain.TicketStatusDone).Scan(&technicianID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, explainRatingMiss(ctx, tx, ticketID)
	}
	if err != nil {
		return nil, err
	}

	var tech domain.Technician
	tech.ID = technicianID
	if err := tx.QueryRow(ctx,
		`SELECT rating, rating_count FROM technicians WHERE id=$1 FOR UPDATE`, technicianID).
		Scan(&tech.Rating, &tech.RatingCount); err != nil {
		return nil, err
	}
	change := tech.WithScore(score)
	if _, err := tx.Exec(ctx,
		`UPDATE technicians SET rating=$2, rating_count=$3, updated_at=NOW() WHERE id=$1`,
		technicianID, change.NewRating, change.NewCount); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &change, nil
}

func explainRatingMiss(ctx context.Context, tx pgx.Tx, ticketID string) error {
	var ratedAt *time.Time
	if err := tx.QueryRow(ctx, `SELECT rated_at FROM tickets WHERE id=$1`, ticketID).Scan(&ratedAt); err != nil {
		return err
	}
	if ratedAt != nil {
		return ErrAlreadyRated
	}
	return ErrNotRatable
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                                                   domain.Ticket
		courierAddress, courierPhone, courierDate, courierNotes *string
		walkinName, walkinPhone                                 *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Channel,
		&courierAddress,
		&courierPhone,
		&courierDate,
		&courierNotes,
		&walkinName,
		&walkinPhone,
		&ticket.Branch,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Brand,
		&ticket.Problem,
		&ticket.Urgency,
		&ticket.Photos,
		&ticket.Status,
		&ticket.CustomerID,
		&ticket.TechnicianID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CompletedAt,
		&ticket.RatedAt,
	); err != nil {
		return nil, err
	}
	if ticket.Channel == domain.ChannelCourierDelivery {
		ticket.Courier = &domain.CourierDetails{
			Address: deref(courierAddress),
			Phone:   deref(courierPhone),
			Date:    deref(courierDate),
			Notes:   courierNotes,
		}
	}
	if ticket.Channel == domain.ChannelWalkIn {
		ticket.WalkIn = &domain.WalkInDetails{Name: deref(walkinName), Phone: deref(walkinPhone)}
	}
	return &ticket, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
