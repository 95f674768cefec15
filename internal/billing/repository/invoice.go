package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// Invoice statuses
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusOverdue   = "overdue"
)

// Invoice is a billing document with its line items. Amounts are integer
// cents.
type Invoice struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenant_id"`
	PatientID     string     `db:"patient_id" json:"patient_id"`
	AppointmentID *string    `db:"appointment_id" json:"appointment_id,omitempty"`
	Number        string     `db:"number" json:"number"`
	Status        string     `db:"status" json:"status"`
	SubtotalCents int64      `db:"subtotal_cents" json:"subtotal_cents"`
	DiscountCents int64      `db:"discount_cents" json:"discount_cents"`
	TotalCents    int64      `db:"total_cents" json:"total_cents"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	PaymentMethod *string    `db:"payment_method" json:"payment_method,omitempty"`
	PaidAt        *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Items []Item `db:"-" json:"items"`
}

// Item is a single invoice line
type Item struct {
	ID             string  `db:"id" json:"id"`
	InvoiceID      string  `db:"invoice_id" json:"invoice_id"`
	Description    string  `db:"description" json:"description"`
	TussCode       *string `db:"tuss_code" json:"tuss_code,omitempty"`
	Quantity       int     `db:"quantity" json:"quantity"`
	UnitPriceCents int64   `db:"unit_price_cents" json:"unit_price_cents"`
}

// Filter narrows invoice listings
type Filter struct {
	PatientID string
	Status    string
	From      *time.Time
	To        *time.Time
}

// Summary aggregates invoice totals by status
type Summary struct {
	Status     string `db:"status" json:"status"`
	Count      int64  `db:"count" json:"count"`
	TotalCents int64  `db:"total_cents" json:"total_cents"`
}

// DailyRevenue is one day's paid revenue
type DailyRevenue struct {
	Day        time.Time `db:"day" json:"day"`
	Count      int64     `db:"count" json:"count"`
	TotalCents int64     `db:"total_cents" json:"total_cents"`
}

// InvoiceRepository handles invoice persistence
type InvoiceRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, tenant_id, patient_id, appointment_id, number, status, subtotal_cents,
	discount_cents, total_cents, due_date, payment_method, paid_at, cancelled_at, notes, created_at, updated_at`

// Create inserts the invoice and its items, deriving the invoice number from
// the tenant's sequence for the current month inside the same transaction.
// The unique index on (tenant_id, number) turns a lost race into a retryable
// conflict instead of a duplicate number.
func (r *InvoiceRepository) Create(ctx context.Context, inv *Invoice) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.TenantID = tenantID
	inv.Status = StatusPending

	inv.SubtotalCents = 0
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New().String()
		inv.Items[i].InvoiceID = inv.ID
		inv.SubtotalCents += int64(inv.Items[i].Quantity) * inv.Items[i].UnitPriceCents
	}
	inv.TotalCents = inv.SubtotalCents - inv.DiscountCents
	if inv.TotalCents < 0 {
		return errors.Validation(map[string]string{"discount_cents": "cannot exceed the subtotal"})
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		prefix := time.Now().Format("200601")

		// Serialize numbering per tenant-month
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || ':invoice:' || $2))`,
			tenantID, prefix); err != nil {
			return err
		}

		var seq int
		seqQuery := `
			SELECT COUNT(*) + 1 FROM invoices
			WHERE tenant_id = $1 AND number LIKE $2
		`
		if err := tx.GetContext(ctx, &seq, seqQuery, tenantID, prefix+"-%"); err != nil {
			return err
		}
		inv.Number = fmt.Sprintf("%s-%04d", prefix, seq)

		insertQuery := `
			INSERT INTO invoices (id, tenant_id, patient_id, appointment_id, number, status, subtotal_cents,
				discount_cents, total_cents, due_date, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, insertQuery,
			inv.ID, inv.TenantID, inv.PatientID, inv.AppointmentID, inv.Number, inv.Status,
			inv.SubtotalCents, inv.DiscountCents, inv.TotalCents, inv.DueDate, inv.Notes,
		).Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		for _, item := range inv.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO invoice_items (id, invoice_id, description, tuss_code, quantity, unit_price_cents)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, item.InvoiceID, item.Description, item.TussCode, item.Quantity, item.UnitPriceCents,
			); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID gets an invoice with its items. A pending invoice past its due
// date is flipped to overdue on read.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*Invoice, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var inv Invoice
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1 AND tenant_id = $2`, invoiceColumns)

	err = r.db.GetContext(ctx, &inv, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("invoice")
	}
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusPending && inv.DueDate.Before(time.Now()) {
		if err := r.markOverdue(ctx, &inv); err != nil {
			return nil, err
		}
	}

	inv.Items = []Item{}
	itemsQuery := `
		SELECT id, invoice_id, description, tuss_code, quantity, unit_price_cents
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &inv.Items, itemsQuery, id); err != nil {
		return nil, err
	}

	return &inv, nil
}

func (r *InvoiceRepository) markOverdue(ctx context.Context, inv *Invoice) error {
	query := `
		UPDATE invoices SET status = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = $4
	`
	if _, err := r.db.ExecContext(ctx, query, inv.ID, inv.TenantID, StatusOverdue, StatusPending); err != nil {
		return err
	}
	inv.Status = StatusOverdue
	return nil
}

// List returns a page of invoices, newest first. Items are not loaded.
func (r *InvoiceRepository) List(ctx context.Context, f Filter, page, perPage int) ([]*Invoice, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if f.PatientID != "" {
		args = append(args, f.PatientID)
		where += " AND patient_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += " AND created_at < $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM invoices "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))

	invoices := []*Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// Pay marks a pending or overdue invoice as paid. The status predicate in
// the UPDATE makes the transition atomic.
func (r *InvoiceRepository) Pay(ctx context.Context, id, method string) (*Invoice, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE invoices
		SET status = $3, payment_method = $4, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status IN ($5, $6)
		RETURNING %s`, invoiceColumns)

	var inv Invoice
	err = r.db.GetContext(ctx, &inv, query, id, tenantID, StatusPaid, method, StatusPending, StatusOverdue)
	if err == sql.ErrNoRows {
		return nil, r.transitionFailure(ctx, id, "pay")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// Cancel cancels a pending or overdue invoice
func (r *InvoiceRepository) Cancel(ctx context.Context, id string) (*Invoice, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE invoices
		SET status = $3, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status IN ($4, $5)
		RETURNING %s`, invoiceColumns)

	var inv Invoice
	err = r.db.GetContext(ctx, &inv, query, id, tenantID, StatusCancelled, StatusPending, StatusOverdue)
	if err == sql.ErrNoRows {
		return nil, r.transitionFailure(ctx, id, "cancel")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// transitionFailure distinguishes a missing invoice from one in a state the
// transition does not apply to
func (r *InvoiceRepository) transitionFailure(ctx context.Context, id, action string) error {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.Unprocessable("INVALID_INVOICE_STATUS",
		"cannot "+action+" an invoice with status "+inv.Status)
}

// Summary returns invoice counts and totals grouped by status
func (r *InvoiceRepository) Summary(ctx context.Context) ([]Summary, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows := []Summary{}
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total_cents), 0) AS total_cents
		FROM invoices
		WHERE tenant_id = $1
		GROUP BY status
		ORDER BY status
	`
	if err := r.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, err
	}

	return rows, nil
}

// Daily returns paid revenue per day over the given window
func (r *InvoiceRepository) Daily(ctx context.Context, from, to time.Time) ([]DailyRevenue, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows := []DailyRevenue{}
	query := `
		SELECT date_trunc('day', paid_at) AS day, COUNT(*) AS count,
		       COALESCE(SUM(total_cents), 0) AS total_cents
		FROM invoices
		WHERE tenant_id = $1 AND status = 'paid' AND paid_at >= $2 AND paid_at < $3
		GROUP BY day
		ORDER BY day ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, from, to); err != nil {
		return nil, err
	}

	return rows, nil
}
