package report

import (
	"context"
	"net/http"
	"time"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// Overview is the dashboard aggregation for a tenant
type Overview struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	ActivePatients    int64            `json:"active_patients"`
	AppointmentsToday map[string]int64 `json:"appointments_today"`
	RevenueMonthCents int64            `json:"revenue_month_cents"`
	PendingInvoices   int64            `json:"pending_invoices"`
	LowStockProducts  int64            `json:"low_stock_products"`
}

// Repository computes report aggregations
type Repository struct {
	db *database.DB
}

// NewRepository creates a new report repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Overview computes the tenant's dashboard numbers
func (r *Repository) Overview(ctx context.Context) (*Overview, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	o := &Overview{
		GeneratedAt:       now.UTC(),
		AppointmentsToday: map[string]int64{},
	}

	if err := r.db.GetContext(ctx, &o.ActivePatients,
		`SELECT COUNT(*) FROM patients WHERE tenant_id = $1 AND active = TRUE`, tenantID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT status, COUNT(*) FROM appointments
		 WHERE tenant_id = $1 AND starts_at >= $2 AND starts_at < $3
		 GROUP BY status`,
		tenantID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		o.AppointmentsToday[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.GetContext(ctx, &o.RevenueMonthCents,
		`SELECT COALESCE(SUM(total_cents), 0) FROM invoices
		 WHERE tenant_id = $1 AND status = 'paid' AND paid_at >= $2`,
		tenantID, monthStart); err != nil {
		return nil, err
	}

	if err := r.db.GetContext(ctx, &o.PendingInvoices,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = $1 AND status IN ('pending', 'overdue')`,
		tenantID); err != nil {
		return nil, err
	}

	if err := r.db.GetContext(ctx, &o.LowStockProducts,
		`SELECT COUNT(*) FROM products
		 WHERE tenant_id = $1 AND active = TRUE AND current_stock <= min_stock`,
		tenantID); err != nil {
		return nil, err
	}

	return o, nil
}

// Handler serves report endpoints
type Handler struct {
	repo   *Repository
	logger *logger.Logger
}

// NewHandler creates a new report handler
func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, logger: log}
}

// Overview serves the tenant dashboard aggregation
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.repo.Overview(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, overview)
}
