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

// Movement types
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
	MovementExpired    = "expired"
	MovementTransfer   = "transfer"
)

// Product is a stocked inventory item
type Product struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	SKU            string    `db:"sku" json:"sku"`
	Name           string    `db:"name" json:"name"`
	Category       *string   `db:"category" json:"category,omitempty"`
	Unit           string    `db:"unit" json:"unit"`
	MinStock       int       `db:"min_stock" json:"min_stock"`
	MaxStock       *int      `db:"max_stock" json:"max_stock,omitempty"`
	CurrentStock   int       `db:"current_stock" json:"current_stock"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
	Controlled     bool      `db:"controlled" json:"controlled"`
	RequiresScript bool      `db:"requires_script" json:"requires_script"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Movement is a stock change against a product with before/after snapshots
type Movement struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Type        string    `db:"type" json:"type"`
	Quantity    int       `db:"quantity" json:"quantity"`
	StockBefore int       `db:"stock_before" json:"stock_before"`
	StockAfter  int       `db:"stock_after" json:"stock_after"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Search   string
	Category string
	LowStock bool
	Active   *bool
}

// StockSummary aggregates the tenant's inventory state
type StockSummary struct {
	TotalProducts   int64 `db:"total_products" json:"total_products"`
	LowStock        int64 `db:"low_stock" json:"low_stock"`
	OutOfStock      int64 `db:"out_of_stock" json:"out_of_stock"`
	StockValueCents int64 `db:"stock_value_cents" json:"stock_value_cents"`
}

// InventoryRepository handles product and movement persistence
type InventoryRepository struct {
	db *database.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const productColumns = `id, tenant_id, sku, name, category, unit, min_stock, max_stock, current_stock,
	price_cents, controlled, requires_script, active, created_at, updated_at`

// CreateProduct registers a new product. The SKU is unique per tenant.
func (r *InventoryRepository) CreateProduct(ctx context.Context, p *Product) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.TenantID = tenantID
	p.Active = true

	query := `
		INSERT INTO products (id, tenant_id, sku, name, category, unit, min_stock, max_stock, current_stock,
			price_cents, controlled, requires_script, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		p.ID, p.TenantID, p.SKU, p.Name, p.Category, p.Unit, p.MinStock, p.MaxStock, p.CurrentStock,
		p.PriceCents, p.Controlled, p.RequiresScript, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetProduct gets a product by id within the tenant
func (r *InventoryRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var p Product
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 AND tenant_id = $2`, productColumns)

	err = r.db.GetContext(ctx, &p, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListProducts returns a page of products ordered by name
func (r *InventoryRepository) ListProducts(ctx context.Context, f ProductFilter, page, perPage int) ([]*Product, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		where += " AND (name ILIKE $" + n + " OR sku ILIKE $" + n + ")"
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where += " AND category = $" + strconv.Itoa(len(args))
	}
	if f.LowStock {
		where += " AND current_stock <= min_stock"
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where += " AND active = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	products := []*Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// UpdateProduct updates a product's descriptive fields. Stock changes only
// happen through movements.
func (r *InventoryRepository) UpdateProduct(ctx context.Context, p *Product) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $3, category = $4, unit = $5, min_stock = $6, max_stock = $7, price_cents = $8,
		    controlled = $9, requires_script = $10, active = $11, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		p.ID, tenantID, p.Name, p.Category, p.Unit, p.MinStock, p.MaxStock, p.PriceCents,
		p.Controlled, p.RequiresScript, p.Active,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("product")
	}
	return err
}

// Move applies a stock delta to a product and records the movement with
// before/after snapshots. The delta is applied with a single conditional
// UPDATE so concurrent movements on the same product cannot lose updates or
// drive the stock negative.
func (r *InventoryRepository) Move(ctx context.Context, m *Movement, delta int) (*Product, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.TenantID = tenantID

	var product *Product
	err = r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var p Product
		updateQuery := fmt.Sprintf(`
			UPDATE products
			SET current_stock = current_stock + $3, updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2 AND current_stock + $3 >= 0
			RETURNING %s`, productColumns)

		err := tx.GetContext(ctx, &p, updateQuery, m.ProductID, tenantID, delta)
		if err == sql.ErrNoRows {
			// The product is missing or the delta would go negative;
			// re-read to tell the two apart.
			var exists bool
			if err := tx.GetContext(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND tenant_id = $2)`,
				m.ProductID, tenantID); err != nil {
				return err
			}
			if !exists {
				return errors.NotFound("product")
			}
			return errors.Unprocessable("INSUFFICIENT_STOCK", "movement would drive stock negative")
		}
		if err != nil {
			return err
		}

		m.StockAfter = p.CurrentStock
		m.StockBefore = p.CurrentStock - delta

		insertQuery := `
			INSERT INTO inventory_movements (id, tenant_id, product_id, user_id, type, quantity,
				stock_before, stock_after, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`
		if err := tx.QueryRowxContext(ctx, insertQuery,
			m.ID, m.TenantID, m.ProductID, m.UserID, m.Type, m.Quantity,
			m.StockBefore, m.StockAfter, m.Reason,
		).Scan(&m.CreatedAt); err != nil {
			return err
		}

		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

// ListMovements returns a product's movements, newest first
func (r *InventoryRepository) ListMovements(ctx context.Context, productID string, page, perPage int) ([]*Movement, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM inventory_movements WHERE tenant_id = $1 AND product_id = $2`,
		tenantID, productID); err != nil {
		return nil, 0, err
	}

	movements := []*Movement{}
	query := `
		SELECT id, tenant_id, product_id, user_id, type, quantity, stock_before, stock_after, reason, created_at
		FROM inventory_movements
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &movements, query, tenantID, productID, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// Summary aggregates the tenant's inventory state
func (r *InventoryRepository) Summary(ctx context.Context) (*StockSummary, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var s StockSummary
	query := `
		SELECT COUNT(*) AS total_products,
		       COUNT(*) FILTER (WHERE current_stock <= min_stock AND current_stock > 0) AS low_stock,
		       COUNT(*) FILTER (WHERE current_stock = 0) AS out_of_stock,
		       COALESCE(SUM(current_stock * price_cents), 0) AS stock_value_cents
		FROM products
		WHERE tenant_id = $1 AND active = TRUE
	`
	if err := r.db.GetContext(ctx, &s, query, tenantID); err != nil {
		return nil, err
	}

	return &s, nil
}
