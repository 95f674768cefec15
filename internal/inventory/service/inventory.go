package service

import (
	"context"
	"strconv"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/internal/inventory/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
)

// InventoryStore is the persistence contract of the inventory service
type InventoryStore interface {
	CreateProduct(ctx context.Context, p *repository.Product) error
	GetProduct(ctx context.Context, id string) (*repository.Product, error)
	ListProducts(ctx context.Context, f repository.ProductFilter, page, perPage int) ([]*repository.Product, int64, error)
	UpdateProduct(ctx context.Context, p *repository.Product) error
	Move(ctx context.Context, m *repository.Movement, delta int) (*repository.Product, error)
	ListMovements(ctx context.Context, productID string, page, perPage int) ([]*repository.Movement, int64, error)
	Summary(ctx context.Context) (*repository.StockSummary, error)
}

// InventoryService handles product and stock business logic
type InventoryService struct {
	repo      InventoryStore
	publisher *events.Publisher
	auditor   *audit.Recorder
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(repo InventoryStore, publisher *events.Publisher, auditor *audit.Recorder, log *logger.Logger) *InventoryService {
	return &InventoryService{
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		logger:    log,
	}
}

// CreateProduct registers a new product
func (s *InventoryService) CreateProduct(ctx context.Context, p *repository.Product) error {
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}

	s.auditor.Record(ctx, "product.create", "product", p.ID, map[string]string{
		"sku": p.SKU,
	})
	return nil
}

// GetProduct gets a product by id
func (s *InventoryService) GetProduct(ctx context.Context, id string) (*repository.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products with filters and pagination
func (s *InventoryService) ListProducts(ctx context.Context, f repository.ProductFilter, page, perPage int) ([]*repository.Product, int64, error) {
	return s.repo.ListProducts(ctx, f, page, perPage)
}

// UpdateProduct updates a product's descriptive fields
func (s *InventoryService) UpdateProduct(ctx context.Context, p *repository.Product) error {
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}

	s.auditor.Record(ctx, "product.update", "product", p.ID, nil)
	return nil
}

// Move records a stock movement. Inbound types add the quantity; outbound
// types subtract it; adjustments carry a signed quantity directly.
func (s *InventoryService) Move(ctx context.Context, m *repository.Movement) (*repository.Product, error) {
	var delta int
	switch m.Type {
	case repository.MovementIn:
		delta = m.Quantity
	case repository.MovementOut, repository.MovementExpired, repository.MovementTransfer:
		delta = -m.Quantity
	case repository.MovementAdjustment:
		delta = m.Quantity
	default:
		return nil, errors.Validation(map[string]string{"type": "must be a valid movement type"})
	}

	if m.Type != repository.MovementAdjustment && m.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	}

	id, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.UserID = id.UserID

	product, err := s.repo.Move(ctx, m, delta)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "inventory.move", "product", m.ProductID, map[string]string{
		"type":     m.Type,
		"quantity": strconv.Itoa(m.Quantity),
	})
	s.publisher.Publish(ctx, messaging.EventStockMoved, m)

	if product.CurrentStock <= product.MinStock {
		s.publisher.Publish(ctx, messaging.EventStockLow, product)
	}

	return product, nil
}

// ListMovements returns a product's movements, newest first
func (s *InventoryService) ListMovements(ctx context.Context, productID string, page, perPage int) ([]*repository.Movement, int64, error) {
	return s.repo.ListMovements(ctx, productID, page, perPage)
}

// Summary aggregates the tenant's inventory state
func (s *InventoryService) Summary(ctx context.Context) (*repository.StockSummary, error) {
	return s.repo.Summary(ctx)
}
