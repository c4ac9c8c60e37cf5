package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// OrderFilter narrows the admin listing. Zero values mean "any".
type OrderFilter struct {
	Status        models.OrderStatus
	PaymentMethod models.PaymentMethod
	OrderNumber   string
}

// OrderStats is the read-only aggregate exposed to reporting.
type OrderStats struct {
	TotalOrders  int64
	TotalRevenue decimal.Decimal
	ByStatus     map[models.OrderStatus]int64
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, filter OrderFilter, page, limit int) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
	Stats(ctx context.Context) (*OrderStats, error)
	DetachAddresses(ctx context.Context, userID uuid.UUID) (int64, error)
	ReassignOwner(ctx context.Context, from, to uuid.UUID) (int64, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the header and its lines in one call.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Payment", "ShippingAddress").Create(order).Error)
}

func (r *GormOrderRepository) detailed(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("OrderItems.Product").
		Preload("Payment").
		Preload("ShippingAddress")
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.detailed(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.detailed(ctx).Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return r.page(ctx, r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID), page, limit)
}

// FindAll retrieves all orders matching filter with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, filter OrderFilter, page, limit int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.OrderNumber != "" {
		query = query.Where("order_number ILIKE ?", "%"+filter.OrderNumber+"%")
	}
	return r.page(ctx, query, page, limit)
}

func (r *GormOrderRepository) page(ctx context.Context, query *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Preload("OrderItems.Product").
		Preload("Payment").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, translate(err)
	}

	return orders, total, nil
}

// UpdateStatus is compare-and-set: it applies only while the order is still
// in from. ErrNotFound means the order is gone or another writer moved it.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type statusRow struct {
	Status  models.OrderStatus
	Count   int64
	Revenue decimal.Decimal
}

// Stats counts orders per status. Revenue excludes cancelled orders.
func (r *GormOrderRepository) Stats(ctx context.Context) (*OrderStats, error) {
	var rows []statusRow
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	stats := &OrderStats{TotalRevenue: decimal.Zero, ByStatus: map[models.OrderStatus]int64{}}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
		if row.Status != models.OrderStatusCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(row.Revenue)
		}
	}
	return stats, nil
}

func (r *GormOrderRepository) DetachAddresses(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND shipping_address_id IS NOT NULL", userID).
		Update("shipping_address_id", nil)
	return res.RowsAffected, translate(res.Error)
}

func (r *GormOrderRepository) ReassignOwner(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", from).
		Update("user_id", to)
	return res.RowsAffected, translate(res.Error)
}
