package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// InventoryRepository is the stock ledger. TryReserve must run inside the
// checkout transaction so a later failure restores the count.
type InventoryRepository interface {
	TryReserve(ctx context.Context, productID uuid.UUID, quantity int) error
}

type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// TryReserve decrements stock only when enough is left. The check and the
// write are one statement, so stock can never go negative.
func (r *GormInventoryRepository) TryReserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_count >= ?", productID, quantity).
		Update("stock_count", gorm.Expr("stock_count - ?", quantity))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStockExhausted
	}
	return nil
}
