package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// CartRepository defines the interface for cart line data access
type CartRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	LockByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	InsertLines(ctx context.Context, userID uuid.UUID, lines []models.CartLineInput) error
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.CartItem, error)
	DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// GormCartRepository implements CartRepository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// ListByUser returns the user's lines with their product snapshot, oldest first.
func (r *GormCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, translate(err)
}

// LockByUser is ListByUser with the lines row-locked until the surrounding
// transaction ends. A second checkout of the same cart blocks here and then
// sees the lines the first one deleted.
func (r *GormCartRepository) LockByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, translate(err)
}

// Upsert inserts the line or adds quantity to the existing one in a single
// statement, so concurrent adds of the same product never lose an increment.
func (r *GormCartRepository) Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.find(ctx, userID, "product_id = ?", productID)
}

// InsertLines bulk-inserts lines; callers clear the cart first.
func (r *GormCartRepository) InsertLines(ctx context.Context, userID uuid.UUID, lines []models.CartLineInput) error {
	if len(lines) == 0 {
		return nil
	}
	items := make([]models.CartItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.CartItem{UserID: userID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return translate(r.db.WithContext(ctx).Create(&items).Error)
}

func (r *GormCartRepository) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.CartItem, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.find(ctx, userID, "id = ?", lineID)
}

func (r *GormCartRepository) DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes every line of the user and reports how many went.
func (r *GormCartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, translate(res.Error)
}

func (r *GormCartRepository) find(ctx context.Context, userID uuid.UUID, cond string, arg interface{}) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Where(cond, arg).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}
