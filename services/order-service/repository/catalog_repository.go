package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// CatalogRepository reads the product and address tables owned by other services.
type CatalogRepository interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	FindAddressForUser(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
}

type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormCatalogRepository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return r.findMany(r.db.WithContext(ctx), ids)
}

// LockProducts takes row locks in id order so two checkouts touching the same
// products cannot deadlock. Only valid inside a transaction.
func (r *GormCatalogRepository) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return r.findMany(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Order("id"), ids)
}

func (r *GormCatalogRepository) findMany(q *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := q.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, translate(err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// FindAddressForUser returns ErrNotFound for another user's address as well as a missing one.
func (r *GormCatalogRepository) FindAddressForUser(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var a models.Address
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", addressID, userID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}
