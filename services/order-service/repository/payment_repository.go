package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// PaymentRepository stores gateway settlement records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.OrderPayment) error
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.OrderPayment, error)
	LockProviderPayment(ctx context.Context, providerPaymentID string) error
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create returns ErrDuplicate when the order or provider payment id already has a record.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *models.OrderPayment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *GormPaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.OrderPayment, error) {
	var p models.OrderPayment
	if err := r.db.WithContext(ctx).Where("provider_payment_id = ?", providerPaymentID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// LockProviderPayment serialises concurrent settlements of the same provider
// payment until the surrounding transaction ends.
func (r *GormPaymentRepository) LockProviderPayment(ctx context.Context, providerPaymentID string) error {
	return translate(r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", providerPaymentID).Error)
}
