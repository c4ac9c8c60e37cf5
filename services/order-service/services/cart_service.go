package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

// CartService defines the cart operations exposed over HTTP.
type CartService interface {
	ListFor(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	AddOrMerge(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	ReplaceAll(ctx context.Context, userID uuid.UUID, lines []models.CartLineInput) (skipped []uuid.UUID, err error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartServiceImpl struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCartService(store repository.Store, logger *zap.Logger) CartService {
	return &cartServiceImpl{store: store, logger: logger}
}

func (s *cartServiceImpl) ListFor(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load cart", err)
	}
	return items, nil
}

// AddOrMerge adds quantity to the user's line for productID, creating it if needed.
func (s *cartServiceImpl) AddOrMerge(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperrors.ErrInvalidQuantity
	}

	product, err := s.store.Catalog().FindProduct(ctx, productID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrProductNotFound, "Failed to load product")
	}
	if !product.IsActive {
		return nil, apperrors.ErrProductNotFound
	}

	item, err := s.store.Carts().Upsert(ctx, userID, productID, quantity)
	if err != nil {
		return nil, apperrors.Internal("Failed to add to cart", err)
	}

	s.logger.Info("Cart line merged",
		zap.String("user_id", userID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

// ReplaceAll swaps the whole cart for lines in one transaction. Duplicate
// product ids are merged; products that no longer resolve are skipped and
// returned so the client can tell the user.
func (s *cartServiceImpl) ReplaceAll(ctx context.Context, userID uuid.UUID, lines []models.CartLineInput) ([]uuid.UUID, error) {
	merged := make([]models.CartLineInput, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, apperrors.ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.ProductID)
	}

	var skipped []uuid.UUID
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		products, err := tx.Catalog().FindProducts(ctx, ids)
		if err != nil {
			return err
		}

		keep := make([]models.CartLineInput, 0, len(merged))
		for _, l := range merged {
			if p, ok := products[l.ProductID]; ok && p.IsActive {
				keep = append(keep, l)
				continue
			}
			skipped = append(skipped, l.ProductID)
		}

		if _, err := tx.Carts().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return tx.Carts().InsertLines(ctx, userID, keep)
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to replace cart", err)
	}

	if len(skipped) > 0 {
		s.logger.Info("Cart replace skipped unknown products",
			zap.String("user_id", userID.String()),
			zap.Int("skipped", len(skipped)),
		)
	}
	return skipped, nil
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperrors.ErrInvalidQuantity
	}
	item, err := s.store.Carts().UpdateQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrCartLineNotFound, "Failed to update cart item")
	}
	return item, nil
}

func (s *cartServiceImpl) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error {
	if err := s.store.Carts().DeleteLine(ctx, userID, lineID); err != nil {
		return notFoundAs(err, apperrors.ErrCartLineNotFound, "Failed to remove cart item")
	}
	return nil
}

// Clear is idempotent: clearing an empty cart succeeds.
func (s *cartServiceImpl) Clear(ctx context.Context, userID uuid.UUID) error {
	n, err := s.store.Carts().DeleteByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Internal("Failed to clear cart", err)
	}
	s.logger.Debug("Cart cleared", zap.String("user_id", userID.String()), zap.Int64("removed", n))
	return nil
}
