package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

func TestPurgeUser_RetainsOrdersButUnlinksPerson(t *testing.T) {
	store := newMemStore()
	svc, err := services.NewAccountService(store, zap.NewNop())
	require.NoError(t, err)

	user, bystander := uuid.New(), uuid.New()
	addr := store.addAddress(user)
	p := store.addProduct("Pen", "5.00", 10)
	store.setCart(user, models.CartLineInput{ProductID: p.ID, Quantity: 2})
	store.setCart(bystander, models.CartLineInput{ProductID: p.ID, Quantity: 1})

	o := seedOrder(store, user, models.OrderStatusDelivered, "10.00")
	_ = store.with(func(st *memState) error {
		st.orders[0].ShippingAddressID = &addr.ID
		return nil
	})
	kept := seedOrder(store, bystander, models.OrderStatusPending, "5.00")

	report, err := svc.PurgeUser(context.Background(), user)
	require.NoError(t, err)

	steps := make([]string, 0, len(report.Steps))
	for _, s := range report.Steps {
		steps = append(steps, s.Step)
	}
	assert.Equal(t, []string{"cart_items.delete", "orders.detach_shipping_address", "orders.anonymise_owner"}, steps)
	assert.Equal(t, int64(1), report.Steps[0].Rows)
	assert.Equal(t, int64(1), report.Steps[1].Rows)
	assert.Equal(t, int64(1), report.Steps[2].Rows)

	assert.Equal(t, 0, store.cartLen(user))
	assert.Equal(t, 1, store.cartLen(bystander))
	assert.Equal(t, 2, store.orderCount())

	anon, err := store.Orders().FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, anon.UserID)
	assert.Nil(t, anon.ShippingAddressID)
	assert.Len(t, anon.OrderItems, 1)

	other, err := store.Orders().FindByID(context.Background(), kept.ID)
	require.NoError(t, err)
	assert.Equal(t, bystander, other.UserID)
}

func TestPurgeUser_RejectsNilUser(t *testing.T) {
	svc, err := services.NewAccountService(newMemStore(), zap.NewNop())
	require.NoError(t, err)

	_, err = svc.PurgeUser(context.Background(), uuid.Nil)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}
