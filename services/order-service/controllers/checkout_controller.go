package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/middleware"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutController struct {
	checkoutService services.CheckoutService
}

func NewCheckoutController(checkoutService services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// CreateFromCart places an order with an offline payment method.
func (cc *CheckoutController) CreateFromCart(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var req DirectCheckoutRequest
	if !bindJSON(ctx, &req) {
		return
	}
	addressID, err := uuid.Parse(req.ShippingAddressID)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrInvalidAddress)
		return
	}

	order, err := cc.checkoutService.DirectCheckout(ctx.Request.Context(), userID, services.DirectCheckoutRequest{
		ShippingAddressID: addressID,
		PaymentMethod:     models.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toOrderResponse(order))
}

// CreatePaymentOrder registers the cart total with the gateway.
func (cc *CheckoutController) CreatePaymentOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	intent, err := cc.checkoutService.CreatePaymentIntent(ctx.Request.Context(), userID, ctx.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	if intent.Replayed {
		ctx.Header("Idempotent-Replayed", "true")
	}
	ctx.JSON(http.StatusOK, toPaymentIntentResponse(intent))
}

// VerifyPayment settles the gateway callback and creates the order.
func (cc *CheckoutController) VerifyPayment(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var req VerifyPaymentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	addressID, err := uuid.Parse(req.ShippingAddressID)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrInvalidAddress)
		return
	}

	order, err := cc.checkoutService.VerifyAndCheckout(ctx.Request.Context(), userID, services.VerifyPaymentRequest{
		ProviderOrderID:   req.RazorpayOrderID,
		ProviderPaymentID: req.RazorpayPaymentID,
		Signature:         req.RazorpaySignature,
		ShippingAddressID: addressID,
	})
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toOrderResponse(order))
}
