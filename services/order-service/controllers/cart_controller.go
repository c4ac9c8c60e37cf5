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

type CartController struct {
	cartService services.CartService
}

func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// GetCart returns the caller's cart with current prices.
func (cc *CartController) GetCart(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	items, err := cc.cartService.ListFor(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toCartResponse(items))
}

// AddItem adds a product or merges into its existing line.
func (cc *CartController) AddItem(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var req AddToCartRequest
	if !bindJSON(ctx, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrProductNotFound)
		return
	}

	item, err := cc.cartService.AddOrMerge(ctx.Request.Context(), userID, productID, req.Quantity)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toCartItemResponse(*item))
}

// ReplaceCart swaps the whole cart, e.g. when a guest cart is merged at login.
func (cc *CartController) ReplaceCart(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var req ReplaceCartRequest
	if !bindJSON(ctx, &req) {
		return
	}
	lines := make([]models.CartLineInput, 0, len(req.Items))
	unparsable := []string{}
	for _, it := range req.Items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			unparsable = append(unparsable, it.ProductID)
			continue
		}
		lines = append(lines, models.CartLineInput{ProductID: id, Quantity: it.Quantity})
	}

	skipped, err := cc.cartService.ReplaceAll(ctx.Request.Context(), userID, lines)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	items, err := cc.cartService.ListFor(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ReplaceCartResponse{
		Cart:    toCartResponse(items),
		Skipped: append(unparsable, uuidStrings(skipped)...),
	})
}

func (cc *CartController) UpdateItem(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	lineID, ok := uuidParam(ctx, "id", apperrors.ErrCartLineNotFound)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !bindJSON(ctx, &req) {
		return
	}

	item, err := cc.cartService.UpdateQuantity(ctx.Request.Context(), userID, lineID, req.Quantity)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toCartItemResponse(*item))
}

func (cc *CartController) RemoveItem(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	lineID, ok := uuidParam(ctx, "id", apperrors.ErrCartLineNotFound)
	if !ok {
		return
	}

	if err := cc.cartService.RemoveLine(ctx.Request.Context(), userID, lineID); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ClearCart is idempotent.
func (cc *CartController) ClearCart(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	if err := cc.cartService.Clear(ctx.Request.Context(), userID); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

func bindJSON(ctx *gin.Context, dst interface{}) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		apperrors.Respond(ctx, apperrors.New(apperrors.KindInvalidRequest, validationMessage(err), err))
		return false
	}
	return true
}

func uuidParam(ctx *gin.Context, name string, notFound *apperrors.Error) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		apperrors.Respond(ctx, notFound)
		return uuid.Nil, false
	}
	return id, true
}
