package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/middleware"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

type OrderController struct {
	orderService services.OrderService
}

func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	page, limit := parsePaginationParams(ctx)

	result, err := oc.orderService.ListForUser(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toOrderListResponse(result))
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	orderID, ok := uuidParam(ctx, "id", apperrors.ErrOrderNotFound)
	if !ok {
		return
	}

	order, err := oc.orderService.GetForUser(ctx.Request.Context(), userID, orderID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": toOrderResponse(order)})
}

// CancelOrder cancels a pending order of the authenticated user
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	orderID, ok := uuidParam(ctx, "id", apperrors.ErrOrderNotFound)
	if !ok {
		return
	}

	order, err := oc.orderService.Cancel(ctx.Request.Context(), userID, orderID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": toOrderResponse(order)})
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	page := ctx.DefaultQuery("page", "1")
	limit := ctx.DefaultQuery("limit", "10")

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageInt = p
	}

	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
