package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

// AdminController serves the back-office order views. Routes are guarded by AdminOnly.
type AdminController struct {
	orderService   services.OrderService
	accountService services.AccountService
}

func NewAdminController(orderService services.OrderService, accountService services.AccountService) *AdminController {
	return &AdminController{orderService: orderService, accountService: accountService}
}

// GetAllOrders returns paginated orders for all users
func (ac *AdminController) GetAllOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := repository.OrderFilter{
		Status:        models.OrderStatus(ctx.Query("status")),
		PaymentMethod: models.PaymentMethod(ctx.Query("payment_method")),
		OrderNumber:   ctx.Query("order_number"),
	}

	result, err := ac.orderService.ListAll(ctx.Request.Context(), filter, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toAdminOrderListResponse(result))
}

func (ac *AdminController) GetOrder(ctx *gin.Context) {
	orderID, ok := uuidParam(ctx, "id", apperrors.ErrOrderNotFound)
	if !ok {
		return
	}
	order, err := ac.orderService.Get(ctx.Request.Context(), orderID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": toAdminOrderResponse(order)})
}

func (ac *AdminController) UpdateStatus(ctx *gin.Context) {
	orderID, ok := uuidParam(ctx, "id", apperrors.ErrOrderNotFound)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	order, err := ac.orderService.UpdateStatus(ctx.Request.Context(), orderID, models.OrderStatus(req.Status))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": toAdminOrderResponse(order)})
}

func (ac *AdminController) Stats(ctx *gin.Context) {
	stats, err := ac.orderService.Stats(ctx.Request.Context())
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toStatsResponse(stats))
}

// PurgeUserData removes a user's cart and unlinks their orders.
func (ac *AdminController) PurgeUserData(ctx *gin.Context) {
	userID, ok := uuidParam(ctx, "id", apperrors.New(apperrors.KindInvalidRequest, "Invalid user ID", nil))
	if !ok {
		return
	}
	report, err := ac.accountService.PurgeUser(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toPurgeResponse(report))
}
