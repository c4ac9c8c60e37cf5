package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/storefront-backend/services/common/auth"
	commonmw "github.com/yashrajoria/storefront-backend/services/common/middleware"
	"github.com/yashrajoria/storefront-backend/services/order-service/controllers"
	"github.com/yashrajoria/storefront-backend/services/order-service/middleware"
)

// Controllers groups every handler the router mounts.
type Controllers struct {
	Cart     *controllers.CartController
	Checkout *controllers.CheckoutController
	Order    *controllers.OrderController
	Admin    *controllers.AdminController
}

// RegisterRoutes mounts the cart, order, payment and admin routes. The
// payment routes carry an extra per-user rate limit.
func RegisterRoutes(r *gin.Engine, c Controllers, verifier *auth.TokenVerifier, paymentLimiter *commonmw.RateLimiter) {
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(verifier))

	cart := authed.Group("/cart")
	cart.GET("", c.Cart.GetCart)
	cart.POST("", c.Cart.AddItem)
	cart.PUT("", c.Cart.ReplaceCart)
	cart.DELETE("/clear", c.Cart.ClearCart)
	cart.PATCH("/:id", c.Cart.UpdateItem)
	cart.DELETE("/:id", c.Cart.RemoveItem)

	orders := authed.Group("/orders")
	orders.GET("", c.Order.GetOrders)
	orders.POST("/create_from_cart", c.Checkout.CreateFromCart)
	orders.GET("/:id", c.Order.GetOrderByID)
	orders.POST("/:id/cancel", c.Order.CancelOrder)

	payments := authed.Group("/payments/razorpay")
	if paymentLimiter != nil {
		payments.Use(paymentLimiter.Middleware(func(ctx *gin.Context) string {
			return ctx.GetString(middleware.UserContextKey)
		}))
	}
	payments.POST("/create-order", c.Checkout.CreatePaymentOrder)
	payments.POST("/verify", c.Checkout.VerifyPayment)

	admin := authed.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders", c.Admin.GetAllOrders)
	admin.GET("/orders/stats", c.Admin.Stats)
	admin.GET("/orders/:id", c.Admin.GetOrder)
	admin.PATCH("/orders/:id/status", c.Admin.UpdateStatus)
	admin.DELETE("/users/:id/data", c.Admin.PurgeUserData)
}
