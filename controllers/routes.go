package controllers

import (
	"net/http"

	"shop-service/middlewares"
	"shop-service/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Orders   *OrderController
	Vouchers *VoucherController
	Reviews  *ReviewController
	Payments *PaymentController
}

func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		respond(c, http.StatusOK, "ok", gin.H{"status": "ok"})
	})

	// 死信队列处理端点
	r.POST("/dead-letter", HandleDeadLetter)

	api := r.Group("/api")
	api.POST("/payments/webhook", h.Payments.Webhook)
	api.GET("/products/:id/reviews", h.Reviews.ListProductReviews)

	// 需要认证的路由组
	authGroup := api.Group("")
	authGroup.Use(middlewares.AuthMiddleware(jwtSecret))
	{
		authGroup.POST("/orders", h.Orders.CreateOrder)
		authGroup.GET("/orders", h.Orders.ListOrders)
		authGroup.GET("/orders/:id", h.Orders.GetOrder)
		authGroup.PUT("/orders/:id", h.Orders.UpdateOrder)
		authGroup.POST("/orders/:id/cancel", h.Orders.CancelOrder)
		authGroup.GET("/orders/:id/total", h.Orders.CalculateTotal)
		authGroup.GET("/orders/:id/logs", h.Orders.OrderLogs)
		authGroup.PUT("/orders/:id/status", h.Orders.UpdateOrderStatus)
		authGroup.POST("/orders/:id/vouchers", h.Orders.ApplyVoucher)
		authGroup.DELETE("/orders/:id/vouchers/:code", h.Orders.RemoveVoucher)

		authGroup.GET("/vouchers/validate", h.Vouchers.ValidateVoucher)
		authGroup.POST("/vouchers/redeem", h.Vouchers.RedeemVoucher)
		authGroup.GET("/vouchers/mine", h.Vouchers.MyVouchers)

		authGroup.POST("/reviews", h.Reviews.CreateReview)
		authGroup.DELETE("/reviews/:id", h.Reviews.DeleteReview)
		authGroup.POST("/reviews/:id/comments", h.Reviews.AddComment)
	}

	admin := authGroup.Group("/admin")
	admin.Use(middlewares.RequireRole(utils.RoleAdmin))
	{
		admin.PUT("/orders/:id/status", h.Orders.UpdateOrderStatus)
		admin.DELETE("/orders/:id", h.Orders.DeleteOrder)
		admin.DELETE("/reviews/:id", h.Reviews.DeleteReview)
	}
}
