package controllers

import (
	"context"
	"net/http"

	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/services"

	"github.com/gin-gonic/gin"
)

type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, req models.CreateOrderRequest) (*models.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string, actor services.Actor) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID string, actor services.Actor, req models.UpdateOrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID, customerID string) (*models.Order, error)
	CalculateTotal(ctx context.Context, orderID string, actor services.Actor) (*models.OrderTotal, error)
	OrderLogs(ctx context.Context, orderID string, actor services.Actor) ([]models.OrderLog, error)
	UpdateStatus(ctx context.Context, orderID string, target models.OrderStatus, actor services.Actor) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID string, actor services.Actor) error
	ApplyVoucher(ctx context.Context, orderID, code string, actor services.Actor) (*models.OrderTotal, error)
	RemoveVoucher(ctx context.Context, orderID, code string, actor services.Actor) (*models.OrderTotal, error)
}

type OrderController struct {
	orders OrderService
}

func NewOrderController(orders OrderService) *OrderController {
	return &OrderController{orders: orders}
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	defer middlewares.RecordOperation(c, "create")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := oc.orders.CreateOrder(c.Request.Context(), actor.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "order created", order)
}

func (oc *OrderController) ListOrders(c *gin.Context) {
	defer middlewares.RecordOperation(c, "list")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	orders, err := oc.orders.ListOrders(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	respond(c, http.StatusOK, "orders retrieved", orders)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	defer middlewares.RecordOperation(c, "details")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order retrieved", order)
}

func (oc *OrderController) UpdateOrder(c *gin.Context) {
	defer middlewares.RecordOperation(c, "update")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := oc.orders.UpdateOrder(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order updated", order)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	defer middlewares.RecordOperation(c, "cancel")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	order, err := oc.orders.CancelOrder(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order cancelled", order)
}

func (oc *OrderController) CalculateTotal(c *gin.Context) {
	defer middlewares.RecordOperation(c, "total")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	total, err := oc.orders.CalculateTotal(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order total calculated", total)
}

func (oc *OrderController) OrderLogs(c *gin.Context) {
	defer middlewares.RecordOperation(c, "logs")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	logs, err := oc.orders.OrderLogs(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order logs retrieved", logs)
}

// UpdateOrderStatus 客户只能取消, 管理员路由可强制设置任意状态
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	defer middlewares.RecordOperation(c, "update_status")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order status updated", order)
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	defer middlewares.RecordOperation(c, "delete")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := oc.orders.DeleteOrder(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "order deleted", nil)
}

func (oc *OrderController) ApplyVoucher(c *gin.Context) {
	defer middlewares.RecordOperation(c, "apply_voucher")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.ApplyVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	total, err := oc.orders.ApplyVoucher(c.Request.Context(), c.Param("id"), req.Code, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "voucher applied", total)
}

func (oc *OrderController) RemoveVoucher(c *gin.Context) {
	defer middlewares.RecordOperation(c, "remove_voucher")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	total, err := oc.orders.RemoveVoucher(c.Request.Context(), c.Param("id"), c.Param("code"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "voucher removed", total)
}
