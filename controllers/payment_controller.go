package controllers

import (
	"context"
	"io"
	"net/http"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	SignatureHeader = "X-Signature"
	maxWebhookBody  = 64 << 10
)

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (*models.Order, error)
}

type PaymentController struct {
	payments WebhookHandler
}

func NewPaymentController(payments WebhookHandler) *PaymentController {
	return &PaymentController{payments: payments}
}

// Webhook 签名基于原始 body, 不能先做 JSON 绑定
func (pc *PaymentController) Webhook(c *gin.Context) {
	defer middlewares.RecordOperation(c, "payment_webhook")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.ValidationError, err, "unable to read request body"))
		return
	}

	order, err := pc.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	if order == nil {
		respond(c, http.StatusOK, "event ignored", nil)
		return
	}
	respond(c, http.StatusOK, "payment confirmed", gin.H{"order_id": order.ID, "paid_at": order.PaidAt})
}

// HandleDeadLetter 死信回调, 只记录
func HandleDeadLetter(c *gin.Context) {
	defer middlewares.RecordOperation(c, "dead_letter")

	var deadLetter struct {
		OrderID string `json:"order_id" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		respondBindError(c, err)
		return
	}

	log.Warn().
		Str("order_id", deadLetter.OrderID).
		Str("reason", deadLetter.Reason).
		Msg("handling dead letter")
	respond(c, http.StatusOK, "dead letter processed", nil)
}
