package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"shop-service/models"
)

const StatusPaid = "PAID"

// Gateway 第三方支付, 只负责生成支付链接
type Gateway interface {
	CreatePaymentLink(ctx context.Context, order *models.Order) (string, error)
}

// WebhookPayload 支付平台回调内容
type WebhookPayload struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  string `json:"amount"`
}

// CheckoutLinkGateway 托管收银台, 链接由订单号和金额拼出
type CheckoutLinkGateway struct {
	baseURL string
}

func NewCheckoutLinkGateway(baseURL string) *CheckoutLinkGateway {
	return &CheckoutLinkGateway{baseURL: baseURL}
}

func (g *CheckoutLinkGateway) CreatePaymentLink(ctx context.Context, order *models.Order) (string, error) {
	if g.baseURL == "" {
		return "", errors.New("payment base url is not configured")
	}
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse payment base url: %w", err)
	}
	u = u.JoinPath("checkout", order.ID)
	q := u.Query()
	q.Set("amount", order.Total.StringFixed(2))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sign HMAC-SHA256, hex 编码
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func Verify(key, body []byte, signature string) bool {
	if len(key) == 0 || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
