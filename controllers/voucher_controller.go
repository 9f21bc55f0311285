package controllers

import (
	"context"
	"net/http"
	"strings"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"

	"github.com/gin-gonic/gin"
)

type VoucherService interface {
	ValidateCode(ctx context.Context, code string) (*models.Voucher, error)
	RedeemWithPoints(ctx context.Context, customerID, voucherID string) (*models.Voucher, error)
	ListCustomerVouchers(ctx context.Context, customerID string) ([]models.Voucher, error)
}

type VoucherController struct {
	vouchers VoucherService
}

func NewVoucherController(vouchers VoucherService) *VoucherController {
	return &VoucherController{vouchers: vouchers}
}

// ValidateVoucher GET /vouchers/validate?code=
func (vc *VoucherController) ValidateVoucher(c *gin.Context) {
	defer middlewares.RecordOperation(c, "validate_voucher")
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		respondError(c, apperrors.New(apperrors.ValidationError, "code is required"))
		return
	}

	v, err := vc.vouchers.ValidateCode(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "voucher is valid", v)
}

func (vc *VoucherController) RedeemVoucher(c *gin.Context) {
	defer middlewares.RecordOperation(c, "redeem_voucher")
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	v, err := vc.vouchers.RedeemWithPoints(c.Request.Context(), actor.ID, req.VoucherID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "voucher redeemed", v)
}

func (vc *VoucherController) MyVouchers(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	vs, err := vc.vouchers.ListCustomerVouchers(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if vs == nil {
		vs = []models.Voucher{}
	}
	respond(c, http.StatusOK, "vouchers retrieved", vs)
}
