package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/auth"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

func (h *api) verifyCoupon(c *gin.Context) {
	var req validation.VerifyCouponRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	userID := ""
	if id, ok := auth.FromContext(c); ok {
		userID = id.UserID
	}

	coupon, err := coupons.Evaluate(c.Request.Context(), h.Coupons, req.Code, userID, time.Now())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupon": coupon})
}

func (h *api) createCoupon(c *gin.Context) {
	var req validation.CreateCouponRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	coupon, err := h.Coupons.Create(c.Request.Context(), coupons.CreateInput{
		Code:        req.Code,
		Description: req.Description,
		Discount:    req.Discount,
		ForNewUser:  req.ForNewUser,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"coupon": coupon})
}

func (h *api) listCoupons(c *gin.Context) {
	list, err := h.Coupons.List(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": list})
}

func (h *api) deleteCoupon(c *gin.Context) {
	if err := h.Coupons.Delete(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "coupon deleted"})
}
