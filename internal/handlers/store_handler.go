package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// Seller routes. The caller must own an approved, active store.

func (h *api) updateStoreOrder(c *gin.Context) {
	var req validation.UpdateOrderStatusRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	ctx := c.Request.Context()
	st, err := h.Sellers.ApprovedStore(ctx, identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	o, err := h.Orders.UpdateStatus(ctx, st.ID, req.OrderID, req.Status)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order status updated", "order": o})
}

func (h *api) listStoreOrders(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.Sellers.ApprovedStore(ctx, identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	list, err := h.Orders.Store().ListForStore(ctx, st.ID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}
