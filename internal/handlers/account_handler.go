package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/addresses"
	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
	"github.com/imrishuroy/go-storefront-checkout/internal/ratings"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// an address still referenced by an active order is a client error
var addressDeleteOverrides = map[apperr.Kind]int{
	apperr.Conflict: http.StatusBadRequest,
}

func (h *api) createAddress(c *gin.Context) {
	var req validation.CreateAddressRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	addr, err := h.Addresses.Create(c.Request.Context(), identity(c).UserID, addresses.CreateInput{
		Name:        req.Name,
		FullAddress: req.FullAddress,
		Phone:       req.Phone,
		City:        req.City,
		Country:     req.Country,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": addr})
}

func (h *api) listAddresses(c *gin.Context) {
	list, err := h.Addresses.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

func (h *api) deleteAddress(c *gin.Context) {
	if err := h.Addresses.Delete(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		writeError(c, err, addressDeleteOverrides)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
}

func (h *api) createRating(c *gin.Context) {
	var req validation.CreateRatingRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	r, err := h.Ratings.Create(c.Request.Context(), identity(c).UserID, ratings.CreateInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Review:    req.Review,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rating": r})
}

func (h *api) listRatings(c *gin.Context) {
	list, err := h.Ratings.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": list})
}

func (h *api) getCart(c *gin.Context) {
	items, err := h.Cart.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": items})
}

func (h *api) saveCart(c *gin.Context) {
	var req validation.SaveCartRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	if err := h.Cart.Save(c.Request.Context(), identity(c).UserID, models.Cart(req.Cart)); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart updated"})
}
