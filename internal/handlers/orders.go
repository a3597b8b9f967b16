package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
)

// OrderStore reads purchase history and sales figures.
type OrderStore interface {
	ListOrdersByUser(ctx context.Context, userID string) ([]models.OrderWithToken, error)
	Stats(ctx context.Context) (models.SalesStats, error)
}

type OrdersHandler struct {
	Store OrderStore
}

func NewOrdersHandler(s OrderStore) *OrdersHandler {
	return &OrdersHandler{Store: s}
}

// MyOrders lists the caller's orders, newest first.
func (h *OrdersHandler) MyOrders(c *gin.Context) {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		respondError(c, apperr.E(apperr.AuthenticationRequired, "handlers.MyOrders", "Please sign in.", nil))
		return
	}

	orders, err := h.Store.ListOrdersByUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.MyOrders", "Could not fetch orders.", err))
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Stats returns sales totals for the admin dashboard.
func (h *OrdersHandler) Stats(c *gin.Context) {
	stats, err := h.Store.Stats(c.Request.Context())
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.Stats", "", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}
