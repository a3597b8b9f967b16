package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/download"
)

type DownloadHandler struct {
	Controller *download.Controller
}

func NewDownloadHandler(ctrl *download.Controller) *DownloadHandler {
	return &DownloadHandler{Controller: ctrl}
}

func tokenParam(c *gin.Context) string {
	if t := c.Param("token"); t != "" {
		return t
	}
	return c.Query("token")
}

// Redeem redirects to the purchased asset.
func (h *DownloadHandler) Redeem(c *gin.Context) {
	target, err := h.Controller.Redeem(c.Request.Context(), tokenParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

// Info describes a token without counting an access.
func (h *DownloadHandler) Info(c *gin.Context) {
	info, err := h.Controller.Info(c.Request.Context(), tokenParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
