package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
)

// maxImageSize bounds preview image uploads.
const maxImageSize = 10 << 20

type CatalogHandler struct {
	Catalog *catalog.Service
}

func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{Catalog: svc}
}

func (h *CatalogHandler) List(c *gin.Context) {
	bundles, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundles)
}

func (h *CatalogHandler) Get(c *gin.Context) {
	b, err := h.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// adminBundle exposes the asset URL, which public responses hide.
func adminBundle(b any, assetURL string) gin.H {
	return gin.H{"bundle": b, "asset_url": assetURL}
}

func (h *CatalogHandler) AdminGet(c *gin.Context) {
	b, err := h.Catalog.GetForAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminBundle(b, b.AssetURL))
}

func (h *CatalogHandler) Create(c *gin.Context) {
	var in catalog.BundleInput
	if !bindJSON(c, &in) {
		return
	}
	b, err := h.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adminBundle(b, b.AssetURL))
}

func (h *CatalogHandler) Update(c *gin.Context) {
	var in catalog.BundleInput
	if !bindJSON(c, &in) {
		return
	}
	b, err := h.Catalog.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminBundle(b, b.AssetURL))
}

func (h *CatalogHandler) Delete(c *gin.Context) {
	if err := h.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage accepts a multipart "image" field.
func (h *CatalogHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize)

	fh, err := c.FormFile("image")
	if err != nil {
		respondError(c, apperr.E(apperr.Validation, "handlers.UploadImage", "An image file is required.", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.UploadImage", "", err))
		return
	}
	defer f.Close()

	b, err := h.Catalog.AddImage(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adminBundle(b, b.AssetURL))
}
