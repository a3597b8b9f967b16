package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/middleware"
)

// Routes is everything the HTTP surface is built from. Auth is nil when
// sessions come from an external identity provider.
type Routes struct {
	Resolver    auth.Resolver
	Profiles    middleware.ProfileGetter
	Auth        *AuthHandler
	Checkout    *CheckoutHandler
	Download    *DownloadHandler
	Catalog     *CatalogHandler
	Orders      *OrdersHandler
	Live        *WebSocketHandler
	CORSOrigins []string
	Ping        func(ctx context.Context) error
}

// NewRouter builds the gin engine.
func NewRouter(rt Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(rt.CORSOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		if rt.Ping != nil {
			if err := rt.Ping(c.Request.Context()); err != nil {
				respondError(c, apperr.E(apperr.Upstream, "handlers.Health", "Database unavailable.", err))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.Authenticate(rt.Resolver, true)
	optionalAuth := middleware.Authenticate(rt.Resolver, false)

	api := router.Group("/api")
	{
		if rt.Auth != nil {
			api.POST("/auth/register", rt.Auth.Register)
			api.POST("/auth/login", rt.Auth.Login)
			api.GET("/me", requireAuth, rt.Auth.Me)
		}

		api.GET("/bundles", rt.Catalog.List)
		api.GET("/bundles/:id", rt.Catalog.Get)

		payments := api.Group("/payments")
		payments.POST("/create-order", requireAuth, rt.Checkout.CreateOrder)
		payments.POST("/verify-payment", optionalAuth, rt.Checkout.VerifyPayment)
		payments.POST("/cancel", optionalAuth, rt.Checkout.CancelPayment)
		payments.POST("/midtrans/notification", rt.Checkout.MidtransNotification)

		api.GET("/download", rt.Download.Redeem)
		api.GET("/download/:token", rt.Download.Redeem)
		api.GET("/download/:token/info", rt.Download.Info)

		api.GET("/orders", requireAuth, rt.Orders.MyOrders)
	}

	admin := api.Group("/admin", middleware.TokenFromQuery("access_token"), requireAuth, middleware.RequireAdmin(rt.Profiles))
	{
		admin.GET("/bundles/:id", rt.Catalog.AdminGet)
		admin.POST("/bundles", rt.Catalog.Create)
		admin.PUT("/bundles/:id", rt.Catalog.Update)
		admin.DELETE("/bundles/:id", rt.Catalog.Delete)
		admin.POST("/bundles/:id/images", rt.Catalog.UploadImage)
		admin.GET("/stats", rt.Orders.Stats)
		if rt.Live != nil {
			admin.GET("/live", rt.Live.ServeLive)
		}
	}

	return router
}
