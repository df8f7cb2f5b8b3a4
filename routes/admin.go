package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	orderControllers "github.com/nexus-commerce/api/controllers/order"
	paymentControllers "github.com/nexus-commerce/api/controllers/payment"
	productControllers "github.com/nexus-commerce/api/controllers/product"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/notifications"
)

// SetupAdminRoutes registers the API-key-protected admin surface.
func SetupAdminRoutes(r *gin.Engine, db *gorm.DB, dispatcher notifications.Dispatcher) {
	admin := r.Group("/admin")
	admin.Use(middleware.ValidateAPIKey)
	{
		admin.POST("/products", productControllers.CreateProduct(db))
		admin.PUT("/products/:id", productControllers.UpdateProduct(db))
		admin.DELETE("/products/:id", productControllers.DeleteProduct(db))

		admin.PUT("/orders/:id/status", orderControllers.UpdateOrderStatusHandler(db, dispatcher))
		admin.GET("/orders/export", orderControllers.ExportOrdersToExcel(db))

		admin.POST("/payments/:id/refund", paymentControllers.RefundPaymentHandler(db, dispatcher))
	}
}
