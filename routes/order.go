package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orderControllers "github.com/nexus-commerce/api/controllers/order"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/notifications"
)

func SetupOrderRoutes(r *gin.Engine, db *gorm.DB, logger *zap.Logger, dispatcher notifications.Dispatcher) {
	orders := r.Group("/orders")
	orders.Use(middleware.ValidateToken)
	{
		// Materialize the active cart into an order
		orders.POST("/create-from-cart", orderControllers.CreateFromCartHandler(db, dispatcher, logger))

		orders.GET("", orderControllers.ListOrdersHandler(db))
		orders.GET("/:id", orderControllers.GetOrderHandler(db))
		orders.POST("/:id/cancel", orderControllers.CancelOrderHandler(db, dispatcher))
	}
}
