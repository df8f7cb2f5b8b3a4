package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	productControllers "github.com/nexus-commerce/api/controllers/product"
	"github.com/nexus-commerce/api/notifications"
)

func SetupPublicRoutes(r *gin.Engine, db *gorm.DB, hub *notifications.Hub) {
	r.GET("/products", productControllers.ListProducts(db))
	r.GET("/products/:id", productControllers.GetProduct(db))

	// websocket stream of order lifecycle events
	r.GET("/orders/ws", hub.Handler)
}
