package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	cartControllers "github.com/nexus-commerce/api/controllers/cart"
	userControllers "github.com/nexus-commerce/api/controllers/user"
	"github.com/nexus-commerce/api/middleware"
)

// SetupUserRoutes registers the cart and address-book endpoints. Requires
// JWT middleware.
func SetupUserRoutes(r *gin.Engine, db *gorm.DB) {
	carts := r.Group("/carts")
	carts.Use(middleware.ValidateToken)
	{
		carts.GET("", cartControllers.GetCart(db))
		carts.POST("/items", cartControllers.AddItem(db))
		carts.PATCH("/items/:id", cartControllers.UpdateItem(db))
		carts.DELETE("/items/:id", cartControllers.DeleteItem(db))
		carts.DELETE("/items", cartControllers.ClearCart(db))
	}

	addresses := r.Group("/addresses")
	addresses.Use(middleware.ValidateToken)
	{
		addresses.POST("", userControllers.CreateAddress(db))
		addresses.GET("", userControllers.ListAddresses(db))
		addresses.GET("/:id", userControllers.GetAddress(db))
	}
}
