package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/notifications"
)

// SetupRoutes is the single entry point that wires up all route groups.
func SetupRoutes(r *gin.Engine, db *gorm.DB, logger *zap.Logger, dispatcher notifications.Dispatcher, hub *notifications.Hub) {
	// Public catalog + order event stream (no middleware)
	SetupPublicRoutes(r, db, hub)

	// User routes (JWT-protected)
	SetupUserRoutes(r, db)

	// Checkout + payments (JWT-protected; gateway callback API-key-protected)
	SetupOrderRoutes(r, db, logger, dispatcher)
	SetupPaymentRoutes(r, db, logger, dispatcher)

	// Admin routes (API-key-protected)
	SetupAdminRoutes(r, db, dispatcher)
}
