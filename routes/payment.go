package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	paymentControllers "github.com/nexus-commerce/api/controllers/payment"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/notifications"
)

func SetupPaymentRoutes(r *gin.Engine, db *gorm.DB, logger *zap.Logger, dispatcher notifications.Dispatcher) {
	payments := r.Group("/payments")
	payments.Use(middleware.ValidateToken)
	{
		payments.POST("", paymentControllers.CreatePaymentHandler(db, dispatcher, logger))
		payments.GET("/:id", paymentControllers.GetPaymentHandler(db))
	}

	// The gateway authenticates with the shared API key, not a user token.
	gateway := r.Group("/payments/gateway")
	gateway.Use(middleware.ValidateAPIKey)
	{
		gateway.POST("/callback", paymentControllers.GatewayCallbackHandler(db, dispatcher, logger))
	}
}
