package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/models"
	"github.com/nexus-commerce/api/notifications"
	"github.com/nexus-commerce/api/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db := initDatabase(logger)

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// Gin setup
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Order event fan-out: websocket hub always, Kafka when configured.
	hub := notifications.NewHub(logger)
	dispatcher := notifications.Multi{hub}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_ORDER_TOPIC")
		if topic == "" {
			topic = "order-events"
		}
		kafka, err := notifications.NewKafkaDispatcher(brokers, topic, logger)
		if err != nil {
			logger.Fatal("Kafka producer init failed", zap.Error(err))
		}
		defer kafka.Close()
		dispatcher = append(dispatcher, kafka)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", middleware.PrometheusHandler())

	routes.SetupRoutes(r, db, logger, dispatcher, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("server starting", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// initDatabase sets up the GORM DB connection. TranslateError lets the
// controllers detect unique-constraint conflicts portably via
// gorm.ErrDuplicatedKey.
func initDatabase(logger *zap.Logger) *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			os.Getenv("DB_PORT"),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	return db
}
