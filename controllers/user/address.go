package userControllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/apperrors"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/models"
)

type AddressInput struct {
	Country    string `json:"country" binding:"required"`
	State      string `json:"state"`
	City       string `json:"city" binding:"required"`
	Street     string `json:"street" binding:"required"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

// POST /addresses
func CreateAddress(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var input AddressInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		address := models.Address{
			UserID:     userID,
			Country:    input.Country,
			State:      input.State,
			City:       input.City,
			Street:     input.Street,
			PostalCode: input.PostalCode,
			IsDefault:  input.IsDefault,
		}
		if err := db.Create(&address).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

// GET /addresses
func ListAddresses(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var addresses []models.Address
		if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&addresses).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, addresses)
	}
}

// GET /addresses/:id
func GetAddress(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		addressID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid address id"))
			return
		}

		var address models.Address
		if err := db.First(&address, "id = ?", addressID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("address"))
				return
			}
			apperrors.Respond(c, err)
			return
		}
		if !models.OwnedBy(&address, userID) {
			apperrors.Respond(c, apperrors.Forbidden("you do not own this address"))
			return
		}
		c.JSON(http.StatusOK, address)
	}
}
