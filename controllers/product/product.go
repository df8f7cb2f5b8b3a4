package productControllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/apperrors"
	"github.com/nexus-commerce/api/models"
)

type ProductInput struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" binding:"required"`
	StockQuantity int             `json:"stock_quantity" binding:"min=0"`
	IsActive      *bool           `json:"is_active"`
}

// -------- Core Logic --------

// DeleteProductDetached removes a product without touching order history:
// order lines keep their frozen quantity and price but lose the catalog
// reference, cart lines for the product are dropped, then the product row
// goes — all in one transaction.
func DeleteProductDetached(db *gorm.DB, productID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("product")
			}
			return err
		}

		if err := tx.Model(&models.OrderItem{}).
			Where("product_id = ?", productID).
			Update("product_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", productID).
			Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
}

// -------- Handlers --------

// GET /products
func ListProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var products []models.Product
		if err := db.Where("is_active = ?", true).Order("name").Find(&products).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// GET /products/:id
func GetProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid product id"))
			return
		}

		var product models.Product
		if err := db.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("product"))
				return
			}
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// POST /admin/products
func CreateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		product := models.Product{
			Name:          input.Name,
			Description:   input.Description,
			Price:         input.Price,
			StockQuantity: input.StockQuantity,
			IsActive:      true,
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}
		if err := db.Create(&product).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// PUT /admin/products/:id
func UpdateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid product id"))
			return
		}

		var input ProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		var product models.Product
		if err := db.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("product"))
				return
			}
			apperrors.Respond(c, err)
			return
		}

		product.Name = input.Name
		product.Description = input.Description
		product.Price = input.Price
		product.StockQuantity = input.StockQuantity
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}
		if err := db.Save(&product).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DELETE /admin/products/:id
func DeleteProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid product id"))
			return
		}

		if err := DeleteProductDetached(db, productID); err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted, order history detached"})
	}
}
