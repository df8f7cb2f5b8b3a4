package cartControllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/apperrors"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/models"
)

type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// -------- Core Logic --------

// GetOrCreateActiveCart returns the user's single active cart, creating it
// lazily on first access. Concurrent calls for the same user are
// arbitrated by the partial unique index over (user_id) WHERE is_active:
// the loser of a create race retries the lookup once.
func GetOrCreateActiveCart(db *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := db.Preload("Items.Product").
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: &userID, IsActive: true}
	if err := db.Create(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Cart
			if err := db.Preload("Items.Product").
				Where("user_id = ? AND is_active = ?", userID, true).
				First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &cart, nil
}

// AddOrIncrementItem adds quantity of a product to the cart. If the
// product already has a line, its quantity is incremented and the price
// snapshot refreshed to the current catalog price; otherwise a new line is
// created with the current price as snapshot. The stock check here is
// advisory — the materializer revalidates authoritatively.
func AddOrIncrementItem(db *gorm.DB, cart *models.Cart, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ProductNotFound()
		}
		return nil, err
	}

	var item models.CartItem
	err := db.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
	switch {
	case err == nil:
		return incrementItem(db, &item, &product, quantity)

	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := checkStock(&product, quantity); err != nil {
			return nil, err
		}
		item = models.CartItem{
			CartID:        cart.ID,
			ProductID:     productID,
			Quantity:      quantity,
			PriceSnapshot: decimal.NewNullDecimal(product.Price),
		}
		if createErr := db.Create(&item).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				// Lost an insert race on (cart, product); fold the add
				// into the winning line instead of duplicating it.
				if err := db.Where("cart_id = ? AND product_id = ?", cart.ID, productID).
					First(&item).Error; err != nil {
					return nil, err
				}
				return incrementItem(db, &item, &product, quantity)
			}
			return nil, createErr
		}
		item.Product = product
		return &item, nil

	default:
		return nil, err
	}
}

func incrementItem(db *gorm.DB, item *models.CartItem, product *models.Product, quantity int) (*models.CartItem, error) {
	newQuantity := item.Quantity + quantity
	if err := checkStock(product, newQuantity); err != nil {
		return nil, err
	}
	item.Quantity = newQuantity
	item.PriceSnapshot = decimal.NewNullDecimal(product.Price)
	if err := db.Save(item).Error; err != nil {
		return nil, err
	}
	item.Product = *product
	return item, nil
}

// SetItemQuantity overwrites a line's quantity and refreshes its price
// snapshot to the current catalog price.
func SetItemQuantity(db *gorm.DB, cart *models.Cart, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	if err := db.Preload("Product").
		Where("id = ? AND cart_id = ?", itemID, cart.ID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cart item")
		}
		return nil, err
	}

	if err := checkStock(&item.Product, quantity); err != nil {
		return nil, err
	}

	item.Quantity = quantity
	item.PriceSnapshot = decimal.NewNullDecimal(item.Product.Price)
	if err := db.Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a line unconditionally.
func RemoveItem(db *gorm.DB, cart *models.Cart, itemID uuid.UUID) error {
	result := db.Where("id = ? AND cart_id = ?", itemID, cart.ID).Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("cart item")
	}
	return nil
}

// ClearItems empties the cart without deactivating it.
func ClearItems(db *gorm.DB, cart *models.Cart) error {
	return db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
}

// CartTotal sums quantity × unit price over the cart's lines. Derived,
// never persisted on the cart itself.
func CartTotal(cart *models.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(item.UnitPrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func checkStock(product *models.Product, quantity int) error {
	if quantity > product.StockQuantity {
		return apperrors.InsufficientStock([]apperrors.StockViolation{{
			ProductID: product.ID,
			Product:   product.Name,
			Requested: quantity,
			Available: product.StockQuantity,
		}})
	}
	return nil
}

// -------- Handlers --------

// GET /carts
func GetCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		cart, err := GetOrCreateActiveCart(db, userID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		itemCount := 0
		for _, item := range cart.Items {
			itemCount += item.Quantity
		}
		c.JSON(http.StatusOK, gin.H{
			"cart":       cart,
			"total":      CartTotal(cart),
			"item_count": itemCount,
		})
	}
}

// POST /carts/items
func AddItem(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var input AddItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		cart, err := GetOrCreateActiveCart(db, userID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		item, err := AddOrIncrementItem(db, cart, input.ProductID, input.Quantity)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// PATCH /carts/items/:id
func UpdateItem(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		itemID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid cart item id"))
			return
		}

		var input UpdateItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		cart, err := GetOrCreateActiveCart(db, userID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		item, err := SetItemQuantity(db, cart, itemID, input.Quantity)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// DELETE /carts/items/:id
func DeleteItem(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		itemID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid cart item id"))
			return
		}

		cart, err := GetOrCreateActiveCart(db, userID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		if err := RemoveItem(db, cart, itemID); err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DELETE /carts/items
func ClearCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		cart, err := GetOrCreateActiveCart(db, userID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		if err := ClearItems(db, cart); err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
