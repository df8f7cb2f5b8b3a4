package orderControllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/apperrors"
	"github.com/nexus-commerce/api/middleware"
	"github.com/nexus-commerce/api/models"
	"github.com/nexus-commerce/api/notifications"
)

type CreateFromCartRequest struct {
	BillingAddressID  uuid.UUID  `json:"billing_address_id" binding:"required"`
	ShippingAddressID *uuid.UUID `json:"shipping_address_id"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// -------- Core Logic --------

// CreateOrderFromCart converts the user's active cart into an order inside
// a single transaction: validate cart and addresses, re-validate stock,
// freeze the total from price snapshots, create the order and its lines,
// decrement stock, deactivate the cart. Any failure rolls the whole thing
// back — no partial orders, no partial stock decrements.
func CreateOrderFromCart(db *gorm.DB, userID uuid.UUID, billingAddressID uuid.UUID, shippingAddressID *uuid.UUID) (*models.Order, error) {
	var order models.Order

	err := db.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Preload("Items.Product").
			Where("user_id = ? AND is_active = ?", userID, true).
			First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.EmptyCart()
			}
			return err
		}
		if len(cart.Items) == 0 {
			return apperrors.EmptyCart()
		}

		var billing models.Address
		if err := tx.Where("id = ? AND user_id = ?", billingAddressID, userID).
			First(&billing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.AddressNotFound()
			}
			return err
		}
		shippingID := billing.ID
		if shippingAddressID != nil {
			var shipping models.Address
			if err := tx.Where("id = ? AND user_id = ?", *shippingAddressID, userID).
				First(&shipping).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.AddressNotFound()
				}
				return err
			}
			shippingID = shipping.ID
		}

		// Advisory pass: report every violating line at once. The guarded
		// decrement below remains the authoritative defense against
		// concurrent checkouts of the same product.
		var violations []apperrors.StockViolation
		for _, item := range cart.Items {
			if item.Quantity > item.Product.StockQuantity {
				violations = append(violations, apperrors.StockViolation{
					ProductID: item.ProductID,
					Product:   item.Product.Name,
					Requested: item.Quantity,
					Available: item.Product.StockQuantity,
				})
			}
		}
		if len(violations) > 0 {
			return apperrors.InsufficientStock(violations)
		}

		total := decimal.Zero
		for _, item := range cart.Items {
			total = total.Add(item.UnitPrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = models.Order{
			UserID:            &userID,
			BillingAddressID:  &billing.ID,
			ShippingAddressID: &shippingID,
			Status:            models.OrderStatusPending,
			PaymentStatus:     models.PaymentStatusPending,
			TotalAmount:       total,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, item := range cart.Items {
			productID := item.ProductID
			line := models.OrderItem{
				OrderID:   order.ID,
				ProductID: &productID,
				Quantity:  item.Quantity,
				Price:     item.UnitPrice(),
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, line)

			if err := DecrementStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		// The cart is retained as history; only its lines go.
		if err := tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DecrementStock applies the relative, store-atomic stock decrement. The
// WHERE guard rejects any decrement that would drive stock negative, so
// two checkouts racing on the last units serialize at this statement and
// the loser aborts with InsufficientStock.
func DecrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return err
		}
		return apperrors.InsufficientStock([]apperrors.StockViolation{{
			ProductID: product.ID,
			Product:   product.Name,
			Requested: quantity,
			Available: product.StockQuantity,
		}})
	}
	return nil
}

// TransitionOrderStatus advances an order through the state machine,
// rejecting edges the machine does not allow.
func TransitionOrderStatus(db *gorm.DB, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("order")
			}
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return apperrors.InvalidTransition(string(order.Status), string(next))
		}

		// Conditional on the from-state so a writer racing on the same
		// order cannot be silently overwritten.
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, order.Status).
			Update("status", next)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
				return err
			}
			return apperrors.InvalidTransition(string(order.Status), string(next))
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// -------- Handlers --------

// POST /orders/create-from-cart
func CreateFromCartHandler(db *gorm.DB, dispatcher notifications.Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var req CreateFromCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		order, err := CreateOrderFromCart(db, userID, req.BillingAddressID, req.ShippingAddressID)
		if err != nil {
			middleware.RecordOrderMaterialized("rejected")
			apperrors.Respond(c, err)
			return
		}
		middleware.RecordOrderMaterialized("created")

		logger.Info("order materialized",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", userID.String()),
			zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		)

		// Post-commit, fire-and-forget: a failed notification never rolls
		// back the order.
		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(notifications.EventOrderCreated, order))

		c.JSON(http.StatusCreated, order)
	}
}

// GET /orders
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		query := db.Preload("Items").Order("created_at DESC")
		if !middleware.IsStaff(c) {
			query = query.Where("user_id = ?", userID)
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
			query = query.Where("payment_status = ?", paymentStatus)
		}

		var orders []models.Order
		if err := query.Find(&orders).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// GET /orders/:id
func GetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid order id"))
			return
		}

		var order models.Order
		if err := db.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("order"))
				return
			}
			apperrors.Respond(c, err)
			return
		}

		// Order ids are not revealed to non-owners.
		if !middleware.IsStaff(c) && !models.OwnedBy(&order, userID) {
			apperrors.Respond(c, apperrors.NotFound("order"))
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// POST /orders/:id/cancel
func CancelOrderHandler(db *gorm.DB, dispatcher notifications.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid order id"))
			return
		}

		var order models.Order
		if err := db.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("order"))
				return
			}
			apperrors.Respond(c, err)
			return
		}
		if !models.OwnedBy(&order, userID) {
			apperrors.Respond(c, apperrors.NotFound("order"))
			return
		}

		updated, err := TransitionOrderStatus(db, orderID, models.OrderStatusCanceled)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(notifications.EventOrderStatus, updated))
		c.JSON(http.StatusOK, updated)
	}
}

// PUT /admin/orders/:id/status
func UpdateOrderStatusHandler(db *gorm.DB, dispatcher notifications.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid order id"))
			return
		}

		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}
		next, err := models.ParseOrderStatus(req.Status)
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}
		// Processing is entered exclusively through payment settlement;
		// there is no API to force it.
		if next == models.OrderStatusProcessing {
			apperrors.Respond(c, apperrors.InvalidTransition("any", string(next)))
			return
		}

		updated, err := TransitionOrderStatus(db, orderID, next)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(notifications.EventOrderStatus, updated))
		c.JSON(http.StatusOK, updated)
	}
}
