package paymentControllers

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

type CreatePaymentRequest struct {
	OrderID       uuid.UUID       `json:"order_id" binding:"required"`
	Method        string          `json:"method" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id" binding:"required"`
}

type GatewayCallbackRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Outcome       string `json:"outcome" binding:"required,oneof=succeeded failed"`
}

// -------- Core Logic --------

// SettlePayment records a payment attempt against the order and, in the
// current synchronous scope, settles it immediately. The unique
// transaction id is the idempotency guard: a replayed submission fails
// with DuplicateTransaction and changes nothing.
func SettlePayment(db *gorm.DB, userID uuid.UUID, req CreatePaymentRequest) (*models.Payment, error) {
	method, err := models.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	var payment models.Payment
	err = db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", req.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("order")
			}
			return err
		}
		if !models.OwnedBy(&order, userID) {
			return apperrors.Forbidden("you can only pay for your own orders")
		}

		// Replays of an already-recorded transaction id are reported as
		// duplicates, not as a payability problem: the first submission
		// may well have settled the order.
		var count int64
		if err := tx.Model(&models.Payment{}).
			Where("transaction_id = ?", req.TransactionID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.DuplicateTransaction(req.TransactionID)
		}

		if !order.Payable() || order.Status == models.OrderStatusCanceled {
			return apperrors.OrderNotPayable()
		}

		payment = models.Payment{
			OrderID:       order.ID,
			Amount:        req.Amount,
			Currency:      currency,
			Method:        method,
			TransactionID: req.TransactionID,
			Status:        models.PaymentStatePending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.DuplicateTransaction(req.TransactionID)
			}
			return err
		}

		// Gateway stand-in: the synchronous path settles right away. A
		// real integration leaves the payment pending here and applies
		// the same fan-out from the gateway callback.
		return applySettlement(tx, &payment, &order, models.PaymentStateSucceeded)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ApplyGatewayOutcome is the asynchronous settlement trigger: the gateway
// reports the outcome for a transaction id and the same status fan-out as
// the synchronous path is applied.
func ApplyGatewayOutcome(db *gorm.DB, transactionID, outcome string) (*models.Payment, error) {
	var next models.PaymentState
	switch outcome {
	case "succeeded":
		next = models.PaymentStateSucceeded
	case "failed":
		next = models.PaymentStateFailed
	default:
		return nil, apperrors.InvalidInput("outcome must be succeeded or failed")
	}

	var payment models.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Order").
			Where("transaction_id = ?", transactionID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("payment")
			}
			return err
		}
		if payment.Status != models.PaymentStatePending {
			return apperrors.InvalidTransition(string(payment.Status), string(next))
		}
		order := payment.Order
		return applySettlement(tx, &payment, &order, next)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// RefundPayment moves a succeeded payment and its order to refunded.
func RefundPayment(db *gorm.DB, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Order").First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("payment")
			}
			return err
		}
		if payment.Status != models.PaymentStateSucceeded {
			return apperrors.InvalidTransition(string(payment.Status), string(models.PaymentStateRefunded))
		}
		if !payment.Order.PaymentStatus.CanTransitionTo(models.PaymentStatusRefunded) {
			return apperrors.InvalidTransition(string(payment.Order.PaymentStatus), string(models.PaymentStatusRefunded))
		}

		payment.Status = models.PaymentStateRefunded
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("status", models.PaymentStateRefunded).Error; err != nil {
			return err
		}
		payment.Order.PaymentStatus = models.PaymentStatusRefunded
		return tx.Model(&models.Order{}).Where("id = ?", payment.OrderID).
			Update("payment_status", models.PaymentStatusRefunded).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// payableStatuses are the order payment statuses a settlement may move
// away from.
var payableStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusFailed,
}

// applySettlement is the single status fan-out both settlement triggers
// share: payment state, order payment status and order status move
// together or not at all.
func applySettlement(tx *gorm.DB, payment *models.Payment, order *models.Order, outcome models.PaymentState) error {
	switch outcome {
	case models.PaymentStateSucceeded:
		if !order.PaymentStatus.CanTransitionTo(models.PaymentStatusPaid) {
			return apperrors.OrderNotPayable()
		}
		if !order.Status.CanTransitionTo(models.OrderStatusProcessing) {
			return apperrors.InvalidTransition(string(order.Status), string(models.OrderStatusProcessing))
		}

		// Guarded like the stock decrement: the fan-out only lands if the
		// order is still payable at write time. Two settlements racing on
		// the same order serialize at this statement and the loser aborts,
		// even though both read a payable order.
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND payment_status IN ?",
				order.ID, models.OrderStatusPending, payableStatuses).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusPaid,
				"status":         models.OrderStatusProcessing,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.OrderNotPayable()
		}
		order.PaymentStatus = models.PaymentStatusPaid
		order.Status = models.OrderStatusProcessing

		payment.Status = models.PaymentStateSucceeded
		return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("status", models.PaymentStateSucceeded).Error

	case models.PaymentStateFailed:
		if !order.PaymentStatus.CanTransitionTo(models.PaymentStatusFailed) {
			return apperrors.InvalidTransition(string(order.PaymentStatus), string(models.PaymentStatusFailed))
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status IN ?", order.ID, payableStatuses).
			Update("payment_status", models.PaymentStatusFailed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.First(order, "id = ?", order.ID).Error; err != nil {
				return err
			}
			return apperrors.InvalidTransition(string(order.PaymentStatus), string(models.PaymentStatusFailed))
		}
		order.PaymentStatus = models.PaymentStatusFailed

		payment.Status = models.PaymentStateFailed
		return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("status", models.PaymentStateFailed).Error

	default:
		return apperrors.InvalidInput("unsupported settlement outcome")
	}
}

// -------- Handlers --------

// POST /payments
func CreatePaymentHandler(db *gorm.DB, dispatcher notifications.Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var req CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		payment, err := SettlePayment(db, userID, req)
		if err != nil {
			middleware.RecordPaymentSettled("rejected")
			apperrors.Respond(c, err)
			return
		}
		middleware.RecordPaymentSettled("succeeded")

		var order models.Order
		if err := db.Preload("Items").First(&order, "id = ?", payment.OrderID).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}

		logger.Info("payment settled",
			zap.String("payment_id", payment.ID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("transaction_id", payment.TransactionID),
		)
		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(notifications.EventPaymentSucceeded, &order))

		c.JSON(http.StatusCreated, gin.H{"payment": payment, "order": order})
	}
}

// GET /payments/:id
func GetPaymentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		paymentID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid payment id"))
			return
		}

		var payment models.Payment
		if err := db.Preload("Order").First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.Respond(c, apperrors.NotFound("payment"))
				return
			}
			apperrors.Respond(c, err)
			return
		}
		// Payment ids are not revealed to non-owners.
		if !middleware.IsStaff(c) && !models.OwnedBy(&payment, userID) {
			apperrors.Respond(c, apperrors.NotFound("payment"))
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

// POST /payments/gateway/callback
func GatewayCallbackHandler(db *gorm.DB, dispatcher notifications.Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GatewayCallbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
			return
		}

		payment, err := ApplyGatewayOutcome(db, req.TransactionID, req.Outcome)
		if err != nil {
			middleware.RecordPaymentSettled("rejected")
			apperrors.Respond(c, err)
			return
		}
		middleware.RecordPaymentSettled(req.Outcome)

		var order models.Order
		if err := db.Preload("Items").First(&order, "id = ?", payment.OrderID).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}

		eventType := notifications.EventPaymentSucceeded
		if req.Outcome == "failed" {
			eventType = notifications.EventPaymentFailed
		}
		logger.Info("gateway callback applied",
			zap.String("transaction_id", req.TransactionID),
			zap.String("outcome", req.Outcome),
		)
		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(eventType, &order))

		c.JSON(http.StatusOK, gin.H{"payment": payment, "order": order})
	}
}

// POST /admin/payments/:id/refund
func RefundPaymentHandler(db *gorm.DB, dispatcher notifications.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.InvalidInput("invalid payment id"))
			return
		}

		payment, err := RefundPayment(db, paymentID)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}
		middleware.RecordPaymentSettled("refunded")

		var order models.Order
		if err := db.Preload("Items").First(&order, "id = ?", payment.OrderID).Error; err != nil {
			apperrors.Respond(c, err)
			return
		}
		dispatcher.DispatchOrderEvent(c.Request.Context(),
			notifications.NewOrderEvent(notifications.EventPaymentRefunded, &order))

		c.JSON(http.StatusOK, gin.H{"payment": payment, "order": order})
	}
}
