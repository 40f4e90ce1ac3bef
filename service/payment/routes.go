package payment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/blankops-000/JOB-LINK/service/notification"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentHandler struct {
	db       *gorm.DB
	mpesa    *MpesaClient
	notifier *notification.Handler
}

func NewPaymentHandler(db *gorm.DB, mpesa *MpesaClient, notifier *notification.Handler) *PaymentHandler {
	return &PaymentHandler{db: db, mpesa: mpesa, notifier: notifier}
}

func (h *PaymentHandler) RegisterRoutes(public, protected *mux.Router) {
	// Callback is invoked by the gateway; transport-level auth is not
	// available, idempotency is the guard.
	public.HandleFunc("/payments/mpesa/callback", h.HandleCallback).Methods("POST")

	protected.HandleFunc("/payments/initiate", h.InitiatePayment).Methods("POST")
	protected.HandleFunc("/payments/status/{paymentId}", h.CheckStatus).Methods("GET")
	protected.HandleFunc("/payments/booking/{bookingId}", h.GetBookingPayment).Methods("GET")
	protected.HandleFunc("/payments/history", h.GetPaymentHistory).Methods("GET")
}

type initiateRequest struct {
	BookingID   uint   `json:"booking_id"`
	PhoneNumber string `json:"phone_number"`
}

// InitiatePayment starts an STK push for a booking. The pending payment row
// is persisted in a short transaction before the gateway call so no
// database lock is held for the (up to 30s) network round trip; the
// checkout request id lands in a second short transaction afterwards.
// Re-initiating reuses an existing pending payment rather than creating a
// duplicate row.
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	clientID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleClient {
		http.Error(w, "Only clients can initiate payments", http.StatusForbidden)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BookingID == 0 || req.PhoneNumber == "" {
		http.Error(w, "booking_id and phone_number are required", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var booking models.Booking
	if err := tx.Preload("ServiceCategory").
		Where("id = ? AND client_id = ?", req.BookingID, clientID).
		First(&booking).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Booking not found or access denied", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
		tx.Rollback()
		http.Error(w, "Booking cannot be paid at this stage", http.StatusBadRequest)
		return
	}

	var payment models.Payment
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("booking_id = ?", booking.ID).First(&payment).Error
	switch {
	case err == nil:
		if payment.Status == models.PaymentCompleted {
			tx.Rollback()
			http.Error(w, "Payment already completed for this booking", http.StatusConflict)
			return
		}
		// Reuse the in-flight (or failed) row; a booking owns at most one
		// payment at a time.
		payment.Status = models.PaymentPending
		payment.Amount = booking.TotalAmount
		payment.PhoneNumber = NormalizePhone(req.PhoneNumber)
		if err := tx.Save(&payment).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error updating payment", http.StatusInternalServerError)
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		payment = models.Payment{
			BookingID:   booking.ID,
			Amount:      booking.TotalAmount,
			PhoneNumber: NormalizePhone(req.PhoneNumber),
			Status:      models.PaymentPending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error creating payment", http.StatusInternalServerError)
			return
		}
	default:
		tx.Rollback()
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error preparing payment", http.StatusInternalServerError)
		return
	}

	description := "JOB-LINK booking payment"
	if booking.ServiceCategory != nil {
		description = "Payment for " + booking.ServiceCategory.Name
	}

	// Lock-free window: the gateway call may take tens of seconds.
	result, err := h.mpesa.STKPush(req.PhoneNumber, int(booking.TotalAmount),
		"BOOKING-"+strconv.FormatUint(uint64(booking.ID), 10), description)
	if err != nil {
		// Payment stays pending and the client may initiate again.
		log.Printf("payment: stk push failed for booking %d: %v", booking.ID, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "Payment initiation failed",
			"details": err.Error(),
		})
		return
	}

	if err := h.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("external_reference", result.CheckoutRequestID).Error; err != nil {
		log.Printf("payment: error persisting checkout request id for payment %d: %v", payment.ID, err)
		http.Error(w, "Error recording payment reference", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":             "Payment initiated successfully",
		"payment_id":          payment.ID,
		"checkout_request_id": result.CheckoutRequestID,
		"customer_message":    result.CustomerMessage,
	})
}

// ack replies in the format the gateway expects. Always 200: a non-success
// reply makes the gateway retry indefinitely.
func ack(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ResultCode": 0,
		"ResultDesc": desc,
	})
}

// HandleCallback reconciles an asynchronous gateway result with the payment
// and its booking. Delivery is at-least-once and possibly out of order, so
// the whole thing is one transaction with the payment row locked, and a
// payment already in a terminal state is acknowledged without action.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var envelope CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		log.Printf("payment: malformed mpesa callback: %v", err)
		ack(w, "Accepted")
		return
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		log.Printf("payment: mpesa callback without CheckoutRequestID")
		ack(w, "Accepted")
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var payment models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_reference = ?", cb.CheckoutRequestID).
		First(&payment).Error
	if err != nil {
		tx.Rollback()
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("payment: callback lookup error for %s: %v", cb.CheckoutRequestID, err)
		}
		ack(w, "Payment not found")
		return
	}

	// Duplicate or late delivery.
	if payment.Status.Terminal() {
		tx.Rollback()
		ack(w, "Already processed")
		return
	}

	if cb.ResultCode == 0 {
		payment.Status = models.PaymentCompleted
		if receipt := cb.CallbackMetadata.ReceiptNumber(); receipt != "" {
			payment.Receipt = receipt
		} else {
			payment.Receipt = cb.CheckoutRequestID
		}
		if phone := cb.CallbackMetadata.PhoneNumber(); phone != "" {
			payment.PhoneNumber = phone
		}
		if err := tx.Save(&payment).Error; err != nil {
			tx.Rollback()
			log.Printf("payment: error updating payment %d: %v", payment.ID, err)
			http.Error(w, "Error processing callback", http.StatusInternalServerError)
			return
		}

		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&booking, payment.BookingID).Error; err != nil {
			tx.Rollback()
			log.Printf("payment: booking %d missing for payment %d: %v", payment.BookingID, payment.ID, err)
			http.Error(w, "Error processing callback", http.StatusInternalServerError)
			return
		}

		// Payment success only unlocks the pending->confirmed edge. A
		// booking the provider already moved along is left untouched.
		if booking.Status == models.BookingPending {
			booking.Status = models.BookingConfirmed
			if err := tx.Save(&booking).Error; err != nil {
				tx.Rollback()
				log.Printf("payment: error confirming booking %d: %v", booking.ID, err)
				http.Error(w, "Error processing callback", http.StatusInternalServerError)
				return
			}
		}
	} else {
		// Failure or cancellation on the handset: booking stays payable.
		payment.Status = models.PaymentFailed
		if err := tx.Save(&payment).Error; err != nil {
			tx.Rollback()
			log.Printf("payment: error failing payment %d: %v", payment.ID, err)
			http.Error(w, "Error processing callback", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("payment: callback commit error for payment %d: %v", payment.ID, err)
		http.Error(w, "Error processing callback", http.StatusInternalServerError)
		return
	}

	if payment.Status == models.PaymentCompleted {
		go h.notifier.NotifyPaymentCompleted(payment.ID)
	}

	ack(w, "Payment processed successfully")
}

// CheckStatus returns the payment and its booking's status together, so a
// client polling after InitiatePayment can observe the joined effect.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	paymentID, err := strconv.ParseUint(vars["paymentId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	var payment models.Payment
	if err := h.db.Preload("Booking").First(&payment, paymentID).Error; err != nil {
		http.Error(w, "Payment not found", http.StatusNotFound)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r)
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleAdmin && (payment.Booking == nil || payment.Booking.ClientID != userID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	// The booking preload comes back nil when the booking was deleted;
	// admins can still read the orphaned payment.
	var bookingStatus interface{}
	if payment.Booking != nil {
		bookingStatus = payment.Booking.Status
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"payment":        payment,
		"booking_status": bookingStatus,
	})
}

// GetBookingPayment returns the payment attached to a booking.
func (h *PaymentHandler) GetBookingPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["bookingId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	var booking models.Booking
	if err := h.db.First(&booking, bookingID).Error; err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r)
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleAdmin && booking.ClientID != userID && booking.ProviderID != userID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var payment models.Payment
	if err := h.db.Where("booking_id = ?", booking.ID).First(&payment).Error; err != nil {
		http.Error(w, "No payment found for this booking", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

// GetPaymentHistory lists the caller's payments, newest first.
func (h *PaymentHandler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payments []models.Payment
	if err := h.db.Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("bookings.client_id = ?", userID).
		Order("payments.created_at DESC").
		Preload("Booking").
		Find(&payments).Error; err != nil {
		http.Error(w, "Error retrieving payments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"payments": payments})
}
