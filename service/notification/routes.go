package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

// Handler owns the device registry and all outbound push/email delivery.
// The booking and payment services call its Notify* methods fire-and-forget
// after their transactions commit; delivery failures are logged and never
// propagate back into booking or payment state.
type Handler struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	protected.HandleFunc("/users/{userId}/devices", h.GetUserDevices).Methods("GET")
	protected.HandleFunc("/devices/{id}", h.DeleteDevice).Methods("DELETE")
}

// RegisterDevice registers an Expo push token for the authenticated user.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	device.UserID = userID

	if device.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	var existing models.Device
	result := h.db.Where("token = ? AND user_id = ?", device.Token, userID).First(&existing)
	if result.Error == nil {
		existing.DeviceType = device.DeviceType
		existing.DeviceName = device.DeviceName
		if err := h.db.Save(&existing).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
		device = existing
	} else {
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error creating device", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *Handler) GetUserDevices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	callerID, _ := utils.GetUserIDFromContext(r)
	role, _ := utils.GetRoleFromContext(r)
	if callerID != uint(userID) && role != models.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}

	callerID, _ := utils.GetUserIDFromContext(r)

	var device models.Device
	if err := h.db.First(&device, deviceID).Error; err != nil {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}
	if device.UserID != callerID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.db.Delete(&device).Error; err != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Device deleted successfully",
	})
}

// sendPush delivers a push notification to every device of a user and
// records the attempt in the notification history.
func (h *Handler) sendPush(userID uint, title, body string, data map[string]string) {
	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		log.Printf("notification: error loading devices for user %d: %v", userID, err)
		return
	}

	var tokens []expo.ExponentPushToken
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			log.Printf("notification: invalid push token for user %d: %v", userID, err)
			continue
		}
		tokens = append(tokens, token)
	}

	status := "sent"
	if len(tokens) > 0 {
		message := &expo.PushMessage{
			To:       tokens,
			Title:    title,
			Body:     body,
			Sound:    "default",
			Priority: expo.DefaultPriority,
			Data:     data,
		}
		if _, err := h.expoClient.Publish(message); err != nil {
			log.Printf("notification: push publish failed for user %d: %v", userID, err)
			status = "failed"
		}
	}

	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if err := h.db.Create(&history).Error; err != nil {
		log.Printf("notification: error creating history: %v", err)
	}
}

// NotifyBookingConfirmed tells both parties that a booking was confirmed.
// Safe to run in its own goroutine after the confirming transaction commits.
func (h *Handler) NotifyBookingConfirmed(bookingID uint) {
	var booking models.Booking
	if err := h.db.Preload("Client").Preload("Provider").Preload("ServiceCategory").
		First(&booking, bookingID).Error; err != nil {
		log.Printf("notification: booking %d not found: %v", bookingID, err)
		return
	}

	data := map[string]string{"booking_id": fmt.Sprint(booking.ID)}
	body := fmt.Sprintf("Booking #%d on %s has been confirmed", booking.ID,
		booking.ScheduledAt.Format("Mon, 2 Jan 15:04"))

	h.sendPush(booking.ClientID, "Booking confirmed", body, data)
	h.sendPush(booking.ProviderID, "Booking confirmed", body, data)

	if booking.Client != nil && booking.Client.Email != "" {
		h.sendEmail(booking.Client.Email, "Booking confirmed", body)
	}
}

// NotifyPaymentCompleted tells the client their payment went through.
func (h *Handler) NotifyPaymentCompleted(paymentID uint) {
	var payment models.Payment
	if err := h.db.Preload("Booking").Preload("Booking.Client").
		First(&payment, paymentID).Error; err != nil {
		log.Printf("notification: payment %d not found: %v", paymentID, err)
		return
	}
	if payment.Booking == nil {
		return
	}

	body := fmt.Sprintf("Payment of KES %.0f received for booking #%d. Receipt: %s",
		payment.Amount, payment.BookingID, payment.Receipt)
	data := map[string]string{
		"booking_id": fmt.Sprint(payment.BookingID),
		"payment_id": fmt.Sprint(payment.ID),
	}

	h.sendPush(payment.Booking.ClientID, "Payment received", body, data)

	if payment.Booking.Client != nil && payment.Booking.Client.Email != "" {
		h.sendEmail(payment.Booking.Client.Email, "Payment received", body)
	}
}
