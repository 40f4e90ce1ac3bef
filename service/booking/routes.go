package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/blankops-000/JOB-LINK/service/notification"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingHandler struct {
	db       *gorm.DB
	notifier *notification.Handler
}

func NewBookingHandler(db *gorm.DB, notifier *notification.Handler) *BookingHandler {
	return &BookingHandler{db: db, notifier: notifier}
}

func (h *BookingHandler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/bookings", h.CreateBooking).Methods("POST")
	protected.HandleFunc("/bookings/my", h.GetMyBookings).Methods("GET")
	protected.HandleFunc("/bookings/{id}", h.GetBooking).Methods("GET")
	protected.HandleFunc("/bookings/{id}", h.UpdateBooking).Methods("PUT")
	protected.HandleFunc("/bookings/{id}/status", h.UpdateStatus).Methods("PATCH")
	protected.HandleFunc("/bookings/{id}", h.DeleteBooking).Methods("DELETE")
}

type createBookingRequest struct {
	ProviderProfileID uint      `json:"provider_profile_id"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	DurationHours     int       `json:"duration_hours"`
	Address           string    `json:"address"`
	SpecialRequests   string    `json:"special_requests"`
}

// CreateBooking inserts a new pending booking. Validation, the availability
// check and the insert all run in one transaction so a failure leaves
// nothing behind.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	clientID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleClient {
		http.Error(w, "Only clients can create bookings", http.StatusForbidden)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ProviderProfileID == 0 {
		http.Error(w, "provider_profile_id is required", http.StatusBadRequest)
		return
	}
	if req.DurationHours < 1 {
		http.Error(w, "duration_hours must be at least 1", http.StatusBadRequest)
		return
	}
	if !req.ScheduledAt.After(time.Now()) {
		http.Error(w, "scheduled_at must be in the future", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var profile models.ProviderProfile
	if err := tx.First(&profile, req.ProviderProfileID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Provider not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}
	if !profile.IsAvailable {
		tx.Rollback()
		http.Error(w, "Provider is not available for bookings", http.StatusBadRequest)
		return
	}
	if profile.UserID == clientID {
		tx.Rollback()
		http.Error(w, "Providers cannot book themselves", http.StatusBadRequest)
		return
	}

	conflicts, err := findConflicts(tx, profile.ID, req.ScheduledAt, req.DurationHours, 0)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if len(conflicts) > 0 {
		tx.Rollback()
		http.Error(w, "Provider already has a booking in this time window", http.StatusConflict)
		return
	}

	booking := models.Booking{
		ClientID:          clientID,
		ProviderID:        profile.UserID,
		ProviderProfileID: profile.ID,
		ServiceCategoryID: profile.ServiceCategoryID,
		ScheduledAt:       req.ScheduledAt,
		DurationHours:     req.DurationHours,
		TotalAmount:       profile.HourlyRate * float64(req.DurationHours),
		Status:            models.BookingPending,
		Address:           req.Address,
		SpecialRequests:   req.SpecialRequests,
	}

	if err := tx.Create(&booking).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating booking", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing booking", http.StatusInternalServerError)
		return
	}

	h.db.Preload("ProviderProfile").Preload("ServiceCategory").First(&booking, booking.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

// GetMyBookings lists the caller's bookings, as client or as provider.
func (h *BookingHandler) GetMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Booking{})
	if role == models.RoleProvider {
		query = query.Where("provider_id = ?", userID).Preload("Client")
	} else {
		query = query.Where("client_id = ?", userID).Preload("Provider").Preload("ProviderProfile")
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !models.BookingStatus(status).Valid() {
			http.Error(w, "Invalid status filter", http.StatusBadRequest)
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var bookings []models.Booking
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("scheduled_at DESC").Find(&bookings).Error; err != nil {
		http.Error(w, "Error retrieving bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings":  bookings,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r)
	role, _ := utils.GetRoleFromContext(r)

	var booking models.Booking
	err = h.db.Preload("Client").Preload("Provider").Preload("ProviderProfile").
		Preload("ServiceCategory").Preload("Payment").Preload("Review").
		First(&booking, bookingID).Error
	// A non-participant gets the same answer whether the booking exists
	// or not.
	if err != nil || (role != models.RoleAdmin && booking.ClientID != userID && booking.ProviderID != userID) {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

type updateBookingRequest struct {
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationHours   *int       `json:"duration_hours"`
	Address         *string    `json:"address"`
	SpecialRequests *string    `json:"special_requests"`
}

// UpdateBooking edits scheduling fields of a booking that is still pending,
// recomputing the total from the provider's current rate.
func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var booking models.Booking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, bookingID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	if booking.ClientID != userID {
		tx.Rollback()
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	if booking.Status != models.BookingPending {
		tx.Rollback()
		http.Error(w, "Only pending bookings can be edited", http.StatusConflict)
		return
	}

	if req.ScheduledAt != nil {
		booking.ScheduledAt = *req.ScheduledAt
	}
	if req.DurationHours != nil {
		booking.DurationHours = *req.DurationHours
	}
	if req.Address != nil {
		booking.Address = *req.Address
	}
	if req.SpecialRequests != nil {
		booking.SpecialRequests = *req.SpecialRequests
	}

	if booking.DurationHours < 1 {
		tx.Rollback()
		http.Error(w, "duration_hours must be at least 1", http.StatusBadRequest)
		return
	}
	if !booking.ScheduledAt.After(time.Now()) {
		tx.Rollback()
		http.Error(w, "scheduled_at must be in the future", http.StatusBadRequest)
		return
	}

	if req.ScheduledAt != nil || req.DurationHours != nil {
		var profile models.ProviderProfile
		if err := tx.First(&profile, booking.ProviderProfileID).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		booking.TotalAmount = profile.HourlyRate * float64(booking.DurationHours)
	}

	if err := tx.Save(&booking).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating booking", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing update", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

type updateStatusRequest struct {
	Status models.BookingStatus `json:"status"`
}

// UpdateStatus moves a booking along the lifecycle state machine. The row
// is locked, the policy table consulted, and for a provider accept the
// availability checker runs in the same transaction so two concurrent
// accepts of overlapping windows cannot both succeed.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var booking models.Booking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, bookingID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	isOwner := false
	switch role {
	case models.RoleClient:
		isOwner = booking.ClientID == userID
	case models.RoleProvider:
		isOwner = booking.ProviderID == userID
	}

	if !CanTransition(role, booking.Status, req.Status, isOwner) {
		tx.Rollback()
		http.Error(w, "Transition not allowed", http.StatusForbidden)
		return
	}

	// Accepting a booking is the edge the availability checker guards.
	if booking.Status == models.BookingPending && req.Status == models.BookingConfirmed {
		if !booking.ScheduledAt.After(time.Now()) {
			tx.Rollback()
			http.Error(w, "Scheduled time has already passed", http.StatusConflict)
			return
		}
		// The conflict query can only lock rows that already exist; two
		// accepts of overlapping pending bookings would each see an empty
		// set. The profile row is the common lock surface that serializes
		// accepts for one provider.
		var profile models.ProviderProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&profile, booking.ProviderProfileID).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		conflicts, err := findConflicts(tx, booking.ProviderProfileID,
			booking.ScheduledAt, booking.DurationHours, booking.ID)
		if err != nil {
			tx.Rollback()
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		if len(conflicts) > 0 {
			tx.Rollback()
			http.Error(w, "Overlapping booking already confirmed for this provider", http.StatusConflict)
			return
		}
	}

	booking.Status = req.Status
	if err := tx.Save(&booking).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating booking status", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing status update", http.StatusInternalServerError)
		return
	}

	if booking.Status == models.BookingConfirmed {
		go h.notifier.NotifyBookingConfirmed(booking.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// DeleteBooking removes a booking and its payment/review. Admin only.
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var booking models.Booking
	if err := tx.First(&booking, bookingID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	if err := tx.Where("booking_id = ?", booking.ID).Delete(&models.Payment{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting payment", http.StatusInternalServerError)
		return
	}
	if err := tx.Where("booking_id = ?", booking.ID).Delete(&models.Review{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting review", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(&booking).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting booking", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing deletion", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Booking deleted successfully"})
}
