package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

func (h *AdminHandler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/admin/stats", h.GetStats).Methods("GET")
	protected.HandleFunc("/admin/bookings", h.GetAllBookings).Methods("GET")
	protected.HandleFunc("/admin/payments/{id}/fail", h.FailStuckPayment).Methods("POST")
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	role, err := utils.GetRoleFromContext(r)
	if err != nil || role != models.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return false
	}
	return true
}

// GetStats returns platform counters: bookings per status, user/provider
// counts and completed payment revenue.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	type statusCount struct {
		Status models.BookingStatus
		Count  int64
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Booking{}).
		Select("status, count(*) as count").
		Group("status").Scan(&statusCounts).Error; err != nil {
		http.Error(w, "Error computing stats", http.StatusInternalServerError)
		return
	}
	bookingStats := map[string]int64{}
	for _, sc := range statusCounts {
		bookingStats[string(sc.Status)] = sc.Count
	}

	var totalRevenue float64
	h.db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalRevenue)

	var totalUsers, totalProviders, totalReviews int64
	h.db.Model(&models.User{}).Count(&totalUsers)
	h.db.Model(&models.ProviderProfile{}).Count(&totalProviders)
	h.db.Model(&models.Review{}).Count(&totalReviews)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings_by_status": bookingStats,
		"total_revenue":      totalRevenue,
		"total_users":        totalUsers,
		"total_providers":    totalProviders,
		"total_reviews":      totalReviews,
	})
}

func (h *AdminHandler) GetAllBookings(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Booking{}).Preload("Client").Preload("Provider").Preload("Payment")

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
		Order("created_at DESC").Find(&bookings).Error; err != nil {
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

// FailStuckPayment lets an operator mark a payment whose gateway callback
// never arrived as failed, so the client can re-initiate cleanly. Completed
// payments cannot be failed.
func (h *AdminHandler) FailStuckPayment(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	vars := mux.Vars(r)
	paymentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var payment models.Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, paymentID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Payment not found", http.StatusNotFound)
		return
	}

	if payment.Status != models.PaymentPending {
		tx.Rollback()
		http.Error(w, "Only pending payments can be marked failed", http.StatusConflict)
		return
	}

	payment.Status = models.PaymentFailed
	if err := tx.Save(&payment).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating payment", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing update", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Payment marked as failed",
	})
}
