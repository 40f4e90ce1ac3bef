package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	db *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

func (h *ReviewHandler) RegisterRoutes(public, protected *mux.Router) {
	protected.HandleFunc("/reviews", h.CreateReview).Methods("POST")
	protected.HandleFunc("/reviews/my", h.GetMyReviews).Methods("GET")
	public.HandleFunc("/reviews/provider/{providerId}", h.GetProviderReviews).Methods("GET")
	public.HandleFunc("/reviews/{id}", h.GetReview).Methods("GET")
}

type createReviewRequest struct {
	BookingID uint   `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// CreateReview inserts a review for a completed booking and recomputes the
// provider's denormalized rating aggregate from all of their reviews. The
// insert and the recompute share one transaction: a failed aggregate update
// rolls the review back, so the two can never drift apart.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	clientID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleClient {
		http.Error(w, "Only clients can create reviews", http.StatusForbidden)
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BookingID == 0 {
		http.Error(w, "booking_id is required", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var booking models.Booking
	if err := tx.Where("id = ? AND client_id = ? AND status = ?",
		req.BookingID, clientID, models.BookingCompleted).
		First(&booking).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Booking not found, not completed, or access denied", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	var existing models.Review
	if err := tx.Where("booking_id = ?", booking.ID).First(&existing).Error; err == nil {
		tx.Rollback()
		http.Error(w, "Review already exists for this booking", http.StatusConflict)
		return
	}

	review := models.Review{
		BookingID:         booking.ID,
		ClientID:          clientID,
		ProviderProfileID: booking.ProviderProfileID,
		Rating:            req.Rating,
		Comment:           req.Comment,
	}
	if err := tx.Create(&review).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating review", http.StatusInternalServerError)
		return
	}

	if err := recomputeProviderRating(tx, booking.ProviderProfileID); err != nil {
		tx.Rollback()
		http.Error(w, "Error updating provider rating", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing review", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(review)
}

// recomputeProviderRating rewrites the provider's aggregate from the full
// set of their reviews. Full recompute rather than an incremental bump:
// immune to drift from any previously failed partial update.
func recomputeProviderRating(tx *gorm.DB, providerProfileID uint) error {
	var ratings []int
	if err := tx.Model(&models.Review{}).
		Where("provider_profile_id = ?", providerProfileID).
		Pluck("rating", &ratings).Error; err != nil {
		return err
	}

	return tx.Model(&models.ProviderProfile{}).
		Where("id = ?", providerProfileID).
		Updates(map[string]interface{}{
			"average_rating": mean(ratings),
			"review_count":   len(ratings),
		}).Error
}

// mean returns the arithmetic mean of ratings, 0 for an empty set.
func mean(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// GetProviderReviews lists a provider's reviews with rating statistics.
func (h *ReviewHandler) GetProviderReviews(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerID, err := strconv.ParseUint(vars["providerId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid provider ID", http.StatusBadRequest)
		return
	}

	var profile models.ProviderProfile
	if err := h.db.First(&profile, providerID).Error; err != nil {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	query := h.db.Model(&models.Review{}).Where("provider_profile_id = ?", providerID)

	var total int64
	query.Count(&total)

	var reviews []models.Review
	if err := query.Preload("Client").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		http.Error(w, "Error retrieving reviews", http.StatusInternalServerError)
		return
	}

	var allRatings []int
	h.db.Model(&models.Review{}).Where("provider_profile_id = ?", providerID).
		Pluck("rating", &allRatings)

	distribution := map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	minRating, maxRating := 0, 0
	for _, rating := range allRatings {
		distribution[strconv.Itoa(rating)]++
		if minRating == 0 || rating < minRating {
			minRating = rating
		}
		if rating > maxRating {
			maxRating = rating
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"provider": profile,
		"reviews":  reviews,
		"statistics": map[string]interface{}{
			"total_reviews":       len(allRatings),
			"average_rating":      mean(allRatings),
			"min_rating":          minRating,
			"max_rating":          maxRating,
			"rating_distribution": distribution,
		},
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reviewID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid review ID", http.StatusBadRequest)
		return
	}

	var review models.Review
	if err := h.db.Preload("Client").Preload("Booking").First(&review, reviewID).Error; err != nil {
		http.Error(w, "Review not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(review)
}

// GetMyReviews returns reviews the caller wrote, or for providers, reviews
// written about them.
func (h *ReviewHandler) GetMyReviews(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)

	query := h.db.Model(&models.Review{})
	if role == models.RoleProvider {
		query = query.Joins("JOIN provider_profiles ON provider_profiles.id = reviews.provider_profile_id").
			Where("provider_profiles.user_id = ?", userID).Preload("Client")
	} else {
		query = query.Where("client_id = ?", userID)
	}

	var reviews []models.Review
	if err := query.Preload("Booking").Order("created_at DESC").Find(&reviews).Error; err != nil {
		http.Error(w, "Error retrieving reviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reviews": reviews})
}
