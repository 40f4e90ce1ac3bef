package provider

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

// ProviderHandler serves provider profiles and service categories, the
// collaborator data the booking service validates against at creation time.
type ProviderHandler struct {
	db *gorm.DB
}

func NewProviderHandler(db *gorm.DB) *ProviderHandler {
	return &ProviderHandler{db: db}
}

func (h *ProviderHandler) RegisterRoutes(public, protected *mux.Router) {
	public.HandleFunc("/categories", h.GetCategories).Methods("GET")
	public.HandleFunc("/categories/{id}", h.GetCategory).Methods("GET")
	protected.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	protected.HandleFunc("/categories/{id}", h.UpdateCategory).Methods("PUT")

	public.HandleFunc("/providers", h.GetProviders).Methods("GET")
	public.HandleFunc("/providers/{id}", h.GetProvider).Methods("GET")
	protected.HandleFunc("/providers", h.CreateProfile).Methods("POST")
	protected.HandleFunc("/providers/{id}", h.UpdateProfile).Methods("PUT")
}

func (h *ProviderHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var category models.ServiceCategory
	if err := json.NewDecoder(r.Body).Decode(&category); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if category.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	if err := h.db.Create(&category).Error; err != nil {
		http.Error(w, "Error creating category", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(category)
}

func (h *ProviderHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	categoryID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	var category models.ServiceCategory
	if err := h.db.First(&category, categoryID).Error; err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Name != nil {
		category.Name = *input.Name
	}
	if input.Description != nil {
		category.Description = *input.Description
	}

	if err := h.db.Save(&category).Error; err != nil {
		http.Error(w, "Error updating category", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(category)
}

func (h *ProviderHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	var categories []models.ServiceCategory
	if err := h.db.Order("name").Find(&categories).Error; err != nil {
		http.Error(w, "Error retrieving categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

func (h *ProviderHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	categoryID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	var category models.ServiceCategory
	if err := h.db.First(&category, categoryID).Error; err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(category)
}

type createProfileRequest struct {
	BusinessName      string  `json:"business_name"`
	Description       string  `json:"description"`
	HourlyRate        float64 `json:"hourly_rate"`
	ServiceCategoryID uint    `json:"service_category_id"`
	ExperienceYears   int     `json:"experience_years"`
}

// CreateProfile creates the caller's provider profile. One per user.
func (h *ProviderHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := utils.GetRoleFromContext(r)
	if role != models.RoleProvider {
		http.Error(w, "Only providers can create profiles", http.StatusForbidden)
		return
	}

	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BusinessName == "" || req.HourlyRate <= 0 || req.ServiceCategoryID == 0 {
		http.Error(w, "business_name, hourly_rate and service_category_id are required", http.StatusBadRequest)
		return
	}

	var existing models.ProviderProfile
	if err := h.db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		http.Error(w, "Provider profile already exists for this user", http.StatusConflict)
		return
	}

	var category models.ServiceCategory
	if err := h.db.First(&category, req.ServiceCategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Service category not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	profile := models.ProviderProfile{
		UserID:            userID,
		BusinessName:      req.BusinessName,
		Description:       req.Description,
		HourlyRate:        req.HourlyRate,
		ServiceCategoryID: req.ServiceCategoryID,
		ExperienceYears:   req.ExperienceYears,
		IsAvailable:       true,
	}

	if err := h.db.Create(&profile).Error; err != nil {
		http.Error(w, "Error creating provider profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(profile)
}

type updateProfileRequest struct {
	BusinessName    *string  `json:"business_name"`
	Description     *string  `json:"description"`
	HourlyRate      *float64 `json:"hourly_rate"`
	IsAvailable     *bool    `json:"is_available"`
	ExperienceYears *int     `json:"experience_years"`
}

func (h *ProviderHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	profileID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid provider ID", http.StatusBadRequest)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r)
	role, _ := utils.GetRoleFromContext(r)

	var profile models.ProviderProfile
	if err := h.db.First(&profile, profileID).Error; err != nil {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}
	if role != models.RoleAdmin && profile.UserID != userID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.BusinessName != nil {
		profile.BusinessName = *req.BusinessName
	}
	if req.Description != nil {
		profile.Description = *req.Description
	}
	if req.HourlyRate != nil {
		if *req.HourlyRate <= 0 {
			http.Error(w, "hourly_rate must be positive", http.StatusBadRequest)
			return
		}
		profile.HourlyRate = *req.HourlyRate
	}
	if req.IsAvailable != nil {
		profile.IsAvailable = *req.IsAvailable
	}
	if req.ExperienceYears != nil {
		profile.ExperienceYears = *req.ExperienceYears
	}

	if err := h.db.Save(&profile).Error; err != nil {
		http.Error(w, "Error updating provider profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// GetProviders lists available providers with filters and pagination.
func (h *ProviderHandler) GetProviders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	query := h.db.Model(&models.ProviderProfile{}).Where("is_available = ?", true)

	if categoryID := r.URL.Query().Get("service_category_id"); categoryID != "" {
		query = query.Where("service_category_id = ?", categoryID)
	}
	if minRate := r.URL.Query().Get("min_rate"); minRate != "" {
		query = query.Where("hourly_rate >= ?", minRate)
	}
	if maxRate := r.URL.Query().Get("max_rate"); maxRate != "" {
		query = query.Where("hourly_rate <= ?", maxRate)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		query = query.Where("business_name ILIKE ? OR description ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var providers []models.ProviderProfile
	if err := query.Preload("User").Preload("ServiceCategory").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Order("average_rating DESC").Find(&providers).Error; err != nil {
		http.Error(w, "Error retrieving providers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": providers,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	profileID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid provider ID", http.StatusBadRequest)
		return
	}

	var profile models.ProviderProfile
	if err := h.db.Preload("User").Preload("ServiceCategory").
		First(&profile, profileID).Error; err != nil {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}
