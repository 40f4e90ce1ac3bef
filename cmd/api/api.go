package api

import (
	"log"
	"net/http"
	"os"

	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/blankops-000/JOB-LINK/service/admin"
	"github.com/blankops-000/JOB-LINK/service/booking"
	"github.com/blankops-000/JOB-LINK/service/notification"
	"github.com/blankops-000/JOB-LINK/service/payment"
	"github.com/blankops-000/JOB-LINK/service/provider"
	"github.com/blankops-000/JOB-LINK/service/review"
	"github.com/blankops-000/JOB-LINK/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()

	// The payment callback and auth endpoints must stay reachable without
	// a token, everything else goes through the JWT middleware.
	public := router.PathPrefix("/api/v1").Subrouter()
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(utils.AuthMiddleware)

	notifier := notification.NewHandler(s.db)
	notifier.RegisterRoutes(protected)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(public, protected)

	providerHandler := provider.NewProviderHandler(s.db)
	providerHandler.RegisterRoutes(public, protected)

	bookingHandler := booking.NewBookingHandler(s.db, notifier)
	bookingHandler.RegisterRoutes(protected)

	paymentHandler := payment.NewPaymentHandler(s.db, payment.NewMpesaClientFromEnv(), notifier)
	paymentHandler.RegisterRoutes(public, protected)

	reviewHandler := review.NewReviewHandler(s.db)
	reviewHandler.RegisterRoutes(public, protected)

	adminHandler := admin.NewAdminHandler(s.db)
	adminHandler.RegisterRoutes(protected)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, corsHandler(router)))
}
