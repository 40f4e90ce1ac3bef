package booking_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
	"github.com/blankops-000/JOB-LINK/service/booking"
	"github.com/blankops-000/JOB-LINK/service/notification"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func newTestBookingHandler(t *testing.T, db *gorm.DB) *booking.BookingHandler {
	t.Helper()
	notifierDB, _ := newMockDB(t)
	return booking.NewBookingHandler(db, notification.NewHandler(notifierDB))
}

func authedRequest(method, target string, body []byte, userID uint, role string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func serve(h *booking.BookingHandler, req *http.Request) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func pendingBookingRows(scheduledAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "client_id", "provider_id", "provider_profile_id",
		"service_category_id", "scheduled_at", "duration_hours",
		"total_amount", "status",
	}).AddRow(7, 1, 2, 5, 3, scheduledAt, 2, 1500.0, "pending")
}

// Accepting a pending booking must lock the provider's profile row before
// running the conflict check. The conflict query alone cannot serialize two
// concurrent accepts: each transaction's booking is still pending and
// outside the other's locked set, so both would see zero conflicts and
// confirm overlapping windows. The profile row is the common lock both
// transactions contend on.
func TestUpdateStatus_AcceptLocksProviderProfile(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestBookingHandler(t, db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE "bookings"\."id" = .* FOR UPDATE`).
		WillReturnRows(pendingBookingRows(time.Now().Add(48 * time.Hour)))
	mock.ExpectQuery(`SELECT \* FROM "provider_profiles" WHERE "provider_profiles"\."id" = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(5, 2))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE .*provider_profile_id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := []byte(`{"status":"confirmed"}`)
	rec := serve(handler, authedRequest(http.MethodPatch, "/bookings/7/status", body, 2, "provider"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
	assert.NoError(t, mock.ExpectationsWereMet(),
		"profile lock must precede the conflict check")
}

// An accept that collides with an already-confirmed overlapping booking is
// rejected and nothing is written.
func TestUpdateStatus_AcceptRejectsOverlap(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestBookingHandler(t, db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE "bookings"\."id" = .* FOR UPDATE`).
		WillReturnRows(pendingBookingRows(time.Now().Add(48 * time.Hour)))
	mock.ExpectQuery(`SELECT \* FROM "provider_profiles" WHERE "provider_profiles"\."id" = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(5, 2))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE .*provider_profile_id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(9, "confirmed"))
	mock.ExpectRollback()

	body := []byte(`{"status":"confirmed"}`)
	rec := serve(handler, authedRequest(http.MethodPatch, "/bookings/7/status", body, 2, "provider"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A caller who is neither participant nor admin gets the same not-found
// answer as for a booking that does not exist.
func TestGetBooking_NonParticipantSeesNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestBookingHandler(t, db)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE "bookings"\."id" = `).
		WillReturnRows(pendingBookingRows(time.Now().Add(48 * time.Hour)))
	// Preloads for the fetched row; all empty.
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "provider_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "service_categories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "reviews"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := serve(handler, authedRequest(http.MethodGet, "/bookings/7", nil, 99, "client"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Booking not found")
}
