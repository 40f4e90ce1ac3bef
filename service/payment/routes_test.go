package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blankops-000/JOB-LINK/cmd/utils"
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

func newTestPaymentHandler(t *testing.T, db *gorm.DB, mpesa *MpesaClient) *PaymentHandler {
	t.Helper()
	// The notifier runs post-commit in its own goroutine against its own
	// connection; an empty mock makes its lookups fail harmlessly.
	notifierDB, _ := newMockDB(t)
	return NewPaymentHandler(db, mpesa, notification.NewHandler(notifierDB))
}

func authedRequest(method, target string, body []byte, userID uint, role string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func serve(h *PaymentHandler, req *http.Request) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	h.RegisterRoutes(router, router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// A redelivered callback for an already-completed payment must be acked
// without touching the payment or its booking again.
func TestHandleCallback_DuplicateDeliveryIsIgnored(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestPaymentHandler(t, db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE external_reference = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(3, 7, "completed"))
	mock.ExpectRollback()

	rec := serve(handler, httptest.NewRequest(http.MethodPost,
		"/payments/mpesa/callback", bytes.NewReader([]byte(successCallback))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ResultCode":0`)
	assert.Contains(t, rec.Body.String(), "Already processed")
	assert.NoError(t, mock.ExpectationsWereMet(), "no writes may happen on redelivery")
}

// A successful callback completes the payment and moves a pending booking
// to confirmed in the same transaction.
func TestHandleCallback_SuccessConfirmsPendingBooking(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestPaymentHandler(t, db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE external_reference = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(3, 7, "pending"))
	mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE "bookings"\."id" = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "status"}).
			AddRow(7, 1, "pending"))
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := serve(handler, httptest.NewRequest(http.MethodPost,
		"/payments/mpesa/callback", bytes.NewReader([]byte(successCallback))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment processed successfully")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failure callback marks the payment failed and leaves the booking
// untouched, so the client can initiate again.
func TestHandleCallback_FailureLeavesBookingPayable(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestPaymentHandler(t, db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE external_reference = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(3, 7, "pending"))
	mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := serve(handler, httptest.NewRequest(http.MethodPost,
		"/payments/mpesa/callback", bytes.NewReader([]byte(failureCallback))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "booking must not be read or written on failure")
}

// Re-initiating a payment for a booking that already has a non-completed
// payment row updates that row rather than inserting a second one.
func TestInitiatePayment_ReusesExistingPaymentRow(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
		case "/mpesa/stkpush/v1/processrequest":
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_reuse",
				"CustomerMessage":   "Success",
			})
		}
	}))
	defer gateway.Close()

	db, mock := newMockDB(t)
	handler := newTestPaymentHandler(t, db, testClient(gateway.URL))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE .*client_id`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "client_id", "status", "total_amount", "service_category_id"}).
			AddRow(7, 1, "confirmed", 1500.0, 3))
	mock.ExpectQuery(`SELECT \* FROM "service_categories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "Plumbing"))
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE booking_id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(3, 7, "failed"))
	mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Checkout request id lands in its own short transaction after the
	// gateway call.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payments" SET "external_reference"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body, _ := json.Marshal(map[string]interface{}{
		"booking_id":   7,
		"phone_number": "0712345678",
	})
	rec := serve(handler, authedRequest(http.MethodPost, "/payments/initiate", body, 1, "client"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment initiated successfully")
	assert.Contains(t, rec.Body.String(), "ws_CO_reuse")
	assert.NoError(t, mock.ExpectationsWereMet(), "existing payment row must be updated, not duplicated")
}

// An admin reading a payment whose booking is gone still gets an answer,
// with a null booking status.
func TestCheckStatus_AdminReadsOrphanedPayment(t *testing.T) {
	db, mock := newMockDB(t)
	handler := newTestPaymentHandler(t, db, nil)

	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE "payments"\."id" = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(3, 7, "completed"))
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := serve(handler, authedRequest(http.MethodGet, "/payments/status/3", nil, 50, "admin"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booking_status":null`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
