package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/api/middleware"
	"github.com/angelmondragon/stockyard-backend/internal/bookings"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/internal/staff"
	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if dst != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

type stubDrafts struct {
	got  intake.DraftInput
	err  error
	now  time.Time
	seen int
}

func (s *stubDrafts) ValidateAndCreateDraft(ctx context.Context, input intake.DraftInput) (*models.BookingDraft, error) {
	s.seen++
	s.got = input
	if s.err != nil {
		return nil, s.err
	}
	start, _ := time.Parse(intake.DateLayout, input.PreferredStartDate)
	return &models.BookingDraft{
		ID:                     uuid.New(),
		WarehouseID:            uuid.MustParse(input.WarehouseID),
		FullName:               input.FullName,
		Email:                  input.Email,
		Phone:                  input.Phone,
		CompanyName:            input.CompanyName,
		PreferredContactMethod: enums.ContactMethod(input.PreferredContactMethod),
		PreferredStartDate:     start,
		CreatedAt:              s.now,
	}, nil
}

func TestCreateBookingDraft(t *testing.T) {
	svc := &stubDrafts{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	warehouseID := uuid.NewString()
	body := `{"warehouseId":"` + warehouseID + `","fullName":"Priya Raman","email":"priya@example.com","phone":"9876543210",` +
		`"companyName":"Raman Textiles","preferredContactMethod":"phone","preferredStartDate":"2026-05-01"}`

	rec := httptest.NewRecorder()
	CreateBookingDraft(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/drafts", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp draftResponse
	decode(t, rec, &resp)
	assert.Equal(t, warehouseID, resp.WarehouseID.String())
	assert.Equal(t, "2026-05-01", resp.PreferredStartDate)
	assert.Equal(t, "Priya Raman", svc.got.FullName)
}

func TestCreateBookingDraftPassesValidationDetails(t *testing.T) {
	svc := &stubDrafts{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: phone").
		WithDetails(map[string]string{"phone": "must be exactly 10 digits"})}

	rec := httptest.NewRecorder()
	CreateBookingDraft(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"12"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	assert.Equal(t, "invalid fields: phone", env.Error.Message)
}

func TestCreateBookingDraftRejectsUnknownFields(t *testing.T) {
	svc := &stubDrafts{}
	rec := httptest.NewRecorder()
	CreateBookingDraft(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"coupon":"X"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.seen)
}

type stubOrders struct {
	result *payments.OrderResult
	status *payments.OrderStatus
	err    error
	draft  uuid.UUID
}

func (s *stubOrders) CreateOrder(ctx context.Context, draftID uuid.UUID) (*payments.OrderResult, error) {
	s.draft = draftID
	return s.result, s.err
}

func (s *stubOrders) GetOrderStatus(ctx context.Context, orderID string) (*payments.OrderStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.status, nil
}

func TestCreatePaymentOrder(t *testing.T) {
	draftID := uuid.New()
	svc := &stubOrders{result: &payments.OrderResult{OrderID: "order_abc", BookingDraftID: draftID, Amount: 99900, DisplayAmount: "999.00", Currency: "INR"}}
	r := chi.NewRouter()
	r.Post("/drafts/{draftId}/payment-order", CreatePaymentOrder(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/drafts/"+draftID.String()+"/payment-order", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, draftID, svc.draft)
	var got payments.OrderResult
	decode(t, rec, &got)
	assert.Equal(t, "order_abc", got.OrderID)
	assert.Equal(t, "999.00", got.DisplayAmount)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/drafts/not-a-uuid/payment-order", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentOrderGatewayFailure(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "create gateway order")}
	r := chi.NewRouter()
	r.Post("/drafts/{draftId}/payment-order", CreatePaymentOrder(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/drafts/"+uuid.NewString()+"/payment-order", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubConfirmer struct {
	result *bookings.Result
	err    error
	got    bookings.ConfirmParams
}

func (s *stubConfirmer) Confirm(ctx context.Context, params bookings.ConfirmParams) (*bookings.Result, error) {
	s.got = params
	return s.result, s.err
}

func TestConfirmPayment(t *testing.T) {
	number := "SY-2026-000042"
	confirmedAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubConfirmer{result: &bookings.Result{Replayed: true, Booking: &models.Booking{
		ID:            uuid.New(),
		BookingNumber: &number,
		OrderID:       "order_1",
		PaymentID:     "pay_1",
		WarehouseID:   uuid.New(),
		Status:        enums.BookingStatusConfirmed,
		ConfirmedAt:   &confirmedAt,
	}}}

	rec := httptest.NewRecorder()
	body := `{"orderId":"order_1","paymentId":"pay_1","signature":"abc"}`
	ConfirmPayment(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", svc.got.Signature)
	var got bookingResponse
	decode(t, rec, &got)
	require.NotNil(t, got.BookingNumber)
	assert.Equal(t, number, *got.BookingNumber)
	assert.True(t, got.Replayed)
}

func TestConfirmPaymentErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	ConfirmPayment(&stubConfirmer{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"orderId":"order_1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &stubConfirmer{err: pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment signature mismatch")}
	rec = httptest.NewRecorder()
	body := `{"orderId":"order_1","paymentId":"pay_1","signature":"forged"}`
	ConfirmPayment(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeSignatureInvalid), decode(t, rec, nil).Error.Code)
}

type stubFallback struct {
	result *fallback.Result
	err    error
	reason string
}

func (s *stubFallback) RecordFallback(ctx context.Context, draftID uuid.UUID, reason string) (*fallback.Result, error) {
	s.reason = reason
	return s.result, s.err
}

func TestRecordPaymentFallback(t *testing.T) {
	inquiry := &models.Inquiry{ID: uuid.New(), Status: enums.InquiryStatusNew}
	svc := &stubFallback{result: &fallback.Result{Inquiry: inquiry}}
	body := `{"draftId":"` + uuid.NewString() + `","reason":" user_cancelled "}`

	rec := httptest.NewRecorder()
	RecordPaymentFallback(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user_cancelled", svc.reason)

	svc.result = &fallback.Result{Inquiry: inquiry, Replayed: true}
	rec = httptest.NewRecorder()
	RecordPaymentFallback(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	var got fallbackResponse
	decode(t, rec, &got)
	assert.Equal(t, inquiry.ID, got.InquiryID)
	assert.True(t, got.Replayed)
}

func TestRecordPaymentFallbackStorageFailureMessage(t *testing.T) {
	svc := &stubFallback{err: pkgerrors.Wrap(pkgerrors.CodeInquiryNotSaved, errors.New("connection refused"), "save fallback inquiry")}
	body := `{"draftId":"` + uuid.NewString() + `"}`

	rec := httptest.NewRecorder()
	RecordPaymentFallback(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec, nil).Error.Message, "not charged")
}

func TestPaymentOrderStatus(t *testing.T) {
	svc := &stubOrders{status: &payments.OrderStatus{OrderID: "order_9", Status: enums.PaymentOrderStatusCreated}}
	r := chi.NewRouter()
	r.Get("/orders/{orderId}", PaymentOrderStatus(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/order_9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got payments.OrderStatus
	decode(t, rec, &got)
	assert.Equal(t, enums.PaymentOrderStatusCreated, got.Status)

	svc.err = pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order not found")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/order_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubWarehouses struct{}

func (stubWarehouses) GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error) {
	return &warehouses.Summary{ID: id, Name: "Bhiwandi Hub"}, nil
}

func TestWarehouseSummary(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/warehouses/{warehouseId}/summary", WarehouseSummary(stubWarehouses{}, nil))

	id := uuid.New()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/"+id.String()+"/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got warehouses.Summary
	decode(t, rec, &got)
	assert.Equal(t, "Bhiwandi Hub", got.Name)
}

type stubStaffAuth struct {
	loggedOut string
}

func (s *stubStaffAuth) Login(ctx context.Context, req staff.LoginRequest) (*staff.LoginResponse, error) {
	if req.Password != "correct horse battery" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &staff.LoginResponse{AccessToken: "token", Staff: &staff.StaffDTO{Email: req.Email}}, nil
}

func (s *stubStaffAuth) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return nil
}

func TestStaffLoginAndLogout(t *testing.T) {
	svc := &stubStaffAuth{}

	rec := httptest.NewRecorder()
	body := `{"email":"ops@stockyard.in","password":"correct horse battery"}`
	StaffLogin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	body = `{"email":"ops@stockyard.in","password":"wrong"}`
	StaffLogin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(middleware.WithStaff(req.Context(), uuid.NewString(), "staff", "access-1"))
	rec = httptest.NewRecorder()
	StaffLogout(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-1", svc.loggedOut)
}
