package handler

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/gateway/payu"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/memory"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/service"
)

const (
	merchantKey  = "gtKFFx"
	merchantSalt = "eCwWELxi"
	adminToken   = "s3cret-admin"
)

type testServer struct {
	store  *memory.Store
	router http.Handler
	slots  []model.TimeSlot
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	r := store.Repos()

	svc := &model.Service{Name: "Career Counselling", Price: 500000, Duration: 60, Active: true}
	require.NoError(t, r.Catalog.CreateService(ctx, svc))
	ts := &testServer{store: store}
	for _, start := range []string{"09:00", "10:00"} {
		slot := &model.TimeSlot{ServiceID: svc.ID, Date: "2026-11-02", StartTime: start, EndTime: start}
		require.NoError(t, r.Slots.Create(ctx, slot))
		ts.slots = append(ts.slots, *slot)
	}

	n := 999
	refs := service.WithReferenceGenerator(func() string {
		n++
		return "TXN" + strconv.Itoa(n)
	})
	gateway := payu.NewClient(merchantKey, merchantSalt, "https://test.payu.in/_payment", "http://x/s", "http://x/f")
	h := NewBookingHandler(service.NewBookingService(store, refs), service.NewReconciler(store), gateway)
	ts.router = NewRouter(h, RouterConfig{AdminToken: adminToken})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) book(user string, slotID int64) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]any{
		"service_id": 1,
		"slot_id":    slotID,
		"first_name": "Asha",
		"last_name":  "Rao",
		"email":      "asha@example.com",
		"phone":      "9999999999",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return ts.do(req)
}

func signedCallback(reference, status, mihpayid string) url.Values {
	hash := sha512.Sum512([]byte(merchantSalt + "|" + status + "|||||||||||asha@example.com|Asha|Career Counselling|5000.00|" +
		reference + "|" + merchantKey))
	return url.Values{
		"key":         {merchantKey},
		"txnid":       {reference},
		"amount":      {"5000.00"},
		"productinfo": {"Career Counselling"},
		"firstname":   {"Asha"},
		"email":       {"asha@example.com"},
		"status":      {status},
		"mihpayid":    {mihpayid},
		"hash":        {hex.EncodeToString(hash[:])},
	}
}

func (ts *testServer) callback(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/payu/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/services", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var services []model.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &services))
	require.Len(t, services, 1)
	assert.Equal(t, int64(500000), services[0].Price)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/services/1/slots", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []model.TimeSlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Len(t, slots, 2)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/services/42/slots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/services/abc/slots", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBooking(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.book("7", ts.slots[0].ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		BookingID int64           `json:"booking_id"`
		Amount    int64           `json:"amount"`
		Reference string          `json:"reference"`
		Payment   payu.Initiation `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.BookingID)
	assert.Equal(t, int64(500000), resp.Amount)
	assert.Equal(t, "TXN1000", resp.Reference)
	assert.Equal(t, "https://test.payu.in/_payment", resp.Payment.Action)
	assert.Equal(t, "TXN1000", resp.Payment.Fields["txnid"])
	assert.Equal(t, "5000.00", resp.Payment.Fields["amount"])
	assert.NotEmpty(t, resp.Payment.Fields["hash"])

	rec = ts.book("8", ts.slots[0].ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateBookingErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.book("", ts.slots[0].ID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.book("abc", ts.slots[0].ID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"service_id":1,"slot_id":1}`))
	req.Header.Set(UserHeader, "7")
	rec = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"unknown":true}`))
	req.Header.Set(UserHeader, "7")
	rec = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.store.SetServiceActive(1, false)
	rec = ts.book("7", ts.slots[0].ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateBookingServiceUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	r := ts.store.Repos()

	other := &model.Service{Name: "Resume Review", Price: 1500, Duration: 30, Active: true}
	require.NoError(t, r.Catalog.CreateService(ctx, other))
	slot := &model.TimeSlot{ServiceID: other.ID, Date: "2026-11-03", StartTime: "09:00", EndTime: "09:30"}
	require.NoError(t, r.Slots.Create(ctx, slot))

	body := `{"service_id":99,"slot_id":` + strconv.FormatInt(slot.ID, 10) +
		`,"first_name":"Asha","email":"asha@example.com","phone":"9999999999"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(body))
	req.Header.Set(UserHeader, "7")
	rec := ts.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaymentCallbackFlow(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.book("7", ts.slots[0].ID).Code)

	rec := ts.callback(signedCallback("TXN1000", "success", "P1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res service.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeConfirmed, res.Outcome)

	rec = ts.callback(signedCallback("TXN1000", "success", "P1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.OutcomeDuplicate, res.Outcome)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/1", nil)
	req.Header.Set(UserHeader, "7")
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status  model.BookingStatus `json:"status"`
		Payment model.Payment       `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.BookingConfirmed, got.Status)
	assert.Equal(t, model.PaymentSuccess, got.Payment.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/bookings/1", nil)
	req.Header.Set(UserHeader, "8")
	assert.Equal(t, http.StatusNotFound, ts.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set(UserHeader, "7")
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.BookingDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, model.PaymentSuccess, list[0].PaymentStatus)
}

func TestPaymentCallbackErrors(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.book("7", ts.slots[0].ID).Code)

	forged := signedCallback("TXN1000", "success", "P1")
	forged.Set("amount", "1.00")
	assert.Equal(t, http.StatusBadRequest, ts.callback(forged).Code)

	assert.Equal(t, http.StatusNotFound, ts.callback(signedCallback("TXN999", "success", "P1")).Code)

	require.Equal(t, http.StatusOK, ts.callback(signedCallback("TXN1000", "failure", "P1")).Code)
	assert.Equal(t, http.StatusConflict, ts.callback(signedCallback("TXN1000", "success", "P2")).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []model.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "TXN1000", reviews[0].Reference)
}

func TestAdminRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, ts.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil)
	req.Header.Set(UserHeader, "7")
	assert.Equal(t, http.StatusUnauthorized, ts.do(req).Code)

	disabled := NewRouter(NewBookingHandler(nil, nil, nil), RouterConfig{})
	req = httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPaymentCallbackWithoutCredentials(t *testing.T) {
	store := memory.NewStore()
	ts := &testServer{store: store}
	h := NewBookingHandler(service.NewBookingService(store), service.NewReconciler(store),
		payu.NewClient("", "", "https://test.payu.in/_payment", "", ""))
	ts.router = NewRouter(h, RouterConfig{})

	form := url.Values{"txnid": {"TXN1000"}, "status": {"success"}, "amount": {"5000.00"}}
	hash := sha512.Sum512([]byte("|success||||||||||||||5000.00|TXN1000|"))
	form.Set("hash", hex.EncodeToString(hash[:]))
	assert.Equal(t, http.StatusBadRequest, ts.callback(form).Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodOptions, "/api/bookings", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), UserHeader)
}
