// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/gateway/payu"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/service"
)

// BookingHandler holds all HTTP handlers for the booking API.
type BookingHandler struct {
	bookings   *service.BookingService
	reconciler *service.Reconciler
	gateway    *payu.Client
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService, reconciler *service.Reconciler, gateway *payu.Client) *BookingHandler {
	return &BookingHandler{bookings: bookings, reconciler: reconciler, gateway: gateway}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

// ListServices handles GET /api/services
func (h *BookingHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.bookings.ListServices(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list services")
		writeError(w, http.StatusInternalServerError, "failed to list services")
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

// ListSlots handles GET /api/services/{id}/slots
func (h *BookingHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	slots, err := h.bookings.ListSlots(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrServiceUnavailable):
			writeError(w, http.StatusNotFound, "service not found")
		default:
			logrus.WithError(err).Error("list slots")
			writeError(w, http.StatusInternalServerError, "failed to list slots")
		}
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

type createBookingResponse struct {
	service.Reservation
	Payment payu.Initiation `json:"payment"`
}

// CreateBooking handles POST /api/bookings
// Reserves the slot, opens a pending payment and returns the gateway form.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.bookings.Reserve(r.Context(), service.ReserveRequest{
		UserID:    UserID(r.Context()),
		ServiceID: req.ServiceID,
		SlotID:    req.SlotID,
		Contact:   req.Contact,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrSlotUnavailable):
			writeError(w, http.StatusConflict, "this slot has already been taken")
		case errors.Is(err, model.ErrServiceUnavailable):
			writeError(w, http.StatusUnprocessableEntity, "this service is not available")
		default:
			logrus.WithError(err).Error("create booking")
			writeError(w, http.StatusInternalServerError, "failed to create booking")
		}
		return
	}

	initiation := h.gateway.Initiate(payu.InitiationRequest{
		Reference:   res.Reference,
		Amount:      res.Amount,
		ProductInfo: res.ServiceName,
		FirstName:   req.FirstName,
		Email:       req.Email,
		Phone:       req.Phone,
	})

	writeJSON(w, http.StatusCreated, createBookingResponse{Reservation: *res, Payment: initiation})
}

// ListBookings handles GET /api/bookings
// Returns the caller's bookings, newest first.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookings.ListUserBookings(r.Context(), UserID(r.Context()))
	if err != nil {
		logrus.WithError(err).Error("list bookings")
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if list == nil {
		list = []model.BookingDetails{}
	}
	writeJSON(w, http.StatusOK, list)
}

type bookingResponse struct {
	*model.Booking
	Payment *model.Payment `json:"payment"`
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	b, p, err := h.bookings.GetBooking(r.Context(), UserID(r.Context()), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		logrus.WithError(err).Error("get booking")
		writeError(w, http.StatusInternalServerError, "failed to get booking")
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: b, Payment: p})
}

// ─── Payments ─────────────────────────────────────────────────────────────────

// PayUCallback handles POST /api/payments/payu/callback
// The gateway posts a form; every field is passed to verification untouched.
func (h *BookingHandler) PayUCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	fields := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}

	res, err := h.reconciler.Reconcile(r.Context(), fields, h.gateway)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidNotification):
			writeError(w, http.StatusBadRequest, "invalid payment response")
		case errors.Is(err, model.ErrUnknownBooking):
			writeError(w, http.StatusNotFound, "unknown transaction")
		case errors.Is(err, model.ErrIllegalTransition):
			writeError(w, http.StatusConflict, "notification conflicts with recorded payment, flagged for review")
		default:
			writeError(w, http.StatusInternalServerError, "unable to process payment")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListReviews handles GET /api/admin/reviews
func (h *BookingHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reviews, err := h.bookings.ListReviews(r.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("list reviews")
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
