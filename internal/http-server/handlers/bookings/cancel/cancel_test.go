package cancel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"booking-service/api"
	"booking-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCanceller struct {
	mock.Mock
}

func (m *mockCanceller) CancelBooking(ctx context.Context, id, canceledBy string) (*api.BookingResponse, error) {
	args := m.Called(ctx, id, canceledBy)
	if b, ok := args.Get(0).(*api.BookingResponse); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func serve(m *mockCanceller, id, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Post("/bookings/{id}/cancel", New(slog.New(slog.DiscardHandler), m))

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+id+"/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCancel_OK(t *testing.T) {
	m := new(mockCanceller)
	m.On("CancelBooking", mock.Anything, "b1", "provider").
		Return(&api.BookingResponse{ID: "b1", Status: "canceled", CanceledBy: "provider"}, nil)

	rec := serve(m, "b1", `{"canceledBy":"provider"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "canceled", body.Booking.Status)
	m.AssertExpectations(t)
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	m := new(mockCanceller)
	m.On("CancelBooking", mock.Anything, "b1", "patient").Return(nil, response.ErrAlreadyTerminal)

	rec := serve(m, "b1", `{"canceledBy":"patient"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(response.ALREADY_TERMINAL))
}

func TestCancel_NotFound(t *testing.T) {
	m := new(mockCanceller)
	m.On("CancelBooking", mock.Anything, "nope", "patient").Return(nil, response.ErrBookingNotFound)

	rec := serve(m, "nope", `{"canceledBy":"patient"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(response.BOOKING_NOT_FOUND))
}
