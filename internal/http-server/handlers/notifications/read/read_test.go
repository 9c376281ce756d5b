package read

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"booking-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockMarker struct {
	mock.Mock
}

func (m *mockMarker) MarkNotificationRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestRead(t *testing.T) {
	m := new(mockMarker)
	m.On("MarkNotificationRead", mock.Anything, "n1").Return(nil)
	m.On("MarkNotificationRead", mock.Anything, "missing").Return(response.ErrNotFound)

	router := chi.NewRouter()
	router.Post("/notifications/{id}/read", New(slog.New(slog.DiscardHandler), m))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/n1/read", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/missing/read", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(response.NOT_FOUND))
}
