package update

import (
	"context"
	"encoding/json"
	"fmt"
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

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) UpdateSchedule(ctx context.Context, providerID, kind string, req *api.Schedule) (*api.Schedule, error) {
	args := m.Called(ctx, providerID, kind, req)
	if s, ok := args.Get(0).(*api.Schedule); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func serve(m *mockUpdater, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Put("/providers/{kind}/{id}/schedule", New(slog.New(slog.DiscardHandler), m))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/providers/beauty/b-1/schedule", strings.NewReader(body)))
	return rec
}

func TestUpdate_OK(t *testing.T) {
	m := new(mockUpdater)
	want := &api.Schedule{WorkDays: []int{1, 2}, StartTime: "10:00", EndTime: "18:00", SlotDurationMinutes: 60, DaysOff: []string{}}

	m.On("UpdateSchedule", mock.Anything, "b-1", "beauty", mock.MatchedBy(func(s *api.Schedule) bool {
		return s.StartTime == "10:00" && s.SlotDurationMinutes == 60
	})).Return(want, nil)

	rec := serve(m, `{"workDays":[1,2],"startTime":"10:00","endTime":"18:00","slotDurationMinutes":60}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, *want, body.Schedule)
}

func TestUpdate_InvalidSchedule(t *testing.T) {
	m := new(mockUpdater)
	m.On("UpdateSchedule", mock.Anything, "b-1", "beauty", mock.Anything).
		Return(nil, fmt.Errorf("end before start: %w", response.ErrInvalidSchedule))

	rec := serve(m, `{"workDays":[1],"startTime":"18:00","endTime":"10:00","slotDurationMinutes":60}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid schedule")
}

func TestUpdate_BadBody(t *testing.T) {
	m := new(mockUpdater)

	rec := serve(m, `[`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "UpdateSchedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
