package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (r *recorder) Deliver(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func seed(t *testing.T, store *memory.Storage, id string, start time.Time, status models.BookingStatus) {
	t.Helper()
	require.NoError(t, store.CreateBooking(context.Background(), &models.Booking{
		ID:           id,
		ProviderID:   "d-" + id,
		ProviderKind: models.KindDoctor,
		PatientID:    "p-" + id,
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		Status:       status,
		Payload:      models.DoctorPayload{},
	}))
}

func newScheduler(t *testing.T, notifier Notifier) (*Scheduler, *memory.Storage) {
	t.Helper()

	store, err := memory.New("", nil)
	require.NoError(t, err)

	s := New(slog.New(slog.DiscardHandler), store, notifier, Config{Interval: time.Minute, LookAhead: time.Hour})
	s.now = func() time.Time { return now }

	return s, store
}

func TestSweep_OnlyUpcomingScheduled(t *testing.T) {
	rec := &recorder{}
	s, store := newScheduler(t, rec)

	seed(t, store, "soon", now.Add(30*time.Minute), models.BookingScheduled)
	seed(t, store, "edge", now.Add(time.Hour), models.BookingScheduled)
	seed(t, store, "starting", now, models.BookingScheduled)
	seed(t, store, "far", now.Add(2*time.Hour), models.BookingScheduled)
	seed(t, store, "past", now.Add(-10*time.Minute), models.BookingScheduled)
	seed(t, store, "canceled", now.Add(10*time.Minute), models.BookingCanceled)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := map[string]bool{}
	for _, sent := range rec.sent {
		got[sent.BookingID] = true
		assert.Equal(t, models.NotificationReminder, sent.Type)
		assert.Equal(t, "p-"+sent.BookingID, sent.RecipientUserID)
	}
	assert.Equal(t, map[string]bool{"soon": true, "edge": true, "starting": true}, got)
}

func TestSweep_Deduplicates(t *testing.T) {
	rec := &recorder{}
	s, store := newScheduler(t, rec)

	seed(t, store, "soon", now.Add(30*time.Minute), models.BookingScheduled)

	for range 3 {
		_, err := s.Sweep(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, rec.sent, 1)

	list, err := store.ListNotifications(context.Background(), "p-soon")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSweep_DeliveryFailureIsNotFatal(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	s, store := newScheduler(t, rec)

	seed(t, store, "a", now.Add(5*time.Minute), models.BookingScheduled)
	seed(t, store, "b", now.Add(15*time.Minute), models.BookingScheduled)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, rec.sent, 2)
}

func TestStartStop(t *testing.T) {
	s, _ := newScheduler(t, &recorder{})

	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
