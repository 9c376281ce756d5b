package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/storage"
	"booking-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
providers:
  - id: d-1
    kind: doctor
    name: Dr. Salem
    schedule:
      work_days: [0, 1, 2, 3, 4]
      start_time: "09:00"
      end_time: "17:00"
      slot_duration_minutes: 30
      days_off: ["2024-06-09"]
  - id: l-1
    kind: laboratory
    name: Central Lab
    schedule:
      work_days: [0, 1, 2, 3, 4, 5]
      start_time: "08:00"
      end_time: "20:00"
      slot_duration_minutes: 15
    catalog:
      - id: t-cbc
        name: CBC
        price: 15000
        duration_minutes: 15
`

var base = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

func newBooking(id, provider string, start time.Time, minutes int) *models.Booking {
	return &models.Booking{
		ID:           id,
		ProviderID:   provider,
		ProviderKind: models.KindDoctor,
		PatientID:    "p-1",
		PatientName:  "Omar",
		StartTime:    start,
		EndTime:      start.Add(time.Duration(minutes) * time.Minute),
		Status:       models.BookingScheduled,
		CreatedAt:    base,
		Payload:      models.DoctorPayload{},
	}
}

func seedProviders(t *testing.T) []*models.Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	providers, err := storage.LoadSeed(path)
	require.NoError(t, err)
	return providers
}

func TestNew_LoadsSeed(t *testing.T) {
	s, err := New("", seedProviders(t))
	require.NoError(t, err)

	p, err := s.GetProvider(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindLaboratory, p.Kind)
	assert.Equal(t, "08:00", p.Schedule.StartTime)

	item, ok := p.CatalogItem("t-cbc")
	require.True(t, ok)
	assert.Equal(t, 15, item.DurationMinutes)

	d, err := s.GetProvider(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-09"}, d.Schedule.DaysOff)

	_, err = s.GetProvider(context.Background(), "missing")
	assert.ErrorIs(t, err, response.ErrProviderNotFound)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestCreateBooking_RejectsOverlap(t *testing.T) {
	ctx := context.Background()
	s, err := New("", nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateBooking(ctx, newBooking("b1", "d-1", base, 30)))

	err = s.CreateBooking(ctx, newBooking("b2", "d-1", base.Add(15*time.Minute), 30))
	assert.ErrorIs(t, err, response.ErrSlotNotAvailable)

	// touching intervals and other providers are fine
	require.NoError(t, s.CreateBooking(ctx, newBooking("b3", "d-1", base.Add(30*time.Minute), 30)))
	require.NoError(t, s.CreateBooking(ctx, newBooking("b4", "d-2", base, 30)))

	// a canceled booking frees its interval
	_, err = s.UpdateBookingStatus(ctx, "b1", models.BookingCanceled, "patient")
	require.NoError(t, err)
	require.NoError(t, s.CreateBooking(ctx, newBooking("b5", "d-1", base, 30)))
}

func TestUpdateBookingStatus(t *testing.T) {
	ctx := context.Background()
	s, err := New("", nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateBooking(ctx, newBooking("b1", "d-1", base, 30)))

	b, err := s.UpdateBookingStatus(ctx, "b1", models.BookingCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, b.Status)

	_, err = s.UpdateBookingStatus(ctx, "b1", models.BookingCanceled, "provider")
	assert.ErrorIs(t, err, response.ErrAlreadyTerminal)

	got, err := s.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, got.Status)
	assert.Empty(t, got.CanceledBy)

	_, err = s.UpdateBookingStatus(ctx, "nope", models.BookingCanceled, "")
	assert.ErrorIs(t, err, response.ErrBookingNotFound)
}

func TestUpdateBookingNotes(t *testing.T) {
	ctx := context.Background()
	s, err := New("", nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateBooking(ctx, newBooking("b1", "d-1", base, 30)))

	b, err := s.UpdateBookingNotes(ctx, "b1", models.RoleProvider, "follow up in 2 weeks")
	require.NoError(t, err)
	assert.Equal(t, "follow up in 2 weeks", b.ProviderNotes)

	b, err = s.UpdateBookingNotes(ctx, "b1", models.RolePatient, "allergic to penicillin")
	require.NoError(t, err)
	assert.Equal(t, "allergic to penicillin", b.PatientNotes)
	assert.Equal(t, "follow up in 2 weeks", b.ProviderNotes)

	_, err = s.UpdateBookingNotes(ctx, "b1", "admin", "x")
	assert.ErrorIs(t, err, response.ErrInvalidAuthorRole)
}

func TestListBookings_Filters(t *testing.T) {
	ctx := context.Background()
	s, err := New("", nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateBooking(ctx, newBooking("late", "d-1", base.Add(2*time.Hour), 30)))
	require.NoError(t, s.CreateBooking(ctx, newBooking("early", "d-1", base, 30)))
	other := newBooking("other", "d-2", base, 30)
	other.PatientID = "p-2"
	require.NoError(t, s.CreateBooking(ctx, other))

	provider := "d-1"
	list, err := s.ListBookings(ctx, models.BookingFilter{ProviderID: &provider})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].ID)
	assert.Equal(t, "late", list[1].ID)

	patient := "p-2"
	list, err = s.ListBookings(ctx, models.BookingFilter{PatientID: &patient})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "other", list[0].ID)

	// overlap window: [10:15, 10:45) touches "early" (10:00-10:30) only
	from, to := base.Add(15*time.Minute), base.Add(45*time.Minute)
	list, err = s.ListBookings(ctx, models.BookingFilter{ProviderID: &provider, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "early", list[0].ID)

	canceled := models.BookingCanceled
	list, err = s.ListBookings(ctx, models.BookingFilter{Status: &canceled})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	s, err := New("", nil)
	require.NoError(t, err)

	first := &models.Notification{ID: "n1", RecipientUserID: "p-1", BookingID: "b1", Type: models.NotificationReminder, FiredAt: base}
	require.NoError(t, s.CreateNotification(ctx, first))

	dup := &models.Notification{ID: "n2", RecipientUserID: "p-1", BookingID: "b1", Type: models.NotificationReminder, FiredAt: base}
	assert.ErrorIs(t, s.CreateNotification(ctx, dup), response.ErrAlreadyNotified)

	cancel := &models.Notification{ID: "n3", RecipientUserID: "p-1", BookingID: "b1", Type: models.NotificationCancellation, FiredAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateNotification(ctx, cancel))

	list, err := s.ListNotifications(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID, "newest first")

	require.NoError(t, s.MarkNotificationRead(ctx, "n1"))
	list, err = s.ListNotifications(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, list[1].Read)

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, "missing"), response.ErrNotFound)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := filepath.Join(t.TempDir(), "data", "db.json")

	s, err := New(snap, seedProviders(t))
	require.NoError(t, err)

	lab := newBooking("lb1", "l-1", base, 15)
	lab.ProviderKind = models.KindLaboratory
	lab.Payload = models.LabPayload{TestName: "CBC", TestPrice: 15000, OfferID: "o-1", OfferName: "Checkup"}
	require.NoError(t, s.CreateBooking(ctx, lab))

	newSchedule := models.Schedule{WorkDays: []int{1}, StartTime: "10:00", EndTime: "12:00", SlotDurationMinutes: 20}
	require.NoError(t, s.UpdateSchedule(ctx, "d-1", newSchedule))

	reopened, err := New(snap, nil)
	require.NoError(t, err)

	got, err := reopened.GetBooking(ctx, "lb1")
	require.NoError(t, err)
	assert.Equal(t, lab.Payload, got.Payload)
	assert.True(t, lab.StartTime.Equal(got.StartTime))

	d, err := reopened.GetProvider(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", d.Schedule.StartTime)
}

func TestSnapshot_WriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// the snapshot path is a directory, so every write fails
	snap := filepath.Join(dir, "db.json")
	require.NoError(t, os.MkdirAll(snap, 0o755))

	s := &Storage{
		providers:     map[string]*models.Provider{},
		bookings:      map[string]*models.Booking{},
		notifications: map[string]*models.Notification{},
		snapshotPath:  snap,
	}

	err := s.CreateBooking(ctx, newBooking("b1", "d-1", base, 30))
	require.Error(t, err)

	_, err = s.GetBooking(ctx, "b1")
	assert.ErrorIs(t, err, response.ErrBookingNotFound)
}

func TestReplaceCatalogAndOffers(t *testing.T) {
	ctx := context.Background()
	snap := filepath.Join(t.TempDir(), "db.json")

	s, err := New(snap, seedProviders(t))
	require.NoError(t, err)

	items := []models.CatalogItem{
		{ID: "t-cbc", Name: "CBC", Price: 17000, DurationMinutes: 15},
		{ID: "t-vitd", Name: "Vitamin D", Price: 30000, DurationMinutes: 15},
	}
	require.NoError(t, s.ReplaceCatalog(ctx, "l-1", items))

	offers := []models.Offer{{ID: "o-check", Name: "Checkup", Price: 40000, DurationMinutes: 30, ItemIDs: []string{"t-cbc", "t-vitd"}}}
	require.NoError(t, s.ReplaceOffers(ctx, "l-1", offers))

	// caller's slice is copied
	items[0].Price = 1

	reopened, err := New(snap, nil)
	require.NoError(t, err)

	p, err := reopened.GetProvider(ctx, "l-1")
	require.NoError(t, err)
	require.Len(t, p.Catalog, 2)
	assert.Equal(t, 17000.0, p.Catalog[0].Price)
	assert.Equal(t, offers, p.Offers)

	assert.ErrorIs(t, s.ReplaceCatalog(ctx, "missing", nil), response.ErrProviderNotFound)
	assert.ErrorIs(t, s.ReplaceOffers(ctx, "missing", nil), response.ErrProviderNotFound)
}

func TestNew_SnapshotWinsOverSeed(t *testing.T) {
	ctx := context.Background()
	snap := filepath.Join(t.TempDir(), "db.json")

	s, err := New(snap, seedProviders(t))
	require.NoError(t, err)
	require.NoError(t, s.UpdateSchedule(ctx, "d-1", models.Schedule{WorkDays: []int{1}, StartTime: "10:00", EndTime: "12:00", SlotDurationMinutes: 20}))

	restarted, err := New(snap, seedProviders(t))
	require.NoError(t, err)

	d, err := restarted.GetProvider(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, d.Schedule.WorkDays)
}
