package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"booking-service/api"
	"booking-service/internal/lock"
	"booking-service/internal/models"
	"booking-service/internal/scheduling"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/google/uuid"
)

const lockRetryInterval = 25 * time.Millisecond

type Store interface {
	// Providers
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	UpdateSchedule(ctx context.Context, providerID string, schedule models.Schedule) error
	ReplaceCatalog(ctx context.Context, providerID string, items []models.CatalogItem) error
	ReplaceOffers(ctx context.Context, providerID string, offers []models.Offer) error

	// Bookings
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus, canceledBy string) (*models.Booking, error)
	UpdateBookingNotes(ctx context.Context, id string, role models.AuthorRole, notes string) (*models.Booking, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

type Notifier interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

type Options struct {
	// Location is the single local timezone all dates and wall-clock
	// schedule times are interpreted in. Defaults to UTC.
	Location *time.Location
	LockTTL  time.Duration
	LockWait time.Duration
	Now      func() time.Time
}

type Service struct {
	log      *slog.Logger
	store    Store
	locker   lock.Locker
	notifier Notifier

	loc      *time.Location
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, notifier Notifier, opts Options) *Service {
	s := &Service{
		log:      log,
		store:    store,
		locker:   locker,
		notifier: notifier,
		loc:      opts.Location,
		lockTTL:  opts.LockTTL,
		lockWait: opts.LockWait,
		now:      opts.Now,
	}

	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Second
	}
	if s.lockWait <= 0 {
		s.lockWait = 3 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// resolveProvider loads the provider and checks it is of the requested kind.
// A kind mismatch is reported as not found.
func (s *Service) resolveProvider(ctx context.Context, providerID, kind string) (*models.Provider, error) {
	k := models.ProviderKind(kind)
	if !k.Valid() {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, response.ErrProviderNotFound)
	}

	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if p.Kind != k {
		return nil, fmt.Errorf("provider %s is a %s: %w", p.ID, p.Kind, response.ErrProviderNotFound)
	}

	return p, nil
}

// withProviderLock runs fn while holding the provider-scoped lock, retrying
// acquisition until lockWait elapses.
func (s *Service) withProviderLock(ctx context.Context, providerID string, fn func() error) error {
	key := fmt.Sprintf("provider:%s", providerID)
	deadline := time.Now().Add(s.lockWait)

	var token string
	for {
		acquired, locked, err := s.locker.Lock(ctx, key, s.lockTTL)
		if err != nil {
			return fmt.Errorf("lock error: %w", err)
		}
		if locked {
			token = acquired
			break
		}
		if time.Now().After(deadline) {
			return response.ErrLocked
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release provider lock", slog.String("key", key), sl.Err(err))
		}
	}()

	return fn()
}

// notify stores a notification for the booking's patient and hands it to the
// notifier. Failures are logged; the calling operation has already succeeded.
func (s *Service) notify(ctx context.Context, b *models.Booking, typ models.NotificationType, message string) {
	n := &models.Notification{
		ID:              uuid.NewString(),
		RecipientUserID: b.PatientID,
		BookingID:       b.ID,
		Type:            typ,
		Message:         message,
		FiredAt:         s.now(),
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		if !errors.Is(err, response.ErrAlreadyNotified) {
			s.log.Error("failed to store notification", slog.String("booking_id", b.ID), sl.Err(err))
		}
		return
	}

	if err := s.notifier.Deliver(ctx, n); err != nil {
		s.log.Warn("failed to deliver notification", slog.String("notification_id", n.ID), sl.Err(err))
	}
}

// Slots

// GetAvailableSlots lists the start times of free slots on date
// (YYYY-MM-DD). A nil duration means the provider's default slot length.
// Slots starting before now are left out.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID, kind, date string, duration *int) ([]time.Time, error) {
	const op = "service.GetAvailableSlots"

	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	durationMinutes := provider.Schedule.SlotDurationMinutes
	if duration != nil {
		if *duration <= 0 {
			return nil, fmt.Errorf("%s: %d minutes: %w", op, *duration, response.ErrInvalidDuration)
		}
		durationMinutes = *duration
	}

	day, err := time.ParseInLocation(scheduling.DateLayout, date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date %q: %w", op, date, response.ErrBadRequest)
	}

	from, to := day, day.AddDate(0, 0, 1)
	scheduled := models.BookingScheduled

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{
		ProviderID: &provider.ID,
		Status:     &scheduled,
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	slots := []time.Time{}
	for iv := range scheduling.AvailableSlots(provider.Schedule, day, durationMinutes, bookings) {
		if iv.Start.Before(now) {
			continue
		}
		slots = append(slots, iv.Start)
	}

	return slots, nil
}

// Bookings

// resolveOrder builds the kind payload from the provider catalogue and picks
// the booking length: explicit duration, then offer, then catalog item, then
// the schedule default.
func resolveOrder(p *models.Provider, req *api.BookingRequest) (models.Payload, int, error) {
	duration := p.Schedule.SlotDurationMinutes

	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		return nil, 0, fmt.Errorf("%d minutes: %w", *req.DurationMinutes, response.ErrInvalidDuration)
	}

	if p.Kind == models.KindDoctor {
		if req.DurationMinutes != nil {
			duration = *req.DurationMinutes
		}
		return models.DoctorPayload{}, duration, nil
	}

	fields := models.PayloadFields{
		ItemName:  req.Payload.ItemName,
		ItemPrice: req.Payload.ItemPrice,
	}

	if req.Payload.ItemID != "" {
		item, ok := p.CatalogItem(req.Payload.ItemID)
		if !ok {
			return nil, 0, fmt.Errorf("unknown catalog item %q: %w", req.Payload.ItemID, response.ErrBadRequest)
		}
		fields.ItemName = item.Name
		fields.ItemPrice = item.Price
		if item.DurationMinutes > 0 {
			duration = item.DurationMinutes
		}
	}

	if req.Payload.OfferID != "" {
		offer, ok := p.Offer(req.Payload.OfferID)
		if !ok {
			return nil, 0, fmt.Errorf("unknown offer %q: %w", req.Payload.OfferID, response.ErrBadRequest)
		}
		fields.OfferID = offer.ID
		fields.OfferName = offer.Name
		fields.ItemPrice = offer.Price
		if fields.ItemName == "" {
			fields.ItemName = offer.Name
		}
		if offer.DurationMinutes > 0 {
			duration = offer.DurationMinutes
		}
	}

	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}

	if fields.ItemName == "" {
		return nil, 0, fmt.Errorf("%s booking needs an item or offer: %w", p.Kind, response.ErrBadRequest)
	}

	payload, err := models.BuildPayload(p.Kind, fields)
	if err != nil {
		return nil, 0, err
	}

	return payload, duration, nil
}

// CreateBooking commits a new scheduled booking. The slot is re-checked
// against the current schedule and bookings while the provider lock is held.
func (s *Service) CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	if req.PatientID == "" || req.ProviderID == "" || req.StartTime.IsZero() {
		return nil, fmt.Errorf("%s: providerId, patientId and startTime are required: %w", op, response.ErrBadRequest)
	}

	provider, err := s.resolveProvider(ctx, req.ProviderID, req.ProviderKind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payload, duration, err := resolveOrder(provider, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%s: %d minutes: %w", op, duration, response.ErrInvalidDuration)
	}

	start := req.StartTime.In(s.loc)
	iv := scheduling.Interval{Start: start, End: start.Add(time.Duration(duration) * time.Minute)}

	var booking *models.Booking
	err = s.withProviderLock(ctx, provider.ID, func() error {
		fresh, err := s.store.GetProvider(ctx, provider.ID)
		if err != nil {
			return err
		}

		if iv.Start.Before(s.now()) {
			return fmt.Errorf("start %s is in the past: %w", iv.Start.Format(time.RFC3339), response.ErrSlotNotAvailable)
		}
		if !scheduling.Fits(fresh.Schedule, iv) {
			return fmt.Errorf("outside working hours: %w", response.ErrSlotNotAvailable)
		}

		scheduled := models.BookingScheduled
		existing, err := s.store.ListBookings(ctx, models.BookingFilter{
			ProviderID: &fresh.ID,
			Status:     &scheduled,
			From:       &iv.Start,
			To:         &iv.End,
		})
		if err != nil {
			return err
		}
		if !scheduling.IsFree(iv, existing) {
			return response.ErrSlotNotAvailable
		}

		booking = &models.Booking{
			ID:           uuid.NewString(),
			ProviderID:   fresh.ID,
			ProviderKind: fresh.Kind,
			PatientID:    req.PatientID,
			PatientName:  req.PatientName,
			StartTime:    iv.Start,
			EndTime:      iv.End,
			Status:       models.BookingScheduled,
			PatientNotes: req.PatientNotes,
			CreatedAt:    s.now(),
			Payload:      payload,
		}

		return s.store.CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, booking, models.NotificationInfo,
		fmt.Sprintf("Your booking with %s is confirmed for %s", provider.Name, booking.StartTime.Format("2006-01-02 15:04")))

	return s.toBookingResponse(booking), nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.toBookingResponse(booking), nil
}

// CancelBooking moves a scheduled booking to canceled. A provider-initiated
// cancellation notifies the patient.
func (s *Service) CancelBooking(ctx context.Context, id, canceledBy string) (*api.BookingResponse, error) {
	const op = "service.CancelBooking"

	role := models.AuthorRole(canceledBy)
	if role != models.RoleProvider && role != models.RolePatient {
		return nil, fmt.Errorf("%s: canceledBy %q: %w", op, canceledBy, response.ErrInvalidAuthorRole)
	}

	booking, err := s.store.UpdateBookingStatus(ctx, id, models.BookingCanceled, string(role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if role == models.RoleProvider {
		s.notify(ctx, booking, models.NotificationCancellation,
			fmt.Sprintf("Your booking on %s was canceled by the provider", booking.StartTime.In(s.loc).Format("2006-01-02 15:04")))
	}

	return s.toBookingResponse(booking), nil
}

func (s *Service) CompleteBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.CompleteBooking"

	booking, err := s.store.UpdateBookingStatus(ctx, id, models.BookingCompleted, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.toBookingResponse(booking), nil
}

// AnnotateBooking replaces the notes field owned by authorRole.
func (s *Service) AnnotateBooking(ctx context.Context, id, notes, authorRole string) (*api.BookingResponse, error) {
	const op = "service.AnnotateBooking"

	role := models.AuthorRole(authorRole)
	if role != models.RoleProvider && role != models.RolePatient {
		return nil, fmt.Errorf("%s: authorRole %q: %w", op, authorRole, response.ErrInvalidAuthorRole)
	}

	booking, err := s.store.UpdateBookingNotes(ctx, id, role, notes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.toBookingResponse(booking), nil
}

// ListPatientBookings merges the patient's bookings of every kind, newest
// first.
func (s *Service) ListPatientBookings(ctx context.Context, patientID string) ([]*api.BookingResponse, error) {
	const op = "service.ListPatientBookings"

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{PatientID: &patientID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slices.SortStableFunc(bookings, func(a, b *models.Booking) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	result := make([]*api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, s.toBookingResponse(b))
	}

	return result, nil
}

// ListProviderBookings returns the provider calendar in ascending order.
// from and to select bookings overlapping [from, to); either may be empty,
// RFC3339, or a YYYY-MM-DD date taken as midnight in the service timezone.
// status narrows it further.
func (s *Service) ListProviderBookings(ctx context.Context, providerID, kind, from, to string, status *string) ([]*api.BookingResponse, error) {
	const op = "service.ListProviderBookings"

	lower, err := s.parseBound(from)
	if err != nil {
		return nil, fmt.Errorf("%s: from: %w", op, err)
	}
	upper, err := s.parseBound(to)
	if err != nil {
		return nil, fmt.Errorf("%s: to: %w", op, err)
	}

	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	filter := models.BookingFilter{ProviderID: &provider.ID, From: lower, To: upper}

	if status != nil {
		st := models.BookingStatus(*status)
		if st != models.BookingScheduled && !st.Terminal() {
			return nil, fmt.Errorf("%s: unknown status %q: %w", op, *status, response.ErrBadRequest)
		}
		filter.Status = &st
	}

	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, s.toBookingResponse(b))
	}

	return result, nil
}

func (s *Service) parseBound(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(scheduling.DateLayout, raw, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD: %w", raw, response.ErrBadRequest)
	}
	return &t, nil
}

// ListProviderPatients summarizes every patient who ever booked the
// provider, most recent visit first.
func (s *Service) ListProviderPatients(ctx context.Context, providerID, kind string) ([]*api.PatientSummary, error) {
	const op = "service.ListProviderPatients"

	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{ProviderID: &provider.ID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byPatient := make(map[string]*api.PatientSummary)
	for _, b := range bookings {
		sum, ok := byPatient[b.PatientID]
		if !ok {
			sum = &api.PatientSummary{PatientID: b.PatientID, PatientName: b.PatientName}
			byPatient[b.PatientID] = sum
		}

		sum.TotalAppointments++
		if b.StartTime.After(sum.LastVisit) {
			sum.LastVisit = b.StartTime.In(s.loc)
			if b.PatientName != "" {
				sum.PatientName = b.PatientName
			}
		}
	}

	result := make([]*api.PatientSummary, 0, len(byPatient))
	for _, sum := range byPatient {
		result = append(result, sum)
	}

	slices.SortFunc(result, func(a, b *api.PatientSummary) int {
		if c := b.LastVisit.Compare(a.LastVisit); c != 0 {
			return c
		}
		return cmp.Compare(a.PatientID, b.PatientID)
	})

	return result, nil
}

// Schedules

func (s *Service) GetSchedule(ctx context.Context, providerID, kind string) (*api.Schedule, error) {
	const op = "service.GetSchedule"

	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toScheduleDTO(provider.Schedule), nil
}

// UpdateSchedule validates and stores a new weekly schedule. Existing
// bookings are kept even when they fall outside the new hours.
func (s *Service) UpdateSchedule(ctx context.Context, providerID, kind string, req *api.Schedule) (*api.Schedule, error) {
	const op = "service.UpdateSchedule"

	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	schedule := models.Schedule{
		WorkDays:            req.WorkDays,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
		DaysOff:             req.DaysOff,
	}

	if err := scheduling.Validate(schedule); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, response.ErrInvalidSchedule, err)
	}

	err = s.withProviderLock(ctx, provider.ID, func() error {
		return s.store.UpdateSchedule(ctx, provider.ID, schedule)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toScheduleDTO(schedule), nil
}

// Notifications

func (s *Service) ListNotifications(ctx context.Context, userID string) ([]*api.Notification, error) {
	const op = "service.ListNotifications"

	notifications, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.Notification, 0, len(notifications))
	for _, n := range notifications {
		result = append(result, &api.Notification{
			ID:        n.ID,
			BookingID: n.BookingID,
			Type:      string(n.Type),
			Message:   n.Message,
			FiredAt:   n.FiredAt.In(s.loc),
			Read:      n.Read,
		})
	}

	return result, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "service.MarkNotificationRead"

	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) toBookingResponse(b *models.Booking) *api.BookingResponse {
	resp := &api.BookingResponse{
		ID:              b.ID,
		ProviderID:      b.ProviderID,
		ProviderKind:    string(b.ProviderKind),
		PatientID:       b.PatientID,
		PatientName:     b.PatientName,
		StartTime:       b.StartTime.In(s.loc),
		EndTime:         b.EndTime.In(s.loc),
		DurationMinutes: int(b.EndTime.Sub(b.StartTime) / time.Minute),
		Status:          string(b.Status),
		PatientNotes:    b.PatientNotes,
		ProviderNotes:   b.ProviderNotes,
		CanceledBy:      b.CanceledBy,
		CreatedAt:       b.CreatedAt.In(s.loc),
	}

	switch p := b.Payload.(type) {
	case models.BeautyPayload:
		resp.Payload = &api.BookingPayload{
			ServiceName:  p.ServiceName,
			ServicePrice: p.ServicePrice,
			OfferID:      p.OfferID,
			OfferName:    p.OfferName,
		}
	case models.LabPayload:
		resp.Payload = &api.BookingPayload{
			TestName:  p.TestName,
			TestPrice: p.TestPrice,
			OfferID:   p.OfferID,
			OfferName: p.OfferName,
			ResultURL: p.ResultURL,
		}
	}

	return resp
}

func toScheduleDTO(s models.Schedule) *api.Schedule {
	return &api.Schedule{
		WorkDays:            s.WorkDays,
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		SlotDurationMinutes: s.SlotDurationMinutes,
		DaysOff:             s.DaysOff,
	}
}
