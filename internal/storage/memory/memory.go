// Package memory is a single-process Store. Every write can be persisted to
// a JSON snapshot file.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/response"
)

type Storage struct {
	mu            sync.RWMutex
	providers     map[string]*models.Provider
	bookings      map[string]*models.Booking
	notifications map[string]*models.Notification
	snapshotPath  string
}

type snapshot struct {
	Providers     []*models.Provider     `json:"providers"`
	Bookings      []bookingRecord        `json:"bookings"`
	Notifications []*models.Notification `json:"notifications"`
}

type bookingRecord struct {
	ID            string               `json:"id"`
	ProviderID    string               `json:"providerId"`
	ProviderKind  models.ProviderKind  `json:"providerKind"`
	PatientID     string               `json:"patientId"`
	PatientName   string               `json:"patientName"`
	StartTime     time.Time            `json:"startTime"`
	EndTime       time.Time            `json:"endTime"`
	Status        models.BookingStatus `json:"status"`
	PatientNotes  string               `json:"patientNotes,omitempty"`
	ProviderNotes string               `json:"providerNotes,omitempty"`
	CanceledBy    string               `json:"canceledBy,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	Payload       models.PayloadFields `json:"payload"`
}

// New builds a store holding providers and, when snapshotPath is set,
// whatever the snapshot file already contains. A missing snapshot file is
// not an error; it is created on the first write.
func New(snapshotPath string, providers []*models.Provider) (*Storage, error) {
	const op = "storage.memory.New"

	s := &Storage{
		providers:     make(map[string]*models.Provider),
		bookings:      make(map[string]*models.Booking),
		notifications: make(map[string]*models.Notification),
		snapshotPath:  snapshotPath,
	}

	for _, p := range providers {
		cp := *p
		s.providers[p.ID] = &cp
	}

	if snapshotPath != "" {
		if err := s.loadSnapshot(snapshotPath); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return s, nil
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) loadSnapshot(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	for _, p := range snap.Providers {
		s.providers[p.ID] = p
	}

	for _, r := range snap.Bookings {
		payload, err := models.BuildPayload(r.ProviderKind, r.Payload)
		if err != nil {
			return fmt.Errorf("booking %s: %w", r.ID, err)
		}
		s.bookings[r.ID] = &models.Booking{
			ID:            r.ID,
			ProviderID:    r.ProviderID,
			ProviderKind:  r.ProviderKind,
			PatientID:     r.PatientID,
			PatientName:   r.PatientName,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			Status:        r.Status,
			PatientNotes:  r.PatientNotes,
			ProviderNotes: r.ProviderNotes,
			CanceledBy:    r.CanceledBy,
			CreatedAt:     r.CreatedAt,
			Payload:       payload,
		}
	}

	for _, n := range snap.Notifications {
		s.notifications[n.ID] = n
	}

	return nil
}

// commit writes the snapshot after a mutation. On failure undo restores the
// in-memory state so memory and disk never disagree.
func (s *Storage) commit(undo func()) error {
	if s.snapshotPath == "" {
		return nil
	}

	if err := s.writeSnapshot(); err != nil {
		undo()
		return fmt.Errorf("persist snapshot: %w", err)
	}

	return nil
}

func (s *Storage) writeSnapshot() error {
	snap := snapshot{
		Providers:     make([]*models.Provider, 0, len(s.providers)),
		Bookings:      make([]bookingRecord, 0, len(s.bookings)),
		Notifications: make([]*models.Notification, 0, len(s.notifications)),
	}

	for _, p := range s.providers {
		snap.Providers = append(snap.Providers, p)
	}
	for _, b := range s.bookings {
		snap.Bookings = append(snap.Bookings, bookingRecord{
			ID:            b.ID,
			ProviderID:    b.ProviderID,
			ProviderKind:  b.ProviderKind,
			PatientID:     b.PatientID,
			PatientName:   b.PatientName,
			StartTime:     b.StartTime,
			EndTime:       b.EndTime,
			Status:        b.Status,
			PatientNotes:  b.PatientNotes,
			ProviderNotes: b.ProviderNotes,
			CanceledBy:    b.CanceledBy,
			CreatedAt:     b.CreatedAt,
			Payload:       models.FlattenPayload(b.Payload),
		})
	}
	for _, n := range s.notifications {
		snap.Notifications = append(snap.Notifications, n)
	}

	slices.SortFunc(snap.Providers, func(a, b *models.Provider) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Bookings, func(a, b bookingRecord) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Notifications, func(a, b *models.Notification) int { return cmp.Compare(a.ID, b.ID) })

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		return err
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, s.snapshotPath)
}

// Providers

func (s *Storage) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	const op = "storage.memory.GetProvider"

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
	}

	cp := *p
	return &cp, nil
}

func (s *Storage) UpdateSchedule(ctx context.Context, providerID string, schedule models.Schedule) error {
	const op = "storage.memory.UpdateSchedule"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[providerID]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
	}

	prev := p.Schedule
	p.Schedule = schedule

	if err := s.commit(func() { p.Schedule = prev }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ReplaceCatalog(ctx context.Context, providerID string, items []models.CatalogItem) error {
	const op = "storage.memory.ReplaceCatalog"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[providerID]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
	}

	prev := p.Catalog
	p.Catalog = slices.Clone(items)

	if err := s.commit(func() { p.Catalog = prev }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ReplaceOffers(ctx context.Context, providerID string, offers []models.Offer) error {
	const op = "storage.memory.ReplaceOffers"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[providerID]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
	}

	prev := p.Offers
	p.Offers = slices.Clone(offers)

	if err := s.commit(func() { p.Offers = prev }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Bookings

// CreateBooking inserts b. A scheduled booking overlapping another
// scheduled booking of the same provider is rejected with
// ErrSlotNotAvailable regardless of what the caller checked before.
func (s *Storage) CreateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.memory.CreateBooking"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("%s: duplicate id %s: %w", op, b.ID, response.ErrConflict)
	}

	if b.Status == models.BookingScheduled {
		for _, other := range s.bookings {
			if other.ProviderID != b.ProviderID || other.Status != models.BookingScheduled {
				continue
			}
			if b.StartTime.Before(other.EndTime) && b.EndTime.After(other.StartTime) {
				return fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
			}
		}
	}

	cp := *b
	s.bookings[b.ID] = &cp

	if err := s.commit(func() { delete(s.bookings, b.ID) }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.memory.GetBooking"

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
	}

	cp := *b
	return &cp, nil
}

// ListBookings returns matching bookings ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Booking, 0)
	for _, b := range s.bookings {
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		if f.PatientID != nil && b.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.From != nil && !b.EndTime.After(*f.From) {
			continue
		}
		if f.To != nil && !b.StartTime.Before(*f.To) {
			continue
		}

		cp := *b
		result = append(result, &cp)
	}

	slices.SortFunc(result, func(a, b *models.Booking) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

// UpdateBookingStatus moves a scheduled booking to status. Bookings that
// are already completed or canceled are left unchanged.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus, canceledBy string) (*models.Booking, error) {
	const op = "storage.memory.UpdateBookingStatus"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
	}
	if b.Status != models.BookingScheduled {
		return nil, fmt.Errorf("%s: %w", op, response.ErrAlreadyTerminal)
	}

	prev := *b
	b.Status = status
	b.CanceledBy = canceledBy

	if err := s.commit(func() { *b = prev }); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cp := *b
	return &cp, nil
}

func (s *Storage) UpdateBookingNotes(ctx context.Context, id string, role models.AuthorRole, notes string) (*models.Booking, error) {
	const op = "storage.memory.UpdateBookingNotes"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
	}

	prev := *b
	switch role {
	case models.RoleProvider:
		b.ProviderNotes = notes
	case models.RolePatient:
		b.PatientNotes = notes
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidAuthorRole)
	}

	if err := s.commit(func() { *b = prev }); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cp := *b
	return &cp, nil
}

// Notifications

// CreateNotification stores n. At most one notification of each type is
// kept per booking; a second one fails with ErrAlreadyNotified.
func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	const op = "storage.memory.CreateNotification"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.notifications {
		if other.BookingID == n.BookingID && other.Type == n.Type {
			return fmt.Errorf("%s: %w", op, response.ErrAlreadyNotified)
		}
	}

	cp := *n
	s.notifications[n.ID] = &cp

	if err := s.commit(func() { delete(s.notifications, n.ID) }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Storage) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientUserID != userID {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}

	slices.SortFunc(result, func(a, b *models.Notification) int {
		if c := b.FiredAt.Compare(a.FiredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "storage.memory.MarkNotificationRead"

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	prev := n.Read
	n.Read = true

	if err := s.commit(func() { n.Read = prev }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
