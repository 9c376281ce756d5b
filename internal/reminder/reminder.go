// Package reminder periodically notifies patients about bookings that start
// soon. Each booking gets at most one reminder; the store enforces it.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type Store interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type Notifier interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

type Config struct {
	Interval  time.Duration
	LookAhead time.Duration
	Location  *time.Location
}

type Scheduler struct {
	log      *slog.Logger
	store    Store
	notifier Notifier
	cfg      Config
	now      func() time.Time
	cron     *cron.Cron
}

func New(log *slog.Logger, store Store, notifier Notifier, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LookAhead <= 0 {
		cfg.LookAhead = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	log = log.With(slog.String("component", "reminder"))
	logger := cronLogger{log: log}

	return &Scheduler{
		log:      log,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start schedules the sweep every Interval. It returns immediately.
func (s *Scheduler) Start() error {
	const op = "reminder.Start"

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), s.run)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cron.Start()
	s.log.Info("reminder scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("look_ahead", s.cfg.LookAhead),
	)

	return nil
}

// Stop prevents new sweeps and waits for a running one, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("reminder sweep failed", sl.Err(err))
		return
	}

	if n > 0 {
		s.log.Info("reminders sent", slog.Int("count", n))
	}
}

// Sweep creates one reminder for every scheduled booking starting within
// [now, now+LookAhead]. It returns how many new reminders were created.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	const op = "reminder.Sweep"

	now := s.now()
	limit := now.Add(s.cfg.LookAhead)
	to := limit.Add(time.Microsecond)
	scheduled := models.BookingScheduled

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{
		Status: &scheduled,
		From:   &now,
		To:     &to,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	created := 0
	for _, b := range bookings {
		if b.StartTime.Before(now) || b.StartTime.After(limit) {
			continue
		}

		n := &models.Notification{
			ID:              uuid.NewString(),
			RecipientUserID: b.PatientID,
			BookingID:       b.ID,
			Type:            models.NotificationReminder,
			Message:         fmt.Sprintf("Reminder: your booking starts at %s", b.StartTime.In(s.cfg.Location).Format("15:04")),
			FiredAt:         now,
		}

		if err := s.store.CreateNotification(ctx, n); err != nil {
			if errors.Is(err, response.ErrAlreadyNotified) {
				continue
			}
			return created, fmt.Errorf("%s: booking %s: %w", op, b.ID, err)
		}
		created++

		if err := s.notifier.Deliver(ctx, n); err != nil {
			s.log.Warn("failed to deliver reminder", slog.String("booking_id", b.ID), sl.Err(err))
		}
	}

	return created, nil
}

// cronLogger routes robfig/cron logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{sl.Err(err)}, keysAndValues...)...)
}
