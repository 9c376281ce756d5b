package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeExclusionViolation  = "23P01"
)

var bookingColumns = []any{
	"booking_id", "provider_id", "provider_kind", "patient_id", "patient_name",
	"start_time", "end_time", "status", "patient_notes", "provider_notes",
	"canceled_by", "item_name", "item_price", "offer_id", "offer_name",
	"result_url", "created_at",
}

const bookingSelect = `booking_id, provider_id, provider_kind, patient_id, patient_name,
	start_time, end_time, status, patient_notes, provider_notes,
	canceled_by, item_name, item_price, offer_id, offer_name,
	result_url, created_at`

type Storage struct {
	db   *sql.DB
	goqu *goqu.Database
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newStorage(db), nil
}

func newStorage(db *sql.DB) *Storage {
	return &Storage{db: db, goqu: goqu.New("postgres", db)}
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Migrate applies the bundled schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// #### providers ####

// SeedProvider inserts p with its catalog and offers unless a provider with
// the same id already exists. Existing rows are never touched, so edits made
// through the API survive a restart. It reports whether p was inserted.
func (s *Storage) SeedProvider(ctx context.Context, p *models.Provider) (created bool, err error) {
	const op = "storage.postgres.SeedProvider"

	if !p.Kind.Valid() {
		return false, fmt.Errorf("%s: unknown kind %q", op, p.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO providers
		(provider_id, kind, name, work_days, start_time, end_time, slot_duration_minutes, days_off)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_id) DO NOTHING`,
		p.ID, string(p.Kind), p.Name,
		pq.Array(toInt64s(p.Schedule.WorkDays)),
		p.Schedule.StartTime, p.Schedule.EndTime, p.Schedule.SlotDurationMinutes,
		pq.Array(nonNil(p.Schedule.DaysOff)),
	)
	if err != nil {
		return false, fmt.Errorf("%s: provider: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if n > 0 {
		if err = insertCatalog(ctx, tx, p.ID, p.Catalog); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if err = insertOffers(ctx, tx, p.ID, p.Offers); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}

	return n > 0, nil
}

// ReplaceCatalog swaps the provider's whole catalog for items.
func (s *Storage) ReplaceCatalog(ctx context.Context, providerID string, items []models.CatalogItem) error {
	const op = "storage.postgres.ReplaceCatalog"

	err := s.withProviderTx(ctx, providerID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items WHERE provider_id=$1`, providerID); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
		return insertCatalog(ctx, tx, providerID, items)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ReplaceOffers swaps the provider's whole offer list for offers.
func (s *Storage) ReplaceOffers(ctx context.Context, providerID string, offers []models.Offer) error {
	const op = "storage.postgres.ReplaceOffers"

	err := s.withProviderTx(ctx, providerID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE provider_id=$1`, providerID); err != nil {
			return fmt.Errorf("clear offers: %w", err)
		}
		return insertOffers(ctx, tx, providerID, offers)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// withProviderTx runs fn in a transaction holding the provider row lock.
func (s *Storage) withProviderTx(ctx context.Context, providerID string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM providers WHERE provider_id=$1 FOR UPDATE`, providerID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.ErrProviderNotFound
		}
		return err
	}

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func insertCatalog(ctx context.Context, tx *sql.Tx, providerID string, items []models.CatalogItem) error {
	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_items (provider_id, item_id, name, price, duration_minutes) VALUES ($1, $2, $3, $4, $5)`,
			providerID, it.ID, it.Name, it.Price, it.DurationMinutes,
		)
		if err != nil {
			return fmt.Errorf("catalog item %s: %w", it.ID, err)
		}
	}
	return nil
}

func insertOffers(ctx context.Context, tx *sql.Tx, providerID string, offers []models.Offer) error {
	for _, o := range offers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO offers (provider_id, offer_id, name, price, duration_minutes, item_ids) VALUES ($1, $2, $3, $4, $5, $6)`,
			providerID, o.ID, o.Name, o.Price, o.DurationMinutes, pq.Array(nonNil(o.ItemIDs)),
		)
		if err != nil {
			return fmt.Errorf("offer %s: %w", o.ID, err)
		}
	}
	return nil
}

func (s *Storage) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	const op = "storage.postgres.GetProvider"

	var p models.Provider
	var kind string
	var workDays []int64
	var daysOff []string

	err := s.db.QueryRowContext(ctx, `
		SELECT provider_id, kind, name, work_days, start_time, end_time, slot_duration_minutes, days_off
		FROM providers WHERE provider_id=$1`, id,
	).Scan(&p.ID, &kind, &p.Name, pq.Array(&workDays), &p.Schedule.StartTime, &p.Schedule.EndTime,
		&p.Schedule.SlotDurationMinutes, pq.Array(&daysOff))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.Kind = models.ProviderKind(kind)
	p.Schedule.WorkDays = toInts(workDays)
	p.Schedule.DaysOff = daysOff

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, name, price, duration_minutes FROM catalog_items WHERE provider_id=$1 ORDER BY item_id`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: catalog: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%s: catalog: %w", op, err)
		}
		p.Catalog = append(p.Catalog, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: catalog: %w", op, err)
	}

	offerRows, err := s.db.QueryContext(ctx,
		`SELECT offer_id, name, price, duration_minutes, item_ids FROM offers WHERE provider_id=$1 ORDER BY offer_id`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: offers: %w", op, err)
	}
	defer offerRows.Close()

	for offerRows.Next() {
		var o models.Offer
		if err := offerRows.Scan(&o.ID, &o.Name, &o.Price, &o.DurationMinutes, pq.Array(&o.ItemIDs)); err != nil {
			return nil, fmt.Errorf("%s: offers: %w", op, err)
		}
		p.Offers = append(p.Offers, o)
	}
	if err := offerRows.Err(); err != nil {
		return nil, fmt.Errorf("%s: offers: %w", op, err)
	}

	return &p, nil
}

func (s *Storage) UpdateSchedule(ctx context.Context, providerID string, schedule models.Schedule) error {
	const op = "storage.postgres.UpdateSchedule"

	res, err := s.db.ExecContext(ctx, `
		UPDATE providers
		SET work_days=$1, start_time=$2, end_time=$3, slot_duration_minutes=$4, days_off=$5
		WHERE provider_id=$6`,
		pq.Array(toInt64s(schedule.WorkDays)), schedule.StartTime, schedule.EndTime,
		schedule.SlotDurationMinutes, pq.Array(nonNil(schedule.DaysOff)), providerID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
	}

	return nil
}

// #### bookings ####

// CreateBooking inserts b. The bookings_no_overlap exclusion constraint
// rejects a scheduled booking overlapping another scheduled booking of the
// same provider, whatever the caller checked before.
func (s *Storage) CreateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.CreateBooking"

	f := models.FlattenPayload(b.Payload)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings
		(booking_id, provider_id, provider_kind, patient_id, patient_name,
		start_time, end_time, status, patient_notes, provider_notes,
		canceled_by, item_name, item_price, offer_id, offer_name,
		result_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		b.ID, b.ProviderID, string(b.ProviderKind), b.PatientID, b.PatientName,
		b.StartTime, b.EndTime, string(b.Status), b.PatientNotes, b.ProviderNotes,
		b.CanceledBy, f.ItemName, f.ItemPrice, f.OfferID, f.OfferName,
		f.ResultURL, b.CreatedAt,
	)
	if err != nil {
		switch pqCode(err) {
		case codeExclusionViolation:
			return fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		case codeUniqueViolation:
			return fmt.Errorf("%s: duplicate id %s: %w", op, b.ID, response.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, response.ErrProviderNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*models.Booking, error) {
	var b models.Booking
	var kind, status string
	var f models.PayloadFields

	err := row.Scan(
		&b.ID, &b.ProviderID, &kind, &b.PatientID, &b.PatientName,
		&b.StartTime, &b.EndTime, &status, &b.PatientNotes, &b.ProviderNotes,
		&b.CanceledBy, &f.ItemName, &f.ItemPrice, &f.OfferID, &f.OfferName,
		&f.ResultURL, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ProviderKind = models.ProviderKind(kind)
	b.Status = models.BookingStatus(status)

	b.Payload, err = models.BuildPayload(b.ProviderKind, f)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", b.ID, err)
	}

	return &b, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingSelect+` FROM bookings WHERE booking_id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// ListBookings returns bookings matching every set field of filter, ordered
// by start time.
func (s *Storage) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	ds := s.goqu.From("bookings").Select(bookingColumns...).Prepared(true)

	if filter.ProviderID != nil {
		ds = ds.Where(goqu.C("provider_id").Eq(*filter.ProviderID))
	}
	if filter.PatientID != nil {
		ds = ds.Where(goqu.C("patient_id").Eq(*filter.PatientID))
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.C("status").Eq(string(*filter.Status)))
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("end_time").Gt(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("start_time").Lt(*filter.To))
	}

	query, args, err := ds.Order(goqu.C("start_time").Asc(), goqu.C("booking_id").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateBookingStatus moves a scheduled booking to status. The transition
// is conditional on the row still being scheduled, so two racing callers
// cannot both succeed.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus, canceledBy string) (*models.Booking, error) {
	const op = "storage.postgres.UpdateBookingStatus"

	b, err := scanBooking(s.db.QueryRowContext(ctx, `
		UPDATE bookings SET status=$1, canceled_by=$2
		WHERE booking_id=$3 AND status='scheduled'
		RETURNING `+bookingSelect,
		string(status), canceledBy, id,
	))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM bookings WHERE booking_id=$1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return nil, fmt.Errorf("%s: booking is %s: %w", op, current, response.ErrAlreadyTerminal)
}

func (s *Storage) UpdateBookingNotes(ctx context.Context, id string, role models.AuthorRole, notes string) (*models.Booking, error) {
	const op = "storage.postgres.UpdateBookingNotes"

	var column string
	switch role {
	case models.RoleProvider:
		column = "provider_notes"
	case models.RolePatient:
		column = "patient_notes"
	default:
		return nil, fmt.Errorf("%s: %q: %w", op, role, response.ErrInvalidAuthorRole)
	}

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`UPDATE bookings SET `+column+`=$1 WHERE booking_id=$2 RETURNING `+bookingSelect,
		notes, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// #### notifications ####

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	const op = "storage.postgres.CreateNotification"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
		(notification_id, recipient_user_id, booking_id, type, message, fired_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.RecipientUserID, n.BookingID, string(n.Type), n.Message, n.FiredAt, n.Read,
	)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return fmt.Errorf("%s: %w", op, response.ErrAlreadyNotified)
		}
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	const op = "storage.postgres.ListNotifications"

	rows, err := s.db.QueryContext(ctx, `
		SELECT notification_id, recipient_user_id, booking_id, type, message, fired_at, is_read
		FROM notifications
		WHERE recipient_user_id=$1
		ORDER BY fired_at DESC, notification_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.RecipientUserID, &n.BookingID, &typ, &n.Message, &n.FiredAt, &n.Read); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		n.Type = models.NotificationType(typ)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "storage.postgres.MarkNotificationRead"

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE notification_id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: notification: %w", op, response.ErrNotFound)
	}

	return nil
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
