package models

import "time"

type ProviderKind string

const (
	KindDoctor       ProviderKind = "doctor"
	KindBeautyCenter ProviderKind = "beauty_center"
	KindLaboratory   ProviderKind = "laboratory"
)

func (k ProviderKind) Valid() bool {
	switch k {
	case KindDoctor, KindBeautyCenter, KindLaboratory:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCompleted BookingStatus = "completed"
	BookingCanceled  BookingStatus = "canceled"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCanceled
}

type AuthorRole string

const (
	RoleProvider AuthorRole = "provider"
	RolePatient  AuthorRole = "patient"
)

type NotificationType string

const (
	NotificationReminder     NotificationType = "reminder"
	NotificationCancellation NotificationType = "cancellation"
	NotificationInfo         NotificationType = "info"
)

// Schedule is a provider's recurring weekly availability. StartTime and
// EndTime are local wall-clock "15:04" values applied to every work day.
type Schedule struct {
	WorkDays            []int    `yaml:"work_days" json:"workDays"`
	StartTime           string   `yaml:"start_time" json:"startTime"`
	EndTime             string   `yaml:"end_time" json:"endTime"`
	SlotDurationMinutes int      `yaml:"slot_duration_minutes" json:"slotDurationMinutes"`
	DaysOff             []string `yaml:"days_off" json:"daysOff"`
}

// CatalogItem is a bookable beauty service or laboratory test.
type CatalogItem struct {
	ID              string  `yaml:"id" json:"id"`
	Name            string  `yaml:"name" json:"name"`
	Price           float64 `yaml:"price" json:"price"`
	DurationMinutes int     `yaml:"duration_minutes" json:"durationMinutes"`
}

// Offer is a bundled package of catalog items sold as one booking.
type Offer struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Price           float64  `yaml:"price" json:"price"`
	DurationMinutes int      `yaml:"duration_minutes" json:"durationMinutes"`
	ItemIDs         []string `yaml:"item_ids" json:"itemIds"`
}

type Provider struct {
	ID       string        `yaml:"id" json:"id"`
	Kind     ProviderKind  `yaml:"kind" json:"kind"`
	Name     string        `yaml:"name" json:"name"`
	Schedule Schedule      `yaml:"schedule" json:"schedule"`
	Catalog  []CatalogItem `yaml:"catalog" json:"catalog"`
	Offers   []Offer       `yaml:"offers" json:"offers"`
}

func (p *Provider) CatalogItem(id string) (CatalogItem, bool) {
	for _, it := range p.Catalog {
		if it.ID == id {
			return it, true
		}
	}
	return CatalogItem{}, false
}

func (p *Provider) Offer(id string) (Offer, bool) {
	for _, o := range p.Offers {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// Booking is the envelope shared by every provider kind. Kind-specific
// fields live in Payload.
type Booking struct {
	ID            string
	ProviderID    string
	ProviderKind  ProviderKind
	PatientID     string
	PatientName   string
	StartTime     time.Time
	EndTime       time.Time
	Status        BookingStatus
	PatientNotes  string
	ProviderNotes string
	CanceledBy    string
	CreatedAt     time.Time
	Payload       Payload
}

type BookingFilter struct {
	ProviderID *string
	PatientID  *string
	Status     *BookingStatus
	// From and To select bookings whose interval overlaps [From, To).
	From *time.Time
	To   *time.Time
}

type Notification struct {
	ID              string           `json:"id"`
	RecipientUserID string           `json:"recipientUserId"`
	BookingID       string           `json:"bookingId"`
	Type            NotificationType `json:"type"`
	Message         string           `json:"message"`
	FiredAt         time.Time        `json:"firedAt"`
	Read            bool             `json:"read"`
}
