package api

import "time"

// #### bookings ####

type PayloadRequest struct {
	ItemID    string  `json:"itemId,omitempty"`
	ItemName  string  `json:"itemName,omitempty"`
	ItemPrice float64 `json:"itemPrice,omitempty"`
	OfferID   string  `json:"offerId,omitempty"`
	OfferName string  `json:"offerName,omitempty"`
}

type BookingRequest struct {
	ProviderID      string         `json:"providerId"`
	ProviderKind    string         `json:"providerKind"`
	PatientID       string         `json:"patientId"`
	PatientName     string         `json:"patientName"`
	StartTime       time.Time      `json:"startTime"`
	DurationMinutes *int           `json:"durationMinutes,omitempty"`
	Payload         PayloadRequest `json:"payload"`
	PatientNotes    string         `json:"patientNotes,omitempty"`
}

// BookingPayload carries the kind-specific fields. Doctor bookings have none.
type BookingPayload struct {
	ServiceName  string  `json:"serviceName,omitempty"`
	ServicePrice float64 `json:"servicePrice,omitempty"`
	TestName     string  `json:"testName,omitempty"`
	TestPrice    float64 `json:"testPrice,omitempty"`
	OfferID      string  `json:"offerId,omitempty"`
	OfferName    string  `json:"offerName,omitempty"`
	ResultURL    string  `json:"resultUrl,omitempty"`
}

type BookingResponse struct {
	ID              string          `json:"id"`
	ProviderID      string          `json:"providerId"`
	ProviderKind    string          `json:"providerKind"`
	PatientID       string          `json:"patientId"`
	PatientName     string          `json:"patientName"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	DurationMinutes int             `json:"durationMinutes"`
	Status          string          `json:"status"`
	PatientNotes    string          `json:"patientNotes,omitempty"`
	ProviderNotes   string          `json:"providerNotes,omitempty"`
	CanceledBy      string          `json:"canceledBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	Payload         *BookingPayload `json:"payload,omitempty"`
}

type CancelRequest struct {
	CanceledBy string `json:"canceledBy"`
}

type NotesRequest struct {
	Notes      string `json:"notes"`
	AuthorRole string `json:"authorRole"`
}

// #### providers ####

type Schedule struct {
	WorkDays            []int    `json:"workDays"`
	StartTime           string   `json:"startTime"`
	EndTime             string   `json:"endTime"`
	SlotDurationMinutes int      `json:"slotDurationMinutes"`
	DaysOff             []string `json:"daysOff"`
}

type CatalogItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"durationMinutes"`
}

type Offer struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	DurationMinutes int      `json:"durationMinutes"`
	ItemIDs         []string `json:"itemIds"`
}

// Catalog is what a beauty center or laboratory sells: single items and
// bundled offers.
type Catalog struct {
	Items  []CatalogItem `json:"items"`
	Offers []Offer       `json:"offers"`
}

type PatientSummary struct {
	PatientID         string    `json:"id"`
	PatientName       string    `json:"name"`
	TotalAppointments int       `json:"totalAppointments"`
	LastVisit         time.Time `json:"lastVisit"`
}

// #### notifications ####

type Notification struct {
	ID        string    `json:"id"`
	BookingID string    `json:"bookingId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	FiredAt   time.Time `json:"firedAt"`
	Read      bool      `json:"read"`
}
