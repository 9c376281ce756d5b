package models

import "fmt"

// Payload is the kind-specific part of a booking. The set of
// implementations is closed: DoctorPayload, BeautyPayload, LabPayload.
type Payload interface {
	Kind() ProviderKind
	isPayload()
}

type DoctorPayload struct{}

type BeautyPayload struct {
	ServiceName  string
	ServicePrice float64
	OfferID      string
	OfferName    string
}

type LabPayload struct {
	TestName  string
	TestPrice float64
	OfferID   string
	OfferName string
	ResultURL string
}

func (DoctorPayload) Kind() ProviderKind { return KindDoctor }
func (BeautyPayload) Kind() ProviderKind { return KindBeautyCenter }
func (LabPayload) Kind() ProviderKind    { return KindLaboratory }

func (DoctorPayload) isPayload() {}
func (BeautyPayload) isPayload() {}
func (LabPayload) isPayload()    {}

// PayloadFields is the flat storage shape of a Payload.
type PayloadFields struct {
	ItemName  string  `json:"itemName,omitempty"`
	ItemPrice float64 `json:"itemPrice,omitempty"`
	OfferID   string  `json:"offerId,omitempty"`
	OfferName string  `json:"offerName,omitempty"`
	ResultURL string  `json:"resultUrl,omitempty"`
}

func FlattenPayload(p Payload) PayloadFields {
	switch v := p.(type) {
	case BeautyPayload:
		return PayloadFields{
			ItemName:  v.ServiceName,
			ItemPrice: v.ServicePrice,
			OfferID:   v.OfferID,
			OfferName: v.OfferName,
		}
	case LabPayload:
		return PayloadFields{
			ItemName:  v.TestName,
			ItemPrice: v.TestPrice,
			OfferID:   v.OfferID,
			OfferName: v.OfferName,
			ResultURL: v.ResultURL,
		}
	}
	return PayloadFields{}
}

func BuildPayload(kind ProviderKind, f PayloadFields) (Payload, error) {
	switch kind {
	case KindDoctor:
		return DoctorPayload{}, nil
	case KindBeautyCenter:
		return BeautyPayload{
			ServiceName:  f.ItemName,
			ServicePrice: f.ItemPrice,
			OfferID:      f.OfferID,
			OfferName:    f.OfferName,
		}, nil
	case KindLaboratory:
		return LabPayload{
			TestName:  f.ItemName,
			TestPrice: f.ItemPrice,
			OfferID:   f.OfferID,
			OfferName: f.OfferName,
			ResultURL: f.ResultURL,
		}, nil
	}
	return nil, fmt.Errorf("models.BuildPayload: unknown provider kind %q", kind)
}
