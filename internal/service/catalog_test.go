package service

import (
	"context"
	"testing"

	"booking-service/api"
	"booking-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labTestRequest(itemID string) *api.BookingRequest {
	return &api.BookingRequest{
		ProviderID:   "l-1",
		ProviderKind: "laboratory",
		PatientID:    "p-1",
		PatientName:  "Omar",
		StartTime:    at(9, 0),
		Payload:      api.PayloadRequest{ItemID: itemID},
	}
}

func TestUpdateCatalog_NewPricesApplyToNewBookings(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	before, err := f.svc.CreateBooking(ctx, labTestRequest("t-cbc"))
	require.NoError(t, err)

	catalog, err := f.svc.UpdateCatalog(ctx, "l-1", "laboratory", []api.CatalogItem{
		{ID: "t-cbc", Name: "CBC", Price: 18000, DurationMinutes: 15},
		{ID: "t-lipid", Name: "Lipid profile", Price: 25000, DurationMinutes: 30},
	})
	require.NoError(t, err)
	assert.Len(t, catalog.Items, 2)
	assert.Empty(t, catalog.Offers)

	lipid := labTestRequest("t-lipid")
	lipid.StartTime = at(10, 0)
	b, err := f.svc.CreateBooking(ctx, lipid)
	require.NoError(t, err)
	assert.Equal(t, 30, b.DurationMinutes)
	assert.Equal(t, "Lipid profile", b.Payload.TestName)
	assert.Equal(t, 25000.0, b.Payload.TestPrice)

	kept, err := f.svc.GetBooking(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, kept.Payload.TestPrice, "existing bookings keep their price")

	got, err := f.svc.GetCatalog(ctx, "l-1", "laboratory")
	require.NoError(t, err)
	assert.Equal(t, catalog.Items, got.Items)
}

func TestUpdateCatalog_Rejections(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		provider string
		kind     string
		items    []api.CatalogItem
		want     error
	}{
		{
			name: "doctor", provider: "d-1", kind: "doctor",
			items: []api.CatalogItem{{ID: "x", Name: "X", DurationMinutes: 30}},
			want:  response.ErrBadRequest,
		},
		{
			name: "kind mismatch", provider: "l-1", kind: "beauty_center",
			want: response.ErrProviderNotFound,
		},
		{
			name: "zero duration", provider: "l-1", kind: "laboratory",
			items: []api.CatalogItem{{ID: "t-cbc", Name: "CBC", Price: 1, DurationMinutes: 0}},
			want:  response.ErrInvalidDuration,
		},
		{
			name: "duplicate id", provider: "l-1", kind: "laboratory",
			items: []api.CatalogItem{
				{ID: "t-cbc", Name: "CBC", DurationMinutes: 15},
				{ID: "t-cbc", Name: "CBC again", DurationMinutes: 15},
			},
			want: response.ErrBadRequest,
		},
		{
			name: "drops an item bundled in an offer", provider: "b-1", kind: "beauty_center",
			items: []api.CatalogItem{{ID: "s-nails", Name: "Manicure", Price: 5000, DurationMinutes: 30}},
			want:  response.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateCatalog(ctx, tt.provider, tt.kind, tt.items)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	p, err := f.store.GetProvider(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "s-hair", p.Catalog[0].ID, "rejected update leaves the catalog alone")
}

func TestUpdateOffers(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.UpdateOffers(ctx, "b-1", "beauty_center", []api.Offer{
		{ID: "o-x", Name: "Mystery", Price: 100, DurationMinutes: 60, ItemIDs: []string{"s-unknown"}},
	})
	assert.ErrorIs(t, err, response.ErrBadRequest)

	catalog, err := f.svc.UpdateOffers(ctx, "b-1", "beauty_center", []api.Offer{
		{ID: "o-quick", Name: "Quick trim", Price: 6000, DurationMinutes: 30, ItemIDs: []string{"s-hair"}},
	})
	require.NoError(t, err)
	require.Len(t, catalog.Offers, 1)
	assert.Len(t, catalog.Items, 1)

	b, err := f.svc.CreateBooking(ctx, &api.BookingRequest{
		ProviderID:   "b-1",
		ProviderKind: "beauty_center",
		PatientID:    "p-1",
		StartTime:    at(12, 0),
		Payload:      api.PayloadRequest{ItemID: "s-hair", OfferID: "o-quick"},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, b.DurationMinutes)
	assert.Equal(t, 6000.0, b.Payload.ServicePrice)

	_, err = f.svc.CreateBooking(ctx, &api.BookingRequest{
		ProviderID:   "b-1",
		ProviderKind: "beauty_center",
		PatientID:    "p-1",
		StartTime:    at(15, 0),
		Payload:      api.PayloadRequest{OfferID: "o-bridal"},
	})
	assert.ErrorIs(t, err, response.ErrBadRequest, "replaced offer is gone")

	// the bridal offer no longer bundles s-hair, so the item can be dropped
	_, err = f.svc.UpdateOffers(ctx, "b-1", "beauty_center", nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateCatalog(ctx, "b-1", "beauty_center", []api.CatalogItem{
		{ID: "s-nails", Name: "Manicure", Price: 5000, DurationMinutes: 30},
	})
	assert.NoError(t, err)
}
