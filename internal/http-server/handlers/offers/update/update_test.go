package update

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"booking-service/api"
	"booking-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) UpdateOffers(ctx context.Context, providerID, kind string, offers []api.Offer) (*api.Catalog, error) {
	args := m.Called(ctx, providerID, kind, offers)
	if c, ok := args.Get(0).(*api.Catalog); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func serve(m *mockUpdater, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Put("/providers/{kind}/{id}/offers", New(slog.New(slog.DiscardHandler), m))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/providers/beauty_center/bc-1/offers", strings.NewReader(body)))
	return rec
}

func TestUpdateOffers(t *testing.T) {
	m := new(mockUpdater)
	bridal := api.Offer{ID: "off-bridal", Name: "Bridal", Price: 150000, DurationMinutes: 180, ItemIDs: []string{"svc-haircut"}}
	m.On("UpdateOffers", mock.Anything, "bc-1", "beauty_center", []api.Offer{bridal}).
		Return(&api.Catalog{Items: []api.CatalogItem{}, Offers: []api.Offer{bridal}}, nil)

	rec := serve(m, `{"offers":[{"id":"off-bridal","name":"Bridal","price":150000,"durationMinutes":180,"itemIds":["svc-haircut"]}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"itemIds":["svc-haircut"]`)
	m.AssertExpectations(t)
}

func TestUpdateOffers_UnknownItem(t *testing.T) {
	m := new(mockUpdater)
	m.On("UpdateOffers", mock.Anything, "bc-1", "beauty_center", mock.Anything).Return(nil, response.ErrBadRequest)

	rec := serve(m, `{"offers":[{"id":"o","name":"O","price":1,"durationMinutes":30,"itemIds":["ghost"]}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(response.INVALID_ARGUMENT))
}

func TestUpdateOffers_BadBody(t *testing.T) {
	m := new(mockUpdater)

	rec := serve(m, `{"offers":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "UpdateOffers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
