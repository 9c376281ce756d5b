package update

import (
	"context"
	"log/slog"
	"net/http"

	"booking-service/api"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type OfferUpdater interface {
	UpdateOffers(ctx context.Context, providerID, kind string, offers []api.Offer) (*api.Catalog, error)
}

type Request struct {
	Offers []api.Offer `json:"offers"`
}

type Response struct {
	response.Response
	Catalog api.Catalog `json:"catalog"`
}

func New(log *slog.Logger, updater OfferUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.offers.update.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Int("offers", len(req.Offers)))

		catalog, err := updater.UpdateOffers(r.Context(), providerID, chi.URLParam(r, "kind"), req.Offers)
		if err != nil {
			log.Error("Failed to update offers", slog.String("provider_id", providerID), sl.Err(err))
			status, resp := response.FromError(err, "failed to update offers")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Offers updated", slog.String("provider_id", providerID))

		render.JSON(w, r, Response{
			Catalog: *catalog,
		})
	}
}
