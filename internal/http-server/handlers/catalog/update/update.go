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

type CatalogUpdater interface {
	UpdateCatalog(ctx context.Context, providerID, kind string, items []api.CatalogItem) (*api.Catalog, error)
}

type Request struct {
	Items []api.CatalogItem `json:"items"`
}

type Response struct {
	response.Response
	Catalog api.Catalog `json:"catalog"`
}

func New(log *slog.Logger, updater CatalogUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.catalog.update.New"

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

		log.Info("Request body decoded", slog.Int("items", len(req.Items)))

		catalog, err := updater.UpdateCatalog(r.Context(), providerID, chi.URLParam(r, "kind"), req.Items)
		if err != nil {
			log.Error("Failed to update catalog", slog.String("provider_id", providerID), sl.Err(err))
			status, resp := response.FromError(err, "failed to update catalog")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Catalog updated", slog.String("provider_id", providerID))

		render.JSON(w, r, Response{
			Catalog: *catalog,
		})
	}
}
