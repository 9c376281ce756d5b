package get

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

type CatalogGetter interface {
	GetCatalog(ctx context.Context, providerID, kind string) (*api.Catalog, error)
}

type Response struct {
	response.Response
	Catalog api.Catalog `json:"catalog"`
}

func New(log *slog.Logger, getter CatalogGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.catalog.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID := chi.URLParam(r, "id")

		catalog, err := getter.GetCatalog(r.Context(), providerID, chi.URLParam(r, "kind"))
		if err != nil {
			log.Error("Failed to get catalog", slog.String("provider_id", providerID), sl.Err(err))
			status, resp := response.FromError(err, "failed to get catalog")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		render.JSON(w, r, Response{
			Catalog: *catalog,
		})
	}
}
