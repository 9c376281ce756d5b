package bookings

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

type CalendarLister interface {
	ListProviderBookings(ctx context.Context, providerID, kind, from, to string, status *string) ([]*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Bookings []*api.BookingResponse `json:"bookings"`
}

func New(log *slog.Logger, lister CalendarLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.providers.bookings.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		kind := chi.URLParam(r, "kind")
		providerID := chi.URLParam(r, "id")
		query := r.URL.Query()

		var status *string
		if s := query.Get("status"); s != "" {
			status = &s
		}

		bookings, err := lister.ListProviderBookings(r.Context(), providerID, kind, query.Get("from"), query.Get("to"), status)
		if err != nil {
			log.Error("Failed to list provider bookings", sl.Err(err))
			status, resp := response.FromError(err, "failed to list bookings")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Provider bookings retrieved", slog.String("provider_id", providerID), slog.Int("count", len(bookings)))

		render.JSON(w, r, Response{
			Bookings: bookings,
		})
	}
}
