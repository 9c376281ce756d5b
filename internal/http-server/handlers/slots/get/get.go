package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SlotGetter interface {
	GetAvailableSlots(ctx context.Context, providerID, kind, date string, duration *int) ([]time.Time, error)
}

type Response struct {
	response.Response
	Slots []time.Time `json:"slots"`
}

func New(log *slog.Logger, getter SlotGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		kind := chi.URLParam(r, "kind")
		providerID := chi.URLParam(r, "id")

		date := r.URL.Query().Get("date")
		if date == "" {
			log.Error("date is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "date is required"))
			return
		}

		// absent means the provider's default slot length
		var duration *int
		if r.URL.Query().Has("durationMinutes") {
			raw := r.URL.Query().Get("durationMinutes")
			d, err := strconv.Atoi(raw)
			if err != nil || d <= 0 {
				log.Error("invalid durationMinutes", slog.String("durationMinutes", raw))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.INVALID_DURATION), "durationMinutes must be a positive integer"))
				return
			}
			duration = &d
		}

		slots, err := getter.GetAvailableSlots(r.Context(), providerID, kind, date, duration)
		if err != nil {
			log.Error("Failed to get slots", sl.Err(err))
			status, resp := response.FromError(err, "failed to get slots")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Slots retrieved", slog.String("provider_id", providerID), slog.Int("count", len(slots)))

		render.JSON(w, r, Response{
			Slots: slots,
		})
	}
}
