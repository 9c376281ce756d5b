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

type ScheduleGetter interface {
	GetSchedule(ctx context.Context, providerID, kind string) (*api.Schedule, error)
}

type Response struct {
	response.Response
	Schedule api.Schedule `json:"schedule"`
}

func New(log *slog.Logger, getter ScheduleGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID := chi.URLParam(r, "id")

		schedule, err := getter.GetSchedule(r.Context(), providerID, chi.URLParam(r, "kind"))
		if err != nil {
			log.Error("Failed to get schedule", slog.String("provider_id", providerID), sl.Err(err))
			status, resp := response.FromError(err, "failed to get schedule")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		responseOK(w, r, schedule)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, schedule *api.Schedule) {
	render.JSON(w, r, Response{
		Schedule: *schedule,
	})
}
