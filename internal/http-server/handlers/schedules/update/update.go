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

type ScheduleUpdater interface {
	UpdateSchedule(ctx context.Context, providerID, kind string, req *api.Schedule) (*api.Schedule, error)
}

type Request struct {
	api.Schedule
}

type Response struct {
	response.Response
	Schedule api.Schedule `json:"schedule"`
}

func New(log *slog.Logger, updater ScheduleUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.update.New"

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

		log.Info("Request body decoded", slog.Any("request", req))

		schedule, err := updater.UpdateSchedule(r.Context(), providerID, chi.URLParam(r, "kind"), &req.Schedule)
		if err != nil {
			log.Error("Failed to update schedule", slog.String("provider_id", providerID), sl.Err(err))
			status, resp := response.FromError(err, "failed to update schedule")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Schedule updated", slog.String("provider_id", providerID))
		responseOK(w, r, schedule)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, schedule *api.Schedule) {
	render.JSON(w, r, Response{
		Schedule: *schedule,
	})
}
