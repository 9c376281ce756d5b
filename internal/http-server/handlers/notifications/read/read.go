package read

import (
	"context"
	"log/slog"
	"net/http"

	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type NotificationMarker interface {
	MarkNotificationRead(ctx context.Context, id string) error
}

func New(log *slog.Logger, marker NotificationMarker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notifications.read.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if err := marker.MarkNotificationRead(r.Context(), id); err != nil {
			log.Error("Failed to mark notification read", slog.String("notification_id", id), sl.Err(err))
			status, resp := response.FromError(err, "failed to mark notification read")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
