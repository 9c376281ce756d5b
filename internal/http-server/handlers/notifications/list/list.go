package list

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

type NotificationLister interface {
	ListNotifications(ctx context.Context, userID string) ([]*api.Notification, error)
}

type Response struct {
	response.Response
	Notifications []*api.Notification `json:"notifications"`
}

func New(log *slog.Logger, lister NotificationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notifications.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "id")

		notifications, err := lister.ListNotifications(r.Context(), userID)
		if err != nil {
			log.Error("Failed to list notifications", slog.String("user_id", userID), sl.Err(err))
			status, resp := response.FromError(err, "failed to list notifications")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		render.JSON(w, r, Response{
			Notifications: notifications,
		})
	}
}
