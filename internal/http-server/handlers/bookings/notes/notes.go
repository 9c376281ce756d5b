package notes

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

type BookingAnnotator interface {
	AnnotateBooking(ctx context.Context, id, notes, authorRole string) (*api.BookingResponse, error)
}

type Request struct {
	api.NotesRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking"`
}

func New(log *slog.Logger, annotator BookingAnnotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.notes.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		booking, err := annotator.AnnotateBooking(r.Context(), id, req.Notes, req.AuthorRole)
		if err != nil {
			log.Error("Failed to annotate booking", slog.String("booking_id", id), sl.Err(err))
			status, resp := response.FromError(err, "failed to update notes")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Booking notes updated", slog.String("booking_id", id), slog.String("author_role", req.AuthorRole))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}
