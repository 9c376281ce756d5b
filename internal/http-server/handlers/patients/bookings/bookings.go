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

type PatientBookingLister interface {
	ListPatientBookings(ctx context.Context, patientID string) ([]*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Bookings []*api.BookingResponse `json:"bookings"`
}

func New(log *slog.Logger, lister PatientBookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.patients.bookings.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		patientID := chi.URLParam(r, "id")

		bookings, err := lister.ListPatientBookings(r.Context(), patientID)
		if err != nil {
			log.Error("Failed to list patient bookings", slog.String("patient_id", patientID), sl.Err(err))
			status, resp := response.FromError(err, "failed to list bookings")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		log.Info("Patient bookings retrieved", slog.String("patient_id", patientID), slog.Int("count", len(bookings)))

		render.JSON(w, r, Response{
			Bookings: bookings,
		})
	}
}
