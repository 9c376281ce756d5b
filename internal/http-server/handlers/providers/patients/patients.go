package patients

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

type PatientLister interface {
	ListProviderPatients(ctx context.Context, providerID, kind string) ([]*api.PatientSummary, error)
}

type Response struct {
	response.Response
	Patients []*api.PatientSummary `json:"patients"`
}

func New(log *slog.Logger, lister PatientLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.providers.patients.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID := chi.URLParam(r, "id")

		patients, err := lister.ListProviderPatients(r.Context(), providerID, chi.URLParam(r, "kind"))
		if err != nil {
			log.Error("Failed to list patients", sl.Err(err))
			status, resp := response.FromError(err, "failed to list patients")
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}

		render.JSON(w, r, Response{
			Patients: patients,
		})
	}
}
