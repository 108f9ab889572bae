package alerts

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/middleware"
	"deja/internal/platform/dates"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/alerts", listAlertsHandler(svc))
}

type Response struct {
	Kind           Kind     `json:"kind"`
	Severity       Severity `json:"severity"`
	MedicationID   string   `json:"medication_id,omitempty"`
	PrescriptionID string   `json:"prescription_id,omitempty"`
	PatientID      string   `json:"patient_id,omitempty"`
	Message        string   `json:"message"`
	DueDate        *string  `json:"due_date,omitempty"`
}

// listAlertsHandler godoc
// @Summary      Alertas vigentes
// @Description  Stock crítico o bajo y recetas vencidas o por vencer, según la configuración del usuario.
// @Tags         alerts
// @Produce      json
// @Param        severity  query  string  false  "critical|warning"
// @Success      200  {array}  Response
// @Router       /alerts [get]
func listAlertsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.Derive(r.Context(), userID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("derive alerts failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		severity := Severity(strings.TrimSpace(r.URL.Query().Get("severity")))
		out := make([]Response, 0, len(items))
		for _, a := range items {
			if severity != "" && a.Severity != severity {
				continue
			}
			out = append(out, ToResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ToResponse es exportado para el resumen del dashboard.
func ToResponse(a Alert) Response {
	out := Response{
		Kind:           a.Kind,
		Severity:       a.Severity,
		MedicationID:   a.MedicationID,
		PrescriptionID: a.PrescriptionID,
		PatientID:      a.PatientID,
		Message:        a.Message,
	}
	if a.DueDate != nil {
		s := a.DueDate.Format(dates.Layout)
		out.DueDate = &s
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
