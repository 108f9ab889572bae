package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/domain/alerts"
	"deja/internal/domain/caregivers"
	"deja/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/summary", summaryHandler(svc))
}

type stockCounts struct {
	OK       int `json:"ok"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

type summaryResponse struct {
	Patients    int                          `json:"patients"`
	Caregivers  int                          `json:"caregivers"`
	Medications int                          `json:"medications"`
	Stock       stockCounts                  `json:"stock"`
	TodayShifts []caregivers.SegmentResponse `json:"today_shifts"`
	AlertCount  int                          `json:"alert_count"`
	NextAlerts  []alerts.Response            `json:"next_alerts"`
}

// summaryHandler godoc
// @Summary      Resumen para la pantalla de inicio
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  summaryResponse
// @Router       /summary [get]
func summaryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sum, err := svc.Summary(r.Context(), userID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("build summary failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		next := make([]alerts.Response, 0, len(sum.NextAlerts))
		for _, a := range sum.NextAlerts {
			next = append(next, alerts.ToResponse(a))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(summaryResponse{
			Patients:    sum.Patients,
			Caregivers:  sum.Caregivers,
			Medications: sum.Medications,
			Stock: stockCounts{
				OK:       sum.StockOK,
				Warning:  sum.StockWarning,
				Critical: sum.StockCritical,
			},
			TodayShifts: caregivers.ToSegmentResponses(sum.TodayShifts),
			AlertCount:  sum.AlertCount,
			NextAlerts:  next,
		})
	}
}
