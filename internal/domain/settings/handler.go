package settings

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/middleware"
	"deja/internal/ports/notify"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/alerts/settings", getSettingsHandler(svc))
	r.Put("/alerts/settings", updateSettingsHandler(svc))
}

type settingsRequest struct {
	CriticalStockDays     int      `json:"critical_stock_days"`
	LowStockDays          int      `json:"low_stock_days"`
	DelayToleranceMinutes int      `json:"delay_tolerance_minutes"`
	PrescriptionLeadDays  int      `json:"prescription_lead_days"`
	Channels              []string `json:"channels"`
	ContactEmail          string   `json:"contact_email"`
	ContactPhone          string   `json:"contact_phone"`
}

type settingsResponse struct {
	OwnerUserID           string           `json:"owner_user_id"`
	CriticalStockDays     int              `json:"critical_stock_days"`
	LowStockDays          int              `json:"low_stock_days"`
	DelayToleranceMinutes int              `json:"delay_tolerance_minutes"`
	PrescriptionLeadDays  int              `json:"prescription_lead_days"`
	Channels              []notify.Channel `json:"channels"`
	ContactEmail          string           `json:"contact_email"`
	ContactPhone          string           `json:"contact_phone"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// getSettingsHandler godoc
// @Summary      Configuración de alertas
// @Description  La primera lectura crea la configuración con valores por defecto.
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  settingsResponse
// @Router       /alerts/settings [get]
func getSettingsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		st, err := svc.Get(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(st))
	}
}

func updateSettingsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		st, err := svc.Update(r.Context(), userID, Input{
			CriticalStockDays:     req.CriticalStockDays,
			LowStockDays:          req.LowStockDays,
			DelayToleranceMinutes: req.DelayToleranceMinutes,
			PrescriptionLeadDays:  req.PrescriptionLeadDays,
			Channels:              req.Channels,
			ContactEmail:          req.ContactEmail,
			ContactPhone:          req.ContactPhone,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(st))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("settings handler failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func toResponse(st Settings) settingsResponse {
	channels := st.Channels
	if channels == nil {
		channels = []notify.Channel{}
	}
	return settingsResponse{
		OwnerUserID:           st.OwnerUserID,
		CriticalStockDays:     st.CriticalStockDays,
		LowStockDays:          st.LowStockDays,
		DelayToleranceMinutes: st.DelayToleranceMinutes,
		PrescriptionLeadDays:  st.PrescriptionLeadDays,
		Channels:              channels,
		ContactEmail:          st.ContactEmail,
		ContactPhone:          st.ContactPhone,
		CreatedAt:             st.CreatedAt,
		UpdatedAt:             st.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
