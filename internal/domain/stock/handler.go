package stock

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deja/internal/middleware"
	"deja/internal/platform/dates"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/stock", func(sr chi.Router) {
		sr.Get("/", listStatusesHandler(svc))
		sr.Get("/{medicationID}", statusHandler(svc))
		sr.Post("/{medicationID}/movements", registerMovementHandler(svc))
		sr.Get("/{medicationID}/movements", listMovementsHandler(svc))
		sr.Post("/{medicationID}/movements/{movementID}/void", voidMovementHandler(svc))
	})

	r.Get("/replenishment", replenishmentHandler(svc))
}

type movementRequest struct {
	Direction    string           `json:"direction"`
	Quantity     *decimal.Decimal `json:"quantity"`
	Boxes        *decimal.Decimal `json:"boxes"`
	Date         string           `json:"date"` // YYYY-MM-DD, default hoy
	Reason       string           `json:"reason"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	Installments *int             `json:"installments"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

type movementResponse struct {
	ID           string           `json:"id"`
	MedicationID string           `json:"medication_id"`
	Direction    Direction        `json:"direction"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Date         string           `json:"date"`
	Reason       string           `json:"reason"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Installments *int             `json:"installments,omitempty"`
	Status       MovementStatus   `json:"status"`
	ActorUserID  string           `json:"actor_user_id"`
	VoidedAt     *time.Time       `json:"voided_at,omitempty"`
	VoidedBy     string           `json:"voided_by,omitempty"`
	VoidReason   string           `json:"void_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

type statusResponse struct {
	MedicationID     string          `json:"medication_id"`
	MedicationName   string          `json:"medication_name"`
	Stock            decimal.Decimal `json:"stock"`
	Negative         bool            `json:"negative"`
	DailyConsumption decimal.Decimal `json:"daily_consumption"`
	DaysRemaining    *int            `json:"days_remaining"` // null => sin estimación
	RunOutDate       *string         `json:"run_out_date,omitempty"`
	Level            Level           `json:"level"`
}

type replenishmentResponse struct {
	statusResponse
	TargetDays     int             `json:"target_days"`
	SuggestedUnits decimal.Decimal `json:"suggested_units"`
	SuggestedBoxes int64           `json:"suggested_boxes"`
}

// listStatusesHandler godoc
// @Summary      Estado de stock de todos mis medicamentos
// @Description  critical si días <= umbral crítico, warning si días <= umbral bajo. Sin consumo => ok.
// @Tags         stock
// @Produce      json
// @Param        level  query  string  false  "ok|warning|critical"
// @Success      200  {array}  statusResponse
// @Router       /stock [get]
func listStatusesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListStatuses(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		level := Level(strings.TrimSpace(r.URL.Query().Get("level")))
		out := make([]statusResponse, 0, len(items))
		for _, st := range items {
			if level != "" && st.Level != level {
				continue
			}
			out = append(out, toStatusResponse(st))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func statusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		st, err := svc.StatusOf(r.Context(), userID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatusResponse(st))
	}
}

// registerMovementHandler godoc
// @Summary      Registrar entrada o salida de stock
// @Description  quantity en unidades o boxes en cajas (boxes × box_quantity del medicamento).
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        medicationID  path  string           true  "Medicamento"
// @Param        body          body  movementRequest  true  "Movimiento"
// @Success      201  {object}  movementResponse
// @Failure      400,401,403,404  {string}  string
// @Router       /stock/{medicationID}/movements [post]
func registerMovementHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req movementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		date, err := dates.ParseOptional(req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		m, err := svc.RegisterMovement(r.Context(), userID, chi.URLParam(r, "medicationID"), MovementInput{
			Direction:    req.Direction,
			Quantity:     req.Quantity,
			Boxes:        req.Boxes,
			Date:         date,
			Reason:       req.Reason,
			UnitPrice:    req.UnitPrice,
			Installments: req.Installments,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMovementResponse(m))
	}
}

func listMovementsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		f, ok := parseFilter(w, r)
		if !ok {
			return
		}

		items, err := svc.ListMovements(r.Context(), userID, chi.URLParam(r, "medicationID"), f)
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := make([]movementResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMovementResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func voidMovementHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// body opcional
		var req voidRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		m, err := svc.VoidMovement(r.Context(), userID, chi.URLParam(r, "medicationID"), chi.URLParam(r, "movementID"), req.Reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMovementResponse(m))
	}
}

// replenishmentHandler godoc
// @Summary      Sugerencia de reposición
// @Tags         stock
// @Produce      json
// @Param        target_days  query  int  false  "Días a cubrir (default 30)"
// @Success      200  {array}  replenishmentResponse
// @Router       /replenishment [get]
func replenishmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		target := DefaultTargetDays
		if raw := strings.TrimSpace(r.URL.Query().Get("target_days")); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				http.Error(w, "target_days must be a positive integer", http.StatusBadRequest)
				return
			}
			target = v
		}

		items, err := svc.Replenishment(r.Context(), userID, target)
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := make([]replenishmentResponse, 0, len(items))
		for _, it := range items {
			out = append(out, replenishmentResponse{
				statusResponse: toStatusResponse(it.Status),
				TargetDays:     it.TargetDays,
				SuggestedUnits: it.SuggestedUnits,
				SuggestedBoxes: it.SuggestedBoxes,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	f := Filter{
		Direction: Direction(strings.TrimSpace(q.Get("direction"))),
		Query:     q.Get("q"),
	}

	from, err := dates.ParseOptional(q.Get("from"))
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return Filter{}, false
	}
	to, err := dates.ParseOptional(q.Get("to"))
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return Filter{}, false
	}
	f.From, f.To = from, to

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return Filter{}, false
		}
		f.Limit = v
	}
	if raw := strings.TrimSpace(q.Get("status")); raw == string(MovementActive) {
		f.ActiveOnly = true
	}
	return f, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("stock handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:           m.ID,
		MedicationID: m.MedicationID,
		Direction:    m.Direction,
		Quantity:     m.Quantity,
		Date:         m.Date.Format(dates.Layout),
		Reason:       m.Reason,
		UnitPrice:    m.UnitPrice,
		Installments: m.Installments,
		Status:       m.Status,
		ActorUserID:  m.ActorUserID,
		VoidedAt:     m.VoidedAt,
		VoidedBy:     m.VoidedBy,
		VoidReason:   m.VoidReason,
		CreatedAt:    m.CreatedAt,
	}
}

func toStatusResponse(st Status) statusResponse {
	out := statusResponse{
		MedicationID:     st.MedicationID,
		MedicationName:   st.MedicationName,
		Stock:            st.Stock,
		Negative:         st.Negative,
		DailyConsumption: st.DailyConsumption,
		DaysRemaining:    st.DaysRemaining,
		Level:            st.Level,
	}
	if st.RunOutDate != nil {
		s := st.RunOutDate.Format(dates.Layout)
		out.RunOutDate = &s
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
