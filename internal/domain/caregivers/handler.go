package caregivers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/domain/accessgrants"
	"deja/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *accessgrants.Service, patientOwners PatientOwnerLookup) {
	r.Route("/caregivers", func(cr chi.Router) {
		cr.Post("/", createCaregiverHandler(svc))
		cr.Get("/", listCaregiversHandler(svc))
		cr.Get("/{caregiverID}", getCaregiverHandler(svc))
		cr.Put("/{caregiverID}", updateCaregiverHandler(svc))
		cr.Delete("/{caregiverID}", deleteCaregiverHandler(svc))
	})

	r.Route("/caregiver-schedules", func(sr chi.Router) {
		sr.Post("/", createScheduleHandler(svc))
		sr.Get("/", listSchedulesHandler(svc))
		sr.Get("/week", weekHandler(svc, grantsSvc, patientOwners))
		sr.Get("/{scheduleID}", getScheduleHandler(svc))
		sr.Put("/{scheduleID}", updateScheduleHandler(svc))
		sr.Delete("/{scheduleID}", deleteScheduleHandler(svc))
	})
}

type caregiverRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Notes  string `json:"notes"`
	Active *bool  `json:"active"`
}

type caregiverResponse struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Notes       string    `json:"notes"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type scheduleRequest struct {
	CaregiverID string   `json:"caregiver_id"`
	PatientIDs  []string `json:"patient_ids"`
	Days        []string `json:"days"`       // mon..sun
	StartTime   string   `json:"start_time"` // HH:MM
	EndTime     string   `json:"end_time"`   // HH:MM; <= start_time => cruza medianoche
	Notes       string   `json:"notes"`
}

type scheduleResponse struct {
	ID              string    `json:"id"`
	OwnerUserID     string    `json:"owner_user_id"`
	CaregiverID     string    `json:"caregiver_id"`
	PatientIDs      []string  `json:"patient_ids"`
	Days            []string  `json:"days"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	CrossesMidnight bool      `json:"crosses_midnight"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SegmentResponse struct {
	ScheduleID   string   `json:"schedule_id"`
	CaregiverID  string   `json:"caregiver_id"`
	PatientIDs   []string `json:"patient_ids"`
	Day          string   `json:"day"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	StartMinute  int      `json:"start_minute"`
	EndMinute    int      `json:"end_minute"`
	Continuation bool     `json:"continuation"`
	Top          float64  `json:"top"`
	Height       float64  `json:"height"`
}

func createCaregiverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req caregiverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.CreateCaregiver(r.Context(), userID, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCaregiverResponse(c))
	}
}

func listCaregiversHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListCaregivers(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// ?active=true|false
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			want, err := strconv.ParseBool(raw)
			if err != nil {
				http.Error(w, "active must be true or false", http.StatusBadRequest)
				return
			}
			filtered := items[:0]
			for _, c := range items {
				if c.Active == want {
					filtered = append(filtered, c)
				}
			}
			items = filtered
		}

		out := make([]caregiverResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toCaregiverResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getCaregiverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := svc.GetCaregiver(r.Context(), chi.URLParam(r, "caregiverID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCaregiverResponse(c))
	}
}

func updateCaregiverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req caregiverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.UpdateCaregiver(r.Context(), chi.URLParam(r, "caregiverID"), userID, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCaregiverResponse(c))
	}
}

func deleteCaregiverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.DeleteCaregiver(r.Context(), chi.URLParam(r, "caregiverID"), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// createScheduleHandler godoc
// @Summary      Crear turno de cuidador
// @Description  end_time <= start_time indica un turno que cruza la medianoche.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body  scheduleRequest  true  "Turno"
// @Success      201  {object}  scheduleResponse
// @Failure      400,401  {string}  string
// @Router       /caregiver-schedules [post]
func createScheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		in, ok := decodeScheduleRequest(w, r)
		if !ok {
			return
		}

		sc, err := svc.CreateSchedule(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toScheduleResponse(sc))
	}
}

func listSchedulesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListSchedules(r.Context(), userID, parseFilter(r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := make([]scheduleResponse, 0, len(items))
		for _, sc := range items {
			out = append(out, toScheduleResponse(sc))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// weekHandler godoc
// @Summary      Calendario semanal de turnos
// @Description  Segmentos lunes a domingo con posición en píxeles. Los turnos nocturnos se parten en dos.
// @Tags         schedules
// @Produce      json
// @Param        patient_id    query  string  false  "Filtrar por paciente (co-cuidador requiere schedules:read)"
// @Param        caregiver_id  query  string  false  "Filtrar por cuidador"
// @Param        hour_height   query  number  false  "Píxeles por hora (default 48)"
// @Success      200  {array}  SegmentResponse
// @Router       /caregiver-schedules/week [get]
func weekHandler(svc *Service, grantsSvc *accessgrants.Service, patientOwners PatientOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		f := parseFilter(r)

		hourHeight := DefaultHourHeight
		if raw := strings.TrimSpace(r.URL.Query().Get("hour_height")); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 {
				http.Error(w, "hour_height must be a positive number", http.StatusBadRequest)
				return
			}
			hourHeight = v
		}

		// Co-cuidador: solo con patient_id y grant schedules:read; ve los turnos del representante.
		ownerID := userID
		if f.PatientID != "" {
			owner, err := patientOwners.OwnerOf(r.Context(), f.PatientID)
			if err != nil {
				http.Error(w, "patient not found", http.StatusNotFound)
				return
			}
			if err := grantsSvc.Authorize(r.Context(), owner, f.PatientID, userID, accessgrants.ScopeSchedulesRead); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ownerID = owner
		}

		segs, err := svc.Week(r.Context(), ownerID, f, hourHeight)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ToSegmentResponses(segs))
	}
}

func getScheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sc, err := svc.GetSchedule(r.Context(), chi.URLParam(r, "scheduleID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(sc))
	}
}

func updateScheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		in, ok := decodeScheduleRequest(w, r)
		if !ok {
			return
		}

		sc, err := svc.UpdateSchedule(r.Context(), chi.URLParam(r, "scheduleID"), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(sc))
	}
}

func deleteScheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.DeleteSchedule(r.Context(), chi.URLParam(r, "scheduleID"), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (req caregiverRequest) toInput() CaregiverInput {
	return CaregiverInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Role:   req.Role,
		Notes:  req.Notes,
		Active: req.Active,
	}
}

func decodeScheduleRequest(w http.ResponseWriter, r *http.Request) (ScheduleInput, bool) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return ScheduleInput{}, false
	}

	days := make([]time.Weekday, 0, len(req.Days))
	for _, raw := range req.Days {
		d, ok := ParseWeekday(raw)
		if !ok {
			http.Error(w, "days must be mon..sun", http.StatusBadRequest)
			return ScheduleInput{}, false
		}
		days = append(days, d)
	}

	start, err := ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "start_time must be HH:MM", http.StatusBadRequest)
		return ScheduleInput{}, false
	}
	end, err := ParseClock(req.EndTime)
	if err != nil {
		http.Error(w, "end_time must be HH:MM", http.StatusBadRequest)
		return ScheduleInput{}, false
	}

	return ScheduleInput{
		CaregiverID: req.CaregiverID,
		PatientIDs:  req.PatientIDs,
		Days:        days,
		Start:       start,
		End:         end,
		Notes:       req.Notes,
	}, true
}

func parseFilter(r *http.Request) ScheduleFilter {
	q := r.URL.Query()
	return ScheduleFilter{
		CaregiverID: strings.TrimSpace(q.Get("caregiver_id")),
		PatientID:   strings.TrimSpace(q.Get("patient_id")),
	}
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
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("caregivers handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toCaregiverResponse(c Caregiver) caregiverResponse {
	return caregiverResponse{
		ID:          c.ID,
		OwnerUserID: c.OwnerUserID,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Role:        c.Role,
		Notes:       c.Notes,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toScheduleResponse(sc Schedule) scheduleResponse {
	days := make([]string, 0, len(sc.Days))
	for _, d := range sc.Days {
		days = append(days, DayName(d))
	}
	return scheduleResponse{
		ID:              sc.ID,
		OwnerUserID:     sc.OwnerUserID,
		CaregiverID:     sc.CaregiverID,
		PatientIDs:      sc.PatientIDs,
		Days:            days,
		StartTime:       sc.Start.String(),
		EndTime:         sc.End.String(),
		CrossesMidnight: sc.CrossesMidnight(),
		Notes:           sc.Notes,
		CreatedAt:       sc.CreatedAt,
		UpdatedAt:       sc.UpdatedAt,
	}
}

// ToSegmentResponses es exportado para el resumen del dashboard.
func ToSegmentResponses(segs []Segment) []SegmentResponse {
	out := make([]SegmentResponse, 0, len(segs))
	for _, s := range segs {
		out = append(out, SegmentResponse{
			ScheduleID:   s.ScheduleID,
			CaregiverID:  s.CaregiverID,
			PatientIDs:   s.PatientIDs,
			Day:          DayName(s.Day),
			StartTime:    s.Start.String(),
			EndTime:      s.End.String(),
			StartMinute:  int(s.Start),
			EndMinute:    int(s.End),
			Continuation: s.Continuation,
			Top:          s.Top,
			Height:       s.Height,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
