package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deja/internal/domain/accessgrants"
	"deja/internal/middleware"
	"deja/internal/platform/dates"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *accessgrants.Service) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc))
		mr.Get("/", listMedicationsHandler(svc))
		mr.Get("/{medicationID}", getMedicationHandler(svc))
		mr.Put("/{medicationID}", updateMedicationHandler(svc))
		mr.Delete("/{medicationID}", deleteMedicationHandler(svc))

		mr.Post("/{medicationID}/patients", assignHandler(svc))
		mr.Get("/{medicationID}/patients", listAssignmentsHandler(svc))
		mr.Get("/{medicationID}/patients/{patientID}", getAssignmentHandler(svc))
		mr.Put("/{medicationID}/patients/{patientID}", updateAssignmentHandler(svc))
		mr.Delete("/{medicationID}/patients/{patientID}", unassignHandler(svc))

		mr.Get("/{medicationID}/patients/{patientID}/tapering", getTaperingHandler(svc))
		mr.Put("/{medicationID}/patients/{patientID}/tapering", replaceTaperingHandler(svc))
	})

	// owner o co-cuidador con medications:read
	r.Get("/patients/{patientID}/medications", patientMedicationsHandler(svc, grantsSvc))
}

type medicationRequest struct {
	Name         string          `json:"name"`
	DosageAmount decimal.Decimal `json:"dosage_amount"`
	DosageUnit   string          `json:"dosage_unit"`
	Form         string          `json:"form"`
	Route        string          `json:"route"`
	BoxQuantity  decimal.Decimal `json:"box_quantity"`
	Instructions string          `json:"instructions"`
}

type medicationResponse struct {
	ID           string          `json:"id"`
	OwnerUserID  string          `json:"owner_user_id"`
	Name         string          `json:"name"`
	DosageAmount decimal.Decimal `json:"dosage_amount"`
	DosageUnit   string          `json:"dosage_unit"`
	Form         string          `json:"form"`
	Route        string          `json:"route"`
	BoxQuantity  decimal.Decimal `json:"box_quantity"`
	Instructions string          `json:"instructions"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type posologyRequest struct {
	PatientID           string           `json:"patient_id"` // solo en POST
	Frequency           string           `json:"frequency"`
	AdministrationTimes []string         `json:"administration_times"`
	HalfDose            bool             `json:"half_dose"`
	CustomFrequency     string           `json:"custom_frequency"`
	UnitsPerDose        *decimal.Decimal `json:"units_per_dose"`
	AsNeeded            bool             `json:"as_needed"`
	TreatmentType       string           `json:"treatment_type"`
	StartDate           string           `json:"start_date"`
	EndDate             string           `json:"end_date"`
	Tapering            bool             `json:"tapering"`
	PrescriptionID      string           `json:"prescription_id"`
}

type posologyResponse struct {
	ID                  string          `json:"id"`
	MedicationID        string          `json:"medication_id"`
	PatientID           string          `json:"patient_id"`
	Frequency           Frequency       `json:"frequency"`
	AdministrationTimes []string        `json:"administration_times"`
	HalfDose            bool            `json:"half_dose"`
	CustomFrequency     string          `json:"custom_frequency,omitempty"`
	UnitsPerDose        decimal.Decimal `json:"units_per_dose"`
	AsNeeded            bool            `json:"as_needed"`
	TreatmentType       TreatmentType   `json:"treatment_type"`
	StartDate           *string         `json:"start_date,omitempty"`
	EndDate             *string         `json:"end_date,omitempty"`
	Tapering            bool            `json:"tapering"`
	PrescriptionID      string          `json:"prescription_id,omitempty"`
	DailyConsumption    decimal.Decimal `json:"daily_consumption"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type phaseDTO struct {
	Kind         PhaseKind       `json:"kind"`
	Dosage       decimal.Decimal `json:"dosage"`
	Frequency    Frequency       `json:"frequency"`
	StartDate    string          `json:"start_date"`
	EndDate      *string         `json:"end_date,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
}

type resolutionResponse struct {
	State ResolutionState `json:"state"`
	Index int             `json:"index"`
	Phase *phaseDTO       `json:"phase,omitempty"`
}

type taperingRequest struct {
	Phases []phaseDTO `json:"phases"`
}

type taperingResponse struct {
	Date       string             `json:"date"`
	Phases     []phaseDTO         `json:"phases"`
	Resolution resolutionResponse `json:"resolution"`
}

// patientMedicationResponse: medicamento + posología de ESE paciente.
type patientMedicationResponse struct {
	Medication medicationResponse  `json:"medication"`
	Posology   posologyResponse    `json:"posology"`
	Tapering   *resolutionResponse `json:"tapering,omitempty"`
}

// createMedicationHandler godoc
// @Summary      Crear medicamento
// @Description  El medicamento no pertenece a un paciente; la posología se asigna aparte.
// @Tags         medications
// @Accept       json
// @Produce      json
// @Param        body  body  medicationRequest  true  "Medicamento"
// @Success      201  {object}  medicationResponse
// @Failure      400,401  {string}  string
// @Router       /medications [post]
func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req medicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), userID, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// ?q= filtra por nombre
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			if q != "" && !strings.Contains(strings.ToLower(m.Name), q) {
				continue
			}
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.GetOwned(r.Context(), chi.URLParam(r, "medicationID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func updateMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req medicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), chi.URLParam(r, "medicationID"), userID, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "medicationID"), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// assignHandler godoc
// @Summary      Asignar medicamento a un paciente
// @Tags         medications
// @Accept       json
// @Produce      json
// @Param        medicationID  path  string           true  "Medicamento"
// @Param        body          body  posologyRequest  true  "Posología"
// @Success      201  {object}  posologyResponse
// @Failure      400,401,403,404,409  {string}  string
// @Router       /medications/{medicationID}/patients [post]
func assignHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		req, in, ok := decodePosologyRequest(w, r)
		if !ok {
			return
		}

		p, err := svc.Assign(r.Context(), userID, chi.URLParam(r, "medicationID"), req.PatientID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPosologyResponse(p, svc.Today()))
	}
}

func listAssignmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.GetOwned(r.Context(), chi.URLParam(r, "medicationID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		items, err := svc.ListPosologiesByMedication(r.Context(), m.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		today := svc.Today()
		out := make([]posologyResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPosologyResponse(p, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAssignmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.GetOwned(r.Context(), chi.URLParam(r, "medicationID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		p, err := svc.GetPosology(r.Context(), m.ID, chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientMedicationResponse(svc, m, p, svc.Today()))
	}
}

func updateAssignmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		_, in, ok := decodePosologyRequest(w, r)
		if !ok {
			return
		}

		p, err := svc.UpdatePosology(r.Context(), userID, chi.URLParam(r, "medicationID"), chi.URLParam(r, "patientID"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPosologyResponse(p, svc.Today()))
	}
}

func unassignHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Unassign(r.Context(), userID, chi.URLParam(r, "medicationID"), chi.URLParam(r, "patientID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// getTaperingHandler godoc
// @Summary      Fases de desmame y fase vigente
// @Tags         medications
// @Produce      json
// @Param        medicationID  path   string  true   "Medicamento"
// @Param        patientID     path   string  true   "Paciente"
// @Param        date          query  string  false  "YYYY-MM-DD (default hoy)"
// @Success      200  {object}  taperingResponse
// @Router       /medications/{medicationID}/patients/{patientID}/tapering [get]
func getTaperingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		day := svc.Today()
		if raw := r.URL.Query().Get("date"); strings.TrimSpace(raw) != "" {
			d, err := dates.Parse(raw)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = d
		}

		m, err := svc.GetOwned(r.Context(), chi.URLParam(r, "medicationID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := svc.GetPosology(r.Context(), m.ID, chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toTaperingResponse(p, svc.Resolution(p, day), day))
	}
}

func replaceTaperingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req taperingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		phases := make([]Phase, 0, len(req.Phases))
		for _, dto := range req.Phases {
			ph, err := dto.toPhase()
			if err != nil {
				http.Error(w, "phase dates must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			phases = append(phases, ph)
		}

		p, err := svc.ReplacePhases(r.Context(), userID, chi.URLParam(r, "medicationID"), chi.URLParam(r, "patientID"), phases)
		if err != nil {
			writeError(w, r, err)
			return
		}

		day := svc.Today()
		writeJSON(w, http.StatusOK, toTaperingResponse(p, svc.Resolution(p, day), day))
	}
}

// patientMedicationsHandler godoc
// @Summary      Medicamentos de un paciente
// @Description  Cada item trae el medicamento y la posología de ESE paciente.
// @Tags         medications
// @Produce      json
// @Param        patientID  path  string  true  "Paciente"
// @Success      200  {array}  patientMedicationResponse
// @Failure      401,403,404  {string}  string
// @Router       /patients/{patientID}/medications [get]
func patientMedicationsHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		owner, err := svc.patients.OwnerOf(r.Context(), patientID)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := grantsSvc.Authorize(r.Context(), owner, patientID, userID, accessgrants.ScopeMedicationsRead); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListPosologiesByPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		today := svc.Today()
		out := make([]patientMedicationResponse, 0, len(items))
		for _, p := range items {
			m, err := svc.GetByID(r.Context(), p.MedicationID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
			out = append(out, toPatientMedicationResponse(svc, m, p, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (req medicationRequest) toInput() Input {
	return Input{
		Name:         req.Name,
		DosageAmount: req.DosageAmount,
		DosageUnit:   req.DosageUnit,
		Form:         req.Form,
		Route:        req.Route,
		BoxQuantity:  req.BoxQuantity,
		Instructions: req.Instructions,
	}
}

func decodePosologyRequest(w http.ResponseWriter, r *http.Request) (posologyRequest, PosologyInput, bool) {
	var req posologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, PosologyInput{}, false
	}

	start, err := dates.ParseOptional(req.StartDate)
	if err != nil {
		http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
		return req, PosologyInput{}, false
	}
	end, err := dates.ParseOptional(req.EndDate)
	if err != nil {
		http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
		return req, PosologyInput{}, false
	}

	return req, PosologyInput{
		Frequency:           req.Frequency,
		AdministrationTimes: req.AdministrationTimes,
		HalfDose:            req.HalfDose,
		CustomFrequency:     req.CustomFrequency,
		UnitsPerDose:        req.UnitsPerDose,
		AsNeeded:            req.AsNeeded,
		TreatmentType:       req.TreatmentType,
		StartDate:           start,
		EndDate:             end,
		Tapering:            req.Tapering,
		PrescriptionID:      req.PrescriptionID,
	}, true
}

func (dto phaseDTO) toPhase() (Phase, error) {
	start, err := dates.Parse(dto.StartDate)
	if err != nil {
		return Phase{}, err
	}
	var end *time.Time
	if dto.EndDate != nil {
		end, err = dates.ParseOptional(*dto.EndDate)
		if err != nil {
			return Phase{}, err
		}
	}
	return Phase{
		Kind:         dto.Kind,
		Dosage:       dto.Dosage,
		Frequency:    dto.Frequency,
		StartDate:    start,
		EndDate:      end,
		Instructions: dto.Instructions,
	}, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("medications handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMedicationResponse(m Medication) medicationResponse {
	return medicationResponse{
		ID:           m.ID,
		OwnerUserID:  m.OwnerUserID,
		Name:         m.Name,
		DosageAmount: m.DosageAmount,
		DosageUnit:   m.DosageUnit,
		Form:         m.Form,
		Route:        m.Route,
		BoxQuantity:  m.BoxQuantity,
		Instructions: m.Instructions,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toPosologyResponse(p Posology, today time.Time) posologyResponse {
	return posologyResponse{
		ID:                  p.ID,
		MedicationID:        p.MedicationID,
		PatientID:           p.PatientID,
		Frequency:           p.Frequency,
		AdministrationTimes: p.AdministrationTimes,
		HalfDose:            p.HalfDose,
		CustomFrequency:     p.CustomFrequency,
		UnitsPerDose:        p.UnitsPerDose,
		AsNeeded:            p.AsNeeded,
		TreatmentType:       p.TreatmentType,
		StartDate:           formatDate(p.StartDate),
		EndDate:             formatDate(p.EndDate),
		Tapering:            p.Tapering,
		PrescriptionID:      p.PrescriptionID,
		DailyConsumption:    p.DailyConsumption(today),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func toPatientMedicationResponse(svc *Service, m Medication, p Posology, today time.Time) patientMedicationResponse {
	out := patientMedicationResponse{
		Medication: toMedicationResponse(m),
		Posology:   toPosologyResponse(p, today),
	}
	if p.Tapering {
		res := toResolutionResponse(svc.Resolution(p, today))
		out.Tapering = &res
	}
	return out
}

func toPhaseDTO(ph Phase) phaseDTO {
	return phaseDTO{
		Kind:         ph.Kind,
		Dosage:       ph.Dosage,
		Frequency:    ph.Frequency,
		StartDate:    ph.StartDate.Format(dates.Layout),
		EndDate:      formatDate(ph.EndDate),
		Instructions: ph.Instructions,
	}
}

func toResolutionResponse(res Resolution) resolutionResponse {
	out := resolutionResponse{State: res.State, Index: res.Index}
	if res.Phase != nil {
		dto := toPhaseDTO(*res.Phase)
		out.Phase = &dto
	}
	return out
}

func toTaperingResponse(p Posology, res Resolution, day time.Time) taperingResponse {
	phases := make([]phaseDTO, 0, len(p.Phases))
	for _, ph := range p.Phases {
		phases = append(phases, toPhaseDTO(ph))
	}
	return taperingResponse{
		Date:       day.Format(dates.Layout),
		Phases:     phases,
		Resolution: toResolutionResponse(res),
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dates.Layout)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
