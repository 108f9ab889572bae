package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/domain/accessgrants"
	"deja/internal/middleware"
	"deja/internal/platform/dates"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *accessgrants.Service) {
	r.Route("/patients", func(pr chi.Router) {
		pr.Post("/", createPatientHandler(svc))
		pr.Get("/", listPatientsHandler(svc))

		// owner o co-cuidador con patient:read
		pr.Get("/{patientID}", getPatientHandler(svc, grantsSvc))

		pr.Put("/{patientID}", updatePatientHandler(svc))
		pr.Delete("/{patientID}", deletePatientHandler(svc))
	})

	r.Get("/me/patients", listSharedPatientsHandler(svc, grantsSvc))
}

type emergencyContactDTO struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

type patientRequest struct {
	Name             string              `json:"name"`
	BirthDate        string              `json:"birth_date"` // YYYY-MM-DD opcional
	Sex              string              `json:"sex"`
	HealthNotes      string              `json:"health_notes"`
	Allergies        string              `json:"allergies"`
	EmergencyContact emergencyContactDTO `json:"emergency_contact"`
}

type patientResponse struct {
	ID               string              `json:"id"`
	OwnerUserID      string              `json:"owner_user_id"`
	Name             string              `json:"name"`
	BirthDate        *string             `json:"birth_date,omitempty"`
	Sex              Sex                 `json:"sex"`
	HealthNotes      string              `json:"health_notes"`
	Allergies        string              `json:"allergies"`
	EmergencyContact emergencyContactDTO `json:"emergency_contact"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type sharedPatientResponse struct {
	Patient patientResponse      `json:"patient"`
	GrantID string               `json:"grant_id"`
	Scopes  []accessgrants.Scope `json:"scopes"`
}

// createPatientHandler godoc
// @Summary      Crear paciente
// @Tags         patients
// @Accept       json
// @Produce      json
// @Param        body  body  patientRequest  true  "Paciente"
// @Success      201  {object}  patientResponse
// @Failure      400,401  {string}  string
// @Router       /patients [post]
func createPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		in, ok := decodePatientRequest(w, r)
		if !ok {
			return
		}

		p, err := svc.Create(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

// listPatientsHandler godoc
// @Summary      Listar mis pacientes
// @Tags         patients
// @Produce      json
// @Success      200  {array}  patientResponse
// @Router       /patients [get]
func listPatientsHandler(svc *Service) http.HandlerFunc {
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

		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPatientResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPatientHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		p, err := svc.GetByID(r.Context(), patientID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := grantsSvc.Authorize(r.Context(), p.OwnerUserID, p.ID, userID, accessgrants.ScopePatientRead); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func updatePatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		in, ok := decodePatientRequest(w, r)
		if !ok {
			return
		}

		p, err := svc.Update(r.Context(), chi.URLParam(r, "patientID"), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

// deletePatientHandler godoc
// @Summary      Borrar paciente
// @Description  409 si tiene medicamentos asignados o recetas. Los turnos se desvinculan.
// @Tags         patients
// @Param        patientID  path  string  true  "Patient ID"
// @Success      204
// @Failure      401,403,404,409  {string}  string
// @Router       /patients/{patientID} [delete]
func deletePatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "patientID"), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listSharedPatientsHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := grantsSvc.ListByGrantee(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		seen := map[string]struct{}{}
		out := make([]sharedPatientResponse, 0)
		for _, g := range grants {
			if g.Status != accessgrants.StatusActive || !accessgrants.HasScope(g, accessgrants.ScopePatientRead) {
				continue
			}
			if _, ok := seen[g.PatientID]; ok {
				continue
			}
			seen[g.PatientID] = struct{}{}

			p, err := svc.GetByID(r.Context(), g.PatientID)
			if err != nil {
				// grant huérfano (paciente borrado)
				continue
			}
			out = append(out, sharedPatientResponse{
				Patient: toPatientResponse(p),
				GrantID: g.ID,
				Scopes:  g.Scopes,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodePatientRequest(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return Input{}, false
	}

	bd, err := dates.ParseOptional(req.BirthDate)
	if err != nil {
		http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
		return Input{}, false
	}

	return Input{
		Name:        req.Name,
		BirthDate:   bd,
		Sex:         req.Sex,
		HealthNotes: req.HealthNotes,
		Allergies:   req.Allergies,
		EmergencyContact: EmergencyContact{
			Name:     req.EmergencyContact.Name,
			Phone:    req.EmergencyContact.Phone,
			Relation: req.EmergencyContact.Relation,
		},
	}, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrInUse):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("patients handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toPatientResponse(p Patient) patientResponse {
	var bd *string
	if p.BirthDate != nil {
		s := p.BirthDate.Format(dates.Layout)
		bd = &s
	}
	return patientResponse{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		Name:        p.Name,
		BirthDate:   bd,
		Sex:         p.Sex,
		HealthNotes: p.HealthNotes,
		Allergies:   p.Allergies,
		EmergencyContact: emergencyContactDTO{
			Name:     p.EmergencyContact.Name,
			Phone:    p.EmergencyContact.Phone,
			Relation: p.EmergencyContact.Relation,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
