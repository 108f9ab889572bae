package accessgrants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/middleware"
)

// PatientOwnerLookup evita importar el paquete patients (rompe ciclos).
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patientOwners PatientOwnerLookup) {
	r.Route("/patients/{patientID}/grants", func(gr chi.Router) {
		gr.Post("/", inviteGrantHandler(svc, patientOwners))
		gr.Get("/", listGrantsByPatientHandler(svc, patientOwners))
	})

	r.Route("/grants/{grantID}", func(gr chi.Router) {
		gr.Post("/accept", acceptGrantHandler(svc))
		gr.Post("/revoke", revokeGrantHandler(svc))
	})

	r.Get("/me/grants", listMyGrantsHandler(svc))
}

type inviteGrantRequest struct {
	GranteeUserID string  `json:"grantee_user_id"`
	Scopes        []Scope `json:"scopes"`
}

type grantResponse struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	OwnerUserID   string     `json:"owner_user_id"`
	GranteeUserID string     `json:"grantee_user_id"`
	Scopes        []Scope    `json:"scopes"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// inviteGrantHandler godoc
// @Summary      Invitar co-cuidador
// @Description  Comparte un paciente con otro usuario. Re-invitar actualiza los scopes.
// @Tags         grants
// @Accept       json
// @Produce      json
// @Param        patientID  path  string  true  "Patient ID"
// @Param        body  body  inviteGrantRequest  true  "Invitación"
// @Success      201  {object}  grantResponse
// @Failure      400,401,403,404  {string}  string
// @Router       /patients/{patientID}/grants [post]
func inviteGrantHandler(svc *Service, patientOwners PatientOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if !requireOwner(w, r, patientOwners, patientID, userID) {
			return
		}

		var req inviteGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.GranteeUserID) == "" {
			http.Error(w, "grantee_user_id required", http.StatusBadRequest)
			return
		}

		g, err := svc.Invite(r.Context(), InviteInput{
			PatientID:     patientID,
			OwnerUserID:   userID,
			GranteeUserID: req.GranteeUserID,
			Scopes:        req.Scopes,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

func listGrantsByPatientHandler(svc *Service, patientOwners PatientOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if !requireOwner(w, r, patientOwners, patientID, userID) {
			return
		}

		items, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func listMyGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// status=invited,active (CSV opcional)
		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListByGrantee(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if len(allowed) > 0 {
			filtered := make([]Grant, 0, len(items))
			for _, g := range items {
				if _, ok := allowed[g.Status]; ok {
					filtered = append(filtered, g)
				}
			}
			items = filtered
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func acceptGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Accept(r.Context(), chi.URLParam(r, "grantID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func revokeGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Revoke(r.Context(), chi.URLParam(r, "grantID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func requireOwner(w http.ResponseWriter, r *http.Request, owners PatientOwnerLookup, patientID, userID string) bool {
	ownerID, err := owners.OwnerOf(r.Context(), patientID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "patient not found", http.StatusNotFound)
		return false
	}
	if ownerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("grants handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:            g.ID,
		PatientID:     g.PatientID,
		OwnerUserID:   g.OwnerUserID,
		GranteeUserID: g.GranteeUserID,
		Scopes:        g.Scopes,
		Status:        g.Status,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		RevokedAt:     g.RevokedAt,
	}
}

func toGrantResponses(items []Grant) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g))
	}
	return out
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		if s := Status(strings.TrimSpace(p)); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
