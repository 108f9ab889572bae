package prescriptions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deja/internal/middleware"
	"deja/internal/platform/dates"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/prescriptions", func(pr chi.Router) {
		pr.Post("/", createPrescriptionHandler(svc))
		pr.Get("/", listPrescriptionsHandler(svc))
		pr.Get("/{prescriptionID}", getPrescriptionHandler(svc))
		pr.Delete("/{prescriptionID}", deletePrescriptionHandler(svc))
		pr.Get("/{prescriptionID}/file", downloadHandler(svc))
	})
}

type fileResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type linkResponse struct {
	MedicationID string `json:"medication_id"`
	PatientID    string `json:"patient_id"`
}

type prescriptionResponse struct {
	ID          string         `json:"id"`
	OwnerUserID string         `json:"owner_user_id"`
	PatientID   string         `json:"patient_id"`
	Type        Type           `json:"type"`
	IssueDate   string         `json:"issue_date"`
	ExpiryDate  string         `json:"expiry_date"`
	Expired     bool           `json:"expired"`
	Reusable    bool           `json:"reusable"`
	Notes       string         `json:"notes"`
	File        fileResponse   `json:"file"`
	Links       []linkResponse `json:"links"`
	CreatedAt   time.Time      `json:"created_at"`
}

// createPrescriptionHandler godoc
// @Summary      Subir receta
// @Description  multipart/form-data: file (pdf, png, jpeg, webp; máx 10 MB), patient_id, type, issue_date, reusable, notes, medication_id (repetible).
// @Tags         prescriptions
// @Accept       mpfd
// @Produce      json
// @Param        file        formData  file    true   "Archivo"
// @Param        patient_id  formData  string  true   "Paciente"
// @Param        type        formData  string  false  "simple|B|C1|C2"
// @Param        issue_date  formData  string  true   "YYYY-MM-DD"
// @Success      201  {object}  prescriptionResponse
// @Failure      400,401,403,404,413,415  {string}  string
// @Router       /prescriptions [post]
func createPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+(1<<20))
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		issue, err := dates.Parse(r.FormValue("issue_date"))
		if err != nil {
			http.Error(w, "issue_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		reusable := false
		if raw := strings.TrimSpace(r.FormValue("reusable")); raw != "" {
			reusable, err = strconv.ParseBool(raw)
			if err != nil {
				http.Error(w, "reusable must be true or false", http.StatusBadRequest)
				return
			}
		}

		p, err := svc.Create(r.Context(), userID, CreateInput{
			PatientID:     r.FormValue("patient_id"),
			Type:          r.FormValue("type"),
			IssueDate:     issue,
			Reusable:      reusable,
			Notes:         r.FormValue("notes"),
			MedicationIDs: r.MultipartForm.Value["medication_id"],
			FileName:      header.Filename,
			ContentType:   header.Header.Get("Content-Type"),
			Body:          file,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(p, svc.Today()))
	}
}

func listPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), userID, r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		today := svc.Today()
		out := make([]prescriptionResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toResponse(p, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.GetOwned(r.Context(), chi.URLParam(r, "prescriptionID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p, svc.Today()))
	}
}

func deletePrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "prescriptionID"), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// downloadHandler godoc
// @Summary      Descargar archivo de la receta
// @Tags         prescriptions
// @Produce      application/pdf,image/png,image/jpeg,image/webp
// @Param        prescriptionID  path  string  true  "Receta"
// @Success      200  {file}  binary
// @Router       /prescriptions/{prescriptionID}/file [get]
func downloadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, rc, err := svc.Open(r.Context(), chi.URLParam(r, "prescriptionID"), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", p.File.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(p.File.Size, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": p.File.Name}))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("prescription_id", p.ID).Msg("download interrupted")
		}
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
	case errors.Is(err, ErrTooLarge):
		http.Error(w, fmt.Sprintf("file larger than %d bytes", MaxFileSize), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrUnsupported):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("prescriptions handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(p Prescription, today time.Time) prescriptionResponse {
	links := make([]linkResponse, 0, len(p.Links))
	for _, l := range p.Links {
		links = append(links, linkResponse{MedicationID: l.MedicationID, PatientID: l.PatientID})
	}
	return prescriptionResponse{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		PatientID:   p.PatientID,
		Type:        p.Type,
		IssueDate:   p.IssueDate.Format(dates.Layout),
		ExpiryDate:  p.ExpiryDate.Format(dates.Layout),
		Expired:     p.Expired(today),
		Reusable:    p.Reusable,
		Notes:       p.Notes,
		File: fileResponse{
			Name:        p.File.Name,
			ContentType: p.File.ContentType,
			Size:        p.File.Size,
		},
		Links:     links,
		CreatedAt: p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
