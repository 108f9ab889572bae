package prescriptions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deja/internal/domain/medications"
	"deja/internal/platform/dates"
	"deja/internal/ports/blob"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrTooLarge     = errors.New("file too large")
	ErrUnsupported  = errors.New("unsupported file type")
)

const MaxFileSize = 10 << 20

var allowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
}

type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

type PosologyLookup interface {
	GetPosology(ctx context.Context, medicationID, patientID string) (medications.Posology, error)
}

type Service struct {
	repo       Repository
	files      blob.Store
	patients   PatientOwnerLookup
	posologies PosologyLookup

	log zerolog.Logger
	now func() time.Time
}

func NewService(repo Repository, files blob.Store, patients PatientOwnerLookup, posologies PosologyLookup, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		files:      files,
		patients:   patients,
		posologies: posologies,
		log:        log,
		now:        time.Now,
	}
}

type CreateInput struct {
	PatientID     string
	Type          string
	IssueDate     time.Time
	Reusable      bool
	Notes         string
	MedicationIDs []string

	FileName    string
	ContentType string // del header multipart; si falta se detecta
	Body        io.Reader
}

// Create sube el archivo al blob store y guarda la metadata.
// Si falla el guardado de metadata, se borra el blob.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Prescription, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return Prescription{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if err := s.checkPatient(ctx, userID, patientID); err != nil {
		return Prescription{}, err
	}

	typ := Type(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = TypeSimple
	}
	if !typ.Valid() {
		return Prescription{}, fmt.Errorf("%w: type must be simple, B, C1 or C2", ErrInvalidInput)
	}
	if in.IssueDate.IsZero() {
		return Prescription{}, fmt.Errorf("%w: issue_date is required", ErrInvalidInput)
	}
	if in.Body == nil {
		return Prescription{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}

	links, err := s.links(ctx, patientID, in.MedicationIDs)
	if err != nil {
		return Prescription{}, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, MaxFileSize+1))
	if err != nil {
		return Prescription{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return Prescription{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if len(data) > MaxFileSize {
		return Prescription{}, ErrTooLarge
	}

	ct, ext, err := contentType(in.ContentType, data)
	if err != nil {
		return Prescription{}, err
	}

	now := s.now()
	issue := dates.Day(in.IssueDate)
	p := Prescription{
		ID:          uuid.NewString(),
		OwnerUserID: userID,
		PatientID:   patientID,
		Type:        typ,
		IssueDate:   issue,
		ExpiryDate:  ExpiryFor(typ, issue),
		Reusable:    in.Reusable,
		Notes:       strings.TrimSpace(in.Notes),
		Links:       links,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.File = File{
		Name:        fileName(in.FileName, ext),
		ContentType: ct,
		Size:        int64(len(data)),
		Key:         path.Join("prescriptions", userID, p.ID+ext),
	}

	if err := s.files.Put(ctx, p.File.Key, bytes.NewReader(data), p.File.Size, ct); err != nil {
		return Prescription{}, fmt.Errorf("store file: %w", err)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if derr := s.files.Delete(ctx, p.File.Key); derr != nil {
			s.log.Warn().Err(derr).Str("key", p.File.Key).Msg("orphan prescription file")
		}
		return Prescription{}, err
	}
	return p, nil
}

func (s *Service) GetOwned(ctx context.Context, id, userID string) (Prescription, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Prescription{}, err
	}
	if p.OwnerUserID != userID {
		return Prescription{}, ErrForbidden
	}
	return p, nil
}

// List del representante, opcionalmente por paciente. Orden: vence antes primero.
func (s *Service) List(ctx context.Context, userID, patientID string) ([]Prescription, error) {
	var (
		items []Prescription
		err   error
	)
	if patientID = strings.TrimSpace(patientID); patientID != "" {
		if err := s.checkPatient(ctx, userID, patientID); err != nil {
			return nil, err
		}
		items, err = s.repo.ListByPatient(ctx, patientID)
	} else {
		items, err = s.repo.ListByOwner(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpiryDate.Before(items[j].ExpiryDate)
	})
	return items, nil
}

func (s *Service) ListOwners(ctx context.Context) ([]string, error) {
	return s.repo.ListOwners(ctx)
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	p, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, p.File.Key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Warn().Err(err).Str("key", p.File.Key).Msg("delete prescription file failed")
	}
	return nil
}

// Open devuelve el archivo para descarga; el caller cierra el reader.
func (s *Service) Open(ctx context.Context, id, userID string) (Prescription, io.ReadCloser, error) {
	p, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return Prescription{}, nil, err
	}
	rc, _, err := s.files.Get(ctx, p.File.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return Prescription{}, nil, ErrNotFound
	}
	if err != nil {
		return Prescription{}, nil, err
	}
	return p, rc, nil
}

// PatientInUse bloquea borrar pacientes con recetas.
func (s *Service) PatientInUse(ctx context.Context, patientID string) (bool, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// Today para alertas y respuestas.
func (s *Service) Today() time.Time {
	return dates.Day(s.now())
}

func (s *Service) checkPatient(ctx context.Context, userID, patientID string) error {
	owner, err := s.patients.OwnerOf(ctx, patientID)
	if err != nil {
		return fmt.Errorf("%w: unknown patient", ErrNotFound)
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) links(ctx context.Context, patientID string, medicationIDs []string) ([]Link, error) {
	seen := map[string]bool{}
	out := []Link{}
	for _, raw := range medicationIDs {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.posologies.GetPosology(ctx, id, patientID); err != nil {
			if errors.Is(err, medications.ErrNotFound) {
				return nil, fmt.Errorf("%w: medication %s is not assigned to the patient", ErrInvalidInput, id)
			}
			return nil, err
		}
		out = append(out, Link{MedicationID: id, PatientID: patientID})
	}
	return out, nil
}

func contentType(declared string, data []byte) (string, string, error) {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
	}
	ext, ok := allowedContentTypes[ct]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupported, ct)
	}
	return ct, ext, nil
}

func fileName(raw, ext string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "prescription" + ext
	}
	return name
}
