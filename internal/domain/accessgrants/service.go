package accessgrants

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type InviteInput struct {
	PatientID     string
	OwnerUserID   string
	GranteeUserID string
	Scopes        []Scope
}

// Invite crea una invitación o, si ya existe una no revocada para el mismo
// (patient, owner, grantee), actualiza sus scopes y revoca duplicados.
func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	patientID := strings.TrimSpace(in.PatientID)
	ownerID := strings.TrimSpace(in.OwnerUserID)
	granteeID := strings.TrimSpace(in.GranteeUserID)

	if patientID == "" || ownerID == "" || granteeID == "" || ownerID == granteeID {
		return Grant{}, ErrInvalidInput
	}

	scopes := append([]Scope(nil), DefaultScopes...)
	if len(in.Scopes) > 0 {
		var err error
		scopes, err = normalizeScopesStrict(in.Scopes)
		if err != nil {
			return Grant{}, err
		}
		if len(scopes) == 0 {
			return Grant{}, ErrInvalidInput
		}
	}

	now := s.now()

	matches, err := s.matching(ctx, patientID, ownerID, granteeID)
	if err != nil {
		return Grant{}, err
	}
	if winner, ok := latest(matches); ok && winner.Status != StatusRevoked {
		if err := s.revokeOthers(ctx, winner.ID, matches, now); err != nil {
			return Grant{}, err
		}

		winner.Scopes = scopes
		winner.UpdatedAt = now
		if err := s.repo.Update(ctx, winner); err != nil {
			return Grant{}, err
		}
		return winner, nil
	}

	g := Grant{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		OwnerUserID:   ownerID,
		GranteeUserID: granteeID,
		Scopes:        scopes,
		Status:        StatusInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Accept activa el grant (solo el grantee). Idempotente.
// Cualquier otro grant no revocado para el mismo (patient, grantee) queda revocado.
func (s *Service) Accept(ctx context.Context, grantID, granteeUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if grantID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.GranteeUserID != granteeUserID {
		return Grant{}, ErrForbidden
	}

	switch g.Status {
	case StatusActive:
		return g, nil
	case StatusInvited:
	default:
		return Grant{}, ErrBadState
	}

	now := s.now()

	all, err := s.repo.ListByPatient(ctx, g.PatientID)
	if err != nil {
		return Grant{}, err
	}
	sameGrantee := make([]Grant, 0, len(all))
	for _, other := range all {
		if other.GranteeUserID == granteeUserID {
			sameGrantee = append(sameGrantee, other)
		}
	}
	if err := s.revokeOthers(ctx, g.ID, sameGrantee, now); err != nil {
		return Grant{}, err
	}

	g.Status = StatusActive
	g.UpdatedAt = now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Revoke (solo owner). Idempotente.
func (s *Service) Revoke(ctx context.Context, grantID, ownerUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	if grantID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByGrantee(ctx, granteeUserID)
}

func (s *Service) GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (Grant, error) {
	patientID = strings.TrimSpace(patientID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if patientID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, patientID, granteeUserID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// Authorize: el owner pasa siempre; cualquier otro usuario necesita un grant
// activo sobre el paciente que incluya scope.
func (s *Service) Authorize(ctx context.Context, ownerUserID, patientID, userID string, scope Scope) error {
	if userID != "" && userID == ownerUserID {
		return nil
	}
	g, err := s.GetActiveGrant(ctx, patientID, userID)
	if err != nil || !HasScope(g, scope) {
		return ErrForbidden
	}
	return nil
}

// SharedPatientIDs devuelve los pacientes compartidos con userID (grants activos con scope).
func (s *Service) SharedPatientIDs(ctx context.Context, userID string, scope Scope) ([]string, error) {
	grants, err := s.ListByGrantee(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Status != StatusActive || !HasScope(g, scope) {
			continue
		}
		if _, ok := seen[g.PatientID]; ok {
			continue
		}
		seen[g.PatientID] = struct{}{}
		out = append(out, g.PatientID)
	}
	return out, nil
}

func HasScope(g Grant, scope Scope) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func (s *Service) matching(ctx context.Context, patientID, ownerID, granteeID string) ([]Grant, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]Grant, 0, len(items))
	for _, g := range items {
		if g.OwnerUserID == ownerID && g.GranteeUserID == granteeID {
			out = append(out, g)
		}
	}
	return out, nil
}

func latest(items []Grant) (Grant, bool) {
	var winner Grant
	found := false
	for _, g := range items {
		if !found || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			found = true
		}
	}
	return winner, found
}

func (s *Service) revokeOthers(ctx context.Context, keepID string, items []Grant, now time.Time) error {
	for _, g := range items {
		if g.ID == keepID || g.Status == StatusRevoked {
			continue
		}
		g.Status = StatusRevoked
		g.UpdatedAt = now
		g.RevokedAt = &now
		if err := s.repo.Update(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func normalizeScopesStrict(in []Scope) ([]Scope, error) {
	allowed := map[Scope]struct{}{
		ScopePatientRead:     {},
		ScopeMedicationsRead: {},
		ScopeSchedulesRead:   {},
		ScopeStockWrite:      {},
	}

	seen := map[Scope]struct{}{}
	out := make([]Scope, 0, len(in))
	for _, raw := range in {
		s := Scope(strings.TrimSpace(string(raw)))
		if s == "" {
			continue
		}
		if _, ok := allowed[s]; !ok {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
