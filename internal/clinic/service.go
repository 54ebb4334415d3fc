// Package clinic holds the portal's records and the rules the HTTP handlers
// apply to them. Every write goes through a kvstore.Store.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

const (
	ErrUserNotFound         = "User not found"
	ErrProfileNotFound      = "User profile not found"
	ErrDoctorNotFound       = "Doctor not found"
	ErrPatientNotFound      = "Patient not found"
	ErrAppointmentNotFound  = "Appointment not found"
	ErrPrescriptionNotFound = "Prescription not found"
	ErrReportNotFound       = "Report not found"
	ErrDoctorsOnly          = "Unauthorized - Doctor access only"
	ErrPatientsOnly         = "Unauthorized - Patient access only"
)

// fetchConcurrency bounds parallel store reads within one request.
const fetchConcurrency = 8

// Accounts is the identity provider as seen by the service.
type Accounts interface {
	CreateUser(ctx context.Context, email, password, fullName, role string) (*identity.User, error)
	Lookup(ctx context.Context, email string) (*identity.User, error)
}

type Service struct {
	store    kvstore.Store
	accounts Accounts
	locker   *kvstore.Locker
	scorer   HealthScorer
	now      func() time.Time
	newID    func() string
}

func NewService(store kvstore.Store, accounts Accounts, locker *kvstore.Locker) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		locker:   locker,
		scorer:   ActivityHealthScorer{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithHealthScorer replaces the dashboard health score heuristic.
func (s *Service) WithHealthScorer(h HealthScorer) *Service {
	s.scorer = h
	return s
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}

// Profile loads user:{id}.
func (s *Service) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := kvstore.GetAs[UserProfile](ctx, s.store, userKey(userID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.NotFound(ErrProfileNotFound)
		}
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return p, nil
}

// caller loads the profile of the authenticated user.
func (s *Service) caller(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(ErrUserNotFound)
		}
		return nil, err
	}
	return p, nil
}

// requireRole loads the caller's profile and checks the role.
func (s *Service) requireRole(ctx context.Context, userID string, role Role, forbidden string) (*UserProfile, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Role != role {
		return nil, apperr.Forbidden(forbidden)
	}
	return p, nil
}

// writeIndexed stores a record under its canonical key and one index entry
// per owner. Index entries go first: a failure part way leaves index entries
// without a canonical record, which listings skip, so the caller never sees
// a half-written record.
func (s *Service) writeIndexed(ctx context.Context, kind, id string, owners map[string]string, value any) error {
	sides := make([]string, 0, len(owners))
	for side := range owners {
		sides = append(sides, side)
	}
	sort.Strings(sides)

	for _, side := range sides {
		owner := owners[side]
		if owner == "" {
			continue
		}
		if err := s.store.Set(ctx, indexKey(kind, side, owner, id), id); err != nil {
			return fmt.Errorf("failed to index %s %s for %s %s: %w", kind, id, side, owner, err)
		}
	}

	if err := s.store.Set(ctx, recordKey(kind, id), value); err != nil {
		return fmt.Errorf("failed to store %s %s: %w", kind, id, err)
	}
	return nil
}

// deleteIndexed removes the canonical record first so listings stop showing
// it even if an index entry is left behind.
func (s *Service) deleteIndexed(ctx context.Context, kind, id string, owners map[string]string) error {
	if err := s.store.Delete(ctx, recordKey(kind, id)); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	for side, owner := range owners {
		if owner == "" {
			continue
		}
		if err := s.store.Delete(ctx, indexKey(kind, side, owner, id)); err != nil {
			return fmt.Errorf("failed to delete %s index for %s %s: %w", kind, side, owner, err)
		}
	}
	return nil
}

// listIndexed resolves the index entries of one owner to canonical records.
// Ids without a canonical record are skipped.
func listIndexed[T any](ctx context.Context, s *Service, kind, side, owner string) ([]T, error) {
	entries, err := s.store.GetByPrefix(ctx, indexPrefix(kind, side, owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s index for %s %s: %w", kind, side, owner, err)
	}

	results := make([]*T, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, e := range entries {
		id := e.Key[len(indexPrefix(kind, side, owner)):]
		g.Go(func() error {
			rec, err := kvstore.GetAs[T](gctx, s.store, recordKey(kind, id))
			if err != nil {
				if errors.Is(err, kvstore.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// listForRole picks the patient or doctor index for the caller.
func listForRole[T any](ctx context.Context, s *Service, kind string, p *UserProfile) ([]T, error) {
	switch p.Role {
	case RolePatient:
		return listIndexed[T](ctx, s, kind, sidePatient, p.ID)
	case RoleDoctor:
		return listIndexed[T](ctx, s, kind, sideDoctor, p.ID)
	default:
		return []T{}, nil
	}
}
