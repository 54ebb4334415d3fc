package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

const (
	testPatientEmail    = "patient@test.com"
	testPatientPassword = "password123"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`

	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	BloodGroup  string `json:"bloodGroup,omitempty"`

	MedicalLicenseNumber string   `json:"medicalLicenseNumber,omitempty"`
	Specialization       string   `json:"specialization,omitempty"`
	Experience           string   `json:"experience,omitempty"`
	Rating               float64  `json:"rating,omitempty"`
	ConsultationFee      float64  `json:"consultationFee,omitempty"`
	Hospital             string   `json:"hospital,omitempty"`
	Qualifications       string   `json:"qualifications,omitempty"`
	AvailableSlots       []string `json:"availableSlots,omitempty"`
	AvailableDays        []string `json:"availableDays,omitempty"`
}

func (r SignupRequest) Validate() error {
	var f fieldErrors
	f.require("email", r.Email)
	f.email("email", r.Email)
	f.require("password", r.Password)
	f.require("fullName", r.FullName)
	f.require("role", string(r.Role))
	if r.Role != "" && !r.Role.Valid() {
		f = append(f, "role must be one of patient, doctor")
	}
	f.date("dateOfBirth", r.DateOfBirth)
	return f.err()
}

// Signup creates the identity and the profile. Not idempotent: a retried
// request after a lost response fails with "already registered".
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*UserProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.accounts.CreateUser(ctx, req.Email, req.Password, req.FullName, string(req.Role))
	if err != nil {
		return nil, err
	}

	p := newProfile(u.ID, req, s.now())
	if err := s.saveProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func newProfile(id string, req SignupRequest, now time.Time) *UserProfile {
	p := &UserProfile{
		ID:        id,
		Email:     identity.NormalizeEmail(req.Email),
		FullName:  req.FullName,
		Phone:     req.Phone,
		Role:      req.Role,
		CreatedAt: now,
	}

	switch req.Role {
	case RolePatient:
		p.DateOfBirth = req.DateOfBirth
		p.Gender = req.Gender
		p.BloodGroup = req.BloodGroup
	case RoleDoctor:
		p.MedicalLicenseNumber = req.MedicalLicenseNumber
		p.Specialization = req.Specialization
		p.Experience = firstNonEmpty(req.Experience, DefaultExperience)
		p.Rating = firstPositive(req.Rating, DefaultRating)
		p.ConsultationFee = firstPositive(req.ConsultationFee, DefaultConsultationFee)
		p.Hospital = firstNonEmpty(req.Hospital, DefaultHospital)
		p.Qualifications = firstNonEmpty(req.Qualifications, req.MedicalLicenseNumber, DefaultQualifications)
		p.AvailableSlots = firstNonEmptyList(req.AvailableSlots, DefaultSlots)
		p.AvailableDays = firstNonEmptyList(req.AvailableDays, DefaultDays)
		p.IsActive = true
	}
	return p
}

func (s *Service) saveProfile(ctx context.Context, p *UserProfile) error {
	if err := s.store.Set(ctx, userKey(p.ID), p); err != nil {
		return fmt.Errorf("failed to store profile %s: %w", p.ID, err)
	}
	if err := s.store.Set(ctx, userEmailKey(p.Email), p.ID); err != nil {
		return fmt.Errorf("failed to index email for %s: %w", p.ID, err)
	}
	return nil
}

// EnsureTestPatient creates patient@test.com once and (re)writes its profile.
func (s *Service) EnsureTestPatient(ctx context.Context) (string, error) {
	u, err := s.accounts.CreateUser(ctx, testPatientEmail, testPatientPassword, "Arjun Sharma", string(RolePatient))
	if err != nil {
		if !apperr.Is(err, apperr.KindValidation) {
			return "", err
		}
		u, err = s.accounts.Lookup(ctx, testPatientEmail)
		if err != nil {
			return "", fmt.Errorf("failed to find test patient: %w", err)
		}
	}

	p := &UserProfile{
		ID:          u.ID,
		Email:       testPatientEmail,
		FullName:    "Arjun Sharma",
		Phone:       "+91 98765 43210",
		Role:        RolePatient,
		DateOfBirth: "1985-06-15",
		Gender:      "male",
		BloodGroup:  "O+",
		CreatedAt:   s.now(),
	}
	if err := s.saveProfile(ctx, p); err != nil {
		return "", err
	}
	return u.ID, nil
}

// Doctors lists every doctor profile, best rated first.
func (s *Service) Doctors(ctx context.Context) ([]Doctor, error) {
	users, err := kvstore.ListByPrefix[UserProfile](ctx, s.store, kvstore.Prefix("user"))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	doctors := make([]Doctor, 0)
	for i := range users {
		if users[i].Role != RoleDoctor {
			continue
		}
		d, err := s.doctorFor(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, *d)
	}

	sort.SliceStable(doctors, func(i, j int) bool { return doctors[i].Rating > doctors[j].Rating })
	return doctors, nil
}

// Doctor returns a single directory entry.
func (s *Service) Doctor(ctx context.Context, id string) (*Doctor, error) {
	d, err := kvstore.GetAs[Doctor](ctx, s.store, doctorKey(id))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to load doctor %s: %w", id, err)
	}

	p, err := s.Profile(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(ErrDoctorNotFound)
		}
		return nil, err
	}
	if p.Role != RoleDoctor {
		return nil, apperr.NotFound(ErrDoctorNotFound)
	}
	return doctorFromProfile(p), nil
}

// doctorFor prefers a full doctor:{id} record over the signup profile.
func (s *Service) doctorFor(ctx context.Context, p *UserProfile) (*Doctor, error) {
	d, err := kvstore.GetAs[Doctor](ctx, s.store, doctorKey(p.ID))
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, kvstore.ErrNotFound):
		return doctorFromProfile(p), nil
	default:
		log.Warn().Err(err).Str("doctor_id", p.ID).Msg("Failed to load doctor record, using profile")
		return doctorFromProfile(p), nil
	}
}

func doctorFromProfile(p *UserProfile) *Doctor {
	return &Doctor{
		ID:              p.ID,
		Email:           p.Email,
		Name:            p.FullName,
		Specialization:  firstNonEmpty(p.Specialization, DefaultSpecialization),
		Experience:      firstNonEmpty(p.Experience, DefaultExperience),
		Rating:          firstPositive(p.Rating, DefaultRating),
		ConsultationFee: firstPositive(p.ConsultationFee, DefaultConsultationFee),
		Hospital:        firstNonEmpty(p.Hospital, DefaultHospital),
		Phone:           p.Phone,
		Qualifications:  firstNonEmpty(p.Qualifications, p.MedicalLicenseNumber, DefaultQualifications),
		AvailableSlots:  firstNonEmptyList(p.AvailableSlots, DefaultSlots),
		AvailableDays:   firstNonEmptyList(p.AvailableDays, DefaultDays),
		CreatedAt:       p.CreatedAt,
		IsActive:        true,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonEmptyList(v, fallback []string) []string {
	if len(v) > 0 {
		return v
	}
	return append([]string(nil), fallback...)
}
