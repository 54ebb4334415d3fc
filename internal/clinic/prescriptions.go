package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

type PrescriptionList struct {
	Prescriptions  []Prescription `json:"prescriptions"`
	TotalCount     int            `json:"totalCount"`
	ActiveCount    int            `json:"activeCount"`
	CompletedCount int            `json:"completedCount"`
}

type PrescriptionRequest struct {
	PatientID    string     `json:"patientId"`
	PatientName  string     `json:"patientName,omitempty"`
	PatientEmail string     `json:"patientEmail,omitempty"`
	Diagnosis    string     `json:"diagnosis"`
	Medicines    []Medicine `json:"medicines"`
	LabTests     LabTests   `json:"labTests"`
	Instructions string     `json:"instructions"`
	FollowUpDate string     `json:"followUpDate,omitempty"`
	Status       string     `json:"status,omitempty"`
}

func (r PrescriptionRequest) validate(requirePatient bool) error {
	var f fieldErrors
	if requirePatient {
		f.require("patientId", r.PatientID)
	}
	for i, m := range r.Medicines {
		f.require(fmt.Sprintf("medicines[%d].name", i), m.Name)
	}
	f.date("followUpDate", r.FollowUpDate)
	f.oneOf("status", r.Status, prescriptionStatuses)
	return f.err()
}

func (r PrescriptionRequest) Validate() error {
	return r.validate(true)
}

func SummarizePrescriptions(list []Prescription) PrescriptionList {
	sum := PrescriptionList{Prescriptions: list, TotalCount: len(list)}
	for _, p := range list {
		switch p.Status {
		case PrescriptionActive:
			sum.ActiveCount++
		case PrescriptionCompleted:
			sum.CompletedCount++
		}
	}
	return sum
}

func sortPrescriptionsDesc(list []Prescription) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].PrescribedDate.After(list[j].PrescribedDate)
	})
}

// Prescriptions lists the caller's prescriptions, newest first.
func (s *Service) Prescriptions(ctx context.Context, userID string) (*PrescriptionList, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}

	list, err := listForRole[Prescription](ctx, s, kindPrescription, p)
	if err != nil {
		return nil, err
	}
	sortPrescriptionsDesc(list)

	sum := SummarizePrescriptions(list)
	return &sum, nil
}

// CreatePrescription stores a prescription written by the calling doctor.
// The patient does not need a profile; the name is taken from the request
// when none exists. A retried request creates a duplicate.
func (s *Service) CreatePrescription(ctx context.Context, doctorID string, req PrescriptionRequest) (*Prescription, error) {
	doctor, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if patient, err := s.Profile(ctx, req.PatientID); err == nil {
		req.PatientName = firstNonEmpty(req.PatientName, patient.FullName)
		req.PatientEmail = firstNonEmpty(req.PatientEmail, patient.Email)
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	return s.storePrescription(ctx, doctor, req)
}

// AddPatientPrescription writes a prescription for an existing patient.
func (s *Service) AddPatientPrescription(ctx context.Context, doctorID, patientID string, req PrescriptionRequest) (*Prescription, error) {
	doctor, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly)
	if err != nil {
		return nil, err
	}
	if err := req.validate(false); err != nil {
		return nil, err
	}

	patient, err := s.Profile(ctx, patientID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(ErrPatientNotFound)
		}
		return nil, err
	}
	if patient.Role != RolePatient {
		return nil, apperr.NotFound(ErrPatientNotFound)
	}

	req.PatientID = patient.ID
	req.PatientName = patient.FullName
	req.PatientEmail = patient.Email
	return s.storePrescription(ctx, doctor, req)
}

func (s *Service) storePrescription(ctx context.Context, doctor *UserProfile, req PrescriptionRequest) (*Prescription, error) {
	now := s.now()
	p := &Prescription{
		ID:                   "presc_" + s.newID(),
		PatientID:            req.PatientID,
		PatientName:          req.PatientName,
		PatientEmail:         req.PatientEmail,
		DoctorID:             doctor.ID,
		DoctorName:           doctor.FullName,
		DoctorSpecialization: firstNonEmpty(doctor.Specialization, DefaultSpecialization),
		Diagnosis:            req.Diagnosis,
		Medicines:            req.Medicines,
		LabTests:             req.LabTests,
		Instructions:         req.Instructions,
		FollowUpDate:         req.FollowUpDate,
		PrescribedDate:       now,
		Status:               firstNonEmpty(req.Status, PrescriptionActive),
		CreatedAt:            now,
	}
	if p.Medicines == nil {
		p.Medicines = []Medicine{}
	}
	if p.LabTests == nil {
		p.LabTests = LabTests{}
	}

	owners := map[string]string{sidePatient: p.PatientID, sideDoctor: p.DoctorID}
	if err := s.writeIndexed(ctx, kindPrescription, p.ID, owners, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePrescription removes a prescription the calling doctor wrote.
func (s *Service) DeletePrescription(ctx context.Context, doctorID, id string) error {
	if _, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly); err != nil {
		return err
	}

	p, err := kvstore.GetAs[Prescription](ctx, s.store, recordKey(kindPrescription, id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return apperr.NotFound(ErrPrescriptionNotFound)
		}
		return fmt.Errorf("failed to load prescription %s: %w", id, err)
	}
	if p.DoctorID != doctorID {
		return apperr.NotFound(ErrPrescriptionNotFound)
	}

	owners := map[string]string{sidePatient: p.PatientID, sideDoctor: p.DoctorID}
	return s.deleteIndexed(ctx, kindPrescription, id, owners)
}
