package localstore

import (
	"context"

	"stealthcompany.com/clinicportal/internal/clinic"
)

const (
	PrescriptionsKey     = "clinic-prescriptions"
	PrescriptionsUpdated = "prescriptionUpdated"
)

type PrescriptionService struct {
	items *Collection[clinic.Prescription]
}

func NewPrescriptionService(local *Local) *PrescriptionService {
	return &PrescriptionService{
		items: NewCollection(local, PrescriptionsKey, PrescriptionsUpdated,
			func(p clinic.Prescription) string { return p.ID }),
	}
}

func (s *PrescriptionService) GetAll(ctx context.Context) []clinic.Prescription {
	return s.items.GetAll(ctx)
}

func (s *PrescriptionService) GetForPatient(ctx context.Context, patientID string) []clinic.Prescription {
	return s.items.Filter(ctx, func(p clinic.Prescription) bool { return p.PatientID == patientID })
}

func (s *PrescriptionService) GetForDoctor(ctx context.Context, doctorID string) []clinic.Prescription {
	return s.items.Filter(ctx, func(p clinic.Prescription) bool { return p.DoctorID == doctorID })
}

func (s *PrescriptionService) GetByID(ctx context.Context, id string) (*clinic.Prescription, bool) {
	p, ok := s.items.GetByID(ctx, id)
	if !ok {
		return nil, false
	}
	return &p, true
}

func (s *PrescriptionService) Add(ctx context.Context, p clinic.Prescription) (clinic.Prescription, error) {
	return s.items.Add(ctx, p)
}

func (s *PrescriptionService) Update(ctx context.Context, id string, fields map[string]any) (*clinic.Prescription, bool, error) {
	p, ok, err := s.items.Update(ctx, id, fields)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &p, true, nil
}

func (s *PrescriptionService) Delete(ctx context.Context, id string) (bool, error) {
	return s.items.Delete(ctx, id)
}

func (s *PrescriptionService) Clear(ctx context.Context) error {
	return s.items.Clear(ctx)
}

// InitializeDemoData stores the demo prescription when none exist.
func (s *PrescriptionService) InitializeDemoData(ctx context.Context) error {
	now := s.items.now().UTC()
	_, err := s.items.Seed(ctx, []clinic.Prescription{{
		ID:           "demo-presc-1",
		PatientID:    "demo-patient-1",
		PatientName:  "Arjun Singh",
		PatientEmail: "arjun.singh@email.com",
		DoctorID:     "demo-doctor-1",
		DoctorName:   "Dr. Demo Doctor",
		Diagnosis:    "Seasonal Allergies",
		Medicines: []clinic.Medicine{{
			Name:   "Cetirizine",
			Dosage: "10mg",
			Frequency: clinic.Frequency{Schedule: &clinic.MealSchedule{
				Breakfast: &clinic.MealTiming{},
				Lunch:     &clinic.MealTiming{},
				Dinner:    &clinic.MealTiming{After: true},
			}},
			Duration: "7 days",
		}},
		LabTests:       clinic.LabTests{},
		Instructions:   "Avoid exposure to allergens",
		PrescribedDate: now,
		Status:         clinic.PrescriptionActive,
		CreatedAt:      now,
	}})
	return err
}
