package localstore

import (
	"context"
	"time"

	"stealthcompany.com/clinicportal/internal/clinic"
)

const (
	ReportsKey     = "clinic-medical-reports"
	ReportsUpdated = "medicalReportUpdated"
)

type ReportService struct {
	items *Collection[clinic.MedicalReport]
}

func NewReportService(local *Local) *ReportService {
	return &ReportService{
		items: NewCollection(local, ReportsKey, ReportsUpdated,
			func(r clinic.MedicalReport) string { return r.ID }),
	}
}

// GetAll returns every stored report regardless of patient.
func (s *ReportService) GetAll(ctx context.Context) []clinic.MedicalReport {
	return s.items.GetAll(ctx)
}

func (s *ReportService) GetForPatient(ctx context.Context, patientID string) []clinic.MedicalReport {
	return s.items.Filter(ctx, func(r clinic.MedicalReport) bool { return r.PatientID == patientID })
}

func (s *ReportService) GetByID(ctx context.Context, id string) (*clinic.MedicalReport, bool) {
	r, ok := s.items.GetByID(ctx, id)
	if !ok {
		return nil, false
	}
	return &r, true
}

func (s *ReportService) Add(ctx context.Context, r clinic.MedicalReport) (clinic.MedicalReport, error) {
	return s.items.Add(ctx, r)
}

// Put replaces the report with the same id or appends it. Used to cache
// remote reports locally.
func (s *ReportService) Put(ctx context.Context, r clinic.MedicalReport) error {
	items := s.items.GetAll(ctx)
	for i := range items {
		if items[i].ID == r.ID {
			items[i] = r
			return s.items.save(ctx, items)
		}
	}
	return s.items.save(ctx, append(items, r))
}

func (s *ReportService) Update(ctx context.Context, id string, fields map[string]any) (*clinic.MedicalReport, bool, error) {
	r, ok, err := s.items.Update(ctx, id, fields)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &r, true, nil
}

func (s *ReportService) Delete(ctx context.Context, id string) (bool, error) {
	return s.items.Delete(ctx, id)
}

func (s *ReportService) Clear(ctx context.Context) error {
	return s.items.Clear(ctx)
}

func (s *ReportService) InitializeDemoData(ctx context.Context) error {
	at := s.items.now().UTC().Add(-15 * 24 * time.Hour)
	day := at.Format("2006-01-02")
	_, err := s.items.Seed(ctx, []clinic.MedicalReport{{
		ID:          "demo-report-1",
		PatientID:   "demo-patient-1",
		PatientName: "Arjun Singh",
		FileName:    "blood_test_demo.pdf",
		FileSize:    2411724,
		ReportType:  "blood-test",
		ReportDate:  day,
		UploadDate:  at,
		Status:      clinic.ReportAnalyzed,
		LabName:     "SRL Diagnostics",
		Cost:        "₹1,250",
		AIAnalysis: &clinic.Analysis{
			Summary:    "Complete blood count shows normal values across all parameters. Hemoglobin and other markers are within healthy range.",
			ReportType: "Complete Blood Count (CBC)",
			Parameters: []clinic.HealthParameter{
				{Name: "Hemoglobin", Value: "14.2", Unit: "g/dL", NormalRange: "13.0-17.0", Status: "normal", Category: "Blood"},
				{Name: "White Blood Cells", Value: "7.5", Unit: "×10³/μL", NormalRange: "4.0-10.0", Status: "normal", Category: "Blood"},
				{Name: "Platelets", Value: "250", Unit: "×10³/μL", NormalRange: "150-400", Status: "normal", Category: "Blood"},
			},
			RiskFactors: []clinic.RiskFactor{},
			Recommendations: []string{
				"Continue current healthy lifestyle",
				"Regular exercise and balanced diet",
				"Next blood test in 6 months",
			},
			AnalyzedAt: at,
		},
		CreatedAt: at,
	}})
	return err
}
