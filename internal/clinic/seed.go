package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
	"stealthcompany.com/clinicportal/internal/metrics"
)

const ErrSeedInProgress = "Sample data initialization already in progress"

// SeedResult reports how many records a seed run wrote.
type SeedResult struct {
	Appointments  int `json:"appointments"`
	Prescriptions int `json:"prescriptions"`
	Reports       int `json:"reports"`
	Activities    int `json:"activities"`
}

func seedLockName(userID string) string {
	return "seed:" + userID
}

// seedID derives a stable id so a second run overwrites the first.
func seedID(userID, local string) string {
	return "sample-" + userID + "-" + local
}

// SeedSampleData writes the demo records for the caller's role. Running it
// again rewrites the same keys.
func (s *Service) SeedSampleData(ctx context.Context, userID string) (*SeedResult, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}

	var res *SeedResult
	run := func(ctx context.Context) error {
		var err error
		switch p.Role {
		case RolePatient:
			res, err = s.seedPatient(ctx, p)
		case RoleDoctor:
			res, err = s.seedDoctor(ctx, p)
		default:
			res = &SeedResult{}
		}
		return err
	}

	if s.locker != nil {
		err = s.locker.WithLock(ctx, seedLockName(userID), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		if errors.Is(err, kvstore.ErrLocked) {
			metrics.RecordSeed(string(p.Role), "locked")
			return nil, apperr.Validation(ErrSeedInProgress)
		}
		metrics.RecordSeed(string(p.Role), "error")
		return nil, err
	}

	metrics.RecordSeed(string(p.Role), "success")
	log.Info().Str("user_id", userID).Str("role", string(p.Role)).
		Int("appointments", res.Appointments).
		Int("prescriptions", res.Prescriptions).
		Int("reports", res.Reports).
		Msg("Sample data initialized")
	return res, nil
}

func (s *Service) seedPatient(ctx context.Context, p *UserProfile) (*SeedResult, error) {
	now := s.now()
	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(dateLayout) }
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }

	base := Appointment{
		PatientID:    p.ID,
		PatientName:  p.FullName,
		PatientEmail: p.Email,
		PatientPhone: p.Phone,
		IsActive:     true,
		BookedAt:     now,
	}
	apt := func(local, doctorID, doctorName, spec, hospital, date, clock, status, reason, kind string, fee float64) Appointment {
		a := base
		a.ID = seedID(p.ID, local)
		a.DoctorID = doctorID
		a.DoctorName = doctorName
		a.DoctorSpecialization = spec
		a.HospitalName = hospital
		a.AppointmentDate = date
		a.AppointmentTime = clock
		a.Status = status
		a.ReasonForVisit = reason
		a.AppointmentType = kind
		a.ConsultationFee = fee
		return a
	}
	appointments := []Appointment{
		apt("apt1", "dr1", "Dr. Priya Sharma", "Cardiologist", "Apollo Hospital, Mumbai", day(2), "10:00", StatusConfirmed, "Regular checkup", AppointmentInPerson, 800),
		apt("apt2", "dr2", "Dr. Rajesh Kumar", "Neurologist", "Fortis Hospital, Delhi", day(5), "14:30", StatusPending, "Follow-up consultation", AppointmentTelemedicine, 1200),
		apt("apt3", "dr1", "Dr. Priya Sharma", "Cardiologist", "Apollo Hospital, Mumbai", day(-15), "09:00", StatusCompleted, "Blood pressure check", AppointmentInPerson, 800),
		apt("apt4", "dr3", "Dr. Meera Reddy", "General Physician", "Max Healthcare, Bangalore", day(-60), "11:30", StatusCompleted, "Annual health checkup", AppointmentInPerson, 600),
		apt("apt5", "dr2", "Dr. Rajesh Kumar", "Neurologist", "Fortis Hospital, Delhi", day(-30), "15:00", StatusCompleted, "Consultation", AppointmentTelemedicine, 1200),
	}

	presc := func(local, doctorID, doctorName, spec, status string, prescribed time.Time, meds ...Medicine) Prescription {
		return Prescription{
			ID:                   seedID(p.ID, local),
			PatientID:            p.ID,
			PatientName:          p.FullName,
			PatientEmail:         p.Email,
			DoctorID:             doctorID,
			DoctorName:           doctorName,
			DoctorSpecialization: spec,
			Medicines:            meds,
			LabTests:             LabTests{},
			PrescribedDate:       prescribed,
			Status:               status,
			CreatedAt:            prescribed,
		}
	}
	prescriptions := []Prescription{
		presc("presc1", "dr1", "Dr. Priya Sharma", "Cardiologist", PrescriptionActive, ago(3),
			Medicine{Name: "Telmisartan", Dosage: "40mg", Frequency: Frequency{Text: "1x daily"}, Duration: "30 days"},
			Medicine{Name: "Metformin", Dosage: "500mg", Frequency: Frequency{Text: "2x daily"}, Duration: "30 days"}),
		presc("presc2", "dr1", "Dr. Priya Sharma", "Cardiologist", PrescriptionCompleted, ago(15),
			Medicine{Name: "Azithromycin", Dosage: "500mg", Frequency: Frequency{Text: "1x daily"}, Duration: "5 days"}),
		presc("presc3", "dr2", "Dr. Rajesh Kumar", "Neurologist", PrescriptionActive, ago(30),
			Medicine{Name: "Calcirol Sachet", Dosage: "60000 IU", Frequency: Frequency{Text: "Weekly"}, Duration: "8 weeks"}),
	}

	report := func(local, kind, file, lab, cost string, uploaded time.Time, summary string, params ...HealthParameter) MedicalReport {
		return MedicalReport{
			ID:          seedID(p.ID, local),
			PatientID:   p.ID,
			PatientName: p.FullName,
			FileName:    file,
			ReportType:  kind,
			ReportDate:  uploaded.Format(dateLayout),
			UploadDate:  uploaded,
			Status:      ReportAnalyzed,
			LabName:     lab,
			Cost:        cost,
			AIAnalysis: &Analysis{
				Summary:    summary,
				ReportType: kind,
				Parameters: params,
				AnalyzedAt: uploaded,
			},
			CreatedAt: uploaded,
		}
	}
	reports := []MedicalReport{
		report("report1", "blood-test", "blood-test.pdf", "SRL Diagnostics", "₹1,250", ago(7),
			"Overall health parameters are within normal range. Slight improvement in cholesterol levels noted.",
			HealthParameter{Name: "Total Cholesterol", Value: "185", Unit: "mg/dL", NormalRange: "<200", Status: "normal", Category: "Lipid Profile"},
			HealthParameter{Name: "Blood Glucose", Value: "95", Unit: "mg/dL", NormalRange: "70-100", Status: "normal", Category: "Blood Sugar"}),
		report("report2", "x-ray", "chest-xray.pdf", "Radiology Center", "", ago(45),
			"Chest X-ray shows clear lung fields with no abnormalities detected.",
			HealthParameter{Name: "Lung Fields", Value: "Clear", Status: "normal", Category: "Imaging"},
			HealthParameter{Name: "Heart Size", Value: "Normal", Status: "normal", Category: "Imaging"}),
		report("report3", "cardiology", "ecg.pdf", "Narayana Health Heart Centre", "₹800", ago(90),
			"Normal sinus rhythm with regular rate and no significant abnormalities.",
			HealthParameter{Name: "Heart Rate", Value: "72", Unit: "BPM", NormalRange: "60-100", Status: "normal", Category: "Cardiac"},
			HealthParameter{Name: "Rhythm", Value: "Sinus", Status: "normal", Category: "Cardiac"}),
	}

	// Sample counterparts have no accounts, so only the patient side is indexed.
	for i := range appointments {
		a := &appointments[i]
		if err := s.writeIndexed(ctx, kindAppointment, a.ID, map[string]string{sidePatient: p.ID}, a); err != nil {
			return nil, fmt.Errorf("failed to seed appointment: %w", err)
		}
	}
	for i := range prescriptions {
		pr := &prescriptions[i]
		if err := s.writeIndexed(ctx, kindPrescription, pr.ID, map[string]string{sidePatient: p.ID}, pr); err != nil {
			return nil, fmt.Errorf("failed to seed prescription: %w", err)
		}
	}
	for i := range reports {
		r := &reports[i]
		if err := s.writeIndexed(ctx, kindReport, r.ID, map[string]string{sidePatient: p.ID}, r); err != nil {
			return nil, fmt.Errorf("failed to seed report: %w", err)
		}
	}

	return &SeedResult{
		Appointments:  len(appointments),
		Prescriptions: len(prescriptions),
		Reports:       len(reports),
	}, nil
}

func (s *Service) seedDoctor(ctx context.Context, p *UserProfile) (*SeedResult, error) {
	now := s.now()
	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(dateLayout) }
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }
	doctor := doctorFromProfile(p)

	apt := func(local, patientID, patientName, date, clock, status, reason, kind string) Appointment {
		return Appointment{
			ID:                   seedID(p.ID, local),
			PatientID:            patientID,
			PatientName:          patientName,
			DoctorID:             p.ID,
			DoctorName:           doctor.Name,
			DoctorSpecialization: doctor.Specialization,
			HospitalName:         doctor.Hospital,
			AppointmentDate:      date,
			AppointmentTime:      clock,
			AppointmentType:      kind,
			ReasonForVisit:       reason,
			Status:               status,
			ConsultationFee:      doctor.ConsultationFee,
			IsActive:             true,
			BookedAt:             now,
		}
	}
	appointments := []Appointment{
		apt("apt1", "pat1", "Arjun Singh", day(0), "09:00", StatusConfirmed, "Regular checkup", AppointmentInPerson),
		apt("apt2", "pat2", "Priyanka Patel", day(0), "11:00", StatusPending, "Follow-up consultation", AppointmentInPerson),
		apt("apt3", "pat3", "Suresh Gupta", day(0), "14:00", StatusCompleted, "Blood pressure monitoring", AppointmentInPerson),
		apt("apt4", "pat4", "Kavya Iyer", day(1), "10:00", StatusConfirmed, "Consultation", AppointmentTelemedicine),
		apt("apt5", "pat5", "Vikram Joshi", day(-2), "15:30", StatusCompleted, "Prescription renewal", AppointmentInPerson),
		apt("apt6", "pat1", "Arjun Singh", day(-7), "09:00", StatusCompleted, "Follow-up", AppointmentInPerson),
	}

	activity := func(local, patientID, patientName, reportType string, at time.Time) Activity {
		return Activity{
			ID:          seedID(p.ID, local),
			DoctorID:    p.ID,
			PatientID:   patientID,
			PatientName: patientName,
			Type:        ActivityReportUploaded,
			ReportType:  reportType,
			OccurredAt:  at,
		}
	}
	activities := []Activity{
		activity("act1", "pat3", "Suresh Gupta", "x-ray", ago(1)),
		activity("act2", "pat1", "Arjun Singh", "blood-test", ago(3)),
		activity("act3", "pat4", "Kavya Iyer", "mri", ago(5)),
	}

	presc := func(local, patientID, patientName, status string, prescribed time.Time, med Medicine) Prescription {
		return Prescription{
			ID:                   seedID(p.ID, local),
			PatientID:            patientID,
			PatientName:          patientName,
			DoctorID:             p.ID,
			DoctorName:           doctor.Name,
			DoctorSpecialization: doctor.Specialization,
			Medicines:            []Medicine{med},
			LabTests:             LabTests{},
			PrescribedDate:       prescribed,
			Status:               status,
			CreatedAt:            prescribed,
		}
	}
	prescriptions := []Prescription{
		presc("doc_presc1", "pat1", "Arjun Singh", PrescriptionActive, ago(2),
			Medicine{Name: "Telmisartan", Dosage: "40mg", Frequency: Frequency{Text: "1x daily"}, Duration: "30 days"}),
		presc("doc_presc2", "pat2", "Priyanka Patel", PrescriptionActive, ago(5),
			Medicine{Name: "Metformin", Dosage: "500mg", Frequency: Frequency{Text: "2x daily"}, Duration: "30 days"}),
		presc("doc_presc3", "pat3", "Suresh Gupta", PrescriptionCompleted, ago(10),
			Medicine{Name: "Azithromycin", Dosage: "500mg", Frequency: Frequency{Text: "1x daily"}, Duration: "5 days"}),
	}

	report := func(local, patientID, patientName, kind, file, lab, cost string, uploaded time.Time, summary string) MedicalReport {
		return MedicalReport{
			ID:          seedID(p.ID, local),
			PatientID:   patientID,
			PatientName: patientName,
			DoctorID:    p.ID,
			DoctorName:  doctor.Name,
			FileName:    file,
			ReportType:  kind,
			ReportDate:  uploaded.Format(dateLayout),
			UploadDate:  uploaded,
			Status:      ReportAnalyzed,
			LabName:     lab,
			Cost:        cost,
			AIAnalysis: &Analysis{
				Summary:         summary,
				ReportType:      kind,
				Parameters:      []HealthParameter{},
				RiskFactors:     []RiskFactor{},
				Recommendations: []string{},
				AnalyzedAt:      uploaded,
			},
			CreatedAt: uploaded,
		}
	}
	reports := []MedicalReport{
		report("doc_report1", "pat1", "Arjun Singh", "blood-test", "blood-test.pdf", "SRL Diagnostics", "₹1,250", ago(3),
			"Blood parameters within normal range."),
		report("doc_report2", "pat3", "Suresh Gupta", "x-ray", "chest-xray.pdf", "Apollo Diagnostics", "₹600", ago(1),
			"Chest X-ray shows clear lung fields."),
	}

	for i := range appointments {
		a := &appointments[i]
		if err := s.writeIndexed(ctx, kindAppointment, a.ID, map[string]string{sideDoctor: p.ID}, a); err != nil {
			return nil, fmt.Errorf("failed to seed appointment: %w", err)
		}
	}
	for _, a := range activities {
		if err := s.store.Set(ctx, activityKey(p.ID, a.ID), a); err != nil {
			return nil, fmt.Errorf("failed to seed activity: %w", err)
		}
	}
	for i := range prescriptions {
		pr := &prescriptions[i]
		if err := s.writeIndexed(ctx, kindPrescription, pr.ID, map[string]string{sideDoctor: p.ID}, pr); err != nil {
			return nil, fmt.Errorf("failed to seed prescription: %w", err)
		}
	}
	for i := range reports {
		r := &reports[i]
		if err := s.writeIndexed(ctx, kindReport, r.ID, map[string]string{sideDoctor: p.ID}, r); err != nil {
			return nil, fmt.Errorf("failed to seed report: %w", err)
		}
	}

	return &SeedResult{
		Appointments:  len(appointments),
		Prescriptions: len(prescriptions),
		Reports:       len(reports),
		Activities:    len(activities),
	}, nil
}
