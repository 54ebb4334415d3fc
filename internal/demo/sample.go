package demo

import (
	"time"

	"stealthcompany.com/clinicportal/internal/clinic"
)

func (c *Controller) sampleDataset(userID string, role clinic.Role) *Dataset {
	now := c.now().UTC()
	ds := &Dataset{
		Appointments:  []clinic.Appointment{},
		Prescriptions: []clinic.Prescription{},
		Reports:       []clinic.MedicalReport{},
		Patients:      []clinic.PatientSummary{},
	}
	if role == clinic.RoleDoctor {
		ds.Appointments = sampleDoctorAppointments(userID, now)
		ds.Patients = samplePatients(now)
		return ds
	}
	ds.Appointments = samplePatientAppointments(userID, now)
	ds.Prescriptions = samplePrescriptions(userID, now)
	ds.Reports = sampleReports(userID, now)
	return ds
}

func samplePatientAppointments(userID string, now time.Time) []clinic.Appointment {
	return []clinic.Appointment{
		{
			ID:                   "demo-apt-1",
			PatientID:            userID,
			PatientName:          "Demo Patient",
			PatientEmail:         "patient@demo.com",
			PatientPhone:         "+91 98765 43210",
			DoctorID:             "demo-dr-1",
			DoctorName:           "Dr. Priya Sharma",
			DoctorSpecialization: "Cardiologist",
			HospitalName:         "Apollo Hospital, Mumbai",
			AppointmentDate:      now.AddDate(0, 0, 1).Format(time.DateOnly),
			AppointmentTime:      "10:00",
			AppointmentType:      clinic.AppointmentInPerson,
			ReasonForVisit:       "Regular checkup",
			Status:               clinic.StatusConfirmed,
			ConsultationFee:      800,
			IsActive:             true,
			BookedAt:             now,
		},
		{
			ID:                   "demo-apt-2",
			PatientID:            userID,
			PatientName:          "Demo Patient",
			PatientEmail:         "patient@demo.com",
			PatientPhone:         "+91 98765 43210",
			DoctorID:             "demo-dr-2",
			DoctorName:           "Dr. Rajesh Kumar",
			DoctorSpecialization: "General Physician",
			HospitalName:         "Fortis Hospital, Delhi",
			AppointmentDate:      now.AddDate(0, 0, 7).Format(time.DateOnly),
			AppointmentTime:      "14:00",
			AppointmentType:      clinic.AppointmentTelemedicine,
			ReasonForVisit:       "Follow-up consultation",
			Status:               clinic.StatusPending,
			ConsultationFee:      500,
			IsActive:             true,
			BookedAt:             now,
		},
	}
}

func sampleDoctorAppointments(userID string, now time.Time) []clinic.Appointment {
	return []clinic.Appointment{{
		ID:                   "demo-dr-apt-1",
		PatientID:            "demo-patient-1",
		PatientName:          "Arjun Singh",
		PatientEmail:         "arjun.singh@email.com",
		PatientPhone:         "+91 98765 11111",
		DoctorID:             userID,
		DoctorName:           "Dr. Demo Doctor",
		DoctorSpecialization: "General Physician",
		HospitalName:         "City Hospital",
		AppointmentDate:      now.Format(time.DateOnly),
		AppointmentTime:      "11:00",
		AppointmentType:      clinic.AppointmentInPerson,
		ReasonForVisit:       "Fever and cough",
		Status:               clinic.StatusConfirmed,
		ConsultationFee:      500,
		IsActive:             true,
		BookedAt:             now,
	}}
}

func samplePrescriptions(userID string, now time.Time) []clinic.Prescription {
	return []clinic.Prescription{{
		ID:         "demo-presc-1",
		PatientID:  userID,
		DoctorID:   "demo-dr-1",
		DoctorName: "Dr. Priya Sharma",
		Diagnosis:  "Hypertension",
		Medicines: []clinic.Medicine{{
			Name:         "Amlodipine",
			Dosage:       "5mg",
			Frequency:    clinic.Frequency{Text: "1x daily"},
			Duration:     "30 days",
			Timing:       "After breakfast",
			Instructions: "Take with water",
		}},
		LabTests:       clinic.LabTests{"Blood Pressure Monitoring", "ECG"},
		Instructions:   "Monitor blood pressure daily",
		FollowUpDate:   now.AddDate(0, 0, 30).Format(time.DateOnly),
		PrescribedDate: now,
		Status:         clinic.PrescriptionActive,
		CreatedAt:      now,
	}}
}

func sampleReports(userID string, now time.Time) []clinic.MedicalReport {
	return []clinic.MedicalReport{{
		ID:          "demo-report-1",
		PatientID:   userID,
		FileName:    "Complete Blood Count",
		ReportType:  "blood-test",
		ReportDate:  now.Format(time.DateOnly),
		UploadDate:  now,
		Status:      clinic.ReportUploaded,
		DoctorNotes: "All values within normal range",
		CreatedAt:   now,
	}}
}

func samplePatients(now time.Time) []clinic.PatientSummary {
	today := now.Format(time.DateOnly)
	weekAgo := now.AddDate(0, 0, -7).Format(time.DateOnly)
	return []clinic.PatientSummary{
		{
			ID:                 "demo-patient-1",
			FullName:           "Arjun Singh",
			Email:              "arjun.singh@email.com",
			Phone:              "+91 98765 11111",
			DateOfBirth:        "1990-05-15",
			Gender:             "male",
			BloodGroup:         "O+",
			LastVisit:          &today,
			TotalAppointments:  5,
			TotalPrescriptions: 3,
			TotalReports:       4,
			CreatedAt:          now.AddDate(0, 0, -180),
		},
		{
			ID:                 "demo-patient-2",
			FullName:           "Priya Singh",
			Email:              "priya@example.com",
			Phone:              "+91 98765 22222",
			DateOfBirth:        "1985-08-22",
			Gender:             "female",
			BloodGroup:         "A+",
			LastVisit:          &weekAgo,
			TotalAppointments:  3,
			TotalPrescriptions: 2,
			TotalReports:       2,
			CreatedAt:          now.AddDate(0, 0, -90),
		},
	}
}
