package clinic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	PrescriptionActive    = "active"
	PrescriptionCompleted = "completed"
	PrescriptionCancelled = "cancelled"

	ReportUploaded  = "uploaded"
	ReportAnalyzing = "analyzing"
	ReportAnalyzed  = "analyzed"
	ReportReviewed  = "reviewed"

	AppointmentInPerson     = "in-person"
	AppointmentTelemedicine = "telemedicine"

	ActivityAppointmentBooked = "appointment_booked"
	ActivityReportUploaded    = "report_uploaded"

	TimelineLabResult   = "lab_result"
	TimelineVitalSign   = "vital_sign"
	TimelineDiagnosis   = "diagnosis"
	TimelineMedication  = "medication"
	TimelineAppointment = "appointment"
)

var (
	appointmentStatuses  = []string{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}
	appointmentTypes     = []string{AppointmentInPerson, AppointmentTelemedicine}
	prescriptionStatuses = []string{PrescriptionActive, PrescriptionCompleted, PrescriptionCancelled}
	reportStatuses       = []string{ReportUploaded, ReportAnalyzing, ReportAnalyzed, ReportReviewed}
	reportTypes          = []string{"blood-test", "x-ray", "mri", "ct-scan", "ultrasound", "pathology", "cardiology", "other"}
)

// Doctor defaults applied at signup and when deriving a directory entry
// from a bare profile.
const (
	DefaultSpecialization  = "General Physician"
	DefaultExperience      = "New Doctor"
	DefaultRating          = 4.5
	DefaultConsultationFee = 500
	DefaultHospital        = "Available for Consultation"
	DefaultQualifications  = "MBBS"
)

var (
	DefaultSlots = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}
	DefaultDays  = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
)

type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	// patient
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	BloodGroup  string `json:"bloodGroup,omitempty"`

	// doctor
	MedicalLicenseNumber string   `json:"medicalLicenseNumber,omitempty"`
	Specialization       string   `json:"specialization,omitempty"`
	Experience           string   `json:"experience,omitempty"`
	Rating               float64  `json:"rating,omitempty"`
	ConsultationFee      float64  `json:"consultationFee,omitempty"`
	Hospital             string   `json:"hospital,omitempty"`
	Qualifications       string   `json:"qualifications,omitempty"`
	AvailableSlots       []string `json:"availableSlots,omitempty"`
	AvailableDays        []string `json:"availableDays,omitempty"`
	IsActive             bool     `json:"isActive,omitempty"`
}

type Doctor struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	Experience      string    `json:"experience"`
	Rating          float64   `json:"rating"`
	ConsultationFee float64   `json:"consultationFee"`
	Hospital        string    `json:"hospital"`
	Phone           string    `json:"phone"`
	Qualifications  string    `json:"qualifications"`
	AvailableSlots  []string  `json:"availableSlots"`
	AvailableDays   []string  `json:"availableDays"`
	CreatedAt       time.Time `json:"createdAt"`
	IsActive        bool      `json:"isActive"`
}

type Appointment struct {
	ID                   string     `json:"id"`
	PatientID            string     `json:"patientId"`
	PatientName          string     `json:"patientName"`
	PatientEmail         string     `json:"patientEmail"`
	PatientPhone         string     `json:"patientPhone"`
	DoctorID             string     `json:"doctorId"`
	DoctorName           string     `json:"doctorName"`
	DoctorSpecialization string     `json:"doctorSpecialization"`
	HospitalName         string     `json:"hospitalName"`
	AppointmentDate      string     `json:"appointmentDate"`
	AppointmentTime      string     `json:"appointmentTime"`
	AppointmentType      string     `json:"appointmentType"`
	ReasonForVisit       string     `json:"reasonForVisit"`
	Status               string     `json:"status"`
	ConsultationFee      float64    `json:"consultationFee"`
	Notes                string     `json:"notes"`
	IsActive             bool       `json:"isActive"`
	BookedAt             time.Time  `json:"bookedAt"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`
	CancelledAt          *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy          string     `json:"cancelledBy,omitempty"`
}

// MealTiming marks whether a dose is taken before and/or after a meal.
type MealTiming struct {
	Before bool `json:"before"`
	After  bool `json:"after"`
}

type MealSchedule struct {
	Breakfast *MealTiming `json:"breakfast,omitempty"`
	Lunch     *MealTiming `json:"lunch,omitempty"`
	Dinner    *MealTiming `json:"dinner,omitempty"`
}

// Frequency is either free text ("2x daily") or a meal schedule.
type Frequency struct {
	Text     string
	Schedule *MealSchedule
}

func (f Frequency) MarshalJSON() ([]byte, error) {
	if f.Schedule != nil {
		return json.Marshal(f.Schedule)
	}
	return json.Marshal(f.Text)
}

func (f *Frequency) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = Frequency{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Frequency{Text: s}
		return nil
	case b[0] == '{':
		var sched MealSchedule
		if err := json.Unmarshal(b, &sched); err != nil {
			return err
		}
		*f = Frequency{Schedule: &sched}
		return nil
	default:
		return fmt.Errorf("frequency must be a string or a meal schedule")
	}
}

func (f Frequency) String() string {
	if f.Schedule == nil {
		if f.Text == "" {
			return "As directed"
		}
		return f.Text
	}

	var parts []string
	for _, meal := range []struct {
		name   string
		timing *MealTiming
	}{
		{"Breakfast", f.Schedule.Breakfast},
		{"Lunch", f.Schedule.Lunch},
		{"Dinner", f.Schedule.Dinner},
	} {
		if meal.timing == nil || (!meal.timing.Before && !meal.timing.After) {
			continue
		}
		var when []string
		if meal.timing.Before {
			when = append(when, "Before")
		}
		if meal.timing.After {
			when = append(when, "After")
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", meal.name, strings.Join(when, " & ")))
	}
	if len(parts) == 0 {
		return "As directed"
	}
	return strings.Join(parts, ", ")
}

type Medicine struct {
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    Frequency `json:"frequency"`
	Duration     string    `json:"duration"`
	Refills      int       `json:"refills"`
	Timing       string    `json:"timing,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
}

// LabTests accepts either a JSON array or a single string.
type LabTests []string

func (l *LabTests) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
		} else {
			*l = LabTests{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

type Prescription struct {
	ID                   string     `json:"id"`
	PatientID            string     `json:"patientId"`
	PatientName          string     `json:"patientName"`
	PatientEmail         string     `json:"patientEmail,omitempty"`
	DoctorID             string     `json:"doctorId"`
	DoctorName           string     `json:"doctorName"`
	DoctorSpecialization string     `json:"doctorSpecialization"`
	Diagnosis            string     `json:"diagnosis"`
	Medicines            []Medicine `json:"medicines"`
	LabTests             LabTests   `json:"labTests"`
	Instructions         string     `json:"instructions"`
	FollowUpDate         string     `json:"followUpDate,omitempty"`
	PrescribedDate       time.Time  `json:"prescribedDate"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`
}

type HealthParameter struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normalRange"`
	Status      string `json:"status"`
	Category    string `json:"category"`
}

type RiskFactor struct {
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

type Analysis struct {
	Summary         string            `json:"summary"`
	ReportType      string            `json:"reportType"`
	Parameters      []HealthParameter `json:"parameters"`
	RiskFactors     []RiskFactor      `json:"riskFactors"`
	Recommendations []string          `json:"recommendations"`
	AnalyzedAt      time.Time         `json:"analyzedAt"`
}

type MedicalReport struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patientId"`
	PatientName string     `json:"patientName"`
	DoctorID    string     `json:"doctorId,omitempty"`
	DoctorName  string     `json:"doctorName,omitempty"`
	FileName    string     `json:"fileName"`
	FileSize    int64      `json:"fileSize"`
	ReportType  string     `json:"reportType"`
	ReportDate  string     `json:"reportDate"`
	UploadDate  time.Time  `json:"uploadDate"`
	Status      string     `json:"status"`
	LabName     string     `json:"labName,omitempty"`
	Cost        string     `json:"cost,omitempty"`
	AIAnalysis  *Analysis  `json:"aiAnalysis,omitempty"`
	DoctorNotes string     `json:"doctorNotes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type TimelineEntry struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Value       string    `json:"value,omitempty"`
	NormalRange string    `json:"normalRange,omitempty"`
	Status      string    `json:"status,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	ReportID    string    `json:"reportId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Activity is an entry in a doctor's feed.
type Activity struct {
	ID              string    `json:"id"`
	DoctorID        string    `json:"doctorId"`
	PatientID       string    `json:"patientId"`
	PatientName     string    `json:"patientName"`
	Type            string    `json:"type"`
	ReportType      string    `json:"reportType,omitempty"`
	AppointmentDate string    `json:"appointmentDate,omitempty"`
	AppointmentTime string    `json:"appointmentTime,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}
