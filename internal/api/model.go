package api

import "time"

type contextKey string

const (
	UserIDKey contextKey = "userID"
	ClaimsKey contextKey = "claims"
)

// HTTP header constants
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	APIKeyHeader        = "apikey"
)

// HTTP path constants
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

const maxBodyBytes = 1 << 20

// Error message constants
const (
	ErrAuthHeaderRequired = "Authorization header required"
	ErrInvalidAuthHeader  = "Invalid authorization header format"
	ErrInvalidAPIKey      = "Invalid API key"
	ErrInvalidJSON        = "Invalid JSON format"
	ErrUserIDNotFound     = "user ID not found in context"

	ErrSignupFailed        = "Failed to create user"
	ErrSigninFailed        = "Failed to sign in"
	ErrFetchProfile        = "Failed to fetch profile"
	ErrCreateTestPatient   = "Failed to create test patient"
	ErrFetchDoctors        = "Failed to fetch doctors"
	ErrFetchDoctor         = "Failed to fetch doctor"
	ErrInitSampleData      = "Failed to initialize sample data"
	ErrFetchAppointments   = "Failed to fetch appointments"
	ErrBookAppointment     = "Failed to book appointment"
	ErrUpdateAppointment   = "Failed to update appointment"
	ErrCancelAppointment   = "Failed to cancel appointment"
	ErrFetchPrescriptions  = "Failed to fetch prescriptions"
	ErrCreatePrescription  = "Failed to create prescription"
	ErrDeletePrescription  = "Failed to delete prescription"
	ErrAddPrescription     = "Failed to add prescription"
	ErrFetchReports        = "Failed to fetch reports"
	ErrUploadReport        = "Failed to upload report"
	ErrDeleteReport        = "Failed to delete report"
	ErrFetchDashboard      = "Failed to fetch dashboard data"
	ErrFetchPatients       = "Failed to fetch patients"
	ErrFetchPatientDetails = "Failed to fetch patient details"
)

// Success message constants
const (
	MsgAppointmentBooked    = "Appointment booked successfully"
	MsgAppointmentUpdated   = "Appointment updated successfully"
	MsgAppointmentCancelled = "Appointment cancelled successfully"
	MsgPrescriptionAdded    = "Prescription added successfully"
	MsgPrescriptionDeleted  = "Prescription deleted successfully"
	MsgReportUploaded       = "Report uploaded successfully"
	MsgReportDeleted        = "Report deleted successfully"
	MsgSampleData           = "Sample data initialized"
	MsgTestPatientReady     = "Test patient ready"
	MsgDoctorsInitialized   = "Doctors are created through signup"
	MsgUserCreated          = "User created successfully"
)

// Log message constants
const (
	LogTokenValidationFailed = "Token validation failed"
	LogRequestFailed         = "Request failed"
	LogRequestHandled        = "Request handled"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type TestPatientResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CountResponse struct {
	Count int `json:"count"`
}
