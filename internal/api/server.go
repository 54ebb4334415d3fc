// Package api exposes the clinic service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/metrics"
)

// Authenticator signs users in and verifies their tokens.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	Verify(token string) (*identity.Claims, error)
}

// Clinic is the business layer the handlers call into.
type Clinic interface {
	Signup(ctx context.Context, req clinic.SignupRequest) (*clinic.UserProfile, error)
	Profile(ctx context.Context, userID string) (*clinic.UserProfile, error)
	EnsureTestPatient(ctx context.Context) (string, error)
	Doctors(ctx context.Context) ([]clinic.Doctor, error)
	Doctor(ctx context.Context, id string) (*clinic.Doctor, error)
	SeedSampleData(ctx context.Context, userID string) (*clinic.SeedResult, error)

	Appointments(ctx context.Context, userID string) (*clinic.AppointmentList, error)
	BookAppointment(ctx context.Context, patientID string, req clinic.BookingRequest) (*clinic.Appointment, error)
	UpdateAppointment(ctx context.Context, doctorID, id string, upd clinic.AppointmentUpdate) (*clinic.Appointment, error)
	CancelAppointment(ctx context.Context, patientID, id string) (*clinic.Appointment, error)

	Prescriptions(ctx context.Context, userID string) (*clinic.PrescriptionList, error)
	CreatePrescription(ctx context.Context, doctorID string, req clinic.PrescriptionRequest) (*clinic.Prescription, error)
	AddPatientPrescription(ctx context.Context, doctorID, patientID string, req clinic.PrescriptionRequest) (*clinic.Prescription, error)
	DeletePrescription(ctx context.Context, doctorID, id string) error

	Reports(ctx context.Context, userID string) (*clinic.ReportList, error)
	CreateReport(ctx context.Context, userID string, req clinic.ReportRequest) (*clinic.MedicalReport, error)
	DeleteReport(ctx context.Context, patientID, id string) error

	PatientDashboard(ctx context.Context, patientID string) (*clinic.PatientDashboard, error)
	DoctorDashboard(ctx context.Context, doctorID string) (*clinic.DoctorDashboard, error)
	Roster(ctx context.Context, doctorID string) ([]clinic.PatientSummary, error)
	PatientDetail(ctx context.Context, doctorID, patientID string) (*clinic.PatientDetail, error)
}

type Server struct {
	svc     Clinic
	auth    Authenticator
	anonKey string
}

func NewServer(svc Clinic, auth Authenticator, anonKey string) *Server {
	return &Server{svc: svc, auth: auth, anonKey: anonKey}
}

// Router builds the full handler: metrics and request logging on every
// route, CORS and panic recovery around the whole tree.
func (s *Server) Router(basePath string, corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.MetricsMiddleware)
	r.Use(RequestLogger)

	r.HandleFunc(HealthPath, s.health).Methods(http.MethodGet)
	r.Handle(MetricsPath, metrics.Handler()).Methods(http.MethodGet)

	base := r.PathPrefix(strings.TrimSuffix(basePath, "/")).Subrouter()
	base.HandleFunc(HealthPath, s.health).Methods(http.MethodGet)

	anon := base.NewRoute().Subrouter()
	anon.Use(s.RequireAnon)
	anon.HandleFunc("/auth/signup", s.signup).Methods(http.MethodPost)
	anon.HandleFunc("/auth/signin", s.signin).Methods(http.MethodPost)
	anon.HandleFunc("/create-test-patient", s.createTestPatient).Methods(http.MethodPost)
	anon.HandleFunc("/doctors", s.listDoctors).Methods(http.MethodGet)
	anon.HandleFunc("/doctors/{id}", s.getDoctor).Methods(http.MethodGet)
	anon.HandleFunc("/init-doctors", s.initDoctors).Methods(http.MethodPost)

	authed := base.NewRoute().Subrouter()
	authed.Use(s.RequireUser)
	authed.HandleFunc("/auth/profile", s.profile).Methods(http.MethodGet)
	authed.HandleFunc("/init-sample-data", s.initSampleData).Methods(http.MethodPost)

	authed.HandleFunc("/appointments", s.listAppointments).Methods(http.MethodGet)
	authed.HandleFunc("/appointments", s.bookAppointment).Methods(http.MethodPost)
	authed.HandleFunc("/appointments/{id}", s.updateAppointment).Methods(http.MethodPut)
	authed.HandleFunc("/appointments/{id}", s.cancelAppointment).Methods(http.MethodDelete)

	authed.HandleFunc("/prescriptions", s.listPrescriptions).Methods(http.MethodGet)
	authed.HandleFunc("/prescriptions", s.createPrescription).Methods(http.MethodPost)
	authed.HandleFunc("/prescriptions/{id}", s.deletePrescription).Methods(http.MethodDelete)

	authed.HandleFunc("/reports", s.listReports).Methods(http.MethodGet)
	authed.HandleFunc("/reports", s.createReport).Methods(http.MethodPost)
	authed.HandleFunc("/reports/{id}", s.deleteReport).Methods(http.MethodDelete)

	authed.HandleFunc("/patient/dashboard", s.patientDashboard).Methods(http.MethodGet)
	authed.HandleFunc("/doctor/dashboard", s.doctorDashboard).Methods(http.MethodGet)
	authed.HandleFunc("/doctor/patients", s.roster).Methods(http.MethodGet)
	authed.HandleFunc("/doctor/patients/{id}", s.patientDetail).Methods(http.MethodGet)
	authed.HandleFunc("/doctor/patients/{id}/prescriptions", s.addPatientPrescription).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", AuthorizationHeader, APIKeyHeader}),
		handlers.MaxAge(600),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

// recoveryLogger sends recovered panics to zerolog.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
