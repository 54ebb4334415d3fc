package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()}, "")
}

// signup is not idempotent: a retry after a lost response reports the
// address as already registered.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req clinic.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, ErrSignupFailed)
		return
	}

	p, err := s.svc.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err, ErrSignupFailed)
		return
	}

	log.Info().Str("user_id", p.ID).Str("role", string(p.Role)).Msg("User signed up")
	writeCreated(w, p, MsgUserCreated)
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, ErrSigninFailed)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, apperr.Validation("email and password are required"), ErrSigninFailed)
		return
	}

	session, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, ErrSigninFailed)
		return
	}
	writeOK(w, session, "")
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r)
	if err != nil {
		writeError(w, r, apperr.Unauthorized(err.Error()), ErrFetchProfile)
		return
	}

	p, err := s.svc.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, ErrFetchProfile)
		return
	}
	writeOK(w, p, "")
}

func (s *Server) createTestPatient(w http.ResponseWriter, r *http.Request) {
	id, err := s.svc.EnsureTestPatient(r.Context())
	if err != nil {
		writeError(w, r, err, ErrCreateTestPatient)
		return
	}
	writeOK(w, TestPatientResponse{UserID: id, Email: "patient@test.com", Password: "password123"}, MsgTestPatientReady)
}

func (s *Server) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := s.svc.Doctors(r.Context())
	if err != nil {
		writeError(w, r, err, ErrFetchDoctors)
		return
	}
	writeOK(w, doctors, "")
}

func (s *Server) getDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Doctor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, ErrFetchDoctor)
		return
	}
	writeOK(w, d, "")
}

// initDoctors is kept for older clients; doctors only come from signup.
func (s *Server) initDoctors(w http.ResponseWriter, r *http.Request) {
	writeOK(w, CountResponse{Count: 0}, MsgDoctorsInitialized)
}

func (s *Server) initSampleData(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrInitSampleData, func(userID string) (any, string, error) {
		res, err := s.svc.SeedSampleData(r.Context(), userID)
		return res, MsgSampleData, err
	})
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchAppointments, func(userID string) (any, string, error) {
		list, err := s.svc.Appointments(r.Context(), userID)
		return list, "", err
	})
}

// bookAppointment is not idempotent: every successful call creates a new
// appointment.
func (s *Server) bookAppointment(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrBookAppointment, func(userID string) (any, string, error) {
		var req clinic.BookingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, "", err
		}
		apt, err := s.svc.BookAppointment(r.Context(), userID, req)
		return apt, MsgAppointmentBooked, err
	})
}

func (s *Server) updateAppointment(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrUpdateAppointment, func(userID string) (any, string, error) {
		var upd clinic.AppointmentUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			return nil, "", err
		}
		apt, err := s.svc.UpdateAppointment(r.Context(), userID, mux.Vars(r)["id"], upd)
		return apt, MsgAppointmentUpdated, err
	})
}

func (s *Server) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrCancelAppointment, func(userID string) (any, string, error) {
		apt, err := s.svc.CancelAppointment(r.Context(), userID, mux.Vars(r)["id"])
		return apt, MsgAppointmentCancelled, err
	})
}

func (s *Server) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchPrescriptions, func(userID string) (any, string, error) {
		list, err := s.svc.Prescriptions(r.Context(), userID)
		return list, "", err
	})
}

func (s *Server) createPrescription(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrCreatePrescription, func(userID string) (any, string, error) {
		var req clinic.PrescriptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, "", err
		}
		p, err := s.svc.CreatePrescription(r.Context(), userID, req)
		return p, MsgPrescriptionAdded, err
	})
}

func (s *Server) deletePrescription(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrDeletePrescription, func(userID string) (any, string, error) {
		return nil, MsgPrescriptionDeleted, s.svc.DeletePrescription(r.Context(), userID, mux.Vars(r)["id"])
	})
}

func (s *Server) addPatientPrescription(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrAddPrescription, func(userID string) (any, string, error) {
		var req clinic.PrescriptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, "", err
		}
		p, err := s.svc.AddPatientPrescription(r.Context(), userID, mux.Vars(r)["id"], req)
		return p, MsgPrescriptionAdded, err
	})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchReports, func(userID string) (any, string, error) {
		list, err := s.svc.Reports(r.Context(), userID)
		return list, "", err
	})
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrUploadReport, func(userID string) (any, string, error) {
		var req clinic.ReportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, "", err
		}
		rep, err := s.svc.CreateReport(r.Context(), userID, req)
		return rep, MsgReportUploaded, err
	})
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrDeleteReport, func(userID string) (any, string, error) {
		return nil, MsgReportDeleted, s.svc.DeleteReport(r.Context(), userID, mux.Vars(r)["id"])
	})
}

func (s *Server) patientDashboard(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchDashboard, func(userID string) (any, string, error) {
		d, err := s.svc.PatientDashboard(r.Context(), userID)
		return d, "", err
	})
}

func (s *Server) doctorDashboard(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchDashboard, func(userID string) (any, string, error) {
		d, err := s.svc.DoctorDashboard(r.Context(), userID)
		return d, "", err
	})
}

func (s *Server) roster(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchPatients, func(userID string) (any, string, error) {
		patients, err := s.svc.Roster(r.Context(), userID)
		return patients, "", err
	})
}

func (s *Server) patientDetail(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, ErrFetchPatientDetails, func(userID string) (any, string, error) {
		d, err := s.svc.PatientDetail(r.Context(), userID, mux.Vars(r)["id"])
		return d, "", err
	})
}

// withUser resolves the caller, runs fn and writes the envelope.
func (s *Server) withUser(w http.ResponseWriter, r *http.Request, fallback string, fn func(userID string) (any, string, error)) {
	userID, err := GetUserID(r)
	if err != nil {
		writeError(w, r, apperr.Unauthorized(err.Error()), fallback)
		return
	}

	data, message, err := fn(userID)
	if err != nil {
		writeError(w, r, err, fallback)
		return
	}
	writeOK(w, data, message)
}
