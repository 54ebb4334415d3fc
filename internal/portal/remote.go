package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/metrics"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	apiKeyHeader        = "apikey"
	maxResponseBytes    = 8 << 20
)

const (
	ErrAuthRequired = "Authentication required"
	ErrNetwork      = "Unable to reach the clinic service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RemoteClient talks to the clinic HTTP API. Every failure is an apperr:
// transport failures are KindNetwork, HTTP errors carry the kind matching
// their status.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
}

func NewRemoteClient(baseURL, anonKey string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
	}
}

// call performs one request. token may be empty for anon routes. out may be
// nil when the payload is not needed.
func (c *RemoteClient) call(ctx context.Context, endpoint, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set(apiKeyHeader, c.anonKey)
	}
	switch {
	case token != "":
		req.Header.Set(authorizationHeader, bearerPrefix+token)
	case c.anonKey != "":
		req.Header.Set(authorizationHeader, bearerPrefix+c.anonKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(endpoint, startTime, 0)
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return apperr.Wrap(apperr.KindNetwork, err, ErrNetwork)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()
	metrics.RecordRemoteRequest(endpoint, startTime, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, err, ErrNetwork)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return apperr.New(apperr.KindFromStatus(resp.StatusCode), msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, decodeErr)
	}
	if !env.Success {
		return apperr.New(apperr.KindInternal, env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", endpoint, err)
		}
	}
	return nil
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *RemoteClient) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	var s identity.Session
	if err := c.call(ctx, "signin", http.MethodPost, "/auth/signin", "", signinRequest{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *RemoteClient) SignUp(ctx context.Context, req clinic.SignupRequest) (*clinic.UserProfile, error) {
	var p clinic.UserProfile
	if err := c.call(ctx, "signup", http.MethodPost, "/auth/signup", "", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RemoteClient) Profile(ctx context.Context, token string) (*clinic.UserProfile, error) {
	var p clinic.UserProfile
	if err := c.call(ctx, "profile", http.MethodGet, "/auth/profile", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RemoteClient) Doctors(ctx context.Context, token string) ([]clinic.Doctor, error) {
	var out []clinic.Doctor
	if err := c.call(ctx, "doctors", http.MethodGet, "/doctors", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RemoteClient) Doctor(ctx context.Context, token, id string) (*clinic.Doctor, error) {
	var d clinic.Doctor
	if err := c.call(ctx, "doctor", http.MethodGet, "/doctors/"+url.PathEscape(id), token, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *RemoteClient) InitSampleData(ctx context.Context, token string) (*clinic.SeedResult, error) {
	var res clinic.SeedResult
	if err := c.call(ctx, "init_sample_data", http.MethodPost, "/init-sample-data", token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *RemoteClient) Appointments(ctx context.Context, token string) (*clinic.AppointmentList, error) {
	var list clinic.AppointmentList
	if err := c.call(ctx, "appointments", http.MethodGet, "/appointments", token, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *RemoteClient) BookAppointment(ctx context.Context, token string, req clinic.BookingRequest) (*clinic.Appointment, error) {
	var a clinic.Appointment
	if err := c.call(ctx, "book_appointment", http.MethodPost, "/appointments", token, req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *RemoteClient) UpdateAppointment(ctx context.Context, token, id string, upd clinic.AppointmentUpdate) (*clinic.Appointment, error) {
	var a clinic.Appointment
	if err := c.call(ctx, "update_appointment", http.MethodPut, "/appointments/"+url.PathEscape(id), token, upd, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *RemoteClient) CancelAppointment(ctx context.Context, token, id string) (*clinic.Appointment, error) {
	var a clinic.Appointment
	if err := c.call(ctx, "cancel_appointment", http.MethodDelete, "/appointments/"+url.PathEscape(id), token, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *RemoteClient) Prescriptions(ctx context.Context, token string) (*clinic.PrescriptionList, error) {
	var list clinic.PrescriptionList
	if err := c.call(ctx, "prescriptions", http.MethodGet, "/prescriptions", token, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *RemoteClient) CreatePrescription(ctx context.Context, token string, req clinic.PrescriptionRequest) (*clinic.Prescription, error) {
	var p clinic.Prescription
	if err := c.call(ctx, "create_prescription", http.MethodPost, "/prescriptions", token, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RemoteClient) AddPatientPrescription(ctx context.Context, token, patientID string, req clinic.PrescriptionRequest) (*clinic.Prescription, error) {
	var p clinic.Prescription
	path := "/doctor/patients/" + url.PathEscape(patientID) + "/prescriptions"
	if err := c.call(ctx, "add_patient_prescription", http.MethodPost, path, token, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RemoteClient) DeletePrescription(ctx context.Context, token, id string) error {
	return c.call(ctx, "delete_prescription", http.MethodDelete, "/prescriptions/"+url.PathEscape(id), token, nil, nil)
}

func (c *RemoteClient) Reports(ctx context.Context, token string) (*clinic.ReportList, error) {
	var list clinic.ReportList
	if err := c.call(ctx, "reports", http.MethodGet, "/reports", token, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *RemoteClient) CreateReport(ctx context.Context, token string, req clinic.ReportRequest) (*clinic.MedicalReport, error) {
	var r clinic.MedicalReport
	if err := c.call(ctx, "create_report", http.MethodPost, "/reports", token, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *RemoteClient) DeleteReport(ctx context.Context, token, id string) error {
	return c.call(ctx, "delete_report", http.MethodDelete, "/reports/"+url.PathEscape(id), token, nil, nil)
}

func (c *RemoteClient) PatientDashboard(ctx context.Context, token string) (*clinic.PatientDashboard, error) {
	var d clinic.PatientDashboard
	if err := c.call(ctx, "patient_dashboard", http.MethodGet, "/patient/dashboard", token, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *RemoteClient) DoctorDashboard(ctx context.Context, token string) (*clinic.DoctorDashboard, error) {
	var d clinic.DoctorDashboard
	if err := c.call(ctx, "doctor_dashboard", http.MethodGet, "/doctor/dashboard", token, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *RemoteClient) Roster(ctx context.Context, token string) ([]clinic.PatientSummary, error) {
	var out []clinic.PatientSummary
	if err := c.call(ctx, "roster", http.MethodGet, "/doctor/patients", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RemoteClient) PatientDetail(ctx context.Context, token, patientID string) (*clinic.PatientDetail, error) {
	var d clinic.PatientDetail
	if err := c.call(ctx, "patient_detail", http.MethodGet, "/doctor/patients/"+url.PathEscape(patientID), token, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
