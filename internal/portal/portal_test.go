package portal

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/api"
	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/demo"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/kvstore"
	"stealthcompany.com/clinicportal/internal/localstore"
)

const testBase = "/clinic/v1"

type stubAnalyzer struct {
	result *clinic.Analysis
	err    error
	calls  int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, fileName, mimeType string, data []byte) (*clinic.Analysis, error) {
	s.calls++
	return s.result, s.err
}

func bloodWork() *clinic.Analysis {
	return &clinic.Analysis{
		Summary:    "Mild anemia",
		ReportType: "Complete Blood Count",
		Parameters: []clinic.HealthParameter{
			{Name: "Hemoglobin", Value: "11.2", Unit: "g/dL", NormalRange: "12-16", Status: "low", Category: "Blood"},
			{Name: "Fasting Glucose", Value: "92", Unit: "mg/dL", NormalRange: "70-100", Status: "normal", Category: "Blood Sugar"},
			{Name: "Heart Rate", Value: "72", Unit: "bpm", NormalRange: "60-100", Status: "normal", Category: "Vitals"},
		},
		RiskFactors:     []clinic.RiskFactor{},
		Recommendations: []string{"Iron rich diet"},
		AnalyzedAt:      time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
}

type testEnv struct {
	srv      *httptest.Server
	gateway  *Gateway
	local    *localstore.Local
	analyzer *stubAnalyzer
}

// newTestEnv starts the clinic API in-process and points a gateway with
// in-memory local storage at it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := kvstore.NewMemoryStore()
	auth := identity.NewProvider(store, "test-secret", time.Hour, "clinicportal-test")
	svc := clinic.NewService(store, auth, kvstore.NewLocker(store, "test", time.Minute))
	srv := httptest.NewServer(api.NewServer(svc, auth, "").Router(testBase, []string{"http://localhost:3000"}))
	t.Cleanup(srv.Close)

	local := localstore.NewLocal(localstore.NewMemoryStorage(), nil)
	analyzer := &stubAnalyzer{result: bloodWork()}
	g := NewGateway(NewRemoteClient(srv.URL+testBase, "", 2*time.Second), local, analyzer, Config{ProfileTimeout: time.Second})

	return &testEnv{srv: srv, gateway: g, local: local, analyzer: analyzer}
}

func (e *testEnv) signup(t *testing.T, email string, role clinic.Role) *Identity {
	t.Helper()
	who, err := e.gateway.Signup(context.Background(), clinic.SignupRequest{
		Email:    email,
		Password: "password123",
		FullName: "Test " + string(role),
		Phone:    "+91 90000 00000",
		Role:     role,
	})
	require.NoError(t, err)
	return who
}

func TestSignupSignsInRemotely(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	who := env.signup(t, "asha@example.com", clinic.RolePatient)
	assert.Equal(t, demo.ModeRemote, who.Mode)
	assert.Equal(t, clinic.RolePatient, who.Role)
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))

	res, err := env.gateway.Appointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Nil(t, res.Degraded)
	assert.Equal(t, 0, res.Data.TotalCount)

	again, err := env.gateway.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, who.ID, again.ID)
	assert.Equal(t, demo.ModeRemote, again.Mode)
}

func TestBootstrapUnreachableProfileEntersDemo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	who := env.signup(t, "ravi@example.com", clinic.RolePatient)
	env.srv.Close()

	offline, err := env.gateway.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, demo.ModeDemo, offline.Mode)
	assert.Equal(t, who.ID, offline.ID)
	assert.Equal(t, "ravi@example.com", offline.Email)
	assert.True(t, env.gateway.Demo().IsDemo(ctx))

	_, ok := env.gateway.sessions.get(ctx)
	assert.False(t, ok, "remote session should be discarded")

	res, err := env.gateway.Appointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Len(t, res.Data.Appointments, 2)
	for _, a := range res.Data.Appointments {
		assert.Equal(t, who.ID, a.PatientID)
	}
}

func TestBootstrapRejectedTokenClearsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.gateway.sessions.save(ctx, &identity.Session{
		AccessToken: "not-a-token",
		User:        identity.User{ID: "user_1", Email: "x@example.com", Role: "patient"},
	}))

	_, err := env.gateway.Bootstrap(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, ok := env.gateway.sessions.get(ctx)
	assert.False(t, ok)
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))
}

func TestBootstrapWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.gateway.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestReadFallbackKeepsRemoteMode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.signup(t, "meera@example.com", clinic.RolePatient)
	env.srv.Close()

	res, err := env.gateway.Prescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	require.Error(t, res.Degraded)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(res.Degraded))
	assert.NotEmpty(t, res.Data.Prescriptions)

	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx), "a failed read must not switch modes")
	_, ok := env.gateway.sessions.get(ctx)
	assert.True(t, ok)
}

func TestRemoteWriteDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.signup(t, "kiran@example.com", clinic.RolePatient)
	env.srv.Close()

	_, err := env.gateway.BookAppointment(ctx, clinic.BookingRequest{
		DoctorID:        "doc_1",
		AppointmentDate: "2026-10-20",
		AppointmentTime: "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))
}

func TestRemoteErrorsKeepTheirKind(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.signup(t, "nina@example.com", clinic.RolePatient)

	_, err := env.gateway.DoctorDashboard(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = env.gateway.CancelAppointment(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLoginWithDemoAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	who, err := env.gateway.Login(ctx, "patient@demo.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, demo.ModeDemo, who.Mode)
	assert.Equal(t, "demo-patient-1", who.ID)

	_, err = env.gateway.Login(ctx, "patient@demo.com", "demo123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	dash, err := env.gateway.PatientDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, dash.Source)
	assert.Equal(t, 2, dash.Data.TotalAppointments)

	require.NoError(t, env.gateway.Logout(ctx))
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))

	_, err = env.gateway.Appointments(ctx)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestLoginUnreachableTriesDemo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.srv.Close()

	_, err := env.gateway.Login(ctx, "someone@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))
}

func TestLoginUnreachableDropsStaleSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.srv.Close()

	created, err := env.gateway.Signup(ctx, clinic.SignupRequest{
		Email:    "meera@example.com",
		Password: "password123",
		FullName: "Meera",
		Phone:    "+91 90000 00001",
		Role:     clinic.RolePatient,
	})
	require.NoError(t, err)
	assert.Equal(t, demo.ModeDemo, created.Mode)

	// leave Demo but keep the custom account, then leave a remote session behind
	require.NoError(t, env.local.RemoveItem(ctx, demo.ModeKey))
	require.NoError(t, env.local.RemoveItem(ctx, demo.UserKey))
	require.NoError(t, env.gateway.sessions.save(ctx, &identity.Session{
		AccessToken: "stale-token",
		User:        identity.User{ID: "user_9", Email: "meera@example.com", Role: "patient"},
	}))

	who, err := env.gateway.Login(ctx, "meera@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, demo.ModeDemo, who.Mode)
	assert.Equal(t, created.ID, who.ID)

	_, ok := env.gateway.sessions.get(ctx)
	assert.False(t, ok)
}

func TestDoctorsWithoutSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.signup(t, "iyer@example.com", clinic.RoleDoctor)
	require.NoError(t, env.gateway.Logout(ctx))

	_, err := env.gateway.Appointments(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	res, err := env.gateway.Doctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "iyer@example.com", res.Data[0].Email)

	env.srv.Close()

	res, err = env.gateway.Doctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(res.Degraded))
	assert.NotNil(t, res.Data)
	assert.Equal(t, demo.ModeRemote, env.gateway.Mode(ctx))
}

func TestDemoWritesCheckRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.gateway.Login(ctx, "doctor@demo.com", "demo123")
	require.NoError(t, err)

	_, err = env.gateway.BookAppointment(ctx, clinic.BookingRequest{
		DoctorID:        "demo-doctor-1",
		AppointmentDate: "2026-10-20",
		AppointmentTime: "10:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	roster, err := env.gateway.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, roster.Data, 2)

	detail, err := env.gateway.PatientDetail(ctx, roster.Data[0].ID)
	require.NoError(t, err)
	assert.Equal(t, roster.Data[0].FullName, detail.Data.Patient.FullName)

	_, err = env.gateway.PatientDetail(ctx, "nobody")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDemoPrescriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gateway.newID = func() string { return "fixed" }

	_, err := env.gateway.Login(ctx, "doctor@demo.com", "demo123")
	require.NoError(t, err)

	p, err := env.gateway.AddPrescription(ctx, "", clinic.PrescriptionRequest{
		PatientID:   "walkin-1",
		PatientName: "Walk In",
		Diagnosis:   "Seasonal allergy",
		Medicines:   []clinic.Medicine{{Name: "Cetirizine"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "presc_fixed", p.ID)
	assert.Equal(t, "demo-doctor-1", p.DoctorID)
	assert.Equal(t, clinic.PrescriptionActive, p.Status)

	list, err := env.gateway.Prescriptions(ctx)
	require.NoError(t, err)
	var found bool
	for _, item := range list.Data.Prescriptions {
		found = found || item.ID == p.ID
	}
	assert.True(t, found)

	require.NoError(t, env.gateway.DeletePrescription(ctx, p.ID))
	err = env.gateway.DeletePrescription(ctx, p.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUploadReportInDemo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)

	_, err := env.gateway.Login(ctx, "patient@demo.com", "demo123")
	require.NoError(t, err)

	events, stop := env.gateway.Watch(ctx, localstore.ReportsUpdated)
	defer stop()

	r, err := env.gateway.UploadReport(ctx, UploadRequest{
		FileName:   "cbc.pdf",
		MimeType:   "application/pdf",
		Data:       []byte("%PDF-1.4"),
		ReportType: "blood-test",
		ReportDate: "2026-10-14",
	})
	require.NoError(t, err)
	assert.Equal(t, clinic.ReportAnalyzed, r.Status)
	require.NotNil(t, r.AIAnalysis)
	assert.Equal(t, int64(8), r.FileSize)
	assert.Equal(t, 1, env.analyzer.calls)

	select {
	case ev := <-events:
		assert.Equal(t, localstore.ReportsUpdated, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("expected a report change event")
	}

	timeline, err := env.gateway.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, timeline.Data, 2, "only tracked categories reach the timeline")
	assert.Equal(t, "timeline-"+r.ID+"-hemoglobin", timeline.Data[0].ID)

	reports, err := env.gateway.Reports(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(reports.Data.Reports))
	for _, item := range reports.Data.Reports {
		ids = append(ids, item.ID)
	}
	assert.Contains(t, ids, r.ID)

	require.NoError(t, env.gateway.DeleteReport(ctx, r.ID))
	timeline, err = env.gateway.Timeline(ctx)
	require.NoError(t, err)
	assert.Empty(t, timeline.Data)
}

func TestUploadReportAnalysisFailureRevertsStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.analyzer.err = errors.New("model offline")
	env.analyzer.result = nil

	_, err := env.gateway.Login(ctx, "patient@demo.com", "demo123")
	require.NoError(t, err)

	_, err = env.gateway.UploadReport(ctx, UploadRequest{
		FileName:   "xray.png",
		Data:       []byte("png"),
		ReportType: "x-ray",
	})
	require.Error(t, err)

	stored := env.gateway.reports.GetForPatient(ctx, "demo-patient-1")
	require.Len(t, stored, 1)
	assert.Equal(t, clinic.ReportUploaded, stored[0].Status)
	assert.Nil(t, stored[0].AIAnalysis)
}

func TestUploadReportRemote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	who := env.signup(t, "dev@example.com", clinic.RolePatient)

	r, err := env.gateway.UploadReport(ctx, UploadRequest{
		FileName:   "lipids.pdf",
		Data:       []byte("data"),
		ReportType: "blood-test",
		ReportDate: "2026-10-01",
	})
	require.NoError(t, err)
	assert.Equal(t, who.ID, r.PatientID)
	assert.Equal(t, clinic.ReportAnalyzed, r.Status)

	cached, ok := env.gateway.reports.GetByID(ctx, r.ID)
	require.True(t, ok, "remote report should be cached locally")
	assert.Equal(t, r.FileName, cached.FileName)

	reports, err := env.gateway.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, reports.Source)
	require.Len(t, reports.Data.Reports, 1)
	assert.Equal(t, 1, reports.Data.AnalyzedCount)

	entries := env.gateway.timeline.GetForPatient(ctx, who.ID)
	assert.Len(t, entries, 2)
}

func TestSeedSampleDataInDemo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.gateway.Login(ctx, "patient@demo.com", "demo123")
	require.NoError(t, err)

	res, err := env.gateway.SeedSampleData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Appointments)
	assert.NotZero(t, res.Prescriptions)

	timeline, err := env.gateway.Timeline(ctx)
	require.NoError(t, err)
	assert.Len(t, timeline.Data, 3)
}

func TestMergeByID(t *testing.T) {
	type rec struct{ ID, V string }
	got := mergeByID(
		[]rec{{"a", "1"}, {"b", "1"}},
		[]rec{{"b", "2"}, {"c", "2"}},
		func(r rec) string { return r.ID },
	)
	assert.Equal(t, []rec{{"a", "1"}, {"b", "2"}, {"c", "2"}}, got)
}
