package clinic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/apperr"
)

func TestPrescriptionAddThenDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	p, err := svc.AddPatientPrescription(ctx, doctor.ID, patient.ID, PrescriptionRequest{
		Diagnosis: "Hypertension",
		Medicines: []Medicine{
			{Name: "Amlodipine", Dosage: "5mg", Frequency: Frequency{Text: "1x daily"}, Duration: "30 days"},
			{Name: "Aspirin", Dosage: "75mg", Frequency: Frequency{Schedule: &MealSchedule{Dinner: &MealTiming{After: true}}}, Duration: "30 days"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", p.PatientName)
	assert.Equal(t, PrescriptionActive, p.Status)
	assert.Equal(t, DefaultSpecialization, p.DoctorSpecialization)

	before, err := svc.Prescriptions(ctx, patient.ID)
	require.NoError(t, err)
	require.Equal(t, 1, before.TotalCount)
	require.Len(t, before.Prescriptions[0].Medicines, 2)
	assert.Equal(t, "Dinner (After)", before.Prescriptions[0].Medicines[1].Frequency.String())

	err = svc.DeletePrescription(ctx, patient.ID, p.ID)
	requireKind(t, err, apperr.KindForbidden)

	require.NoError(t, svc.DeletePrescription(ctx, doctor.ID, p.ID))

	for _, userID := range []string{patient.ID, doctor.ID} {
		after, err := svc.Prescriptions(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, after.TotalCount)
	}

	err = svc.DeletePrescription(ctx, doctor.ID, p.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestCreatePrescriptionRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	_, err := svc.CreatePrescription(ctx, patient.ID, PrescriptionRequest{PatientID: patient.ID})
	requireKind(t, err, apperr.KindForbidden)

	_, err = svc.CreatePrescription(ctx, doctor.ID, PrescriptionRequest{Diagnosis: "Flu"})
	requireKind(t, err, apperr.KindValidation)

	_, err = svc.AddPatientPrescription(ctx, doctor.ID, "nobody", PrescriptionRequest{})
	requireKind(t, err, apperr.KindNotFound)

	// a walk-in without an account keeps the name from the request
	walkIn, err := svc.CreatePrescription(ctx, doctor.ID, PrescriptionRequest{PatientID: "walk-in-1", PatientName: "Meena"})
	require.NoError(t, err)
	assert.Equal(t, "Meena", walkIn.PatientName)
	assert.NotNil(t, walkIn.Medicines)

	withProfile, err := svc.CreatePrescription(ctx, doctor.ID, PrescriptionRequest{PatientID: patient.ID, Status: PrescriptionCompleted})
	require.NoError(t, err)
	assert.Equal(t, "Asha", withProfile.PatientName)

	list, err := svc.Prescriptions(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, 1, list.ActiveCount)
	assert.Equal(t, 1, list.CompletedCount)
}

func TestReportsCountAnalyzed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	_, err := svc.CreateReport(ctx, patient.ID, ReportRequest{FileName: "cbc.pdf"})
	requireKind(t, err, apperr.KindValidation)
	_, err = svc.CreateReport(ctx, patient.ID, ReportRequest{FileName: "cbc.pdf", ReportType: "selfie"})
	requireKind(t, err, apperr.KindValidation)

	plain, err := svc.CreateReport(ctx, patient.ID, ReportRequest{FileName: "cbc.pdf", FileSize: 2048, ReportType: "blood-test"})
	require.NoError(t, err)
	assert.Equal(t, ReportUploaded, plain.Status)
	assert.Equal(t, "2026-10-15", plain.ReportDate)

	_, err = svc.CreateReport(ctx, patient.ID, ReportRequest{
		DoctorID:   doctor.ID,
		DoctorName: "Dr. Iyer",
		FileName:   "xray.png",
		ReportType: "x-ray",
		Status:     ReportAnalyzed,
		AIAnalysis: &Analysis{Summary: "Clear lung fields"},
	})
	require.NoError(t, err)

	mine, err := svc.Reports(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TotalCount)
	assert.Equal(t, 1, mine.AnalyzedCount)
	assert.Equal(t, 1, mine.PendingCount)

	theirs, err := svc.Reports(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, theirs.TotalCount)

	dash, err := svc.DoctorDashboard(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, dash.RecentActivity, 1)
	assert.Equal(t, ActivityReportUploaded, dash.RecentActivity[0].Type)
	assert.Equal(t, "x-ray", dash.RecentActivity[0].ReportType)

	requireKind(t, svc.DeleteReport(ctx, doctor.ID, plain.ID), apperr.KindForbidden)
	require.NoError(t, svc.DeleteReport(ctx, patient.ID, plain.ID))
	requireKind(t, svc.DeleteReport(ctx, patient.ID, plain.ID), apperr.KindNotFound)
}

func TestFrequencyJSON(t *testing.T) {
	var m Medicine
	require.NoError(t, json.Unmarshal([]byte(`{"name":"A","frequency":"2x daily"}`), &m))
	assert.Equal(t, "2x daily", m.Frequency.String())

	require.NoError(t, json.Unmarshal([]byte(`{"name":"B","frequency":{"breakfast":{"before":true,"after":true},"lunch":{"before":false,"after":true}}}`), &m))
	assert.Equal(t, "Breakfast (Before & After), Lunch (After)", m.Frequency.String())

	out, err := json.Marshal(m.Frequency)
	require.NoError(t, err)
	assert.JSONEq(t, `{"breakfast":{"before":true,"after":true},"lunch":{"before":false,"after":true}}`, string(out))

	assert.Equal(t, "As directed", Frequency{Schedule: &MealSchedule{}}.String())
	assert.Error(t, json.Unmarshal([]byte(`{"frequency":3}`), &m))
}

func TestLabTestsAcceptsStringOrList(t *testing.T) {
	var p Prescription
	require.NoError(t, json.Unmarshal([]byte(`{"labTests":"Lipid profile"}`), &p))
	assert.Equal(t, LabTests{"Lipid profile"}, p.LabTests)

	require.NoError(t, json.Unmarshal([]byte(`{"labTests":["CBC","HbA1c"]}`), &p))
	assert.Equal(t, LabTests{"CBC", "HbA1c"}, p.LabTests)

	require.NoError(t, json.Unmarshal([]byte(`{"labTests":"  "}`), &p))
	assert.Empty(t, p.LabTests)
}
