package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

func TestSeedSampleDataIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	for run := 0; run < 2; run++ {
		res, err := svc.SeedSampleData(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, SeedResult{Appointments: 5, Prescriptions: 3, Reports: 3}, *res)

		res, err = svc.SeedSampleData(ctx, doctor.ID)
		require.NoError(t, err)
		assert.Equal(t, SeedResult{Appointments: 6, Prescriptions: 3, Reports: 2, Activities: 3}, *res)
	}
	keysAfterTwoRuns := store.Len()

	_, err := svc.SeedSampleData(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, keysAfterTwoRuns, store.Len())

	apts, err := svc.Appointments(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, apts.TotalCount)

	prescs, err := svc.Prescriptions(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, prescs.TotalCount)

	reports, err := svc.Reports(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reports.AnalyzedCount)

	locked, err := kvstore.NewLocker(store, "test", time.Minute).IsLocked(ctx, seedLockName(patient.ID))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestSeedSampleDataWhileLocked(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)

	other := kvstore.NewLocker(store, "another-instance", time.Minute)
	require.NoError(t, other.Acquire(ctx, seedLockName(patient.ID)))

	_, err := svc.SeedSampleData(ctx, patient.ID)
	requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, ErrSeedInProgress, apperr.Message(err, ""))
}

func TestSeedSampleDataWhileRunningInSameProcess(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)

	// same holder name as the service's own locker
	inFlight := kvstore.NewLocker(store, "test", time.Minute)
	require.NoError(t, inFlight.Acquire(ctx, seedLockName(patient.ID)))

	_, err := svc.SeedSampleData(ctx, patient.ID)
	requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, ErrSeedInProgress, apperr.Message(err, ""))

	require.NoError(t, inFlight.Release(ctx, seedLockName(patient.ID)))
	_, err = svc.SeedSampleData(ctx, patient.ID)
	require.NoError(t, err)
}

func TestPatientDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	_, err := svc.PatientDashboard(ctx, doctor.ID)
	requireKind(t, err, apperr.KindForbidden)

	_, err = svc.SeedSampleData(ctx, patient.ID)
	require.NoError(t, err)

	d, err := svc.PatientDashboard(ctx, patient.ID)
	require.NoError(t, err)

	require.Len(t, d.UpcomingAppointments, 2)
	assert.Equal(t, "2026-10-17", d.UpcomingAppointments[0].AppointmentDate)
	assert.Equal(t, "2026-10-20", d.UpcomingAppointments[1].AppointmentDate)
	assert.Equal(t, 2, d.UpcomingAppointmentsCount)

	require.Len(t, d.RecentPrescriptions, 3)
	assert.Equal(t, seedID(patient.ID, "presc1"), d.RecentPrescriptions[0].ID)
	require.Len(t, d.RecentReports, 1)
	assert.Equal(t, seedID(patient.ID, "report1"), d.RecentReports[0].ID)

	assert.Equal(t, 5, d.TotalAppointments)
	assert.Equal(t, 3, d.CompletedAppointments)
	assert.Equal(t, 2, d.ActivePrescriptions)
	assert.Equal(t, 3, d.TotalPrescriptions)
	assert.Equal(t, 3, d.TotalReports)
	assert.Equal(t, RecentActivity{AppointmentsLast3Months: 5, ReportsLast3Months: 3}, d.RecentActivity)

	// 70 base, recent visit, recent report, upcoming visit; active prescriptions earn nothing
	assert.Equal(t, 95, d.HealthScore)
}

type constantScorer int

func (c constantScorer) Score(HealthInputs) int { return int(c) }

func TestPatientDashboardUsesScorer(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithHealthScorer(constantScorer(42))

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	d, err := svc.PatientDashboard(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, d.HealthScore)
	assert.NotNil(t, d.UpcomingAppointments)
}

func TestActivityHealthScorer(t *testing.T) {
	tests := []struct {
		name     string
		in       HealthInputs
		expected int
	}{
		{
			name:     "no records",
			in:       HealthInputs{Today: fixedNow},
			expected: 75,
		},
		{
			name: "active prescription only",
			in: HealthInputs{
				Today:         fixedNow,
				Prescriptions: []Prescription{{Status: PrescriptionActive}},
			},
			expected: 70,
		},
		{
			name: "everything",
			in: HealthInputs{
				Today:        fixedNow,
				Appointments: []Appointment{{AppointmentDate: "2026-10-30", Status: StatusConfirmed}},
				Reports:      []MedicalReport{{ReportDate: "2026-10-01"}},
			},
			expected: 100,
		},
		{
			name: "stale records",
			in: HealthInputs{
				Today:        fixedNow,
				Appointments: []Appointment{{AppointmentDate: "2025-01-10", Status: StatusCompleted}},
				Reports:      []MedicalReport{{ReportDate: "2025-01-10"}},
			},
			expected: 75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ActivityHealthScorer{}.Score(tt.in))
		})
	}
}

func TestDoctorDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)
	_, err := svc.SeedSampleData(ctx, doctor.ID)
	require.NoError(t, err)

	d, err := svc.DoctorDashboard(ctx, doctor.ID)
	require.NoError(t, err)

	require.Len(t, d.TodayAppointments, 3)
	assert.Equal(t, "09:00", d.TodayAppointments[0].AppointmentTime)
	assert.Equal(t, "14:00", d.TodayAppointments[2].AppointmentTime)
	assert.Equal(t, 3, d.TotalAppointments)
	assert.Equal(t, 1, d.CompletedToday)
	assert.Equal(t, 1, d.PendingToday)

	require.Len(t, d.UpcomingAppointments, 1)
	assert.Equal(t, "2026-10-16", d.UpcomingAppointments[0].AppointmentDate)

	assert.Equal(t, 5, d.TotalPatients)
	assert.Equal(t, 6, d.TotalAppointmentsAllTime)
	assert.Equal(t, 3, d.TotalPrescriptions)
	assert.Equal(t, 2, d.TotalReports)

	// week starts Sunday 2026-10-11
	assert.Equal(t, 5, d.ThisWeekAppointments)
	assert.Equal(t, 2, d.ThisWeekCompleted)

	require.Len(t, d.RecentActivity, 3)
	assert.Equal(t, "pat3", d.RecentActivity[0].PatientID)
	assert.Equal(t, "pat4", d.RecentActivity[2].PatientID)
}

func TestRosterAndPatientDetail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)
	other := signup(t, svc, "o@example.com", "Dr. Other", RoleDoctor)
	asha := signup(t, svc, "asha@example.com", "Asha", RolePatient)
	ravi := signup(t, svc, "ravi@example.com", "Ravi", RolePatient)

	book := func(patientID, doctorID, date string) {
		t.Helper()
		_, err := svc.BookAppointment(ctx, patientID, BookingRequest{DoctorID: doctorID, AppointmentDate: date, AppointmentTime: "10:00"})
		require.NoError(t, err)
	}
	book(asha.ID, doctor.ID, "2026-09-01")
	book(asha.ID, doctor.ID, "2026-10-01")
	book(ravi.ID, doctor.ID, "2026-10-10")
	book(asha.ID, other.ID, "2026-10-12")

	_, err := svc.AddPatientPrescription(ctx, doctor.ID, asha.ID, PrescriptionRequest{Diagnosis: "Migraine"})
	require.NoError(t, err)
	_, err = svc.AddPatientPrescription(ctx, other.ID, asha.ID, PrescriptionRequest{Diagnosis: "Cold"})
	require.NoError(t, err)
	_, err = svc.CreateReport(ctx, asha.ID, ReportRequest{FileName: "cbc.pdf", ReportType: "blood-test"})
	require.NoError(t, err)

	roster, err := svc.Roster(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, ravi.ID, roster[0].ID)
	require.NotNil(t, roster[0].LastVisit)
	assert.Equal(t, "2026-10-10", *roster[0].LastVisit)

	assert.Equal(t, asha.ID, roster[1].ID)
	assert.Equal(t, "2026-10-01", *roster[1].LastVisit)
	assert.Equal(t, 2, roster[1].TotalAppointments)
	assert.Equal(t, 1, roster[1].TotalPrescriptions)
	assert.Equal(t, 1, roster[1].TotalReports)

	_, err = svc.Roster(ctx, asha.ID)
	requireKind(t, err, apperr.KindForbidden)

	detail, err := svc.PatientDetail(ctx, doctor.ID, asha.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", detail.Patient.FullName)
	require.Len(t, detail.Appointments, 2)
	assert.Equal(t, "2026-10-01", detail.Appointments[0].AppointmentDate)
	assert.Len(t, detail.Prescriptions, 1)
	assert.Len(t, detail.Reports, 1)
	assert.Equal(t, PatientStats{TotalAppointments: 2, TotalPrescriptions: 1, TotalReports: 1}, detail.Stats)

	_, err = svc.PatientDetail(ctx, doctor.ID, other.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = svc.PatientDetail(ctx, doctor.ID, "missing")
	requireKind(t, err, apperr.KindNotFound)
}
