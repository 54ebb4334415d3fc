package clinic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/apperr"
)

func strPtr(s string) *string { return &s }

func bookingFor(doctorID string) BookingRequest {
	return BookingRequest{
		DoctorID:        doctorID,
		AppointmentDate: "2026-10-20",
		AppointmentTime: "10:00",
		ReasonForVisit:  "Chest pain",
	}
}

func TestBookedAppointmentConfirmedIsVisibleToBoth(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha Verma", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	apt, err := svc.BookAppointment(ctx, patient.ID, bookingFor(doctor.ID))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, apt.Status)
	assert.Equal(t, AppointmentInPerson, apt.AppointmentType)
	assert.Equal(t, "Asha Verma", apt.PatientName)
	assert.Equal(t, "Dr. Iyer", apt.DoctorName)
	assert.Equal(t, float64(DefaultConsultationFee), apt.ConsultationFee)

	_, err = svc.UpdateAppointment(ctx, doctor.ID, apt.ID, AppointmentUpdate{Status: strPtr(StatusConfirmed)})
	require.NoError(t, err)

	for _, userID := range []string{patient.ID, doctor.ID} {
		list, err := svc.Appointments(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list.Appointments, 1)
		assert.Equal(t, StatusConfirmed, list.Appointments[0].Status)
		assert.NotNil(t, list.Appointments[0].UpdatedAt)
	}

	dash, err := svc.DoctorDashboard(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, dash.RecentActivity, 1)
	assert.Equal(t, ActivityAppointmentBooked, dash.RecentActivity[0].Type)
}

func TestBookAppointmentRejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	tests := []struct {
		name   string
		userID string
		req    BookingRequest
		kind   apperr.Kind
	}{
		{name: "doctor cannot book", userID: doctor.ID, req: bookingFor(doctor.ID), kind: apperr.KindForbidden},
		{name: "unknown caller", userID: "ghost", req: bookingFor(doctor.ID), kind: apperr.KindNotFound},
		{name: "missing doctor id", userID: patient.ID, req: bookingFor(""), kind: apperr.KindValidation},
		{name: "unknown doctor", userID: patient.ID, req: bookingFor("nobody"), kind: apperr.KindNotFound},
		{name: "patient as doctor", userID: patient.ID, req: bookingFor(patient.ID), kind: apperr.KindNotFound},
		{
			name:   "bad date",
			userID: patient.ID,
			req:    BookingRequest{DoctorID: doctor.ID, AppointmentDate: "20/10/2026", AppointmentTime: "10:00"},
			kind:   apperr.KindValidation,
		},
		{
			name:   "bad type",
			userID: patient.ID,
			req:    BookingRequest{DoctorID: doctor.ID, AppointmentDate: "2026-10-20", AppointmentTime: "10:00", AppointmentType: "home-visit"},
			kind:   apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BookAppointment(ctx, tt.userID, tt.req)
			requireKind(t, err, tt.kind)
		})
	}

	list, err := svc.Appointments(ctx, patient.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Appointments)
}

func TestUpdateAppointmentOnlyByAssignedDoctor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)
	other := signup(t, svc, "o@example.com", "Dr. Other", RoleDoctor)

	apt, err := svc.BookAppointment(ctx, patient.ID, bookingFor(doctor.ID))
	require.NoError(t, err)

	_, err = svc.UpdateAppointment(ctx, other.ID, apt.ID, AppointmentUpdate{Status: strPtr(StatusConfirmed)})
	requireKind(t, err, apperr.KindNotFound)

	_, err = svc.UpdateAppointment(ctx, patient.ID, apt.ID, AppointmentUpdate{Status: strPtr(StatusConfirmed)})
	requireKind(t, err, apperr.KindForbidden)

	_, err = svc.UpdateAppointment(ctx, doctor.ID, apt.ID, AppointmentUpdate{Status: strPtr("maybe")})
	requireKind(t, err, apperr.KindValidation)

	updated, err := svc.UpdateAppointment(ctx, doctor.ID, apt.ID, AppointmentUpdate{
		Notes:           strPtr("Bring previous ECG"),
		AppointmentTime: strPtr("11:30"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	assert.Equal(t, "11:30", updated.AppointmentTime)
	assert.Equal(t, "Bring previous ECG", updated.Notes)
}

func TestCancelAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	stranger := signup(t, svc, "s@example.com", "Ravi", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	apt, err := svc.BookAppointment(ctx, patient.ID, bookingFor(doctor.ID))
	require.NoError(t, err)

	_, err = svc.CancelAppointment(ctx, stranger.ID, apt.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = svc.CancelAppointment(ctx, doctor.ID, apt.ID)
	requireKind(t, err, apperr.KindForbidden)

	cancelled, err := svc.CancelAppointment(ctx, patient.ID, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "patient", cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = svc.CancelAppointment(ctx, patient.ID, apt.ID)
	requireKind(t, err, apperr.KindValidation)

	list, err := svc.Appointments(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, StatusCancelled, list.Appointments[0].Status)
	assert.Equal(t, 0, list.UpcomingCount)
}

func TestFailedWritesNeverDiverge(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	patient := signup(t, svc, "p@example.com", "Asha", RolePatient)
	doctor := signup(t, svc, "d@example.com", "Dr. Iyer", RoleDoctor)

	isCanonical := func(key string) bool { return strings.HasPrefix(key, "appointment:") }
	isDoctorIndex := func(key string) bool { return strings.HasPrefix(key, "appointment_idx:doctor:") }

	for name, match := range map[string]func(string) bool{
		"canonical write fails":    isCanonical,
		"doctor index write fails": isDoctorIndex,
	} {
		t.Run("booking/"+name, func(t *testing.T) {
			store.failOn(match)
			_, err := svc.BookAppointment(ctx, patient.ID, bookingFor(doctor.ID))
			store.failOn(nil)
			require.Error(t, err)

			for _, userID := range []string{patient.ID, doctor.ID} {
				list, err := svc.Appointments(ctx, userID)
				require.NoError(t, err)
				assert.Empty(t, list.Appointments)
			}
		})
	}

	apt, err := svc.BookAppointment(ctx, patient.ID, bookingFor(doctor.ID))
	require.NoError(t, err)

	store.failOn(isCanonical)
	_, err = svc.UpdateAppointment(ctx, doctor.ID, apt.ID, AppointmentUpdate{Status: strPtr(StatusConfirmed)})
	store.failOn(nil)
	require.Error(t, err)

	for _, userID := range []string{patient.ID, doctor.ID} {
		list, err := svc.Appointments(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list.Appointments, 1)
		assert.Equal(t, StatusPending, list.Appointments[0].Status)
	}
}

func TestSummarizeAppointments(t *testing.T) {
	today := "2026-10-15"
	list := []Appointment{
		{ID: "a", AppointmentDate: "2026-10-15", Status: StatusPending},
		{ID: "b", AppointmentDate: "2026-10-15", Status: StatusCompleted},
		{ID: "c", AppointmentDate: "2026-10-20", Status: StatusConfirmed},
		{ID: "d", AppointmentDate: "2026-10-21", Status: StatusCancelled},
		{ID: "e", AppointmentDate: "2026-09-01", Status: StatusCompleted},
		{ID: "f", AppointmentDate: "2026-09-02", Status: StatusPending},
	}

	sum := SummarizeAppointments(list, today)
	assert.Equal(t, 6, sum.TotalCount)
	assert.Equal(t, 3, sum.UpcomingCount)
	assert.Equal(t, 2, sum.TodayCount)
	assert.Equal(t, 2, sum.CompletedCount)
	assert.Equal(t, 2, sum.PendingCount)

	for _, status := range appointmentStatuses {
		filtered := FilterByStatus(list, status)
		for _, a := range filtered {
			assert.Equal(t, status, a.Status)
		}
	}
	assert.Len(t, FilterByStatus(list, StatusCancelled), 1)
	assert.NotNil(t, FilterByStatus(nil, StatusPending))

	upcoming := Upcoming(list, today)
	ids := make([]string, 0, len(upcoming))
	for _, a := range upcoming {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
