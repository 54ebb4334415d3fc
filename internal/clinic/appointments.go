package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
	"stealthcompany.com/clinicportal/internal/metrics"
)

const (
	ErrOnlyPatientsBook   = "Only patients can book appointments"
	ErrOnlyDoctorsUpdate  = "Only doctors can update appointment status"
	ErrOnlyPatientsCancel = "Only patients can cancel appointments"
	ErrAlreadyCancelled   = "Appointment is already cancelled"
)

type AppointmentList struct {
	Appointments   []Appointment `json:"appointments"`
	TotalCount     int           `json:"totalCount"`
	UpcomingCount  int           `json:"upcomingCount"`
	TodayCount     int           `json:"todayCount"`
	CompletedCount int           `json:"completedCount"`
	PendingCount   int           `json:"pendingCount"`
}

type BookingRequest struct {
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	AppointmentType string `json:"appointmentType,omitempty"`
	ReasonForVisit  string `json:"reasonForVisit,omitempty"`
}

func (r BookingRequest) Validate() error {
	var f fieldErrors
	f.require("doctorId", r.DoctorID)
	f.require("appointmentDate", r.AppointmentDate)
	f.require("appointmentTime", r.AppointmentTime)
	f.date("appointmentDate", r.AppointmentDate)
	f.clock("appointmentTime", r.AppointmentTime)
	f.oneOf("appointmentType", r.AppointmentType, appointmentTypes)
	return f.err()
}

// AppointmentUpdate carries the fields a doctor may change. Nil fields are
// left untouched.
type AppointmentUpdate struct {
	Status          *string `json:"status,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	AppointmentDate *string `json:"appointmentDate,omitempty"`
	AppointmentTime *string `json:"appointmentTime,omitempty"`
	AppointmentType *string `json:"appointmentType,omitempty"`
}

func (u AppointmentUpdate) Validate() error {
	var f fieldErrors
	if u.Status != nil {
		f.require("status", *u.Status)
		f.oneOf("status", *u.Status, appointmentStatuses)
	}
	if u.AppointmentDate != nil {
		f.require("appointmentDate", *u.AppointmentDate)
		f.date("appointmentDate", *u.AppointmentDate)
	}
	if u.AppointmentTime != nil {
		f.require("appointmentTime", *u.AppointmentTime)
		f.clock("appointmentTime", *u.AppointmentTime)
	}
	if u.AppointmentType != nil {
		f.oneOf("appointmentType", *u.AppointmentType, appointmentTypes)
	}
	return f.err()
}

// Apply copies the set fields onto a.
func (u AppointmentUpdate) Apply(a *Appointment) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	if u.AppointmentDate != nil {
		a.AppointmentDate = *u.AppointmentDate
	}
	if u.AppointmentTime != nil {
		a.AppointmentTime = *u.AppointmentTime
	}
	if u.AppointmentType != nil {
		a.AppointmentType = *u.AppointmentType
	}
}

// IsUpcoming reports whether a is on or after today and not cancelled.
func IsUpcoming(a Appointment, today string) bool {
	return a.AppointmentDate >= today && a.Status != StatusCancelled
}

func FilterByStatus(list []Appointment, status string) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range list {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

func Upcoming(list []Appointment, today string) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range list {
		if IsUpcoming(a, today) {
			out = append(out, a)
		}
	}
	return out
}

// SummarizeAppointments computes the list counts from the records themselves.
func SummarizeAppointments(list []Appointment, today string) AppointmentList {
	sum := AppointmentList{Appointments: list, TotalCount: len(list)}
	for _, a := range list {
		if IsUpcoming(a, today) {
			sum.UpcomingCount++
		}
		if a.AppointmentDate == today {
			sum.TodayCount++
		}
		switch a.Status {
		case StatusCompleted:
			sum.CompletedCount++
		case StatusPending:
			sum.PendingCount++
		}
	}
	return sum
}

func sortAppointmentsAsc(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AppointmentDate != list[j].AppointmentDate {
			return list[i].AppointmentDate < list[j].AppointmentDate
		}
		return list[i].AppointmentTime < list[j].AppointmentTime
	})
}

func sortAppointmentsDesc(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AppointmentDate != list[j].AppointmentDate {
			return list[i].AppointmentDate > list[j].AppointmentDate
		}
		return list[i].AppointmentTime > list[j].AppointmentTime
	})
}

// Appointments lists the caller's appointments with summary counts.
func (s *Service) Appointments(ctx context.Context, userID string) (*AppointmentList, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}

	list, err := listForRole[Appointment](ctx, s, kindAppointment, p)
	if err != nil {
		return nil, err
	}
	sortAppointmentsAsc(list)

	sum := SummarizeAppointments(list, s.today())
	return &sum, nil
}

// BookAppointment creates a pending appointment for the calling patient.
// A retried request creates a second appointment.
func (s *Service) BookAppointment(ctx context.Context, patientID string, req BookingRequest) (*Appointment, error) {
	patient, err := s.requireRole(ctx, patientID, RolePatient, ErrOnlyPatientsBook)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		metrics.RecordBooking("invalid")
		return nil, err
	}

	doctor, err := s.Doctor(ctx, req.DoctorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			metrics.RecordBooking("not_found")
		}
		return nil, err
	}

	now := s.now()
	apt := &Appointment{
		ID:                   "apt_" + s.newID(),
		PatientID:            patient.ID,
		PatientName:          patient.FullName,
		PatientEmail:         patient.Email,
		PatientPhone:         patient.Phone,
		DoctorID:             req.DoctorID,
		DoctorName:           doctor.Name,
		DoctorSpecialization: doctor.Specialization,
		HospitalName:         doctor.Hospital,
		AppointmentDate:      req.AppointmentDate,
		AppointmentTime:      req.AppointmentTime,
		AppointmentType:      firstNonEmpty(req.AppointmentType, AppointmentInPerson),
		ReasonForVisit:       req.ReasonForVisit,
		Status:               StatusPending,
		ConsultationFee:      doctor.ConsultationFee,
		IsActive:             true,
		BookedAt:             now,
	}

	owners := map[string]string{sidePatient: apt.PatientID, sideDoctor: apt.DoctorID}
	if err := s.writeIndexed(ctx, kindAppointment, apt.ID, owners, apt); err != nil {
		metrics.RecordBooking("error")
		return nil, err
	}
	metrics.RecordBooking("success")

	activity := Activity{
		ID:              apt.ID,
		DoctorID:        apt.DoctorID,
		PatientID:       apt.PatientID,
		PatientName:     apt.PatientName,
		Type:            ActivityAppointmentBooked,
		AppointmentDate: apt.AppointmentDate,
		AppointmentTime: apt.AppointmentTime,
		OccurredAt:      now,
	}
	if err := s.store.Set(ctx, activityKey(apt.DoctorID, activity.ID), activity); err != nil {
		log.Warn().Err(err).Str("appointment_id", apt.ID).Msg("Failed to record booking activity")
	}

	return apt, nil
}

func (s *Service) loadAppointment(ctx context.Context, id string) (*Appointment, error) {
	apt, err := kvstore.GetAs[Appointment](ctx, s.store, recordKey(kindAppointment, id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.NotFound(ErrAppointmentNotFound)
		}
		return nil, fmt.Errorf("failed to load appointment %s: %w", id, err)
	}
	return apt, nil
}

// UpdateAppointment lets the assigned doctor change status, notes or slot.
// Only the canonical record is rewritten, so the patient and doctor views
// cannot disagree.
func (s *Service) UpdateAppointment(ctx context.Context, doctorID, id string, upd AppointmentUpdate) (*Appointment, error) {
	if _, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrOnlyDoctorsUpdate); err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	apt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, apperr.NotFound(ErrAppointmentNotFound)
	}

	upd.Apply(apt)
	now := s.now()
	apt.UpdatedAt = &now

	if err := s.store.Set(ctx, recordKey(kindAppointment, id), apt); err != nil {
		return nil, fmt.Errorf("failed to update appointment %s: %w", id, err)
	}
	return apt, nil
}

// CancelAppointment marks the patient's appointment cancelled. The record is
// kept.
func (s *Service) CancelAppointment(ctx context.Context, patientID, id string) (*Appointment, error) {
	if _, err := s.requireRole(ctx, patientID, RolePatient, ErrOnlyPatientsCancel); err != nil {
		return nil, err
	}

	apt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PatientID != patientID {
		return nil, apperr.NotFound(ErrAppointmentNotFound)
	}
	if apt.Status == StatusCancelled {
		return nil, apperr.Validation(ErrAlreadyCancelled)
	}

	now := s.now()
	apt.Status = StatusCancelled
	apt.CancelledAt = &now
	apt.CancelledBy = string(RolePatient)
	apt.UpdatedAt = &now

	if err := s.store.Set(ctx, recordKey(kindAppointment, id), apt); err != nil {
		return nil, fmt.Errorf("failed to cancel appointment %s: %w", id, err)
	}
	return apt, nil
}
