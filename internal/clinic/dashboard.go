package clinic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

const (
	dashboardUpcomingLimit      = 3
	dashboardPrescriptionLimit  = 3
	dashboardReportLimit        = 1
	doctorUpcomingLimit         = 5
	doctorUpcomingWindowDays    = 7
	doctorActivityWindowDays    = 7
	patientRecentActivityMonths = 3
)

type RecentActivity struct {
	AppointmentsLast3Months int `json:"appointmentsLast3Months"`
	ReportsLast3Months      int `json:"reportsLast3Months"`
}

type PatientDashboard struct {
	UpcomingAppointments      []Appointment   `json:"upcomingAppointments"`
	RecentPrescriptions       []Prescription  `json:"recentPrescriptions"`
	RecentReports             []MedicalReport `json:"recentReports"`
	TotalAppointments         int             `json:"totalAppointments"`
	CompletedAppointments     int             `json:"completedAppointments"`
	UpcomingAppointmentsCount int             `json:"upcomingAppointmentsCount"`
	ActivePrescriptions       int             `json:"activePrescriptions"`
	TotalPrescriptions        int             `json:"totalPrescriptions"`
	TotalReports              int             `json:"totalReports"`
	HealthScore               int             `json:"healthScore"`
	RecentActivity            RecentActivity  `json:"recentActivity"`
}

type DoctorDashboard struct {
	TodayAppointments        []Appointment `json:"todayAppointments"`
	RecentActivity           []Activity    `json:"recentActivity"`
	UpcomingAppointments     []Appointment `json:"upcomingAppointments"`
	TotalAppointments        int           `json:"totalAppointments"`
	CompletedToday           int           `json:"completedToday"`
	PendingToday             int           `json:"pendingToday"`
	TotalPatients            int           `json:"totalPatients"`
	TotalAppointmentsAllTime int           `json:"totalAppointmentsAllTime"`
	TotalPrescriptions       int           `json:"totalPrescriptions"`
	TotalReports             int           `json:"totalReports"`
	ThisWeekAppointments     int           `json:"thisWeekAppointments"`
	ThisWeekCompleted        int           `json:"thisWeekCompleted"`
}

// PatientSummary is one row of a doctor's roster.
type PatientSummary struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	DateOfBirth        string    `json:"dateOfBirth,omitempty"`
	Gender             string    `json:"gender,omitempty"`
	BloodGroup         string    `json:"bloodGroup,omitempty"`
	LastVisit          *string   `json:"lastVisit"`
	TotalAppointments  int       `json:"totalAppointments"`
	TotalPrescriptions int       `json:"totalPrescriptions"`
	TotalReports       int       `json:"totalReports"`
	CreatedAt          time.Time `json:"createdAt"`
}

type PatientInfo struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	BloodGroup  string    `json:"bloodGroup,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PatientStats struct {
	TotalAppointments  int `json:"totalAppointments"`
	TotalPrescriptions int `json:"totalPrescriptions"`
	TotalReports       int `json:"totalReports"`
}

type PatientDetail struct {
	Patient       PatientInfo     `json:"patient"`
	Appointments  []Appointment   `json:"appointments"`
	Prescriptions []Prescription  `json:"prescriptions"`
	Reports       []MedicalReport `json:"reports"`
	Stats         PatientStats    `json:"stats"`
}

func patientInfo(p *UserProfile) PatientInfo {
	return PatientInfo{
		ID:          p.ID,
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		BloodGroup:  p.BloodGroup,
		CreatedAt:   p.CreatedAt,
	}
}

// patientRecords loads the three record kinds indexed under one patient.
func (s *Service) patientRecords(ctx context.Context, patientID string) ([]Appointment, []Prescription, []MedicalReport, error) {
	var (
		apts    []Appointment
		prescs  []Prescription
		reports []MedicalReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apts, err = listIndexed[Appointment](gctx, s, kindAppointment, sidePatient, patientID)
		return err
	})
	g.Go(func() error {
		var err error
		prescs, err = listIndexed[Prescription](gctx, s, kindPrescription, sidePatient, patientID)
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = listIndexed[MedicalReport](gctx, s, kindReport, sidePatient, patientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return apts, prescs, reports, nil
}

// PatientDashboard aggregates the calling patient's records.
func (s *Service) PatientDashboard(ctx context.Context, patientID string) (*PatientDashboard, error) {
	if _, err := s.requireRole(ctx, patientID, RolePatient, ErrPatientsOnly); err != nil {
		return nil, err
	}

	apts, prescs, reports, err := s.patientRecords(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return BuildPatientDashboard(s.now(), apts, prescs, reports, s.scorer), nil
}

// DoctorDashboard aggregates the calling doctor's schedule and feed.
func (s *Service) DoctorDashboard(ctx context.Context, doctorID string) (*DoctorDashboard, error) {
	if _, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly); err != nil {
		return nil, err
	}

	var (
		apts       []Appointment
		prescs     []Prescription
		reports    []MedicalReport
		activities []Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apts, err = listIndexed[Appointment](gctx, s, kindAppointment, sideDoctor, doctorID)
		return err
	})
	g.Go(func() error {
		var err error
		prescs, err = listIndexed[Prescription](gctx, s, kindPrescription, sideDoctor, doctorID)
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = listIndexed[MedicalReport](gctx, s, kindReport, sideDoctor, doctorID)
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = kvstore.ListByPrefix[Activity](gctx, s.store, activityPrefix(doctorID))
		if err != nil {
			return fmt.Errorf("failed to list activity for doctor %s: %w", doctorID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildDoctorDashboard(s.now(), apts, prescs, reports, activities), nil
}

// BuildPatientDashboard aggregates one patient's records as of now.
func BuildPatientDashboard(now time.Time, apts []Appointment, prescs []Prescription, reports []MedicalReport, scorer HealthScorer) *PatientDashboard {
	today := now.Format(dateLayout)
	since := now.AddDate(0, -patientRecentActivityMonths, 0).Format(dateLayout)

	upcoming := Upcoming(apts, today)
	sortAppointmentsAsc(upcoming)
	sortPrescriptionsDesc(prescs)
	sortReportsDesc(reports)

	d := &PatientDashboard{
		UpcomingAppointments:      head(upcoming, dashboardUpcomingLimit),
		RecentPrescriptions:       head(prescs, dashboardPrescriptionLimit),
		RecentReports:             head(reports, dashboardReportLimit),
		TotalAppointments:         len(apts),
		CompletedAppointments:     len(FilterByStatus(apts, StatusCompleted)),
		UpcomingAppointmentsCount: len(upcoming),
		TotalPrescriptions:        len(prescs),
		TotalReports:              len(reports),
	}
	for _, p := range prescs {
		if p.Status == PrescriptionActive {
			d.ActivePrescriptions++
		}
	}
	for _, a := range apts {
		if a.AppointmentDate >= since {
			d.RecentActivity.AppointmentsLast3Months++
		}
	}
	for _, r := range reports {
		if reportDay(r) >= since {
			d.RecentActivity.ReportsLast3Months++
		}
	}

	d.HealthScore = scorer.Score(HealthInputs{
		Today:         now,
		Appointments:  apts,
		Prescriptions: prescs,
		Reports:       reports,
	})
	return d
}

// BuildDoctorDashboard aggregates one doctor's schedule and feed as of now.
func BuildDoctorDashboard(now time.Time, apts []Appointment, prescs []Prescription, reports []MedicalReport, activities []Activity) *DoctorDashboard {
	today := now.Format(dateLayout)
	horizon := now.AddDate(0, 0, doctorUpcomingWindowDays).Format(dateLayout)
	weekStart := now.AddDate(0, 0, -int(now.Weekday())).Format(dateLayout)
	activitySince := now.AddDate(0, 0, -doctorActivityWindowDays)

	d := &DoctorDashboard{
		TodayAppointments:        make([]Appointment, 0),
		RecentActivity:           make([]Activity, 0),
		TotalAppointmentsAllTime: len(apts),
		TotalPrescriptions:       len(prescs),
		TotalReports:             len(reports),
	}

	var upcoming []Appointment
	patients := make(map[string]struct{})
	for _, a := range apts {
		patients[a.PatientID] = struct{}{}
		if a.AppointmentDate == today {
			d.TodayAppointments = append(d.TodayAppointments, a)
		}
		if a.AppointmentDate > today && a.AppointmentDate <= horizon && a.Status != StatusCancelled {
			upcoming = append(upcoming, a)
		}
		if a.AppointmentDate >= weekStart {
			d.ThisWeekAppointments++
			if a.Status == StatusCompleted {
				d.ThisWeekCompleted++
			}
		}
	}
	d.TotalPatients = len(patients)

	sort.SliceStable(d.TodayAppointments, func(i, j int) bool {
		return d.TodayAppointments[i].AppointmentTime < d.TodayAppointments[j].AppointmentTime
	})
	d.TotalAppointments = len(d.TodayAppointments)
	d.CompletedToday = len(FilterByStatus(d.TodayAppointments, StatusCompleted))
	d.PendingToday = len(FilterByStatus(d.TodayAppointments, StatusPending))

	sortAppointmentsAsc(upcoming)
	d.UpcomingAppointments = head(upcoming, doctorUpcomingLimit)

	for _, a := range activities {
		if !a.OccurredAt.Before(activitySince) {
			d.RecentActivity = append(d.RecentActivity, a)
		}
	}
	sort.SliceStable(d.RecentActivity, func(i, j int) bool {
		return d.RecentActivity[i].OccurredAt.After(d.RecentActivity[j].OccurredAt)
	})

	return d
}

// Roster lists the patients the calling doctor has appointments with,
// most recent visit first.
func (s *Service) Roster(ctx context.Context, doctorID string) ([]PatientSummary, error) {
	if _, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly); err != nil {
		return nil, err
	}

	var (
		apts   []Appointment
		prescs []Prescription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apts, err = listIndexed[Appointment](gctx, s, kindAppointment, sideDoctor, doctorID)
		return err
	})
	g.Go(func() error {
		var err error
		prescs, err = listIndexed[Prescription](gctx, s, kindPrescription, sideDoctor, doctorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPatient := make(map[string][]Appointment)
	var patientIDs []string
	for _, a := range apts {
		if _, seen := byPatient[a.PatientID]; !seen {
			patientIDs = append(patientIDs, a.PatientID)
		}
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}
	prescCount := make(map[string]int)
	for _, p := range prescs {
		prescCount[p.PatientID]++
	}

	rows := make([]*PatientSummary, len(patientIDs))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, pid := range patientIDs {
		g.Go(func() error {
			p, err := s.Profile(gctx, pid)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return nil
				}
				return err
			}
			if p.Role != RolePatient {
				return nil
			}
			reports, err := listIndexed[MedicalReport](gctx, s, kindReport, sidePatient, pid)
			if err != nil {
				return err
			}

			row := &PatientSummary{
				ID:                 p.ID,
				FullName:           p.FullName,
				Email:              p.Email,
				Phone:              p.Phone,
				DateOfBirth:        p.DateOfBirth,
				Gender:             p.Gender,
				BloodGroup:         p.BloodGroup,
				TotalAppointments:  len(byPatient[pid]),
				TotalPrescriptions: prescCount[pid],
				TotalReports:       len(reports),
				CreatedAt:          p.CreatedAt,
			}
			for _, a := range byPatient[pid] {
				if a.AppointmentDate == "" {
					continue
				}
				if row.LastVisit == nil || a.AppointmentDate > *row.LastVisit {
					date := a.AppointmentDate
					row.LastVisit = &date
				}
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]PatientSummary, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastVisit, out[j].LastVisit
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return out, nil
}

// PatientDetail shows one patient to the calling doctor: only the
// appointments and prescriptions shared with that doctor, but every report.
func (s *Service) PatientDetail(ctx context.Context, doctorID, patientID string) (*PatientDetail, error) {
	if _, err := s.requireRole(ctx, doctorID, RoleDoctor, ErrDoctorsOnly); err != nil {
		return nil, err
	}

	patient, err := s.Profile(ctx, patientID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(ErrPatientNotFound)
		}
		return nil, err
	}
	if patient.Role != RolePatient {
		return nil, apperr.NotFound(ErrPatientNotFound)
	}

	apts, prescs, reports, err := s.patientRecords(ctx, patientID)
	if err != nil {
		return nil, err
	}

	shared := make([]Appointment, 0)
	for _, a := range apts {
		if a.DoctorID == doctorID {
			shared = append(shared, a)
		}
	}
	sortAppointmentsDesc(shared)

	written := make([]Prescription, 0)
	for _, p := range prescs {
		if p.DoctorID == doctorID {
			written = append(written, p)
		}
	}
	sortPrescriptionsDesc(written)
	sortReportsDesc(reports)

	return &PatientDetail{
		Patient:       patientInfo(patient),
		Appointments:  shared,
		Prescriptions: written,
		Reports:       reports,
		Stats: PatientStats{
			TotalAppointments:  len(shared),
			TotalPrescriptions: len(written),
			TotalReports:       len(reports),
		},
	}, nil
}

// head returns at most n leading elements, never nil.
func head[T any](list []T, n int) []T {
	if len(list) > n {
		list = list[:n]
	}
	out := make([]T, len(list))
	copy(out, list)
	return out
}
