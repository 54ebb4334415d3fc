package portal

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/metrics"
)

func (g *Gateway) today() string {
	return g.now().UTC().Format(time.DateOnly)
}

// Doctors lists the directory. Without a signed-in user the public route is
// called with the anon key alone.
func (g *Gateway) Doctors(ctx context.Context) (Result[[]clinic.Doctor], error) {
	if _, _, err := g.current(ctx); apperr.Is(err, apperr.KindUnauthorized) {
		return g.publicDoctors(ctx)
	}
	return fetch(ctx, g, "doctors",
		func(ctx context.Context, token string) ([]clinic.Doctor, error) {
			return g.remote.Doctors(ctx, token)
		},
		func(ctx context.Context, _ *Identity) ([]clinic.Doctor, error) {
			return g.demo.Doctors(ctx)
		})
}

func (g *Gateway) publicDoctors(ctx context.Context) (Result[[]clinic.Doctor], error) {
	doctors, err := g.remote.Doctors(ctx, "")
	if err == nil {
		return Result[[]clinic.Doctor]{Data: doctors, Source: SourceRemote}, nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return Result[[]clinic.Doctor]{}, err
	}

	log.Warn().Err(err).Str("resource", "doctors").Msg("Clinic service unreachable, serving local data")
	metrics.RecordFallback("doctors")
	local, lerr := g.demo.Doctors(ctx)
	if lerr != nil {
		return Result[[]clinic.Doctor]{}, err
	}
	return Result[[]clinic.Doctor]{Data: local, Source: SourceFallback, Degraded: err}, nil
}

func (g *Gateway) Appointments(ctx context.Context) (Result[*clinic.AppointmentList], error) {
	return fetch(ctx, g, "appointments",
		func(ctx context.Context, token string) (*clinic.AppointmentList, error) {
			return g.remote.Appointments(ctx, token)
		},
		g.localAppointments)
}

func (g *Gateway) localAppointments(ctx context.Context, who *Identity) (*clinic.AppointmentList, error) {
	list, err := g.demo.Appointments(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	summary := clinic.SummarizeAppointments(list, g.today())
	return &summary, nil
}

func (g *Gateway) Prescriptions(ctx context.Context) (Result[*clinic.PrescriptionList], error) {
	return fetch(ctx, g, "prescriptions",
		func(ctx context.Context, token string) (*clinic.PrescriptionList, error) {
			return g.remote.Prescriptions(ctx, token)
		},
		func(ctx context.Context, who *Identity) (*clinic.PrescriptionList, error) {
			list, err := g.localPrescriptions(ctx, who)
			if err != nil {
				return nil, err
			}
			summary := clinic.SummarizePrescriptions(list)
			return &summary, nil
		})
}

// localPrescriptions merges the demo dataset with the prescription service,
// newest first. The service wins on id collisions.
func (g *Gateway) localPrescriptions(ctx context.Context, who *Identity) ([]clinic.Prescription, error) {
	var stored []clinic.Prescription
	if who.Role == clinic.RoleDoctor {
		stored = g.prescriptions.GetForDoctor(ctx, who.ID)
	} else {
		stored = g.prescriptions.GetForPatient(ctx, who.ID)
	}

	dataset, err := g.demo.Prescriptions(ctx, who.ID)
	if err != nil {
		return nil, err
	}

	out := mergeByID(dataset, stored, func(p clinic.Prescription) string { return p.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PrescribedDate.After(out[j].PrescribedDate) })
	return out, nil
}

// Reports lists the caller's reports. Remote results are reconciled with the
// local cache: they are cached locally and local-only reports of the same
// patient are appended.
func (g *Gateway) Reports(ctx context.Context) (Result[*clinic.ReportList], error) {
	return fetch(ctx, g, "reports",
		func(ctx context.Context, token string) (*clinic.ReportList, error) {
			list, err := g.remote.Reports(ctx, token)
			if err != nil {
				return nil, err
			}
			who, _, err := g.current(ctx)
			if err != nil {
				return nil, err
			}
			return g.reconcileReports(ctx, who, list.Reports), nil
		},
		func(ctx context.Context, who *Identity) (*clinic.ReportList, error) {
			list, err := g.localReports(ctx, who)
			if err != nil {
				return nil, err
			}
			summary := clinic.SummarizeReports(list)
			return &summary, nil
		})
}

func (g *Gateway) reconcileReports(ctx context.Context, who *Identity, remote []clinic.MedicalReport) *clinic.ReportList {
	for _, r := range remote {
		if err := g.reports.Put(ctx, r); err != nil {
			log.Warn().Err(err).Str("report_id", r.ID).Msg("Failed to cache report locally")
		}
	}

	var cached []clinic.MedicalReport
	if who.Role == clinic.RolePatient {
		cached = g.reports.GetForPatient(ctx, who.ID)
	}
	merged := mergeByID(cached, remote, func(r clinic.MedicalReport) string { return r.ID })
	sortReportsDesc(merged)

	summary := clinic.SummarizeReports(merged)
	return &summary
}

func (g *Gateway) localReports(ctx context.Context, who *Identity) ([]clinic.MedicalReport, error) {
	var stored []clinic.MedicalReport
	if who.Role == clinic.RoleDoctor {
		stored = g.reports.GetAll(ctx)
	} else {
		stored = g.reports.GetForPatient(ctx, who.ID)
	}

	dataset, err := g.demo.Reports(ctx, who.ID)
	if err != nil {
		return nil, err
	}

	out := mergeByID(dataset, stored, func(r clinic.MedicalReport) string { return r.ID })
	sortReportsDesc(out)
	return out, nil
}

func (g *Gateway) PatientDashboard(ctx context.Context) (Result[*clinic.PatientDashboard], error) {
	return fetch(ctx, g, "patient_dashboard",
		func(ctx context.Context, token string) (*clinic.PatientDashboard, error) {
			return g.remote.PatientDashboard(ctx, token)
		},
		func(ctx context.Context, who *Identity) (*clinic.PatientDashboard, error) {
			if who.Role != clinic.RolePatient {
				return nil, apperr.Forbidden(clinic.ErrPatientsOnly)
			}
			apts, prescs, reports, err := g.localRecords(ctx, who)
			if err != nil {
				return nil, err
			}
			return clinic.BuildPatientDashboard(g.now().UTC(), apts, prescs, reports, g.scorer), nil
		})
}

func (g *Gateway) DoctorDashboard(ctx context.Context) (Result[*clinic.DoctorDashboard], error) {
	return fetch(ctx, g, "doctor_dashboard",
		func(ctx context.Context, token string) (*clinic.DoctorDashboard, error) {
			return g.remote.DoctorDashboard(ctx, token)
		},
		func(ctx context.Context, who *Identity) (*clinic.DoctorDashboard, error) {
			if who.Role != clinic.RoleDoctor {
				return nil, apperr.Forbidden(clinic.ErrDoctorsOnly)
			}
			apts, prescs, _, err := g.localRecords(ctx, who)
			if err != nil {
				return nil, err
			}
			var reports []clinic.MedicalReport
			for _, r := range g.reports.GetAll(ctx) {
				if r.DoctorID == who.ID {
					reports = append(reports, r)
				}
			}
			return clinic.BuildDoctorDashboard(g.now().UTC(), apts, prescs, reports, nil), nil
		})
}

func (g *Gateway) localRecords(ctx context.Context, who *Identity) ([]clinic.Appointment, []clinic.Prescription, []clinic.MedicalReport, error) {
	apts, err := g.demo.Appointments(ctx, who.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	prescs, err := g.localPrescriptions(ctx, who)
	if err != nil {
		return nil, nil, nil, err
	}
	reports, err := g.localReports(ctx, who)
	if err != nil {
		return nil, nil, nil, err
	}
	return apts, prescs, reports, nil
}

func (g *Gateway) Roster(ctx context.Context) (Result[[]clinic.PatientSummary], error) {
	return fetch(ctx, g, "roster",
		func(ctx context.Context, token string) ([]clinic.PatientSummary, error) {
			return g.remote.Roster(ctx, token)
		},
		func(ctx context.Context, who *Identity) ([]clinic.PatientSummary, error) {
			if who.Role != clinic.RoleDoctor {
				return nil, apperr.Forbidden(clinic.ErrDoctorsOnly)
			}
			return g.demo.Patients(ctx, who.ID)
		})
}

func (g *Gateway) PatientDetail(ctx context.Context, patientID string) (Result[*clinic.PatientDetail], error) {
	return fetch(ctx, g, "patient_detail",
		func(ctx context.Context, token string) (*clinic.PatientDetail, error) {
			return g.remote.PatientDetail(ctx, token, patientID)
		},
		func(ctx context.Context, who *Identity) (*clinic.PatientDetail, error) {
			return g.localPatientDetail(ctx, who, patientID)
		})
}

func (g *Gateway) localPatientDetail(ctx context.Context, who *Identity, patientID string) (*clinic.PatientDetail, error) {
	if who.Role != clinic.RoleDoctor {
		return nil, apperr.Forbidden(clinic.ErrDoctorsOnly)
	}

	roster, err := g.demo.Patients(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	var patient *clinic.PatientSummary
	for i := range roster {
		if roster[i].ID == patientID {
			patient = &roster[i]
			break
		}
	}
	if patient == nil {
		return nil, apperr.NotFound(clinic.ErrPatientNotFound)
	}

	d := &clinic.PatientDetail{
		Patient: clinic.PatientInfo{
			ID:          patient.ID,
			FullName:    patient.FullName,
			Email:       patient.Email,
			Phone:       patient.Phone,
			DateOfBirth: patient.DateOfBirth,
			Gender:      patient.Gender,
			BloodGroup:  patient.BloodGroup,
			CreatedAt:   patient.CreatedAt,
		},
		Appointments:  []clinic.Appointment{},
		Prescriptions: []clinic.Prescription{},
		Reports:       g.reports.GetForPatient(ctx, patientID),
	}

	apts, err := g.demo.Appointments(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range apts {
		if a.PatientID == patientID {
			d.Appointments = append(d.Appointments, a)
		}
	}
	sort.SliceStable(d.Appointments, func(i, j int) bool {
		return d.Appointments[i].AppointmentDate > d.Appointments[j].AppointmentDate
	})

	for _, p := range g.prescriptions.GetForDoctor(ctx, who.ID) {
		if p.PatientID == patientID {
			d.Prescriptions = append(d.Prescriptions, p)
		}
	}
	sort.SliceStable(d.Prescriptions, func(i, j int) bool {
		return d.Prescriptions[i].PrescribedDate.After(d.Prescriptions[j].PrescribedDate)
	})
	sortReportsDesc(d.Reports)

	d.Stats = clinic.PatientStats{
		TotalAppointments:  len(d.Appointments),
		TotalPrescriptions: len(d.Prescriptions),
		TotalReports:       len(d.Reports),
	}
	return d, nil
}

// Timeline is always local: entries are extracted on this device when a
// report is analyzed.
func (g *Gateway) Timeline(ctx context.Context) (Result[[]clinic.TimelineEntry], error) {
	who, _, err := g.current(ctx)
	if err != nil {
		return Result[[]clinic.TimelineEntry]{}, err
	}
	entries := g.timeline.GetForPatient(ctx, who.ID)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })
	return Result[[]clinic.TimelineEntry]{Data: entries, Source: SourceLocal}, nil
}

// mergeByID returns base with later entries from override replacing or
// extending it by id, keeping first-seen order.
func mergeByID[T any](base, override []T, id func(T) string) []T {
	out := make([]T, 0, len(base)+len(override))
	index := make(map[string]int, len(base)+len(override))
	for _, list := range [][]T{base, override} {
		for _, item := range list {
			if i, ok := index[id(item)]; ok {
				out[i] = item
				continue
			}
			index[id(item)] = len(out)
			out = append(out, item)
		}
	}
	return out
}

func sortReportsDesc(list []clinic.MedicalReport) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ReportDate != list[j].ReportDate {
			return list[i].ReportDate > list[j].ReportDate
		}
		return list[i].UploadDate.After(list[j].UploadDate)
	})
}
