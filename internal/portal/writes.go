package portal

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/analysis"
	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
)

func newID() string {
	return uuid.NewString()
}

func (g *Gateway) BookAppointment(ctx context.Context, req clinic.BookingRequest) (*clinic.Appointment, error) {
	return write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.Appointment, error) {
			return g.remote.BookAppointment(ctx, token, req)
		},
		func(ctx context.Context, who *Identity) (*clinic.Appointment, error) {
			if who.Role != clinic.RolePatient {
				return nil, apperr.Forbidden(clinic.ErrOnlyPatientsBook)
			}
			return g.demo.BookAppointment(ctx, who.ID, req)
		})
}

func (g *Gateway) UpdateAppointment(ctx context.Context, id string, upd clinic.AppointmentUpdate) (*clinic.Appointment, error) {
	return write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.Appointment, error) {
			return g.remote.UpdateAppointment(ctx, token, id, upd)
		},
		func(ctx context.Context, who *Identity) (*clinic.Appointment, error) {
			if who.Role != clinic.RoleDoctor {
				return nil, apperr.Forbidden(clinic.ErrOnlyDoctorsUpdate)
			}
			return g.demo.UpdateAppointment(ctx, who.ID, id, upd)
		})
}

func (g *Gateway) CancelAppointment(ctx context.Context, id string) (*clinic.Appointment, error) {
	return write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.Appointment, error) {
			return g.remote.CancelAppointment(ctx, token, id)
		},
		func(ctx context.Context, who *Identity) (*clinic.Appointment, error) {
			if who.Role != clinic.RolePatient {
				return nil, apperr.Forbidden(clinic.ErrOnlyPatientsCancel)
			}
			return g.demo.CancelAppointment(ctx, who.ID, id)
		})
}

// AddPrescription writes a prescription as the calling doctor. With a
// patientID the prescription goes to that registered patient; without one
// req.PatientID may name a walk-in patient.
func (g *Gateway) AddPrescription(ctx context.Context, patientID string, req clinic.PrescriptionRequest) (*clinic.Prescription, error) {
	return write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.Prescription, error) {
			if patientID != "" {
				return g.remote.AddPatientPrescription(ctx, token, patientID, req)
			}
			return g.remote.CreatePrescription(ctx, token, req)
		},
		func(ctx context.Context, who *Identity) (*clinic.Prescription, error) {
			if who.Role != clinic.RoleDoctor {
				return nil, apperr.Forbidden(clinic.ErrDoctorsOnly)
			}
			if patientID != "" {
				req.PatientID = patientID
			}
			if err := req.Validate(); err != nil {
				return nil, err
			}

			now := g.now().UTC()
			p := clinic.Prescription{
				ID:                   "presc_" + g.newID(),
				PatientID:            req.PatientID,
				PatientName:          req.PatientName,
				PatientEmail:         req.PatientEmail,
				DoctorID:             who.ID,
				DoctorName:           who.FullName,
				DoctorSpecialization: clinic.DefaultSpecialization,
				Diagnosis:            req.Diagnosis,
				Medicines:            req.Medicines,
				LabTests:             req.LabTests,
				Instructions:         req.Instructions,
				FollowUpDate:         req.FollowUpDate,
				PrescribedDate:       now,
				Status:               firstNonEmpty(req.Status, clinic.PrescriptionActive),
			}
			if p.Medicines == nil {
				p.Medicines = []clinic.Medicine{}
			}
			if p.LabTests == nil {
				p.LabTests = clinic.LabTests{}
			}

			added, err := g.prescriptions.Add(ctx, p)
			if err != nil {
				return nil, err
			}
			return &added, nil
		})
}

func (g *Gateway) DeletePrescription(ctx context.Context, id string) error {
	_, err := write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (struct{}, error) {
			return struct{}{}, g.remote.DeletePrescription(ctx, token, id)
		},
		func(ctx context.Context, who *Identity) (struct{}, error) {
			if who.Role != clinic.RoleDoctor {
				return struct{}{}, apperr.Forbidden(clinic.ErrDoctorsOnly)
			}
			p, ok := g.prescriptions.GetByID(ctx, id)
			if !ok || p.DoctorID != who.ID {
				return struct{}{}, apperr.NotFound(clinic.ErrPrescriptionNotFound)
			}
			_, err := g.prescriptions.Delete(ctx, id)
			return struct{}{}, err
		})
	return err
}

// UploadRequest is a report file plus its metadata.
type UploadRequest struct {
	FileName   string
	MimeType   string
	Data       []byte
	ReportType string
	ReportDate string
	DoctorID   string
	DoctorName string
	LabName    string
	Cost       string
}

func (u UploadRequest) report() clinic.ReportRequest {
	return clinic.ReportRequest{
		DoctorID:   u.DoctorID,
		DoctorName: u.DoctorName,
		FileName:   u.FileName,
		FileSize:   int64(len(u.Data)),
		ReportType: u.ReportType,
		ReportDate: u.ReportDate,
		LabName:    u.LabName,
		Cost:       u.Cost,
	}
}

// UploadReport stores a report, analyzes the file and records the tracked
// parameters of the analysis on the patient's timeline.
func (g *Gateway) UploadReport(ctx context.Context, up UploadRequest) (*clinic.MedicalReport, error) {
	req := up.report()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	report, err := write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.MedicalReport, error) {
			a, err := g.analyzer.Analyze(ctx, up.FileName, up.MimeType, up.Data)
			if err != nil {
				return nil, err
			}
			req.AIAnalysis = a
			req.Status = clinic.ReportAnalyzed

			r, err := g.remote.CreateReport(ctx, token, req)
			if err != nil {
				return nil, err
			}
			if err := g.reports.Put(ctx, *r); err != nil {
				log.Warn().Err(err).Str("report_id", r.ID).Msg("Failed to cache report locally")
			}
			return r, nil
		},
		func(ctx context.Context, who *Identity) (*clinic.MedicalReport, error) {
			return g.uploadLocal(ctx, who, up, req)
		})
	if err != nil {
		return nil, err
	}

	entries := analysis.ExtractTimeline(report.AIAnalysis, report.ID, report.ReportDate)
	if _, err := g.timeline.AddMultiple(ctx, report.PatientID, entries); err != nil {
		log.Warn().Err(err).Str("report_id", report.ID).Msg("Failed to update health timeline")
	}
	return report, nil
}

func (g *Gateway) uploadLocal(ctx context.Context, who *Identity, up UploadRequest, req clinic.ReportRequest) (*clinic.MedicalReport, error) {
	now := g.now().UTC()
	r := clinic.MedicalReport{
		ID:          "report_" + g.newID(),
		PatientID:   who.ID,
		PatientName: who.FullName,
		DoctorID:    req.DoctorID,
		DoctorName:  req.DoctorName,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ReportType:  req.ReportType,
		ReportDate:  firstNonEmpty(req.ReportDate, g.today()),
		UploadDate:  now,
		Status:      clinic.ReportUploaded,
		LabName:     req.LabName,
		Cost:        req.Cost,
	}
	if _, err := g.reports.Add(ctx, r); err != nil {
		return nil, err
	}
	if _, _, err := g.reports.Update(ctx, r.ID, map[string]any{"status": clinic.ReportAnalyzing}); err != nil {
		return nil, err
	}

	a, err := g.analyzer.Analyze(ctx, up.FileName, up.MimeType, up.Data)
	if err != nil {
		if _, _, rerr := g.reports.Update(context.WithoutCancel(ctx), r.ID, map[string]any{"status": clinic.ReportUploaded}); rerr != nil {
			log.Error().Err(rerr).Str("report_id", r.ID).Msg("Failed to reset report status")
		}
		return nil, err
	}

	analyzed, ok, err := g.reports.Update(ctx, r.ID, map[string]any{
		"status":     clinic.ReportAnalyzed,
		"aiAnalysis": a,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(clinic.ErrReportNotFound)
	}
	return analyzed, nil
}

// DeleteReport removes a report and the timeline entries taken from it.
func (g *Gateway) DeleteReport(ctx context.Context, id string) error {
	who, err := write(ctx, g,
		func(ctx context.Context, token string, who *Identity) (*Identity, error) {
			if err := g.remote.DeleteReport(ctx, token, id); err != nil {
				return nil, err
			}
			if _, err := g.reports.Delete(ctx, id); err != nil {
				log.Warn().Err(err).Str("report_id", id).Msg("Failed to drop cached report")
			}
			return who, nil
		},
		func(ctx context.Context, who *Identity) (*Identity, error) {
			r, ok := g.reports.GetByID(ctx, id)
			if !ok || r.PatientID != who.ID {
				return nil, apperr.NotFound(clinic.ErrReportNotFound)
			}
			if _, err := g.reports.Delete(ctx, id); err != nil {
				return nil, err
			}
			return who, nil
		})
	if err != nil {
		return err
	}

	if _, err := g.timeline.DeleteByReport(ctx, who.ID, id); err != nil {
		log.Warn().Err(err).Str("report_id", id).Msg("Failed to prune health timeline")
	}
	return nil
}

// SeedSampleData fills the caller's account with sample records: on the
// server in remote mode, in local storage in demo mode.
func (g *Gateway) SeedSampleData(ctx context.Context) (*clinic.SeedResult, error) {
	return write(ctx, g,
		func(ctx context.Context, token string, _ *Identity) (*clinic.SeedResult, error) {
			return g.remote.InitSampleData(ctx, token)
		},
		g.seedLocal)
}

func (g *Gateway) seedLocal(ctx context.Context, who *Identity) (*clinic.SeedResult, error) {
	if err := g.demo.InitData(ctx, who.ID, who.Role); err != nil {
		return nil, err
	}
	if err := g.prescriptions.InitializeDemoData(ctx); err != nil {
		return nil, err
	}
	if err := g.reports.InitializeDemoData(ctx); err != nil {
		return nil, err
	}
	if who.Role == clinic.RolePatient {
		if err := g.timeline.InitializeDemoData(ctx, who.ID); err != nil {
			return nil, err
		}
	}

	apts, prescs, reports, err := g.localRecords(ctx, who)
	if err != nil {
		return nil, err
	}
	return &clinic.SeedResult{
		Appointments:  len(apts),
		Prescriptions: len(prescs),
		Reports:       len(reports),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
