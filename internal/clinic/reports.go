package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

type ReportList struct {
	Reports       []MedicalReport `json:"reports"`
	TotalCount    int             `json:"totalCount"`
	AnalyzedCount int             `json:"analyzedCount"`
	PendingCount  int             `json:"pendingCount"`
}

type ReportRequest struct {
	DoctorID    string    `json:"doctorId,omitempty"`
	DoctorName  string    `json:"doctorName,omitempty"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ReportType  string    `json:"reportType"`
	ReportDate  string    `json:"reportDate,omitempty"`
	Status      string    `json:"status,omitempty"`
	LabName     string    `json:"labName,omitempty"`
	Cost        string    `json:"cost,omitempty"`
	AIAnalysis  *Analysis `json:"aiAnalysis,omitempty"`
	DoctorNotes string    `json:"doctorNotes,omitempty"`
}

func (r ReportRequest) Validate() error {
	var f fieldErrors
	f.require("fileName", r.FileName)
	f.require("reportType", r.ReportType)
	f.oneOf("reportType", r.ReportType, reportTypes)
	f.date("reportDate", r.ReportDate)
	f.oneOf("status", r.Status, reportStatuses)
	if r.FileSize < 0 {
		f = append(f, "fileSize must not be negative")
	}
	return f.err()
}

// SummarizeReports counts a report as analyzed once it carries an analysis.
func SummarizeReports(list []MedicalReport) ReportList {
	sum := ReportList{Reports: list, TotalCount: len(list)}
	for _, r := range list {
		if r.AIAnalysis != nil {
			sum.AnalyzedCount++
		} else {
			sum.PendingCount++
		}
	}
	return sum
}

func sortReportsDesc(list []MedicalReport) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UploadDate.After(list[j].UploadDate)
	})
}

// Reports lists the caller's reports, most recently uploaded first.
func (s *Service) Reports(ctx context.Context, userID string) (*ReportList, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}

	list, err := listForRole[MedicalReport](ctx, s, kindReport, p)
	if err != nil {
		return nil, err
	}
	sortReportsDesc(list)

	sum := SummarizeReports(list)
	return &sum, nil
}

// CreateReport stores a report owned by the caller. When a doctor is named
// the report is indexed for them too and shows up in their activity feed.
// A retried request creates a duplicate.
func (s *Service) CreateReport(ctx context.Context, userID string, req ReportRequest) (*MedicalReport, error) {
	p, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	r := &MedicalReport{
		ID:          "report_" + s.newID(),
		PatientID:   p.ID,
		PatientName: p.FullName,
		DoctorID:    req.DoctorID,
		DoctorName:  req.DoctorName,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ReportType:  req.ReportType,
		ReportDate:  firstNonEmpty(req.ReportDate, now.Format(dateLayout)),
		UploadDate:  now,
		Status:      firstNonEmpty(req.Status, ReportUploaded),
		LabName:     req.LabName,
		Cost:        req.Cost,
		AIAnalysis:  req.AIAnalysis,
		DoctorNotes: req.DoctorNotes,
		CreatedAt:   now,
	}

	owners := map[string]string{sidePatient: r.PatientID, sideDoctor: r.DoctorID}
	if err := s.writeIndexed(ctx, kindReport, r.ID, owners, r); err != nil {
		return nil, err
	}

	if r.DoctorID != "" {
		activity := Activity{
			ID:          r.ID,
			DoctorID:    r.DoctorID,
			PatientID:   r.PatientID,
			PatientName: r.PatientName,
			Type:        ActivityReportUploaded,
			ReportType:  r.ReportType,
			OccurredAt:  now,
		}
		if err := s.store.Set(ctx, activityKey(r.DoctorID, activity.ID), activity); err != nil {
			log.Warn().Err(err).Str("report_id", r.ID).Msg("Failed to record report activity")
		}
	}

	return r, nil
}

// DeleteReport removes one of the caller's own reports.
func (s *Service) DeleteReport(ctx context.Context, patientID, id string) error {
	if _, err := s.requireRole(ctx, patientID, RolePatient, ErrPatientsOnly); err != nil {
		return err
	}

	r, err := kvstore.GetAs[MedicalReport](ctx, s.store, recordKey(kindReport, id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return apperr.NotFound(ErrReportNotFound)
		}
		return fmt.Errorf("failed to load report %s: %w", id, err)
	}
	if r.PatientID != patientID {
		return apperr.NotFound(ErrReportNotFound)
	}

	owners := map[string]string{sidePatient: r.PatientID, sideDoctor: r.DoctorID}
	return s.deleteIndexed(ctx, kindReport, id, owners)
}
