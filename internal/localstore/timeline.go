package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/clinic"
)

const (
	TimelineKey     = "clinic-health-timeline"
	TimelineUpdated = "healthTimelineUpdated"
)

// TimelineService keeps a map of patient id to timeline entries under one key.
type TimelineService struct {
	local *Local
	now   func() time.Time
}

func NewTimelineService(local *Local) *TimelineService {
	return &TimelineService{local: local, now: time.Now}
}

func (s *TimelineService) load(ctx context.Context) map[string][]clinic.TimelineEntry {
	out := map[string][]clinic.TimelineEntry{}
	raw, ok, err := s.local.GetItem(ctx, TimelineKey)
	if err != nil {
		log.Warn().Err(err).Str("key", TimelineKey).Msg("Failed to read health timeline")
		return out
	}
	if !ok || raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		log.Warn().Err(err).Str("key", TimelineKey).Msg("Discarding corrupt health timeline")
		return map[string][]clinic.TimelineEntry{}
	}
	return out
}

func (s *TimelineService) save(ctx context.Context, data map[string][]clinic.TimelineEntry) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TimelineKey, err)
	}
	if err := s.local.SetItem(ctx, TimelineKey, string(b)); err != nil {
		return err
	}
	s.local.bus.Publish(Event{Name: TimelineUpdated, Key: TimelineKey, At: s.now()})
	return nil
}

func (s *TimelineService) GetForPatient(ctx context.Context, patientID string) []clinic.TimelineEntry {
	entries := s.load(ctx)[patientID]
	if entries == nil {
		return []clinic.TimelineEntry{}
	}
	return entries
}

func (s *TimelineService) Add(ctx context.Context, patientID string, entry clinic.TimelineEntry) (clinic.TimelineEntry, error) {
	added, err := s.AddMultiple(ctx, patientID, []clinic.TimelineEntry{entry})
	if err != nil {
		return entry, err
	}
	return added[0], nil
}

// AddMultiple stamps patientId and createdAt on every entry and appends them
// to the patient's timeline.
func (s *TimelineService) AddMultiple(ctx context.Context, patientID string, entries []clinic.TimelineEntry) ([]clinic.TimelineEntry, error) {
	if len(entries) == 0 {
		return []clinic.TimelineEntry{}, nil
	}

	now := s.now().UTC()
	stamped := make([]clinic.TimelineEntry, len(entries))
	for i, e := range entries {
		e.PatientID = patientID
		e.CreatedAt = now
		stamped[i] = e
	}

	data := s.load(ctx)
	data[patientID] = append(data[patientID], stamped...)
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return stamped, nil
}

func (s *TimelineService) Delete(ctx context.Context, patientID, entryID string) (bool, error) {
	removed, err := s.removeWhere(ctx, patientID, func(e clinic.TimelineEntry) bool { return e.ID == entryID })
	return removed > 0, err
}

// DeleteByReport removes the entries extracted from a report and returns how
// many were removed.
func (s *TimelineService) DeleteByReport(ctx context.Context, patientID, reportID string) (int, error) {
	return s.removeWhere(ctx, patientID, func(e clinic.TimelineEntry) bool { return e.ReportID == reportID })
}

func (s *TimelineService) removeWhere(ctx context.Context, patientID string, match func(clinic.TimelineEntry) bool) (int, error) {
	data := s.load(ctx)
	entries, ok := data[patientID]
	if !ok {
		return 0, nil
	}

	kept := make([]clinic.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	data[patientID] = kept
	return removed, s.save(ctx, data)
}

// InitializeDemoData gives a patient with an empty timeline three sample
// entries from the last quarter.
func (s *TimelineService) InitializeDemoData(ctx context.Context, patientID string) error {
	if len(s.GetForPatient(ctx, patientID)) > 0 {
		return nil
	}

	today := s.now().UTC()
	daysAgo := func(n int) string {
		return today.AddDate(0, 0, -n).Format("2006-01-02")
	}

	_, err := s.AddMultiple(ctx, patientID, []clinic.TimelineEntry{
		{
			ID:          "demo-timeline-1",
			Date:        daysAgo(30),
			Type:        clinic.TimelineLabResult,
			Title:       "Blood Pressure",
			Value:       "120/80 mmHg",
			NormalRange: "90-120/60-80",
			Status:      "normal",
			Category:    "Vital Signs",
		},
		{
			ID:          "demo-timeline-2",
			Date:        daysAgo(60),
			Type:        clinic.TimelineLabResult,
			Title:       "Blood Sugar (Fasting)",
			Value:       "95 mg/dL",
			NormalRange: "70-100 mg/dL",
			Status:      "normal",
			Category:    "Blood Sugar",
		},
		{
			ID:          "demo-timeline-3",
			Date:        daysAgo(90),
			Type:        clinic.TimelineDiagnosis,
			Title:       "Annual Physical Exam",
			Description: "Routine checkup - All parameters normal",
			Category:    "General",
		},
	})
	return err
}
