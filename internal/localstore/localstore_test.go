package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/clinic"
)

var fixedNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l := NewLocal(NewMemoryStorage(), NewBus())
	l.now = func() time.Time { return fixedNow }
	return l
}

func TestPrescriptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewPrescriptionService(newLocal(t))
	svc.items.now = func() time.Time { return fixedNow }

	added, err := svc.Add(ctx, clinic.Prescription{
		ID:        "presc-1",
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Diagnosis: "Migraine",
		Medicines: []clinic.Medicine{{Name: "Sumatriptan", Frequency: clinic.Frequency{Text: "as needed"}}},
		Status:    clinic.PrescriptionActive,
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, added.CreatedAt)

	all := svc.GetAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "presc-1", all[0].ID)
	assert.Equal(t, "as needed", all[0].Medicines[0].Frequency.String())

	assert.Len(t, svc.GetForPatient(ctx, "pat-1"), 1)
	assert.Empty(t, svc.GetForPatient(ctx, "pat-2"))
	assert.Len(t, svc.GetForDoctor(ctx, "doc-1"), 1)

	svc.items.now = func() time.Time { return fixedNow.Add(time.Hour) }
	updated, ok, err := svc.Update(ctx, "presc-1", map[string]any{"status": clinic.PrescriptionCompleted})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clinic.PrescriptionCompleted, updated.Status)
	assert.Equal(t, "Migraine", updated.Diagnosis, "unmentioned fields survive the merge")
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, fixedNow.Add(time.Hour), *updated.UpdatedAt)

	got, ok := svc.GetByID(ctx, "presc-1")
	require.True(t, ok)
	assert.Equal(t, clinic.PrescriptionCompleted, got.Status)

	missing, ok, err := svc.Update(ctx, "nope", map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, missing)

	removed, err := svc.Delete(ctx, "presc-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(ctx, "presc-1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, svc.GetAll(ctx))
}

func TestCorruptCollectionReadsEmpty(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	require.NoError(t, local.SetItem(ctx, ReportsKey, "{not json"))
	require.NoError(t, local.SetItem(ctx, TimelineKey, "[1,2,3]"))

	reports := NewReportService(local)
	assert.NotNil(t, reports.GetAll(ctx))
	assert.Empty(t, reports.GetAll(ctx))

	timeline := NewTimelineService(local)
	assert.Empty(t, timeline.GetForPatient(ctx, "pat-1"))

	// a corrupt value is replaced on the next write
	_, err := reports.Add(ctx, clinic.MedicalReport{ID: "r1", PatientID: "pat-1"})
	require.NoError(t, err)
	assert.Len(t, reports.GetAll(ctx), 1)
}

func TestInitializeDemoDataOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)

	prescriptions := NewPrescriptionService(local)
	require.NoError(t, prescriptions.InitializeDemoData(ctx))
	require.NoError(t, prescriptions.InitializeDemoData(ctx))
	all := prescriptions.GetAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "Dinner (After)", all[0].Medicines[0].Frequency.String())

	reports := NewReportService(local)
	_, err := reports.Add(ctx, clinic.MedicalReport{ID: "mine", PatientID: "pat-9"})
	require.NoError(t, err)
	require.NoError(t, reports.InitializeDemoData(ctx))
	all2 := reports.GetAll(ctx)
	require.Len(t, all2, 1)
	assert.Equal(t, "mine", all2[0].ID)

	require.NoError(t, reports.Clear(ctx))
	require.NoError(t, reports.InitializeDemoData(ctx))
	demo, ok := reports.GetByID(ctx, "demo-report-1")
	require.True(t, ok)
	require.NotNil(t, demo.AIAnalysis)
	assert.Len(t, demo.AIAnalysis.Parameters, 3)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	svc := NewTimelineService(newLocal(t))
	svc.now = func() time.Time { return fixedNow }

	added, err := svc.AddMultiple(ctx, "pat-1", []clinic.TimelineEntry{
		{ID: "t1", Title: "Hemoglobin", Type: clinic.TimelineLabResult, ReportID: "r1"},
		{ID: "t2", Title: "Platelets", Type: clinic.TimelineLabResult, ReportID: "r1"},
		{ID: "t3", Title: "Checkup", Type: clinic.TimelineDiagnosis},
	})
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.Equal(t, "pat-1", added[0].PatientID)
	assert.Equal(t, fixedNow, added[0].CreatedAt)

	_, err = svc.Add(ctx, "pat-2", clinic.TimelineEntry{ID: "t9", ReportID: "r1"})
	require.NoError(t, err)

	n, err := svc.DeleteByReport(ctx, "pat-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, svc.GetForPatient(ctx, "pat-2"), 1, "other patients are untouched")

	n, err = svc.DeleteByReport(ctx, "pat-1", "r1")
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err := svc.Delete(ctx, "pat-1", "t3")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.Delete(ctx, "nobody", "t3")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, svc.InitializeDemoData(ctx, "pat-3"))
	require.NoError(t, svc.InitializeDemoData(ctx, "pat-3"))
	demo := svc.GetForPatient(ctx, "pat-3")
	require.Len(t, demo, 3)
	assert.Equal(t, "2026-09-15", demo[0].Date)
}

func TestWritesPublishEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := newLocal(t)
	changes, stopChanges := local.Bus().Subscribe(ctx, PrescriptionsUpdated)
	defer stopChanges()
	raw, stopRaw := local.Bus().Subscribe(ctx, StorageEvent)
	defer stopRaw()

	svc := NewPrescriptionService(local)
	_, err := svc.Add(ctx, clinic.Prescription{ID: "p1"})
	require.NoError(t, err)

	select {
	case ev := <-changes:
		assert.Equal(t, PrescriptionsKey, ev.Key)
	case <-time.After(time.Second):
		t.Fatal("Expected a prescriptionUpdated event")
	}
	select {
	case ev := <-raw:
		assert.Equal(t, PrescriptionsKey, ev.Key)
	case <-time.After(time.Second):
		t.Fatal("Expected a storage event")
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, stop := bus.Subscribe(ctx, ReportsUpdated)
	assert.Equal(t, 1, bus.Subscribers(ReportsUpdated))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Expected the channel to close")
	}
	assert.Zero(t, bus.Subscribers(ReportsUpdated))

	// stopping twice is harmless
	stop()
	stop()
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	_, stop := bus.Subscribe(context.Background(), "x")
	defer stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			bus.Publish(Event{Name: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)

	_, ok, err := s.GetItem(ctx, "clinic-demo-mode")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(ctx, "clinic-demo-mode", "true"))
	require.NoError(t, s.SetItem(ctx, "clinic-demo-user", `{"id":"demo-patient-1"}`))
	require.NoError(t, s.SetItem(ctx, "clinic-demo-mode", "false"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetItem(ctx, "clinic-demo-mode")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "false", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"clinic-demo-mode", "clinic-demo-user"}, keys)

	require.NoError(t, s.RemoveItem(ctx, "clinic-demo-user"))
	_, ok, err = s.GetItem(ctx, "clinic-demo-user")
	require.NoError(t, err)
	assert.False(t, ok)
}
