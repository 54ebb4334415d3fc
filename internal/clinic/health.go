package clinic

import "time"

// HealthInputs is what a HealthScorer sees of a patient.
type HealthInputs struct {
	Today         time.Time
	Appointments  []Appointment
	Prescriptions []Prescription
	Reports       []MedicalReport
}

// HealthScorer turns a patient's records into a 0-100 score shown on the
// dashboard.
type HealthScorer interface {
	Score(in HealthInputs) int
}

// ActivityHealthScorer rewards recent engagement. It is a placeholder and
// carries no clinical meaning.
type ActivityHealthScorer struct{}

const (
	baseHealthScore = 70
	maxHealthScore  = 100
)

func (ActivityHealthScorer) Score(in HealthInputs) int {
	today := in.Today.Format(dateLayout)
	since := in.Today.AddDate(0, -3, 0).Format(dateLayout)

	score := baseHealthScore
	for _, a := range in.Appointments {
		if a.AppointmentDate >= since {
			score += 10
			break
		}
	}
	for _, r := range in.Reports {
		if reportDay(r) >= since {
			score += 10
			break
		}
	}

	active := false
	for _, p := range in.Prescriptions {
		if p.Status == PrescriptionActive {
			active = true
			break
		}
	}
	if !active {
		score += 5
	}

	for _, a := range in.Appointments {
		if IsUpcoming(a, today) {
			score += 5
			break
		}
	}

	return min(score, maxHealthScore)
}

// reportDay is the report date, or the upload day when none was given.
func reportDay(r MedicalReport) string {
	if r.ReportDate != "" {
		return r.ReportDate
	}
	return r.UploadDate.Format(dateLayout)
}
