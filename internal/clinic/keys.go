package clinic

import "stealthcompany.com/clinicportal/internal/kvstore"

// Record kinds stored as canonical record plus per-owner index entries.
const (
	kindAppointment  = "appointment"
	kindPrescription = "prescription"
	kindReport       = "report"
)

const (
	sidePatient = "patient"
	sideDoctor  = "doctor"
)

func userKey(id string) string { return kvstore.Key("user", id) }
func userEmailKey(email string) string { return kvstore.Key("user_email", email) }
func doctorKey(id string) string { return kvstore.Key("doctor", id) }

func recordKey(kind, id string) string {
	return kvstore.Key(kind, id)
}

func indexPrefix(kind, side, owner string) string {
	return kvstore.Prefix(kind+"_idx", side, owner)
}

func indexKey(kind, side, owner, id string) string {
	return indexPrefix(kind, side, owner) + id
}

func activityPrefix(doctorID string) string {
	return kvstore.Prefix("activity", sideDoctor, doctorID)
}

func activityKey(doctorID, id string) string {
	return activityPrefix(doctorID) + id
}
