package analysis

import (
	"fmt"
	"strings"

	"stealthcompany.com/clinicportal/internal/clinic"
)

var trackedCategories = map[string]bool{
	"Blood":         true,
	"Blood Sugar":   true,
	"Lipid Profile": true,
	"Kidney":        true,
	"Liver":         true,
}

// ExtractTimeline converts the tracked parameters of an analysis into lab
// result entries dated reportDate.
func ExtractTimeline(a *clinic.Analysis, reportID, reportDate string) []clinic.TimelineEntry {
	out := []clinic.TimelineEntry{}
	if a == nil {
		return out
	}
	for _, p := range a.Parameters {
		if !trackedCategories[p.Category] {
			continue
		}
		out = append(out, clinic.TimelineEntry{
			ID:          fmt.Sprintf("timeline-%s-%s", reportID, slug(p.Name)),
			Date:        reportDate,
			Type:        clinic.TimelineLabResult,
			Title:       p.Name,
			Value:       fmt.Sprintf("%s %s", p.Value, p.Unit),
			NormalRange: p.NormalRange,
			Status:      p.Status,
			Category:    p.Category,
			ReportID:    reportID,
		})
	}
	return out
}

// slug lowercases and replaces each whitespace rune with '-'.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
