package clinic

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"stealthcompany.com/clinicportal/internal/apperr"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// fieldErrors collects validation failures and reports them as one message.
type fieldErrors []string

func (f *fieldErrors) require(name, value string) {
	if strings.TrimSpace(value) == "" {
		*f = append(*f, name+" is required")
	}
}

func (f *fieldErrors) date(name, value string) {
	if value == "" {
		return
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		*f = append(*f, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", name))
	}
}

func (f *fieldErrors) clock(name, value string) {
	if value == "" {
		return
	}
	if _, err := time.Parse(timeLayout, value); err != nil {
		*f = append(*f, fmt.Sprintf("%s must be a time in HH:MM format", name))
	}
}

func (f *fieldErrors) oneOf(name, value string, allowed []string) {
	if value == "" {
		return
	}
	if !slices.Contains(allowed, value) {
		*f = append(*f, fmt.Sprintf("%s must be one of %s", name, strings.Join(allowed, ", ")))
	}
}

func (f *fieldErrors) email(name, value string) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		*f = append(*f, name+" is not a valid email address")
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(strings.Join(f, "; "))
}
