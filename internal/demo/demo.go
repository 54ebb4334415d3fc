// Package demo keeps the portal usable without a backend: a persisted demo
// flag, the demo identity and a per-user dataset held in local storage.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/localstore"
)

const (
	ModeKey = "clinic-demo-mode"
	UserKey = "clinic-demo-user"
	DataKey = "clinic-demo-data"
)

const (
	ErrInvalidCredentials = "Invalid credentials"
	ErrAccountNotFound    = "Account not found"
	ErrNotInDemo          = "Demo mode is not active"
	ErrWrongRole          = "Operation not available for this demo account"
)

type Mode string

const (
	ModeRemote Mode = "remote"
	ModeDemo   Mode = "demo"
)

// User is the identity of a demo session.
type User struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Role     clinic.Role `json:"role"`
	FullName string      `json:"fullName"`
	Phone    string      `json:"phone,omitempty"`
}

// account is a custom signup kept with its password hash.
type account struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Dataset is everything the portal shows one demo user.
type Dataset struct {
	User          *account                `json:"user,omitempty"`
	Appointments  []clinic.Appointment    `json:"appointments"`
	Prescriptions []clinic.Prescription   `json:"prescriptions"`
	Reports       []clinic.MedicalReport  `json:"reports"`
	Patients      []clinic.PatientSummary `json:"patients"`
}

var demoPasswords = map[string]bool{"demo123": true, "password123": true}

var demoAccounts = map[string]User{
	"patient@demo.com":      {ID: "demo-patient-1", Email: "patient@demo.com", Role: clinic.RolePatient, FullName: "Demo Patient", Phone: "+91 98765 43210"},
	"doctor@demo.com":       {ID: "demo-doctor-1", Email: "doctor@demo.com", Role: clinic.RoleDoctor, FullName: "Dr. Demo Doctor", Phone: "+91 98765 54321"},
	"arjun.singh@email.com": {ID: "demo-patient-1", Email: "arjun.singh@email.com", Role: clinic.RolePatient, FullName: "Arjun Singh", Phone: "+91 98765 11111"},
	"rahul@example.com":     {ID: "demo-patient-1", Email: "rahul@example.com", Role: clinic.RolePatient, FullName: "Rahul Verma", Phone: "+91 98765 11111"},
	"priya@example.com":     {ID: "demo-patient-2", Email: "priya@example.com", Role: clinic.RolePatient, FullName: "Priya Singh", Phone: "+91 98765 22222"},
}

// IsDemoAccount reports whether email names one of the built-in demo accounts.
func IsDemoAccount(email string) bool {
	_, ok := demoAccounts[identity.NormalizeEmail(email)]
	return ok
}

// Controller owns the Remote/Demo state of one portal session. Demo is left
// only through Logout; nothing switches back to Remote on its own.
type Controller struct {
	local    *localstore.Local
	mu       sync.Mutex
	now      func() time.Time
	hashCost int
}

func NewController(local *localstore.Local) *Controller {
	return &Controller{local: local, now: time.Now, hashCost: bcrypt.DefaultCost}
}

func (c *Controller) Mode(ctx context.Context) Mode {
	if c.IsDemo(ctx) {
		return ModeDemo
	}
	return ModeRemote
}

func (c *Controller) IsDemo(ctx context.Context) bool {
	v, ok, err := c.local.GetItem(ctx, ModeKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read demo mode flag")
		return false
	}
	return ok && v == "true"
}

func (c *Controller) Enable(ctx context.Context) error {
	if err := c.local.SetItem(ctx, ModeKey, "true"); err != nil {
		return fmt.Errorf("enable demo mode: %w", err)
	}
	log.Info().Msg("Demo mode enabled")
	return nil
}

// Disable clears the flag, the demo identity and all demo datasets.
func (c *Controller) Disable(ctx context.Context) error {
	for _, key := range []string{ModeKey, UserKey, DataKey} {
		if err := c.local.RemoveItem(ctx, key); err != nil {
			return fmt.Errorf("disable demo mode: %w", err)
		}
	}
	log.Info().Msg("Demo mode disabled")
	return nil
}

func (c *Controller) User(ctx context.Context) (*User, bool) {
	raw, ok, err := c.local.GetItem(ctx, UserKey)
	if err != nil || !ok || raw == "" {
		return nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("Discarding corrupt demo user")
		return nil, false
	}
	return &u, true
}

// SetUser stores u as the demo identity; nil clears it.
func (c *Controller) SetUser(ctx context.Context, u *User) error {
	if u == nil {
		return c.ClearUser(ctx)
	}
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.local.SetItem(ctx, UserKey, string(b))
}

func (c *Controller) ClearUser(ctx context.Context) error {
	return c.local.RemoveItem(ctx, UserKey)
}

// Enter switches to Demo as u and makes sure u has a dataset.
func (c *Controller) Enter(ctx context.Context, u User) error {
	if err := c.Enable(ctx); err != nil {
		return err
	}
	if err := c.SetUser(ctx, &u); err != nil {
		return err
	}
	return c.InitData(ctx, u.ID, u.Role)
}

// Login accepts the built-in accounts with a demo password, and custom demo
// signups with their own password.
func (c *Controller) Login(ctx context.Context, email, password string) (*User, error) {
	email = identity.NormalizeEmail(email)

	if demoPasswords[password] {
		if u, ok := demoAccounts[email]; ok {
			if err := c.Enter(ctx, u); err != nil {
				return nil, err
			}
			return &u, nil
		}
	}

	c.mu.Lock()
	data := c.loadData(ctx)
	c.mu.Unlock()

	for _, ds := range data {
		if ds.User == nil || ds.User.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(ds.User.PasswordHash), []byte(password)) != nil {
			return nil, apperr.Unauthorized(ErrInvalidCredentials)
		}
		u := ds.User.User
		if err := c.Enter(ctx, u); err != nil {
			return nil, err
		}
		return &u, nil
	}

	if demoPasswords[password] {
		return nil, apperr.NotFound(ErrAccountNotFound)
	}
	return nil, apperr.Unauthorized(ErrInvalidCredentials)
}

// Signup creates a custom demo account and enters Demo as it.
func (c *Controller) Signup(ctx context.Context, req clinic.SignupRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := identity.NormalizeEmail(req.Email)
	if IsDemoAccount(email) {
		return nil, apperr.Validation(identity.ErrAlreadyRegistered)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), c.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{
		ID:       fmt.Sprintf("demo-user-%d", c.now().UnixMilli()),
		Email:    email,
		Role:     req.Role,
		FullName: req.FullName,
		Phone:    req.Phone,
	}

	c.mu.Lock()
	data := c.loadData(ctx)
	for _, ds := range data {
		if ds.User != nil && ds.User.Email == email {
			c.mu.Unlock()
			return nil, apperr.Validation(identity.ErrAlreadyRegistered)
		}
	}
	data[u.ID] = c.sampleDataset(u.ID, u.Role)
	data[u.ID].User = &account{User: u, PasswordHash: string(hash)}
	err = c.saveData(ctx, data)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.Enter(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout leaves Demo. Custom accounts survive in the dataset map only until
// Disable clears it.
func (c *Controller) Logout(ctx context.Context) error {
	if !c.IsDemo(ctx) {
		return nil
	}
	return c.Disable(ctx)
}

// InitData gives userID the sample dataset for role unless it already has one.
func (c *Controller) InitData(ctx context.Context, userID string, role clinic.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.loadData(ctx)
	if _, ok := data[userID]; ok {
		return nil
	}
	data[userID] = c.sampleDataset(userID, role)
	return c.saveData(ctx, data)
}

func (c *Controller) loadData(ctx context.Context) map[string]*Dataset {
	out := map[string]*Dataset{}
	raw, ok, err := c.local.GetItem(ctx, DataKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read demo data")
		return out
	}
	if !ok || raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		log.Warn().Err(err).Msg("Discarding corrupt demo data")
		return map[string]*Dataset{}
	}
	return out
}

func (c *Controller) saveData(ctx context.Context, data map[string]*Dataset) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode demo data: %w", err)
	}
	return c.local.SetItem(ctx, DataKey, string(b))
}

// dataset returns userID's data, creating it for the current demo role when
// missing.
func (c *Controller) dataset(ctx context.Context, userID string) (*Dataset, error) {
	role := clinic.RolePatient
	if u, ok := c.User(ctx); ok && u.ID == userID {
		role = u.Role
	}
	if err := c.InitData(ctx, userID, role); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.loadData(ctx)[userID]
	if !ok {
		return nil, errors.New("demo dataset disappeared")
	}
	return ds, nil
}

func (c *Controller) Appointments(ctx context.Context, userID string) ([]clinic.Appointment, error) {
	ds, err := c.dataset(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(ds.Appointments), nil
}

func (c *Controller) Prescriptions(ctx context.Context, userID string) ([]clinic.Prescription, error) {
	ds, err := c.dataset(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(ds.Prescriptions), nil
}

func (c *Controller) Reports(ctx context.Context, userID string) ([]clinic.MedicalReport, error) {
	ds, err := c.dataset(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(ds.Reports), nil
}

func (c *Controller) Patients(ctx context.Context, userID string) ([]clinic.PatientSummary, error) {
	ds, err := c.dataset(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(ds.Patients), nil
}

// Doctors is always empty: the directory only lists registered doctors.
func (c *Controller) Doctors(ctx context.Context) ([]clinic.Doctor, error) {
	return []clinic.Doctor{}, nil
}

// BookAppointment adds a pending appointment to userID's dataset.
func (c *Controller) BookAppointment(ctx context.Context, userID string, req clinic.BookingRequest) (*clinic.Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var booked clinic.Appointment
	err := c.mutate(ctx, userID, func(ds *Dataset, now time.Time) error {
		patient := User{ID: userID}
		if u, ok := c.User(ctx); ok && u.ID == userID {
			patient = *u
		}
		booked = clinic.Appointment{
			ID:              fmt.Sprintf("demo-apt-%d", now.UnixMilli()),
			PatientID:       userID,
			PatientName:     patient.FullName,
			PatientEmail:    patient.Email,
			PatientPhone:    patient.Phone,
			DoctorID:        req.DoctorID,
			AppointmentDate: req.AppointmentDate,
			AppointmentTime: req.AppointmentTime,
			AppointmentType: firstNonEmpty(req.AppointmentType, clinic.AppointmentInPerson),
			ReasonForVisit:  req.ReasonForVisit,
			Status:          clinic.StatusPending,
			IsActive:        true,
			BookedAt:        now,
		}
		ds.Appointments = append(ds.Appointments, booked)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booked, nil
}

// CancelAppointment marks one of the patient's appointments cancelled.
func (c *Controller) CancelAppointment(ctx context.Context, userID, id string) (*clinic.Appointment, error) {
	var cancelled clinic.Appointment
	err := c.mutate(ctx, userID, func(ds *Dataset, now time.Time) error {
		a := findAppointment(ds, id)
		if a == nil || a.PatientID != userID {
			return apperr.NotFound(clinic.ErrAppointmentNotFound)
		}
		if a.Status == clinic.StatusCancelled {
			return apperr.Validation(clinic.ErrAlreadyCancelled)
		}
		a.Status = clinic.StatusCancelled
		a.CancelledAt = &now
		a.CancelledBy = string(clinic.RolePatient)
		a.UpdatedAt = &now
		cancelled = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

// UpdateAppointment applies a doctor's changes to one of their appointments.
func (c *Controller) UpdateAppointment(ctx context.Context, userID, id string, update clinic.AppointmentUpdate) (*clinic.Appointment, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var updated clinic.Appointment
	err := c.mutate(ctx, userID, func(ds *Dataset, now time.Time) error {
		a := findAppointment(ds, id)
		if a == nil || a.DoctorID != userID {
			return apperr.NotFound(clinic.ErrAppointmentNotFound)
		}
		update.Apply(a)
		a.UpdatedAt = &now
		updated = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Controller) mutate(ctx context.Context, userID string, fn func(ds *Dataset, now time.Time) error) error {
	if _, err := c.dataset(ctx, userID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.loadData(ctx)
	ds, ok := data[userID]
	if !ok {
		return errors.New("demo dataset disappeared")
	}
	if err := fn(ds, c.now().UTC()); err != nil {
		return err
	}
	return c.saveData(ctx, data)
}

func findAppointment(ds *Dataset, id string) *clinic.Appointment {
	for i := range ds.Appointments {
		if ds.Appointments[i].ID == id {
			return &ds.Appointments[i]
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
