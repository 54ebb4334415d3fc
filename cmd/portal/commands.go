package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/portal"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in (demo accounts enter demo mode)",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			who, err := g.Login(ctx, email, password)
			if err != nil {
				return err
			}
			return writeJSON(out, who)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func signupCmd() *cobra.Command {
	var req clinic.SignupRequest
	var role string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			req.Role = clinic.Role(role)
			who, err := g.Signup(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(out, who)
		}),
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&role, "role", string(clinic.RolePatient), "patient or doctor")
	cmd.Flags().StringVar(&req.Specialization, "specialization", "", "Doctor specialization")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and leave demo mode",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			if err := g.Logout(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "Signed out")
			return err
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Resolve the signed-in user, switching to demo mode when the API is down",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			who, err := g.Bootstrap(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, who)
		}),
	}
}

func offlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Continue in demo mode as the current user",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			who, err := g.EnterOfflineMode(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, who)
		}),
	}
}

func doctorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctors",
		Short: "List doctors",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.Doctors(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}
}

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List and manage appointments",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your appointments",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.Appointments(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}

	var booking clinic.BookingRequest
	book := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			a, err := g.BookAppointment(ctx, booking)
			if err != nil {
				return err
			}
			return writeJSON(out, a)
		}),
	}
	book.Flags().StringVar(&booking.DoctorID, "doctor", "", "Doctor id")
	book.Flags().StringVar(&booking.AppointmentDate, "date", "", "Date (YYYY-MM-DD)")
	book.Flags().StringVar(&booking.AppointmentTime, "time", "", "Time (HH:MM)")
	book.Flags().StringVar(&booking.AppointmentType, "type", "", "in-person or telemedicine")
	book.Flags().StringVar(&booking.ReasonForVisit, "reason", "", "Reason for the visit")

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel one of your appointments",
		Args:  cobra.ExactArgs(1),
	}
	cancel.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			a, err := g.CancelAppointment(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, a)
		})(cmd, args)
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an appointment's status, notes or slot",
		Args:  cobra.ExactArgs(1),
	}
	for _, name := range []string{"status", "notes", "date", "time", "type"} {
		update.Flags().String(name, "", "New "+name)
	}
	update.RunE = func(cmd *cobra.Command, args []string) error {
		var upd clinic.AppointmentUpdate
		targets := map[string]**string{
			"status": &upd.Status,
			"notes":  &upd.Notes,
			"date":   &upd.AppointmentDate,
			"time":   &upd.AppointmentTime,
			"type":   &upd.AppointmentType,
		}
		for name, target := range targets {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				*target = &v
			}
		}
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			a, err := g.UpdateAppointment(ctx, args[0], upd)
			if err != nil {
				return err
			}
			return writeJSON(out, a)
		})(cmd, args)
	}

	cmd.AddCommand(list, book, cancel, update)
	return cmd
}

// parseMedicine reads "name|dosage|frequency|duration"; trailing parts are
// optional.
func parseMedicine(s string) clinic.Medicine {
	parts := strings.Split(s, "|")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return clinic.Medicine{
		Name:      strings.TrimSpace(parts[0]),
		Dosage:    strings.TrimSpace(parts[1]),
		Frequency: clinic.Frequency{Text: strings.TrimSpace(parts[2])},
		Duration:  strings.TrimSpace(parts[3]),
	}
}

func prescriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prescriptions",
		Short: "List and manage prescriptions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your prescriptions",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.Prescriptions(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}

	var (
		req       clinic.PrescriptionRequest
		patientID string
		medicines []string
		labTests  []string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Write a prescription (doctors)",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			for _, m := range medicines {
				req.Medicines = append(req.Medicines, parseMedicine(m))
			}
			req.LabTests = labTests
			p, err := g.AddPrescription(ctx, patientID, req)
			if err != nil {
				return err
			}
			return writeJSON(out, p)
		}),
	}
	add.Flags().StringVar(&patientID, "patient", "", "Registered patient id")
	add.Flags().StringVar(&req.PatientID, "walk-in-id", "", "Id for a patient without an account")
	add.Flags().StringVar(&req.PatientName, "patient-name", "", "Patient name")
	add.Flags().StringVar(&req.Diagnosis, "diagnosis", "", "Diagnosis")
	add.Flags().StringArrayVar(&medicines, "medicine", nil, "name|dosage|frequency|duration (repeatable)")
	add.Flags().StringArrayVar(&labTests, "lab-test", nil, "Lab test to order (repeatable)")
	add.Flags().StringVar(&req.Instructions, "instructions", "", "Instructions for the patient")
	add.Flags().StringVar(&req.FollowUpDate, "follow-up", "", "Follow-up date (YYYY-MM-DD)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prescription you wrote",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			if err := g.DeletePrescription(ctx, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "Prescription deleted")
			return err
		})(cmd, args)
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func mimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List, upload and delete medical reports",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your reports",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.Reports(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}

	var up portal.UploadRequest
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload and analyze a report file",
		Args:  cobra.ExactArgs(1),
	}
	upload.Flags().StringVar(&up.ReportType, "type", "other", "Report type")
	upload.Flags().StringVar(&up.ReportDate, "date", "", "Report date (YYYY-MM-DD), defaults to today")
	upload.Flags().StringVar(&up.DoctorID, "doctor", "", "Doctor to share the report with")
	upload.Flags().StringVar(&up.DoctorName, "doctor-name", "", "Doctor name")
	upload.Flags().StringVar(&up.LabName, "lab", "", "Lab name")
	upload.RunE = func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read report file: %w", err)
		}
		up.FileName = filepath.Base(args[0])
		up.MimeType = mimeType(args[0], data)
		up.Data = data
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			r, err := g.UploadReport(ctx, up)
			if err != nil {
				return err
			}
			return writeJSON(out, r)
		})(cmd, args)
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your reports",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			if err := g.DeleteReport(ctx, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "Report deleted")
			return err
		})(cmd, args)
	}

	cmd.AddCommand(list, upload, del)
	return cmd
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show your health timeline",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.Timeline(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for your role",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			who, err := g.Bootstrap(ctx)
			if err != nil {
				return err
			}
			if who.Role == clinic.RoleDoctor {
				res, err := g.DoctorDashboard(ctx)
				if err != nil {
					return err
				}
				return printResult(out, res)
			}
			res, err := g.PatientDashboard(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		}),
	}
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients [id]",
		Short: "List your patients, or show one (doctors)",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			if len(args) == 1 {
				res, err := g.PatientDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(out, res)
			}
			res, err := g.Roster(ctx)
			if err != nil {
				return err
			}
			return printResult(out, res)
		})(cmd, args)
	}
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill your account with sample records",
		RunE: run(func(ctx context.Context, g *portal.Gateway, out io.Writer) error {
			res, err := g.SeedSampleData(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		}),
	}
}
