package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/clinicportal/internal/api"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/config"
	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/kvstore"
	"stealthcompany.com/clinicportal/internal/metrics"
	"stealthcompany.com/clinicportal/internal/orchestrator"
	"stealthcompany.com/clinicportal/pkg/zerolog_config"
)

const (
	appName           = "clinic-api"
	lockTTL           = 2 * time.Minute
	metricsInterval   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "Clinic portal API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write sample records for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return runSeed(cmd.Context(), userID)
		},
	}
	cmd.Flags().String("user", "", "Id of the user to seed")
	return cmd
}

type app struct {
	cfg   *config.Config
	store kvstore.Store
	auth  *identity.Provider
	svc   *clinic.Service
}

func setup(ctx context.Context) (*app, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zerolog_config.SetAppPrefix(appName)
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := kvstore.Open(ctx, cfg.Store())
	if err != nil {
		return nil, err
	}

	holder, err := os.Hostname()
	if err != nil {
		holder = appName
	}

	auth := identity.NewProvider(store, cfg.JWTSecret, cfg.TokenTTL, cfg.AuthIssuer)
	svc := clinic.NewService(store, auth, kvstore.NewLocker(store, fmt.Sprintf("%s-%d", holder, os.Getpid()), lockTTL))
	return &app{cfg: cfg, store: store, auth: auth, svc: svc}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close key-value store")
	}
}

func runServer(parent context.Context) error {
	ctx, cancel := orchestrator.WithShutdown(parent)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}

	metrics.StartSystemMetrics(ctx, metricsInterval)

	srv := &http.Server{
		Handler:           api.NewServer(a.svc, a.auth, a.cfg.AnonKey).Router(a.cfg.APIBasePath, a.cfg.CORSOrigins),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info().
		Str("port", a.cfg.APIPort).
		Str("base_path", a.cfg.APIBasePath).
		Str("store", a.cfg.StoreDriver).
		Msg("Starting clinic API")

	return orchestrator.ListenAndServe(ctx, srv, ":"+a.cfg.APIPort, orchestrator.DefaultShutdownTimeout)
}

func runSeed(parent context.Context, userID string) error {
	ctx, cancel := orchestrator.WithShutdown(parent)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.svc.SeedSampleData(ctx, userID)
	if err != nil {
		return err
	}

	log.Info().
		Str("user_id", userID).
		Int("appointments", res.Appointments).
		Int("prescriptions", res.Prescriptions).
		Int("reports", res.Reports).
		Int("activities", res.Activities).
		Msg("Sample data written")
	return nil
}
