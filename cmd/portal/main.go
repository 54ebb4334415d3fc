package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/clinicportal/internal/analysis"
	"stealthcompany.com/clinicportal/internal/config"
	"stealthcompany.com/clinicportal/internal/localstore"
	"stealthcompany.com/clinicportal/internal/orchestrator"
	"stealthcompany.com/clinicportal/internal/portal"
	"stealthcompany.com/clinicportal/pkg/zerolog_config"
)

const appName = "clinic-portal"

// session is the gateway plus what has to be released after a command.
type session struct {
	gateway *portal.Gateway
	local   *localstore.Local
	cancel  context.CancelFunc
}

func (s *session) close() {
	s.cancel()
	if err := s.local.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close local storage")
	}
}

func open(parent context.Context) (context.Context, *session, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	zerolog_config.SetAppPrefix(appName)
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		return nil, nil, err
	}

	storage, err := localstore.OpenSQLite(cfg.PortalStoragePath)
	if err != nil {
		return nil, nil, err
	}
	local := localstore.NewLocal(storage, nil)

	remote := portal.NewRemoteClient(cfg.PortalAPIURL, cfg.PortalAnonKey, cfg.PortalRequestTimeout)
	analyzer := analysis.NewClient(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout)
	g := portal.NewGateway(remote, local, analyzer, portal.Config{ProfileTimeout: cfg.PortalProfileTimeout})

	ctx, cancel := orchestrator.WithShutdown(parent)
	return ctx, &session{gateway: g, local: local, cancel: cancel}, nil
}

// run opens a session for one command and closes it afterwards.
func run(fn func(ctx context.Context, g *portal.Gateway, out io.Writer) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, s, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		return fn(ctx, s.gateway, cmd.OutOrStdout())
	}
}

type output struct {
	Source   portal.Source `json:"source,omitempty"`
	Degraded string        `json:"degraded,omitempty"`
	Data     any           `json:"data"`
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult[T any](out io.Writer, res portal.Result[T]) error {
	o := output{Source: res.Source, Data: res.Data}
	if res.Degraded != nil {
		o.Degraded = res.Degraded.Error()
	}
	return writeJSON(out, o)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Clinic portal client with offline demo mode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		loginCmd(),
		signupCmd(),
		logoutCmd(),
		whoamiCmd(),
		offlineCmd(),
		doctorsCmd(),
		appointmentsCmd(),
		prescriptionsCmd(),
		reportsCmd(),
		timelineCmd(),
		dashboardCmd(),
		patientsCmd(),
		seedCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
