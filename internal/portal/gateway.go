// Package portal is the client-side data-access layer. Each call goes to the
// clinic API while the session is remote and to local storage in demo mode;
// reads degrade to local data when the API cannot be reached.
package portal

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/analysis"
	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/demo"
	"stealthcompany.com/clinicportal/internal/localstore"
	"stealthcompany.com/clinicportal/internal/metrics"
)

const DefaultProfileTimeout = 5 * time.Second

type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceFallback Source = "fallback"
)

// Result is the outcome of a read. Degraded holds the network error that
// made the gateway serve local data instead of remote data.
type Result[T any] struct {
	Data     T
	Source   Source
	Degraded error
}

// Identity is who the portal is acting for.
type Identity struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"fullName"`
	Role     clinic.Role `json:"role"`
	Mode     demo.Mode   `json:"mode"`
}

type Config struct {
	ProfileTimeout time.Duration
}

// Gateway owns one portal session: the remote session, the demo controller
// and the local record services.
type Gateway struct {
	remote        *RemoteClient
	demo          *demo.Controller
	local         *localstore.Local
	sessions      sessionStore
	prescriptions *localstore.PrescriptionService
	reports       *localstore.ReportService
	timeline      *localstore.TimelineService
	analyzer      analysis.Analyzer
	scorer        clinic.HealthScorer

	profileTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

func NewGateway(remote *RemoteClient, local *localstore.Local, analyzer analysis.Analyzer, cfg Config) *Gateway {
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = DefaultProfileTimeout
	}
	if analyzer == nil {
		analyzer = analysis.NewClient("", "", 0)
	}
	return &Gateway{
		remote:         remote,
		demo:           demo.NewController(local),
		local:          local,
		sessions:       sessionStore{local: local},
		prescriptions:  localstore.NewPrescriptionService(local),
		reports:        localstore.NewReportService(local),
		timeline:       localstore.NewTimelineService(local),
		analyzer:       analyzer,
		scorer:         clinic.ActivityHealthScorer{},
		profileTimeout: cfg.ProfileTimeout,
		now:            time.Now,
		newID:          newID,
	}
}

func (g *Gateway) Demo() *demo.Controller {
	return g.demo
}

func (g *Gateway) Mode(ctx context.Context) demo.Mode {
	return g.demo.Mode(ctx)
}

// Watch streams local change events named event (for example
// localstore.ReportsUpdated) until ctx ends or cancel is called.
func (g *Gateway) Watch(ctx context.Context, event string) (<-chan localstore.Event, func()) {
	return g.local.Bus().Subscribe(ctx, event)
}

// current returns the identity calls run as: the demo user in demo mode,
// otherwise the user of the stored session.
func (g *Gateway) current(ctx context.Context) (*Identity, string, error) {
	if g.demo.IsDemo(ctx) {
		u, ok := g.demo.User(ctx)
		if !ok {
			return nil, "", apperr.Unauthorized(ErrAuthRequired)
		}
		return demoIdentity(u), "", nil
	}

	sess, ok := g.sessions.get(ctx)
	if !ok {
		return nil, "", apperr.Unauthorized(ErrAuthRequired)
	}
	return &Identity{
		ID:       sess.User.ID,
		Email:    sess.User.Email,
		FullName: sess.User.FullName,
		Role:     clinic.Role(sess.User.Role),
		Mode:     demo.ModeRemote,
	}, sess.AccessToken, nil
}

func demoIdentity(u *demo.User) *Identity {
	return &Identity{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, Mode: demo.ModeDemo}
}

// fetch runs a read. Demo mode reads locally. In remote mode a network
// failure serves the local view with Source fallback; every other remote
// error is returned as is. The demo flag is never changed here.
func fetch[T any](ctx context.Context, g *Gateway, resource string,
	remote func(ctx context.Context, token string) (T, error),
	local func(ctx context.Context, who *Identity) (T, error),
) (Result[T], error) {
	var zero Result[T]

	who, token, err := g.current(ctx)
	if err != nil {
		return zero, err
	}

	if who.Mode == demo.ModeDemo {
		data, err := local(ctx, who)
		if err != nil {
			return zero, err
		}
		return Result[T]{Data: data, Source: SourceLocal}, nil
	}

	data, err := remote(ctx, token)
	if err == nil {
		return Result[T]{Data: data, Source: SourceRemote}, nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return zero, err
	}

	log.Warn().Err(err).Str("resource", resource).Msg("Clinic service unreachable, serving local data")
	metrics.RecordFallback(resource)

	if ierr := g.demo.InitData(ctx, who.ID, who.Role); ierr != nil {
		log.Warn().Err(ierr).Str("resource", resource).Msg("Failed to prepare local data")
	}
	data, lerr := local(ctx, who)
	if lerr != nil {
		log.Error().Err(lerr).Str("resource", resource).Msg("Local fallback failed")
		return zero, err
	}
	return Result[T]{Data: data, Source: SourceFallback, Degraded: err}, nil
}

// write runs a mutation: locally in demo mode, remotely otherwise with no
// fallback.
func write[T any](ctx context.Context, g *Gateway,
	remote func(ctx context.Context, token string, who *Identity) (T, error),
	local func(ctx context.Context, who *Identity) (T, error),
) (T, error) {
	var zero T

	who, token, err := g.current(ctx)
	if err != nil {
		return zero, err
	}
	if who.Mode == demo.ModeDemo {
		return local(ctx, who)
	}
	return remote(ctx, token, who)
}
