package portal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/demo"
	"stealthcompany.com/clinicportal/internal/identity"
)

const (
	ErrLogoutFirst  = "Already signed in to demo mode, log out first"
	ErrNoIdentity   = "No identity available for offline mode"
	LogEnterOffline = "Entering offline demo mode"
)

// Login signs in. Demo accounts go straight to demo mode; any other account
// signs in remotely, and if the API is unreachable the credentials are tried
// against the demo accounts.
func (g *Gateway) Login(ctx context.Context, email, password string) (*Identity, error) {
	if g.demo.IsDemo(ctx) {
		return nil, apperr.Validation(ErrLogoutFirst)
	}
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	if demo.IsDemoAccount(email) {
		u, err := g.demo.Login(ctx, email, password)
		if err != nil {
			return nil, err
		}
		return g.enteredDemo(ctx, u), nil
	}

	sess, err := g.remote.SignIn(ctx, email, password)
	if err == nil {
		if err := g.sessions.save(ctx, sess); err != nil {
			return nil, err
		}
		return remoteIdentity(sess.User), nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return nil, err
	}

	log.Warn().Err(err).Msg("Sign-in unreachable, trying demo login")
	u, derr := g.demo.Login(ctx, email, password)
	if derr != nil {
		return nil, err
	}
	return g.enteredDemo(ctx, u), nil
}

// enteredDemo drops any remote session left from an earlier sign-in.
func (g *Gateway) enteredDemo(ctx context.Context, u *demo.User) *Identity {
	if err := g.sessions.clear(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear remote session")
	}
	return demoIdentity(u)
}

// Signup registers remotely and then signs in. When the API is unreachable
// the account is created as a demo account instead.
func (g *Gateway) Signup(ctx context.Context, req clinic.SignupRequest) (*Identity, error) {
	if g.demo.IsDemo(ctx) {
		return nil, apperr.Validation(ErrLogoutFirst)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := g.remote.SignUp(ctx, req); err != nil {
		if !apperr.Is(err, apperr.KindNetwork) {
			return nil, err
		}
		log.Warn().Err(err).Msg("Sign-up unreachable, creating demo account")
		u, derr := g.demo.Signup(ctx, req)
		if derr != nil {
			return nil, derr
		}
		return g.enteredDemo(ctx, u), nil
	}

	return g.Login(ctx, req.Email, req.Password)
}

// Logout drops the remote session and, in demo mode, the demo identity and
// flag. This is the only way out of demo mode.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.sessions.clear(ctx); err != nil {
		return err
	}
	return g.demo.Logout(ctx)
}

// Bootstrap resolves who is signed in. A profile fetch that fails for any
// reason other than a rejected token switches the session to demo mode; a
// rejected token clears the session.
func (g *Gateway) Bootstrap(ctx context.Context) (*Identity, error) {
	if g.demo.IsDemo(ctx) {
		u, ok := g.demo.User(ctx)
		if !ok {
			return nil, apperr.Unauthorized(ErrAuthRequired)
		}
		return demoIdentity(u), nil
	}

	sess, ok := g.sessions.get(ctx)
	if !ok {
		return nil, apperr.Unauthorized(ErrAuthRequired)
	}

	pctx, cancel := context.WithTimeout(ctx, g.profileTimeout)
	defer cancel()

	profile, err := g.remote.Profile(pctx, sess.AccessToken)
	if err == nil {
		who := &Identity{
			ID:       profile.ID,
			Email:    profile.Email,
			FullName: profile.FullName,
			Role:     profile.Role,
			Mode:     demo.ModeRemote,
		}
		sess.User = identity.User{ID: profile.ID, Email: profile.Email, Role: string(profile.Role), FullName: profile.FullName}
		if err := g.sessions.save(ctx, sess); err != nil {
			log.Warn().Err(err).Msg("Failed to refresh stored session")
		}
		return who, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		if cerr := g.sessions.clear(ctx); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to clear rejected session")
		}
		return nil, err
	case apperr.KindNetwork, apperr.KindInternal, apperr.KindNotFound:
		log.Warn().Err(err).Msg("Profile unavailable, switching to demo mode")
		return g.EnterOfflineMode(ctx)
	default:
		return nil, err
	}
}

// EnterOfflineMode discards the remote session and continues in demo mode as
// the user named by the stored token, or the stored demo user.
func (g *Gateway) EnterOfflineMode(ctx context.Context) (*Identity, error) {
	u, ok := g.offlineUser(ctx)
	if !ok {
		return nil, apperr.Unauthorized(ErrNoIdentity)
	}

	if err := g.sessions.clear(ctx); err != nil {
		return nil, err
	}
	if err := g.demo.Enter(ctx, *u); err != nil {
		return nil, fmt.Errorf("enter demo mode: %w", err)
	}

	log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg(LogEnterOffline)
	return demoIdentity(u), nil
}

func (g *Gateway) offlineUser(ctx context.Context) (*demo.User, bool) {
	if sess, ok := g.sessions.get(ctx); ok {
		if claims, err := identity.ParseUnverified(sess.AccessToken); err == nil {
			return &demo.User{
				ID:       claims.Subject,
				Email:    claims.Email,
				Role:     roleOrPatient(claims.Role),
				FullName: claims.FullName,
			}, true
		}
		if sess.User.ID != "" {
			return &demo.User{
				ID:       sess.User.ID,
				Email:    sess.User.Email,
				Role:     roleOrPatient(sess.User.Role),
				FullName: sess.User.FullName,
			}, true
		}
	}
	return g.demo.User(ctx)
}

func roleOrPatient(role string) clinic.Role {
	if r := clinic.Role(role); r.Valid() {
		return r
	}
	return clinic.RolePatient
}

func remoteIdentity(u identity.User) *Identity {
	return &Identity{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: clinic.Role(u.Role), Mode: demo.ModeRemote}
}
