package portal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/identity"
	"stealthcompany.com/clinicportal/internal/localstore"
)

const SessionKey = "clinic-auth-session"

// sessionStore keeps the remote session (token and user) in local storage.
type sessionStore struct {
	local *localstore.Local
}

func (s sessionStore) get(ctx context.Context) (*identity.Session, bool) {
	raw, ok, err := s.local.GetItem(ctx, SessionKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read stored session")
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}
	var sess identity.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
		log.Warn().Err(err).Msg("Discarding corrupt stored session")
		return nil, false
	}
	return &sess, true
}

func (s sessionStore) save(ctx context.Context, sess *identity.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.local.SetItem(ctx, SessionKey, string(b))
}

func (s sessionStore) clear(ctx context.Context) error {
	return s.local.RemoveItem(ctx, SessionKey)
}
