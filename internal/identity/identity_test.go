package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

func newProvider() *Provider {
	return NewProvider(kvstore.NewMemoryStore(), "test-secret", time.Hour, "clinicportal")
}

func TestCreateUserAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newProvider()

	u, err := p.CreateUser(ctx, " Anna@Example.com ", "secret1", "Anna Rao", "patient")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", u.Email)
	assert.NotEmpty(t, u.ID)

	_, err = p.CreateUser(ctx, "anna@example.com", "another", "Anna", "patient")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	sess, err := p.SignIn(ctx, "anna@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)

	claims, err := p.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "patient", claims.Role)
	assert.Equal(t, "Anna Rao", claims.FullName)
}

func TestSignInFailures(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	_, err := p.CreateUser(ctx, "doc@example.com", "secret1", "Dr. Doc", "doctor")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "doc@example.com", password: "nope"},
		{name: "unknown email", email: "ghost@example.com", password: "secret1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignIn(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
			assert.Equal(t, ErrInvalidCredentials, apperr.Message(err, ""))
		})
	}
}

func TestCreateUserValidation(t *testing.T) {
	p := newProvider()
	_, err := p.CreateUser(context.Background(), "not-an-email", "secret1", "X", "patient")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = p.CreateUser(context.Background(), "x@example.com", "123", "X", "patient")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerifyRejects(t *testing.T) {
	p := newProvider()
	token, _, err := p.Issue(User{ID: "u1", Email: "a@b.c", Role: "patient"})
	require.NoError(t, err)

	other := NewProvider(kvstore.NewMemoryStore(), "other-secret", time.Hour, "clinicportal")
	_, err = other.Verify(token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	expired := newProvider()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(User{ID: "u1"})
	require.NoError(t, err)
	_, err = p.Verify(old)
	require.Error(t, err)
	assert.Equal(t, ErrTokenExpired, apperr.Message(err, ""))

	_, err = p.Verify("garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestParseUnverified(t *testing.T) {
	p := newProvider()
	token, _, err := p.Issue(User{ID: "u9", Email: "n@x.io", Role: "doctor", FullName: "Dr. N"})
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.Subject)
	assert.Equal(t, "doctor", claims.Role)

	_, err = ParseUnverified("not.a.token")
	assert.Error(t, err)
}
