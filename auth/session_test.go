package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_IssuesDistinctTokens(t *testing.T) {
	sessions := NewMemorySessionStore(time.Hour)
	a := NewAuthenticator("admin", "s3cret", sessions)

	tok1, err := a.Login("admin", "s3cret")
	require.NoError(t, err)
	tok2, err := a.Login("admin", "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)

	user, ok := a.Validate(tok1)
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	a := NewAuthenticator("admin", "s3cret", NewMemorySessionStore(time.Hour))

	_, err := a.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login("root", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_RevokesToken(t *testing.T) {
	a := NewAuthenticator("admin", "s3cret", NewMemorySessionStore(time.Hour))

	token, err := a.Login("admin", "s3cret")
	require.NoError(t, err)

	a.Logout(token)
	_, ok := a.Validate(token)
	assert.False(t, ok)

	// Revoking twice is a no-op.
	a.Logout(token)
}

func TestValidate_ExpiredSession(t *testing.T) {
	sessions := NewMemorySessionStore(time.Minute)
	now := time.Now()
	sessions.now = func() time.Time { return now }

	token := sessions.Issue("admin")
	_, ok := sessions.Validate(token)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = sessions.Validate(token)
	assert.False(t, ok)

	// Expired sessions are removed, not resurrected.
	now = now.Add(-2 * time.Minute)
	_, ok = sessions.Validate(token)
	assert.False(t, ok)
}

func TestValidate_UnknownToken(t *testing.T) {
	sessions := NewMemorySessionStore(time.Hour)
	_, ok := sessions.Validate("nope")
	assert.False(t, ok)
}
