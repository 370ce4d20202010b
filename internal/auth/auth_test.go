package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) string {
	t.Helper()
	s, err := GenerateSecret()
	require.NoError(t, err)
	return s
}

func TestIssueAndValidate(t *testing.T) {
	a, err := NewAuthority(testSecret(t), time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("alice", true)
	require.NoError(t, err)

	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.Operator)
}

func TestValidateRejectsForeignAndExpired(t *testing.T) {
	a, err := NewAuthority(testSecret(t), time.Minute)
	require.NoError(t, err)
	b, err := NewAuthority(testSecret(t), time.Minute)
	require.NoError(t, err)

	token, err := b.Issue("mallory", true)
	require.NoError(t, err)
	_, err = a.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "чужая подпись")

	_, err = a.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err = a.Issue("bob", false)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = a.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "истёкший токен")
}

func TestNewAuthoritySecrets(t *testing.T) {
	_, err := NewAuthority(base64.StdEncoding.EncodeToString([]byte("short")), 0)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewAuthority("%%%", 0)
	assert.Error(t, err)

	a, err := NewAuthority("", 0)
	require.NoError(t, err, "пустой секрет заменяется случайным")
	assert.Equal(t, 24*time.Hour, a.ttl)
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	users := []User{{Username: "op", PasswordHash: hash, Operator: true}}

	u, ok := Authenticate(users, "op", "s3cret")
	require.True(t, ok)
	assert.True(t, u.Operator)

	_, ok = Authenticate(users, "op", "wrong")
	assert.False(t, ok)
	_, ok = Authenticate(users, "ghost", "s3cret")
	assert.False(t, ok)
}
