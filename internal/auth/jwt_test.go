package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(GenerateSecureSecret(), time.Hour)
	require.NoError(t, err)
	return tm
}

// TestGenerateAndValidate тестирует выпуск и проверку токена
func TestGenerateAndValidate(t *testing.T) {
	tm := newManager(t)

	token, err := tm.Generate("ops", true)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "Неверный формат JWT токена")

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "flagsh", claims.Issuer)
}

func TestValidate_Rejects(t *testing.T) {
	tm := newManager(t)
	other := newManager(t)

	token, err := other.Generate("ops", true)
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "Токен с чужим секретом")

	_, err = tm.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Токен с истекшим сроком
	expired := &Claims{
		Operator: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    "flagsh",
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(tm.secret)
	require.NoError(t, err)
	_, err = tm.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManager_Secret(t *testing.T) {
	_, err := NewTokenManager("%%%", time.Hour)
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = NewTokenManager(short, time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	tm, err := NewTokenManager(GenerateSecureSecret(), 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, tm.ttl)
}
