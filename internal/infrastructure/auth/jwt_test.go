package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/infrastructure/config"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "crm"})
}

func newTestUser() shared.CurrentUser {
	return shared.CurrentUser{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Username: "meena",
		Name:     "Meena Raghavan",
		Email:    "meena@kaveri.in",
	}
}

func signClaims(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()
	user := newTestUser()

	token, err := svc.GenerateToken(user, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "crm", claims.Issuer)
	assert.InDelta(t, time.Hour.Seconds(), claims.GetRemainingTTL().Seconds(), 5)

	got, err := claims.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	svc := newTestJWTService()
	user := newTestUser()
	now := time.Now()

	valid := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "crm",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			TenantID: user.TenantID.String(),
			UserID:   user.ID.String(),
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name: "expired",
			token: func() string {
				c := valid()
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return signClaims(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "not yet valid",
			token: func() string {
				c := valid()
				c.NotBefore = jwt.NewNumericDate(now.Add(time.Hour))
				return signClaims(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "wrong secret",
			token: func() string {
				return signClaims(t, valid(), jwt.SigningMethodHS256, []byte("another-secret-key-of-32-characters"))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong algorithm",
			token: func() string {
				return signClaims(t, valid(), jwt.SigningMethodHS512, []byte(testSecret))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := valid()
				c.Issuer = "someone-else"
				return signClaims(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing tenant",
			token: func() string {
				c := valid()
				c.TenantID = ""
				return signClaims(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrMissingTenantID,
		},
		{
			name: "missing user",
			token: func() string {
				c := valid()
				c.UserID = ""
				return signClaims(t, c, jwt.SigningMethodHS256, []byte(testSecret))
			},
			wantErr: ErrMissingUserID,
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.token" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWTService_NoIssuerConfigured(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: testSecret})
	user := newTestUser()

	token, err := NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "anything"}).GenerateToken(user, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.NoError(t, err)
}

func TestClaims_CurrentUser_InvalidIDs(t *testing.T) {
	_, err := (&Claims{TenantID: "nope", UserID: uuid.NewString()}).CurrentUser()
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = (&Claims{TenantID: uuid.NewString(), UserID: "nope"}).CurrentUser()
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestClaims_GetRemainingTTL(t *testing.T) {
	assert.Zero(t, (&Claims{}).GetRemainingTTL())

	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}
	assert.Zero(t, expired.GetRemainingTTL())
}
