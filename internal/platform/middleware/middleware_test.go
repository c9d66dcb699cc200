package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "disha/pkg/domain"
	"disha/pkg/requestcontext"
)

var signingKey = []byte("test-signing-key")

func signToken(t *testing.T, role, subject string, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func actorProbe(gotRole *id.Role, gotActor *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotRole = requestcontext.ActorRole(r.Context())
		*gotActor = requestcontext.ActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorExtractsRoleAndSubject(t *testing.T) {
	var role id.Role
	var actor string
	h := Actor(signingKey, slog.New(slog.DiscardHandler))(actorProbe(&role, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "counsellor", "user-42", signingKey))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.RoleCounsellor, role)
	assert.Equal(t, "user-42", actor)
}

func TestActorPassesThroughWithoutToken(t *testing.T) {
	var role id.Role
	var actor string
	h := Actor(signingKey, slog.New(slog.DiscardHandler))(actorProbe(&role, &actor))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, role)
}

func TestActorRejectsBadSignature(t *testing.T) {
	var role id.Role
	var actor string
	h := Actor(signingKey, slog.New(slog.DiscardHandler))(actorProbe(&role, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "counsellor", "user-42", []byte("other-key")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorRejectsUnknownRole(t *testing.T) {
	var role id.Role
	var actor string
	h := Actor(signingKey, slog.New(slog.DiscardHandler))(actorProbe(&role, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "superuser", "user-42", signingKey))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestIDMintedAndEchoed(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestcontext.RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, got)
	assert.Equal(t, got, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-7")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "upstream-7", got)
}

func TestDeviceClassification(t *testing.T) {
	cases := []struct {
		name string
		ua   string
		want string
	}{
		{"android app", "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0 Mobile Safari/537.36", DeviceMobile},
		{"desktop dashboard", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0 Safari/537.36", DeviceWeb},
		{"crawler", "Googlebot/2.1 (+http://www.google.com/bot.html)", DeviceBot},
		{"missing", "", DeviceUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Device(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = requestcontext.Device(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.ua != "" {
				req.Header.Set("User-Agent", tc.ua)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}
