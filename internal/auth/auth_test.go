package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testTokens = TokenService{Secret: []byte("test-secret"), Issuer: "mangashelf", Duration: time.Hour}

func hashedKey(t *testing.T, key string) *KeyVerifier {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	k, err := NewKeyVerifier(string(hash))
	require.NoError(t, err)
	return k
}

func TestKeyVerifier(t *testing.T) {
	disabled, err := NewKeyVerifier("  ")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Verify(""))

	plain, err := NewKeyVerifier("open-sesame")
	require.NoError(t, err)
	assert.True(t, plain.Enabled())
	assert.True(t, plain.Verify("open-sesame"))
	assert.False(t, plain.Verify("open-sesame!"))

	hashed := hashedKey(t, "from-hash")
	assert.True(t, hashed.Verify("from-hash"))
	assert.False(t, hashed.Verify(""))

	_, err = NewKeyVerifier(string(bytes.Repeat([]byte("k"), 73)))
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	raw, exp, err := testTokens.Sign("admin", RoleOperator)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := testTokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	other := testTokens
	other.Secret = []byte("other")
	_, err = other.Parse(raw)
	assert.Error(t, err)

	wrongIssuer := testTokens
	wrongIssuer.Issuer = "someone-else"
	_, err = wrongIssuer.Parse(raw)
	assert.Error(t, err)

	expired := testTokens
	expired.Duration = -time.Minute
	old, _, err := expired.Sign("admin", RoleOperator)
	require.NoError(t, err)
	_, err = testTokens.Parse(old)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func setupRouter(keys *KeyVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(keys, testTokens).RegisterRoutes(r.Group("/auth"))
	r.POST("/guarded", RequireOperator(testTokens, keys), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": MustGetClaims(c).Subject})
	})
	r.POST("/open", RequireOperator(testTokens, keys), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTokenExchangeAndGuard(t *testing.T) {
	r := setupRouter(hashedKey(t, "admin-key"))

	assert.Equal(t, http.StatusUnauthorized, do(r, "/auth/token", "", gin.H{"key": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "/auth/token", "", gin.H{}).Code)

	rec := do(r, "/auth/token", "", gin.H{"key": "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	_, err := time.Parse(time.RFC3339, out.ExpiresAt)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/guarded", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/guarded", "garbage", nil).Code)

	notOperator, _, err := testTokens.Sign("someone", "viewer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/guarded", notOperator, nil).Code)

	rec = do(r, "/guarded", out.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sub":"admin"}`, rec.Body.String())
}

func TestGuardDisabledWithoutKey(t *testing.T) {
	keys, err := NewKeyVerifier("")
	require.NoError(t, err)
	r := setupRouter(keys)

	assert.Equal(t, http.StatusNoContent, do(r, "/open", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, "/auth/token", "", gin.H{"key": "x"}).Code)
}
