package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	orig := credentialPath
	credentialPath = func() (string, error) { return path, nil }
	t.Cleanup(func() { credentialPath = orig })
	return path
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	useTempCredentials(t)

	creds, err := Load()
	require.NoError(t, err)
	assert.Empty(t, creds.Providers)
}

func TestSetAndGetAPIKey(t *testing.T) {
	useTempCredentials(t)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	require.NoError(t, SetAPIKey("openrouter", "sk-or"))
	require.NoError(t, SetAPIKey("openai", "sk-oa"))

	assert.Equal(t, "sk-or", GetAPIKey("openrouter"))
	assert.Equal(t, "sk-oa", GetAPIKey("openai"))
	assert.Equal(t, "", GetAPIKey("anthropic"))
}

func TestEnvOverridesStoredKey(t *testing.T) {
	useTempCredentials(t)
	require.NoError(t, SetAPIKey("openai", "stored"))
	t.Setenv("OPENAI_API_KEY", "from-env")

	assert.Equal(t, "from-env", GetAPIKey("openai"))
}

func TestSetAPIKeyRejectsKeylessProvider(t *testing.T) {
	useTempCredentials(t)
	assert.Error(t, SetAPIKey("ollama", "x"))
}

func TestParseUserID(t *testing.T) {
	id, ok := ParseUserID(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-1"} {
		_, ok := ParseUserID(raw)
		assert.False(t, ok, raw)
	}
}

func TestRequireUser(t *testing.T) {
	var seen int64
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), seen)

	req = httptest.NewRequest(http.MethodGet, "/?user_id=9", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(9), seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
