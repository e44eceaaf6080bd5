package debugserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, path, remote string, creds string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
	req.RemoteAddr = remote
	if creds != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func testHandler(cfg Config) http.Handler {
	return Handler(cfg, map[string]Snapshot{
		"tracking": func() any { return map[string]int{"subscriptions": 2} },
		"timers":   func() any { return 5 },
	})
}

func TestHandler_LoopbackWithoutAuth(t *testing.T) {
	t.Parallel()

	rr := serve(testHandler(Config{}), "/debug/pprof/", "127.0.0.1:12345", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_NonLoopback_EmptyCreds_Unauthorized(t *testing.T) {
	t.Parallel()

	rr := serve(testHandler(Config{}), "/debug/pprof/", "8.8.8.8:54444", "u:p")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestHandler_NonLoopback_WrongCreds_Unauthorized(t *testing.T) {
	t.Parallel()

	rr := serve(testHandler(Config{User: "u", Pass: "p"}), "/debug/state", "8.8.8.8:54444", "u:WRONG")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestHandler_NonLoopback_CorrectCreds_Allows(t *testing.T) {
	t.Parallel()

	rr := serve(testHandler(Config{User: "u", Pass: "p"}), "/debug/state", "8.8.8.8:54444", "u:p")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_StateIndex(t *testing.T) {
	t.Parallel()

	rr := serve(testHandler(Config{}), "/debug/state", "127.0.0.1:1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.JSONEq(t, `{"subscriptions":2}`, string(got["tracking"]))
	assert.JSONEq(t, `5`, string(got["timers"]))
}

func TestHandler_StateOne(t *testing.T) {
	t.Parallel()

	h := testHandler(Config{})

	rr := serve(h, "/debug/state/timers", "[::1]:1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `5`, rr.Body.String())

	rr = serve(h, "/debug/state/nope", "[::1]:1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"unknown snapshot","available":["timers","tracking"]}`, rr.Body.String())
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"127.0.0.1:123", true},
		{"127.0.0.1", true},
		{" 127.0.0.1 ", true},
		{"[::1]:123", true},
		{"8.8.8.8:1", false},
		{"not-an-ip:1", false},
	}
	for _, tc := range cases {
		if got := isLoopback(tc.in); got != tc.want {
			t.Fatalf("isLoopback(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
