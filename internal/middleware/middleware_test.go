package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerKey(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "third event inside the window must be rejected")
	assert.True(t, rl.Allow("b"), "keys are independent")

	rl.now = func() time.Time { return base.Add(time.Minute) }
	assert.True(t, rl.Allow("a"), "bucket refills after the window")
}

func TestRateLimiterSweepsIdleKeys(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.Len())

	rl.now = func() time.Time { return base.Add(2 * time.Minute) }
	rl.Allow("c")
	assert.Equal(t, 1, rl.Len())
}

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCredits bool
	}{
		{"wildcard", []string{"*"}, http.MethodPost, "https://a.example", http.StatusTeapot, "https://a.example", false},
		{"explicit", []string{"https://a.example"}, http.MethodPost, "https://a.example", http.StatusTeapot, "https://a.example", true},
		{"denied", []string{"https://a.example"}, http.MethodPost, "https://b.example", http.StatusTeapot, "", false},
		{"preflight", []string{"*"}, http.MethodOptions, "https://a.example", http.StatusOK, "https://a.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/webhook", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			CORS(tt.origins)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredits, w.Header().Get("Access-Control-Allow-Credentials") == "true")
			if tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Telegram-Bot-Api-Secret-Token")
			}
		})
	}
}
