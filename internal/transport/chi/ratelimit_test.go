package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPRateLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, 3)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/chat", http.NoBody)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want %d", i, rr.Code, http.StatusOK)
		}
	}
}

func TestIPRateLimiter_RejectsOverBurst(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/chat", http.NoBody)
	req.RemoteAddr = "10.0.0.1:5000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if body := decodeError(t, rr); body["code"] != codeRateLimited {
		t.Errorf("code: got %s, want %s", body["code"], codeRateLimited)
	}
}

func TestIPRateLimiter_PerIPIsolation(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)
	handler := limiter.Middleware(okHandler())

	first := httptest.NewRequest("POST", "/chat", http.NoBody)
	first.RemoteAddr = "10.0.0.1:5000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("first IP: got %d, want %d", rr.Code, http.StatusOK)
	}

	second := httptest.NewRequest("POST", "/chat", http.NoBody)
	second.RemoteAddr = "10.0.0.2:5000"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, second)
	if rr.Code != http.StatusOK {
		t.Errorf("second IP should have its own bucket: got %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.168.1.10:44321",
			want:       "192.168.1.10",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:5000",
			forwarded:  "203.0.113.7",
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:5000",
			forwarded:  "203.0.113.7, 10.0.0.2",
			want:       "203.0.113.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.10",
			want:       "192.168.1.10",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/chat", http.NoBody)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(req); got != tc.want {
				t.Errorf("clientIP: got %s, want %s", got, tc.want)
			}
		})
	}
}
