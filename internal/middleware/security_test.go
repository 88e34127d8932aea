package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	SecurityHeaders(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
}

func TestHostCheck(t *testing.T) {
	mw := HostCheck("api.pointloyal.com")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "api.pointloyal.com"
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("matching host: expected 200, got %d", rec.Code)
	}

	// Port is stripped before comparison.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "api.pointloyal.com:8080"
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("host with port: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "evil.example.com"
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong host: expected 403, got %d", rec.Code)
	}
}

func TestHostCheck_EmptyAllowsAll(t *testing.T) {
	mw := HostCheck("")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "anything.example.com"
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with empty allowed host, got %d", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mw := LoginRateLimit(okHandler)

	// Non-login paths are never limited.
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("non-login path limited on request %d: %d", i, rec.Code)
		}
	}

	// Sign-in allows the burst then returns 429.
	limited := false
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
		req.RemoteAddr = "10.9.8.7:1234"
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("sign-in route was never rate limited")
	}
}

func TestGlobalRateLimit_PerIP(t *testing.T) {
	mw := GlobalRateLimit(okHandler)

	// Exhaust one IP's burst.
	limited := false
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("IP was never rate limited")
	}

	// A different IP is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second IP: expected 200, got %d", rec.Code)
	}
}
