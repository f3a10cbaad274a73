package middleware

import (
	"context"
	"errors"
	"movez/pkg/auth"
	"movez/pkg/logger"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubVerifier struct {
	caller auth.Caller
	err    error
}

func (s stubVerifier) Verify(string) (auth.Caller, error) {
	return s.caller, s.err
}

func okHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	})
}

func TestIdentity(t *testing.T) {
	caller := auth.Caller{UserID: "u-1", Role: auth.RoleCustomer}

	tests := []struct {
		name     string
		path     string
		header   string
		verifier stubVerifier
		want     int
	}{
		{"valid token", "/api/v1/bookings", "Bearer abc", stubVerifier{caller: caller}, http.StatusOK},
		{"lowercase scheme", "/api/v1/bookings", "bearer abc", stubVerifier{caller: caller}, http.StatusOK},
		{"missing header", "/api/v1/bookings", "", stubVerifier{caller: caller}, http.StatusUnauthorized},
		{"basic scheme", "/api/v1/bookings", "Basic abc", stubVerifier{caller: caller}, http.StatusUnauthorized},
		{"empty token", "/api/v1/bookings", "Bearer  ", stubVerifier{caller: caller}, http.StatusUnauthorized},
		{"verifier rejects", "/api/v1/bookings", "Bearer abc", stubVerifier{err: errors.New("bad")}, http.StatusUnauthorized},
		{"public path", "/health", "", stubVerifier{err: errors.New("bad")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen auth.Caller
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Identity(tt.verifier, logger.Discard(), "/health")(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && tt.path != "/health" && seen != caller {
				t.Errorf("caller on context = %+v, want %+v", seen, caller)
			}
		})
	}
}

func TestIdempotency_ReplaysPerCaller(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(okHandler(&calls))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "key-1")
		req = req.WithContext(auth.WithCaller(req.Context(), auth.Caller{UserID: user, Role: auth.RoleCustomer}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("u-1")
	second := send("u-1")
	other := send("u-2")

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("handler calls = %d, want 2", got)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get(idempotencyReplay) != "true" {
		t.Error("replayed response should be marked")
	}
	if other.Header().Get(idempotencyReplay) != "" {
		t.Error("a different caller must not receive another caller's response")
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.Header.Set(IdempotencyHeader, "key-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}

func TestCallerRateLimiter(t *testing.T) {
	limiter := NewCallerRateLimiter(2, time.Minute, logger.Discard())
	defer limiter.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("user:a") || !limiter.Allow("user:a") {
		t.Fatal("first two requests should pass")
	}
	if limiter.Allow("user:a") {
		t.Error("third request inside the window should be rejected")
	}
	if !limiter.Allow("user:b") {
		t.Error("limits are per key")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("user:a") {
		t.Error("window should have slid past the earlier requests")
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	limiter := NewCallerRateLimiter(1, time.Minute, logger.Discard())
	defer limiter.Stop()

	var calls int32
	h := RateLimit(limiter)(okHandler(&calls))

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)
		req = req.WithContext(auth.WithCaller(req.Context(), auth.Caller{UserID: "u-1", Role: auth.RoleCustomer}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestContentTypeValidation(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json", http.StatusCreated},
		{"json with charset", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusCreated},
		{"text post", http.MethodPost, `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"bodiless post", http.MethodPost, "", "", http.StatusCreated},
		{"get", http.MethodGet, "", "", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			req := httptest.NewRequest(tt.method, "/api/v1/bookings", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			ContentTypeValidation(logger.Discard())(okHandler(&calls)).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	RequestTimeout(10*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRequestLogging_AssignsRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RequestLogging(logger.Discard())(next).ServeHTTP(rec, req)

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id = %q, header = %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	req.Header.Set(RequestIDHeader, "client-id")
	RequestLogging(logger.Discard())(next).ServeHTTP(httptest.NewRecorder(), req)
	if seen != "client-id" {
		t.Errorf("request id = %q, want client-supplied id", seen)
	}
}

func TestRecovery(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recovery(logger.Discard())(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
