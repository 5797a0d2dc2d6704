package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantCalled bool
		wantError  string
	}{
		{"missing header", "secret-token", "", false, "missing authorization header"},
		{"basic auth", "secret-token", "Basic dXNlcjpwYXNz", false, "invalid authorization format"},
		{"no token after scheme", "secret-token", "Bearer", false, "invalid authorization format"},
		{"wrong token", "secret-token", "Bearer wrong-token", false, "invalid token"},
		{"valid token", "secret-token", "Bearer secret-token", true, ""},
		{"lowercase scheme", "secret-token", "bearer secret-token", true, ""},
		{"auth disabled", "", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BearerToken = tt.configured
			srv := testServer(cfg)

			called := false
			handler := srv.withAuth(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled {
				if w.Code != http.StatusOK {
					t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
				}
				return
			}

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp.Error)
			}
		})
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	f := newFixture(testConfig(), true)

	for _, route := range []struct{ method, path string }{
		{"GET", "/v1/story"},
		{"POST", "/v1/story/play"},
		{"GET", "/v1/voices"},
		{"PUT", "/v1/settings"},
		{"POST", "/v1/speak"},
		{"POST", "/v1/chat"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		w := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without auth: status %d, want 401", route.method, route.path, w.Code)
		}
	}

	// health stays open
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/v1/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status %d, want 200", w.Code)
	}
}
