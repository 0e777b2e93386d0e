package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(method, path, origin string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSMiddleware_AllowedOrigin_SetsHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000, https://portal.example.edu/")(okHandler())

	for _, origin := range []string{"http://localhost:3000", "https://portal.example.edu"} {
		t.Run(origin, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, corsRequest(http.MethodGet, "/api/notices", origin))

			tests := []struct {
				header string
				want   string
			}{
				{"Access-Control-Allow-Origin", origin},
				{"Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS"},
				{"Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token"},
				{"Access-Control-Allow-Credentials", "true"},
				{"Access-Control-Max-Age", "86400"},
				{"Vary", "Origin"},
			}
			for _, tt := range tests {
				if got := w.Header().Get(tt.header); got != tt.want {
					t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
				}
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
		})
	}
}

func TestCORSMiddleware_NoHeaders(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		path    string
		origin  string
	}{
		{"empty allow list", "", "/api/queries", "http://localhost:3000"},
		{"unknown origin", "http://localhost:3000", "/api/queries", "https://evil.example"},
		{"no origin header", "http://localhost:3000", "/api/queries", ""},
		{"page route", "http://localhost:3000", "/dashboard", "http://localhost:3000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewCORSMiddleware(tt.allowed)(okHandler()).ServeHTTP(w, corsRequest(http.MethodGet, tt.path, tt.origin))

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want handler status 200", w.Code)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantCalled bool
	}{
		{"allowed origin answered here", "http://localhost:3000", http.StatusNoContent, false},
		{"unknown origin passes through", "https://evil.example", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, corsRequest(http.MethodOptions, "/api/queries", tt.origin))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}
