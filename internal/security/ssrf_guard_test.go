package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuard_NewSafeClient(t *testing.T) {
	client := NewGuard().NewSafeClient(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("safe client should use its own transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、接続時に拒否される。
func TestGuard_NewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if _, err := NewGuard().NewSafeClient(5 * time.Second).Get(ts.URL); err == nil {
		t.Fatal("expected loopback request to be blocked")
	}
}

func TestGuard_ValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://news.campus.example.edu/feed.xml", false},
		{"http://blog.example.org/rss", false},
		{"https://93.184.216.34/feed", false},

		{"", true},
		{"not-a-url", true},
		{"ftp://example.com/feed", true},
		{"file:///etc/passwd", true},
		{"https:///feed", true},

		{"http://10.0.0.1/feed", true},
		{"http://172.31.255.255/feed", true},
		{"http://192.168.1.100/feed", true},
		{"http://100.64.0.1/feed", true},
		{"http://127.0.0.2/feed", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://0.0.0.0/feed", true},
		{"http://[::1]/feed", true},
		{"http://[fd00::1]/feed", true},

		{"http://localhost/feed", true},
		{"http://LOCALHOST:8080/feed", true},
		{"http://admin.localhost/feed", true},
		{"http://metadata.google.internal/computeMetadata/v1/", true},
	}

	guard := NewGuard()
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
