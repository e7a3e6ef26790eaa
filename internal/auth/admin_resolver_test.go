package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"assisted-venue-dedup/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func writeAdminsYAML(t *testing.T) string {
	t.Helper()
	yamlPath := filepath.Join(t.TempDir(), "admins.yaml")
	yamlContent := `"10.0.1.5": 123456
"10.0.1.8": 789012
`
	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write test YAML: %v", err)
	}
	return yamlPath
}

func TestAdminResolver_GetAdminID(t *testing.T) {
	resolver := NewAdminResolver(writeAdminsYAML(t), testLogger(t))
	if !resolver.IsLoaded() {
		t.Fatalf("resolver did not load test YAML")
	}

	tests := []struct {
		name          string
		remoteAddr    string
		expectedID    int
		expectedFound bool
		xForwardedFor string
		xRealIP       string
	}{
		{
			name:          "Valid IP - RemoteAddr",
			remoteAddr:    "10.0.1.5:12345",
			expectedID:    123456,
			expectedFound: true,
		},
		{
			name:          "Valid IP - X-Forwarded-For",
			remoteAddr:    "192.168.1.1:12345",
			xForwardedFor: "10.0.1.8",
			expectedID:    789012,
			expectedFound: true,
		},
		{
			name:          "Valid IP - X-Real-IP",
			remoteAddr:    "192.168.1.1:12345",
			xRealIP:       "10.0.1.5",
			expectedID:    123456,
			expectedFound: true,
		},
		{
			name:          "Unknown IP",
			remoteAddr:    "192.168.1.1:12345",
			expectedID:    0,
			expectedFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			adminID, found := resolver.GetAdminID(req)
			if found != tt.expectedFound {
				t.Errorf("GetAdminID() found = %v, want %v", found, tt.expectedFound)
			}
			if found && adminID != tt.expectedID {
				t.Errorf("GetAdminID() adminID = %v, want %v", adminID, tt.expectedID)
			}
		})
	}
}

func TestAdminResolver_MissingFile(t *testing.T) {
	resolver := NewAdminResolver(filepath.Join(t.TempDir(), "nope.yaml"), testLogger(t))
	if resolver.IsLoaded() {
		t.Fatalf("IsLoaded() = true for missing file")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		expectedIP    string
	}{
		{
			name:       "RemoteAddr only",
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:          "X-Forwarded-For single IP",
			remoteAddr:    "192.168.1.1:12345",
			xForwardedFor: "10.0.1.5",
			expectedIP:    "10.0.1.5",
		},
		{
			name:          "X-Forwarded-For multiple IPs",
			remoteAddr:    "192.168.1.1:12345",
			xForwardedFor: "10.0.1.5, 192.168.1.2, 192.168.1.3",
			expectedIP:    "10.0.1.5",
		},
		{
			name:       "X-Real-IP",
			remoteAddr: "192.168.1.1:12345",
			xRealIP:    "10.0.1.8",
			expectedIP: "10.0.1.8",
		},
		{
			name:          "X-Forwarded-For takes precedence over X-Real-IP",
			remoteAddr:    "192.168.1.1:12345",
			xForwardedFor: "10.0.1.5",
			xRealIP:       "10.0.1.8",
			expectedIP:    "10.0.1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     make(http.Header),
			}
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if ip := extractClientIP(req); ip != tt.expectedIP {
				t.Errorf("extractClientIP() = %v, want %v", ip, tt.expectedIP)
			}
		})
	}
}

func TestMiddlewareRejectsUnmappedIP(t *testing.T) {
	resolver := NewAdminResolver(writeAdminsYAML(t), testLogger(t))
	mw := NewAdminAuthMiddleware(resolver)

	var gotAdminID int
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAdminID, _ = GetAdminIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Mapped IP passes and carries the admin ID in context.
	req := httptest.NewRequest("POST", "/merge", nil)
	req.RemoteAddr = "10.0.1.5:4444"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("mapped IP: status = %d, want 200", rr.Code)
	}
	if gotAdminID != 123456 {
		t.Fatalf("admin ID in context = %d, want 123456", gotAdminID)
	}

	// Unmapped IP is rejected.
	req = httptest.NewRequest("POST", "/merge", nil)
	req.RemoteAddr = "172.16.0.1:4444"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unmapped IP: status = %d, want 401", rr.Code)
	}
}
