package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// AdminIDKey is the context key for the admin member ID
	AdminIDKey contextKey = "admin_id"
	// ClientIPKey is the context key for the client IP address
	ClientIPKey contextKey = "client_ip"
)

// AdminAuthMiddleware resolves the admin ID from the client IP and rejects
// unmapped callers. It guards only mutating endpoints; read endpoints stay
// open for dashboards.
type AdminAuthMiddleware struct {
	resolver *AdminResolver
}

func NewAdminAuthMiddleware(resolver *AdminResolver) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with admin authentication.
func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.resolver.GetClientIP(r)

		if !m.resolver.IsLoaded() {
			writeUnauthorized(w, clientIP, "admin mapping not loaded")
			return
		}
		adminID, found := m.resolver.GetAdminID(r)
		if !found {
			writeUnauthorized(w, clientIP, "client IP not mapped to an admin")
			return
		}

		ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
		ctx = context.WithValue(ctx, ClientIPKey, clientIP)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, ip, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     reason,
		"client_ip": ip,
	})
}

// GetAdminIDFromContext retrieves the admin ID from the request context.
func GetAdminIDFromContext(ctx context.Context) (int, bool) {
	adminID, ok := ctx.Value(AdminIDKey).(int)
	return adminID, ok
}

// GetClientIPFromContext retrieves the client IP from the request context.
func GetClientIPFromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(ClientIPKey).(string)
	return ip, ok
}
