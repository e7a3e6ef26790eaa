package auth

import (
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"assisted-venue-dedup/pkg/logging"
)

// AdminResolver resolves client IP addresses to admin member IDs. Merges
// and exclusions are destructive enough that every one must be attributable
// to a person; the mapping lives in a YAML file of "ip: admin_id" entries.
type AdminResolver struct {
	mu       sync.RWMutex
	ipToID   map[string]int
	loaded   bool
	yamlPath string
	logger   *logging.ComponentLogger
}

// NewAdminResolver loads the IP mapping from yamlPath; an empty path falls
// back to admins.yaml in the working directory. A missing file is not
// fatal, but mutating endpoints stay blocked until the file loads.
func NewAdminResolver(yamlPath string, logger *logging.Logger) *AdminResolver {
	resolver := &AdminResolver{
		ipToID: make(map[string]int),
		logger: logger.WithComponent("auth"),
	}

	if yamlPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			resolver.logger.Warn("cannot determine working directory", logging.Error(err))
			return resolver
		}
		yamlPath = filepath.Join(cwd, "admins.yaml")
	}

	if err := resolver.loadConfig(yamlPath); err != nil {
		resolver.logger.Warn("admins.yaml not loaded; mutating endpoints blocked",
			logging.String("path", yamlPath), logging.Error(err))
	} else {
		resolver.yamlPath = yamlPath
		resolver.logger.Info("admin IP mappings loaded",
			logging.String("path", yamlPath),
			logging.Int("entries", len(resolver.ipToID)))
	}
	return resolver
}

func (r *AdminResolver) loadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var config map[string]int
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ipToID = config
	r.loaded = true
	return nil
}

// Reload re-reads the mapping from disk.
func (r *AdminResolver) Reload() error {
	if r.yamlPath == "" {
		return nil
	}
	return r.loadConfig(r.yamlPath)
}

// IsLoaded reports whether a mapping file was successfully loaded.
func (r *AdminResolver) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// GetAdminID resolves the client IP of the request to an admin member ID.
func (r *AdminResolver) GetAdminID(req *http.Request) (int, bool) {
	ip := extractClientIP(req)

	r.mu.RLock()
	defer r.mu.RUnlock()
	adminID, found := r.ipToID[ip]
	return adminID, found
}

// GetClientIP returns the client IP address from the request.
func (r *AdminResolver) GetClientIP(req *http.Request) string {
	return extractClientIP(req)
}

// extractClientIP extracts the real client IP, honoring X-Forwarded-For and
// X-Real-IP for reverse proxy setups.
func extractClientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs; the first is the client.
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return ip
}

func parseFirstIP(xff string) string {
	for i := 0; i < len(xff); i++ {
		if xff[i] == ',' {
			return xff[:i]
		}
	}
	return xff
}
