package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth entirely.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case strings.HasPrefix(path, "/api/v1/admin/"):
		return RoleAdmin, true
	case path == "/api/v1/stations":
		if method == http.MethodPost {
			return RoleAdmin, true
		}
		return RoleUser, true
	case strings.HasPrefix(path, "/api/v1/stations/"):
		if strings.HasSuffix(path, "/report.pdf") {
			return RoleAdmin, true
		}
		if method == http.MethodGet || method == http.MethodHead {
			return RoleUser, true
		}
		return RoleAdmin, true
	case path == "/api/v1/measurements":
		return RoleUser, true
	case path == "/api/v1/feedback":
		return RoleUser, true
	case path == "/api/v1/qr/scan":
		return RoleUser, true
	case path == "/api/v1/rewards" || path == "/api/v1/rewards/coupons":
		return RoleUser, true
	case path == "/api/v1/qr" || strings.HasPrefix(path, "/api/v1/qr/"):
		return RoleAdmin, true
	case path == "/api/v1/users/me" || path == "/api/v1/users/change-password":
		return RoleUser, true
	case strings.HasPrefix(path, "/api/v1/routes") || strings.HasPrefix(path, "/api/v1/flora"):
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleUser, true
		}
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleUser, true
		}
		return RoleAdmin, true
	}
	return "", false
}
