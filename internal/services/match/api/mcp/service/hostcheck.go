package service

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// validateRequestHost enforces host access to mitigate DNS rebinding. Host
// and Origin headers are checked against the allowed hosts per MCP guidance
// so a remote web page cannot reach a local server via rebinding. Loopback
// hosts always pass.
func (s *Server) validateRequestHost(r *http.Request) error {
	if !s.hostAllowed(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !s.hostAllowed(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

func (s *Server) hostAllowed(host string) bool {
	name, ok := hostName(host)
	if !ok {
		return false
	}
	if isLoopbackHost(name) {
		return true
	}
	_, ok = s.allowedHosts[strings.ToLower(name)]
	return ok
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func parseAllowedHosts(hosts []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		allowed[strings.ToLower(entry)] = struct{}{}
	}
	return allowed
}

// hostName extracts the hostname portion from a Host or Origin header,
// stripping any port and IPv6 brackets.
func hostName(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", false
	}
	if strings.HasPrefix(host, "[") {
		if name, _, err := net.SplitHostPort(host); err == nil {
			return name, true
		}
		if strings.HasSuffix(host, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), true
		}
		return "", false
	}
	// More than one colon with no brackets is a bare IPv6 address.
	if strings.Count(host, ":") > 1 {
		return host, true
	}
	if strings.Contains(host, ":") {
		name, _, err := net.SplitHostPort(host)
		if err != nil {
			return "", false
		}
		return name, true
	}
	return host, true
}
