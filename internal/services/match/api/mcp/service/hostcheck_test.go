package service

import (
	"net/http/httptest"
	"testing"
)

func TestHostNameNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"localhost", "localhost", true},
		{"localhost:8080", "localhost", true},
		{"example.com:443", "example.com", true},
		{"[::1]:8080", "::1", true},
		{"[::1]", "::1", true},
		{"::1", "::1", true},
		{"", "", false},
		{"[::1:8080", "", false},
	}
	for _, tc := range cases {
		got, ok := hostName(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("hostName(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestValidateRequestHostLoopbackAlwaysAllowed(t *testing.T) {
	s := &Server{allowedHosts: parseAllowedHosts(nil)}
	r := httptest.NewRequest("POST", "http://localhost:8080/mcp", nil)
	if err := s.validateRequestHost(r); err != nil {
		t.Fatalf("loopback host rejected: %v", err)
	}
}

func TestValidateRequestHostRejectsUnknownHost(t *testing.T) {
	s := &Server{allowedHosts: parseAllowedHosts(nil)}
	r := httptest.NewRequest("POST", "http://evil.example/mcp", nil)
	r.Host = "evil.example"
	if err := s.validateRequestHost(r); err == nil {
		t.Fatalf("expected unknown host to be rejected")
	}
}

func TestValidateRequestHostAllowsConfiguredHost(t *testing.T) {
	s := &Server{allowedHosts: parseAllowedHosts([]string{" Moonfall.Town ", ""})}
	r := httptest.NewRequest("POST", "http://moonfall.town/mcp", nil)
	r.Host = "moonfall.town:443"
	if err := s.validateRequestHost(r); err != nil {
		t.Fatalf("configured host rejected: %v", err)
	}
}

func TestValidateRequestHostChecksOrigin(t *testing.T) {
	s := &Server{allowedHosts: parseAllowedHosts(nil)}

	r := httptest.NewRequest("POST", "http://localhost:8080/mcp", nil)
	r.Header.Set("Origin", "http://localhost:8080")
	if err := s.validateRequestHost(r); err != nil {
		t.Fatalf("loopback origin rejected: %v", err)
	}

	r = httptest.NewRequest("POST", "http://localhost:8080/mcp", nil)
	r.Header.Set("Origin", "http://evil.example")
	if err := s.validateRequestHost(r); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}

	r = httptest.NewRequest("POST", "http://localhost:8080/mcp", nil)
	r.Header.Set("Origin", ":::bad")
	if err := s.validateRequestHost(r); err == nil {
		t.Fatalf("expected malformed origin to be rejected")
	}
}
