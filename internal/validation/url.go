package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ServerURLValidator validates the base URL of a federation server.
type ServerURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewServerURLValidator creates a new validator with secure defaults.
func NewServerURLValidator() *ServerURLValidator {
	return &ServerURLValidator{
		AllowLocalhost: false,
		MaxLength:      2048,
	}
}

// NewPermissiveServerURLValidator creates a validator that allows local development.
func NewPermissiveServerURLValidator() *ServerURLValidator {
	return &ServerURLValidator{
		AllowLocalhost: true,
		MaxLength:      2048,
	}
}

// ValidateAndNormalize validates a server base URL and returns it with a
// guaranteed trailing slash so API paths can be appended directly.
func (v *ServerURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("server URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("server URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'`") {
		return "", fmt.Errorf("server URL contains invalid characters")
	}

	// Default to HTTPS when no protocol is given; anything else that already
	// names a scheme is rejected rather than silently wrapped.
	if i := strings.Index(input, "://"); i >= 0 {
		scheme := strings.ToLower(input[:i])
		if scheme != "http" && scheme != "https" {
			return "", fmt.Errorf("server URL must use http or https protocol")
		}
	} else {
		input = "https://" + input
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("server URL must use http or https protocol")
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("server URL must have a valid hostname")
	}
	if parsedURL.User != nil {
		return "", fmt.Errorf("server URL must not embed credentials")
	}

	if !v.AllowLocalhost && isLocalhost(parsedURL.Host) {
		return "", fmt.Errorf("localhost URLs are not permitted")
	}

	normalized := parsedURL.String()
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return normalized, nil
}

func isLocalhost(host string) bool {
	hostname := host
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			hostname = h
		}
	}
	hostname = strings.ToLower(hostname)
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
