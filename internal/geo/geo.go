// Package geo resolves client IP addresses to ISO country codes.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Locator resolves an IP string to a country code.
// An empty result means the address could not be resolved.
type Locator interface {
	Country(ip string) string
}

// Nop never resolves anything. Used when no GeoIP database is configured.
type Nop struct{}

func (Nop) Country(string) string { return "" }

// MaxMind resolves countries from a GeoLite2/GeoIP2 Country or City database
type MaxMind struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the .mmdb file at path
func OpenMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &MaxMind{reader: reader}, nil
}

// Country returns the ISO 3166-1 alpha-2 code for ip, or "" if unknown.
// Private, loopback and unparseable addresses are never looked up.
func (m *MaxMind) Country(ip string) string {
	parsed := ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return ""
	}

	record, err := m.reader.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the database
func (m *MaxMind) Close() error {
	return m.reader.Close()
}

// ParseIP accepts bare addresses, host:port pairs and IPv4-mapped IPv6
func ParseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	raw = strings.Trim(raw, "[]")
	return net.ParseIP(raw)
}

// Static resolves from a fixed table. Handy for local development and tests.
type Static map[string]string

func (s Static) Country(ip string) string {
	parsed := ParseIP(ip)
	if parsed == nil {
		return ""
	}
	return s[parsed.String()]
}
