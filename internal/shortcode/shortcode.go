// Package shortcode generates, validates and allocates short codes.
package shortcode

import (
	"fmt"
	"io"
	"regexp"
)

const (
	// Alphabet is the 62 characters a short code may contain
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	MinLength     = 4
	MaxLength     = 10
	DefaultLength = 6

	// bytes at or above this value are rejected so that b % 62 is uniform
	rejectAbove = 256 - 256%len(Alphabet)
)

var pattern = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)

// IsValid reports whether code matches ^[A-Za-z0-9]{4,10}$.
// Custom codes and redirect lookups are checked with it before touching the store.
func IsValid(code string) bool {
	return pattern.MatchString(code)
}

// generate draws a code of the given length from random. It uses rejection
// sampling: bytes >= rejectAbove are discarded so every character of
// Alphabet is equally likely.
func generate(random io.Reader, length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("short code length must be %d-%d, got %d", MinLength, MaxLength, length)
	}

	code := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(code) < length {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}
