package shortcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"shortlinks/internal/domain"
	"shortlinks/internal/metrics"
)

// ExistenceChecker is the part of the link store the allocator needs
type ExistenceChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// Allocator draws random codes and skips the ones already assigned.
//
// The pre-check only lowers the odds of a conflict. Uniqueness itself is
// enforced by the store's constraint on the short code column, so callers
// must still handle domain.ErrCodeTaken on insert.
type Allocator struct {
	store       ExistenceChecker
	length      int
	maxAttempts int
	random      io.Reader
}

// NewAllocator creates an allocator producing codes of the given length,
// giving up with domain.ErrNamespaceExhausted after maxAttempts collisions.
func NewAllocator(store ExistenceChecker, length, maxAttempts int) *Allocator {
	if length == 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Allocator{
		store:       store,
		length:      length,
		maxAttempts: maxAttempts,
		random:      rand.Reader,
	}
}

// Allocate returns a well-formed code not currently assigned to any link.
// A failing existence check is returned as is (wrapped storage error);
// it is never retried.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		code, err := generate(a.random, a.length)
		if err != nil {
			return "", err
		}

		exists, err := a.store.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code: %w", err)
		}
		if !exists {
			return code, nil
		}
		metrics.RecordCodeCollision()
	}

	return "", fmt.Errorf("%w: no free code after %d attempts", domain.ErrNamespaceExhausted, a.maxAttempts)
}

// Length returns the length of generated codes
func (a *Allocator) Length() int {
	return a.length
}
