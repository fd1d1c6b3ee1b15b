/*
studentno.go - Concurrency-safe student number allocation

PURPOSE:
  Allocates student numbers of the form "{PREFIX}-{YEAR}-{NNNN}", monotonic
  per calendar year and collision-free under concurrent invocation.

LOCKING:
  The store performs the read-increment-write (select current max for the
  year, increment, record the claim) under its exclusive write lock. This is
  the one place in the system that needs true mutual exclusion.

BELT AND SUSPENDERS:
  GenerateUnique additionally retries a bounded number of times if the claim
  reports a duplicate. The lock already prevents collisions, so the retry is
  defensive redundancy kept from the source system; exhausting the budget
  yields ErrSequenceExhausted and the caller retries the whole operation.
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultStudentPrefix is used when no prefix is configured.
	DefaultStudentPrefix = "STU"

	// DefaultMaxAttempts bounds GenerateUnique's retry loop.
	DefaultMaxAttempts = 10
)

// =============================================================================
// STUDENT NUMBER GENERATOR
// =============================================================================

type StudentNumberGenerator struct {
	Store       Store
	Prefix      string
	MaxAttempts int

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewStudentNumberGenerator(store Store, prefix string) *StudentNumberGenerator {
	return &StudentNumberGenerator{
		Store:       store,
		Prefix:      prefix,
		MaxAttempts: DefaultMaxAttempts,
	}
}

func (g *StudentNumberGenerator) year() int {
	if g.Clock != nil {
		return g.Clock().Year()
	}
	return time.Now().UTC().Year()
}

func (g *StudentNumberGenerator) prefix() string {
	if g.Prefix == "" {
		return DefaultStudentPrefix
	}
	return g.Prefix
}

// Format renders a student number for a year and sequence: "STU-2026-0001".
// Sequences beyond 9999 widen naturally rather than truncate.
func (g *StudentNumberGenerator) Format(year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", g.prefix(), year, seq)
}

// Generate allocates the next number for the current year. The first number
// of a year is 0001.
func (g *StudentNumberGenerator) Generate(ctx context.Context) (string, error) {
	year := g.year()
	seq, err := g.Store.AllocateStudentSequence(ctx, year)
	if err != nil {
		return "", err
	}
	return g.Format(year, seq), nil
}

// GenerateUnique wraps Generate with a bounded retry on duplicate claims.
func (g *StudentNumberGenerator) GenerateUnique(ctx context.Context) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for i := 0; i < attempts; i++ {
		number, err := g.Generate(ctx)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, ErrDuplicateStudentNumber) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrSequenceExhausted, attempts)
}
