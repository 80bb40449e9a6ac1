// Package fallback runs a primary attempt, a simplified attempt, and a
// deterministic default, returning the first usable result.
package fallback

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Source identifies which attempt produced a result
type Source int

const (
	SourcePrimary Source = iota
	SourceSimplified
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSimplified:
		return "simplified"
	default:
		return "default"
	}
}

// Attempt produces a candidate result
type Attempt[T any] func(ctx context.Context) (T, error)

// Chain describes the three-tier strategy for one generation call
type Chain[T any] struct {
	Name       string
	Primary    Attempt[T]
	Simplified Attempt[T]
	Default    func() T
	// Validate rejects results that were returned without error but are unusable
	Validate func(T) error
	Logger   *zap.Logger
}

// Run executes the chain. It never fails: when both attempts are unusable
// the default is returned.
func (c Chain[T]) Run(ctx context.Context) (T, Source) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if c.Primary != nil {
		result, err := c.try(ctx, c.Primary)
		if err == nil {
			return result, SourcePrimary
		}
		logger.Warn("primary attempt failed, trying simplified",
			zap.String("chain", c.Name), zap.Error(err))
	}

	if c.Simplified != nil {
		result, err := c.try(ctx, c.Simplified)
		if err == nil {
			return result, SourceSimplified
		}
		logger.Warn("simplified attempt failed, using default",
			zap.String("chain", c.Name), zap.Error(err))
	}

	return c.Default(), SourceDefault
}

// try runs one attempt, converting panics and validation failures into errors
func (c Chain[T]) try(ctx context.Context, attempt Attempt[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("attempt panicked: %v", r)
		}
	}()

	result, err = attempt(ctx)
	if err != nil {
		return result, err
	}
	if c.Validate != nil {
		if verr := c.Validate(result); verr != nil {
			return result, fmt.Errorf("invalid result: %w", verr)
		}
	}
	return result, nil
}
