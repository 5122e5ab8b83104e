package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")

	ErrRetrieval    = errors.New("retrieval failure")
	ErrGeneration   = errors.New("generation failure")
	ErrCache        = errors.New("cache failure")
	ErrOptimization = errors.New("optimization failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
