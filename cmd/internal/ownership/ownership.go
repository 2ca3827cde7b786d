// Package ownership is the single load-check rule for authored resources:
// a resource the caller does not own is reported exactly like one that does
// not exist.
package ownership

import (
	"context"
	"errors"
)

// ErrNotFound is returned for missing and not-owned resources alike.
var ErrNotFound = errors.New("not found")

// Owned is implemented by resources with a single owner.
type Owned interface {
	OwnerID() string
}

// Load fetches id with load and returns it only when callerID owns it.
// load reports a missing resource as ErrNotFound (or an error wrapping it).
func Load[T Owned](ctx context.Context, load func(context.Context, string) (T, error), id, callerID string) (T, error) {
	var zero T
	if id == "" || callerID == "" {
		return zero, ErrNotFound
	}
	res, err := load(ctx, id)
	if err != nil {
		return zero, err
	}
	if res.OwnerID() != callerID {
		return zero, ErrNotFound
	}
	return res, nil
}

// Check reports ErrNotFound unless callerID is one of the parties allowed to see r.
func Check(callerID string, parties ...string) error {
	if callerID == "" {
		return ErrNotFound
	}
	for _, p := range parties {
		if p == callerID {
			return nil
		}
	}
	return ErrNotFound
}
