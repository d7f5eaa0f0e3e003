package remote

import (
	"context"
	"errors"
)

// ErrUnavailable marks connectivity and permission failures of the remote
// store. Callers match it with errors.Is.
var ErrUnavailable = errors.New("remote store unavailable")

// ErrInvalidPath marks a path rejected locally before any request is made,
// such as an id containing a reserved character.
var ErrInvalidPath = errors.New("invalid path")

// Store is the hosted realtime-database contract. Values are JSON-shaped:
// Read decodes the node at path into dst, Write replaces the node, Delete
// removes it. Writing a nil value is equivalent to Delete.
type Store interface {
	Read(ctx context.Context, path Path, dst any) (bool, error)
	Write(ctx context.Context, path Path, value any) error
	Delete(ctx context.Context, path Path) error
}
