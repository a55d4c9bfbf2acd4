// Package audit defines the append-only notification log emitted by every
// state-changing operation.
package audit

import (
	"context"

	id "poolshare/pkg/domain"
)

// Store persists notifications. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is the narrow port services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
