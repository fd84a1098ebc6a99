// Package registry stores active call sessions. Two implementations exist: an
// in-process map for single-instance deployments and tests, and a Redis store
// for deployments where calls may land on different instances.
package registry

import (
	"context"

	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
)

// Registry is the session store contract. Get returns a copy the caller owns;
// mutations become visible only through Save.
type Registry interface {
	// Create stores a new session. Fails with a conflict error when the call
	// ID is already registered.
	Create(ctx context.Context, s *domain.Session) error
	// Get fetches a session by call ID. Fails with a not-found error for
	// unknown or already-ended calls.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Save overwrites an existing session. Saving a removed session is a
	// not-found error; the engine uses this to discard results that finished
	// after the call ended.
	Save(ctx context.Context, s *domain.Session) error
	// Remove deletes a session. Removing an absent session is not an error,
	// so ending a call twice is harmless.
	Remove(ctx context.Context, id string) error
	// Len reports the number of active sessions.
	Len(ctx context.Context) (int, error)
}

func errDuplicate(id string) error {
	return apperr.Conflict("call " + id + " already has an active session")
}

func errUnknown(id string) error {
	return apperr.NotFound("no active session for call " + id)
}
