package ports

import (
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type UserEventHandler func(event domain.UserEvent)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repositories implementations of the same concrete type.
type RepoManager interface {
	// UserRepository returns the user records repository.
	UserRepository() domain.UserRepository
	// CosignRepository returns the processed cosign requests repository.
	CosignRepository() domain.CosignRepository

	// RegisterHandlerForUserEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForUserEvent(
		eventType domain.UserEventType, handler UserEventHandler,
	)

	// Reset brings all the repos to their initial state by deleting any persisted data.
	Reset()

	// Close closes the connection with all concrete repositories
	// implementations.
	Close()
}
