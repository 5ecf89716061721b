package domain

import (
	"context"
)

const (
	UserCreated UserEventType = iota
	UserSecondaryLinked
	UserCursorUpdated
)

var (
	userEventTypeString = map[UserEventType]string{
		UserCreated:         "UserCreated",
		UserSecondaryLinked: "UserSecondaryLinked",
		UserCursorUpdated:   "UserCursorUpdated",
	}
)

type UserEventType int

func (t UserEventType) String() string {
	return userEventTypeString[t]
}

// UserEvent holds info about an event occured within the repository.
type UserEvent struct {
	EventType UserEventType
	User      User
}

// UserRepository is the abstraction for any kind of database intended to
// persist User records.
type UserRepository interface {
	// GetUserByAddress returns the record whose primary or secondary address
	// matches the given one.
	GetUserByAddress(ctx context.Context, address string) (*User, error)
	// UpsertUser creates the record for primaryAddress if missing, otherwise
	// merges the supplied fields of update into it. Calling it again with the
	// same values is a no-op.
	// Generates UserCreated, UserSecondaryLinked and UserCursorUpdated events
	// accordingly.
	UpsertUser(
		ctx context.Context, primaryAddress string, update UserUpdate,
	) (*User, error)
	// ListUsers returns all stored records.
	ListUsers(ctx context.Context) ([]*User, error)
}

// UserEvents returns the events to publish after upserting prev (nil if the
// record did not exist) into next.
func UserEvents(prev *User, next User) []UserEvent {
	if prev == nil {
		events := []UserEvent{{UserCreated, next}}
		if next.SecondaryAddress != "" {
			events = append(events, UserEvent{UserSecondaryLinked, next})
		}
		if next.LastPagingToken != "" {
			events = append(events, UserEvent{UserCursorUpdated, next})
		}
		return events
	}

	events := make([]UserEvent, 0, 2)
	if prev.SecondaryAddress != next.SecondaryAddress {
		events = append(events, UserEvent{UserSecondaryLinked, next})
	}
	if prev.LastPagingToken != next.LastPagingToken {
		events = append(events, UserEvent{UserCursorUpdated, next})
	}
	return events
}
