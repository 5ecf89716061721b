package inmemory

import (
	"context"
	"sync"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type userInmemoryStore struct {
	users map[string]domain.User
	lock  *sync.RWMutex
}

type userRepository struct {
	store    *userInmemoryStore
	chEvents chan domain.UserEvent
	chLock   *sync.Mutex
	closed   bool
}

func NewUserRepository() domain.UserRepository {
	return newUserRepository()
}

func newUserRepository() *userRepository {
	return &userRepository{
		store: &userInmemoryStore{
			users: make(map[string]domain.User),
			lock:  &sync.RWMutex{},
		},
		chEvents: make(chan domain.UserEvent),
		chLock:   &sync.Mutex{},
	}
}

func (r *userRepository) GetUserByAddress(
	_ context.Context, address string,
) (*domain.User, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	for _, u := range r.store.users {
		if u.HasAddress(address) {
			user := u
			return &user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepository) UpsertUser(
	_ context.Context, primaryAddress string, update domain.UserUpdate,
) (*domain.User, error) {
	if len(primaryAddress) == 0 {
		return nil, domain.ErrMissingPrimaryAddress
	}

	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	var prev *domain.User
	user, ok := r.store.users[primaryAddress]
	if ok {
		prevUser := user
		prev = &prevUser
	} else {
		newUser, err := domain.NewUser(primaryAddress)
		if err != nil {
			return nil, err
		}
		user = *newUser
	}
	user.Apply(update)
	r.store.users[primaryAddress] = user

	for _, event := range domain.UserEvents(prev, user) {
		go r.publishEvent(event)
	}

	return &user, nil
}

func (r *userRepository) ListUsers(_ context.Context) ([]*domain.User, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	users := make([]*domain.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		user := u
		users = append(users, &user)
	}
	return users, nil
}

func (r *userRepository) publishEvent(event domain.UserEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	if r.closed {
		return
	}
	r.chEvents <- event
}

func (r *userRepository) reset() {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.users = make(map[string]domain.User)
}

func (r *userRepository) close() {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.chEvents)
}
