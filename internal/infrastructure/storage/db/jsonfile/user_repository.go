package jsonfile

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

type usersDocument struct {
	Users []domain.User `json:"users"`
}

type userRepository struct {
	file     *jsonFile
	chEvents chan domain.UserEvent
	chLock   *sync.Mutex
	closed   bool

	log func(format string, a ...interface{})
}

func NewUserRepository(path string) (domain.UserRepository, error) {
	return newUserRepository(path)
}

func newUserRepository(path string) (*userRepository, error) {
	file, err := newJSONFile(path, usersDocument{Users: []domain.User{}})
	if err != nil {
		return nil, err
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("user repository: %s", format)
		log.Debugf(format, a...)
	}
	return &userRepository{
		file:     file,
		chEvents: make(chan domain.UserEvent),
		chLock:   &sync.Mutex{},
		log:      logFn,
	}, nil
}

func (r *userRepository) GetUserByAddress(
	_ context.Context, address string,
) (*domain.User, error) {
	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
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

	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	index := -1
	for i, u := range doc.Users {
		if u.PrimaryAddress == primaryAddress {
			index = i
			break
		}
	}

	var prev *domain.User
	var user domain.User
	if index >= 0 {
		prevUser := doc.Users[index]
		prev = &prevUser
		user = prevUser
	} else {
		newUser, err := domain.NewUser(primaryAddress)
		if err != nil {
			return nil, err
		}
		user = *newUser
	}

	if changed := user.Apply(update); !changed && prev != nil {
		return &user, nil
	}

	if index >= 0 {
		doc.Users[index] = user
	} else {
		doc.Users = append(doc.Users, user)
	}
	if err := r.file.write(doc); err != nil {
		return nil, err
	}

	for _, event := range domain.UserEvents(prev, user) {
		go r.publishEvent(event)
	}

	return &user, nil
}

func (r *userRepository) ListUsers(_ context.Context) ([]*domain.User, error) {
	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(doc.Users))
	for i := range doc.Users {
		users = append(users, &doc.Users[i])
	}
	return users, nil
}

func (r *userRepository) load() (*usersDocument, error) {
	doc := &usersDocument{}
	if err := r.file.read(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *userRepository) publishEvent(event domain.UserEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	if r.closed {
		return
	}
	r.log("publish event %s", event.EventType)
	r.chEvents <- event
}

func (r *userRepository) reset() {
	r.file.lock.Lock()
	defer r.file.lock.Unlock()

	if err := r.file.write(usersDocument{Users: []domain.User{}}); err != nil {
		r.log("reset failed: %s", err)
	}
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
