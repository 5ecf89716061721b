package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const maxUpsertAttempts = 5

type userRepository struct {
	store    *badgerhold.Store
	chEvents chan domain.UserEvent
	lock     *sync.Mutex
	closed   bool

	log func(format string, a ...interface{})
}

func NewUserRepository(store *badgerhold.Store) domain.UserRepository {
	return newUserRepository(store)
}

func newUserRepository(store *badgerhold.Store) *userRepository {
	chEvents := make(chan domain.UserEvent, 10)
	lock := &sync.Mutex{}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("user repository: %s", format)
		log.Debugf(format, a...)
	}
	return &userRepository{store, chEvents, lock, false, logFn}
}

func (r *userRepository) GetUserByAddress(
	ctx context.Context, address string,
) (*domain.User, error) {
	query := badgerhold.Where("PrimaryAddress").Eq(address).
		Or(badgerhold.Where("SecondaryAddress").Eq(address))

	users, err := r.findUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(users) <= 0 {
		return nil, domain.ErrUserNotFound
	}
	return &users[0], nil
}

func (r *userRepository) UpsertUser(
	ctx context.Context, primaryAddress string, update domain.UserUpdate,
) (*domain.User, error) {
	if len(primaryAddress) == 0 {
		return nil, domain.ErrMissingPrimaryAddress
	}

	var (
		prev *domain.User
		user domain.User
		err  error
	)
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		prev, user, err = r.upsertUser(tx, primaryAddress, update)
	} else {
		// Badger runs transactions optimistically, a concurrent write of the
		// same key makes the commit fail with ErrConflict.
		for i := 0; i < maxUpsertAttempts; i++ {
			err = r.store.Badger().Update(func(tx *badger.Txn) error {
				var err error
				prev, user, err = r.upsertUser(tx, primaryAddress, update)
				return err
			})
			if !errors.Is(err, badger.ErrConflict) {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	for _, event := range domain.UserEvents(prev, user) {
		go r.publishEvent(event)
	}

	return &user, nil
}

func (r *userRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := r.findUsers(ctx, nil)
	if err != nil {
		return nil, err
	}
	list := make([]*domain.User, 0, len(users))
	for i := range users {
		list = append(list, &users[i])
	}
	return list, nil
}

func (r *userRepository) upsertUser(
	tx *badger.Txn, primaryAddress string, update domain.UserUpdate,
) (*domain.User, domain.User, error) {
	var prev *domain.User
	var user domain.User

	err := r.store.TxGet(tx, primaryAddress, &user)
	switch {
	case err == nil:
		prevUser := user
		prev = &prevUser
	case errors.Is(err, badgerhold.ErrNotFound):
		newUser, err := domain.NewUser(primaryAddress)
		if err != nil {
			return nil, user, err
		}
		user = *newUser
	default:
		return nil, user, err
	}

	if changed := user.Apply(update); !changed && prev != nil {
		return prev, user, nil
	}
	if err := r.store.TxUpsert(tx, primaryAddress, user); err != nil {
		return nil, user, err
	}
	return prev, user, nil
}

func (r *userRepository) findUsers(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.User, error) {
	var users []domain.User
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &users, query)
	} else {
		err = r.store.Find(&users, query)
	}
	return users, err
}

func (r *userRepository) publishEvent(event domain.UserEvent) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return
	}
	r.log("publish event %s", event.EventType)
	r.chEvents <- event
}

func (r *userRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *userRepository) close() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.store.Close()
	if !r.closed {
		r.closed = true
		close(r.chEvents)
	}
}
