package postgresdb

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const (
	selectUserForUpdate = `SELECT id, primary_address,
		COALESCE(secondary_address, ''), COALESCE(last_paging_token, '')
		FROM users WHERE primary_address = $1 FOR UPDATE`
	selectUserByAddress = `SELECT id, primary_address,
		COALESCE(secondary_address, ''), COALESCE(last_paging_token, '')
		FROM users WHERE primary_address = $1 OR secondary_address = $1
		LIMIT 1`
	selectUsers = `SELECT id, primary_address,
		COALESCE(secondary_address, ''), COALESCE(last_paging_token, '')
		FROM users ORDER BY primary_address`
	upsertUser = `INSERT INTO users
		(id, primary_address, secondary_address, last_paging_token)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (primary_address) DO UPDATE SET
		secondary_address = COALESCE(EXCLUDED.secondary_address, users.secondary_address),
		last_paging_token = COALESCE(EXCLUDED.last_paging_token, users.last_paging_token)
		RETURNING id, primary_address,
		COALESCE(secondary_address, ''), COALESCE(last_paging_token, ''),
		(xmax = 0) AS inserted`
)

type userRepositoryPg struct {
	pgxPool  *pgxpool.Pool
	chEvents chan domain.UserEvent
	chLock   *sync.Mutex
	closed   bool
}

func NewUserRepositoryPgImpl(pgxPool *pgxpool.Pool) domain.UserRepository {
	return newUserRepositoryPg(pgxPool)
}

func newUserRepositoryPg(pgxPool *pgxpool.Pool) *userRepositoryPg {
	return &userRepositoryPg{
		pgxPool:  pgxPool,
		chEvents: make(chan domain.UserEvent),
		chLock:   &sync.Mutex{},
	}
}

func (u *userRepositoryPg) GetUserByAddress(
	ctx context.Context, address string,
) (*domain.User, error) {
	user, err := scanUser(u.pgxPool.QueryRow(ctx, selectUserByAddress, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (u *userRepositoryPg) UpsertUser(
	ctx context.Context, primaryAddress string, update domain.UserUpdate,
) (*domain.User, error) {
	if len(primaryAddress) == 0 {
		return nil, domain.ErrMissingPrimaryAddress
	}

	tx, err := u.pgxPool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	prev, err := scanUser(tx.QueryRow(ctx, selectUserForUpdate, primaryAddress))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		prev = nil
	}

	newUser, err := domain.NewUser(primaryAddress)
	if err != nil {
		return nil, err
	}
	var user domain.User
	var inserted bool
	if err := tx.QueryRow(
		ctx, upsertUser, newUser.ID, primaryAddress,
		update.SecondaryAddress, update.LastPagingToken,
	).Scan(
		&user.ID, &user.PrimaryAddress, &user.SecondaryAddress,
		&user.LastPagingToken, &inserted,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// The row was created by a concurrent upsert after our select, the
	// events of its creation belong to that call.
	if !inserted && prev == nil {
		return &user, nil
	}

	for _, event := range domain.UserEvents(prev, user) {
		go u.publishEvent(event)
	}

	return &user, nil
}

func (u *userRepositoryPg) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := u.pgxPool.Query(ctx, selectUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (u *userRepositoryPg) publishEvent(event domain.UserEvent) {
	u.chLock.Lock()
	defer u.chLock.Unlock()

	if u.closed {
		return
	}
	u.chEvents <- event
}

func (u *userRepositoryPg) close() {
	u.chLock.Lock()
	defer u.chLock.Unlock()

	if !u.closed {
		u.closed = true
		close(u.chEvents)
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID, &user.PrimaryAddress, &user.SecondaryAddress,
		&user.LastPagingToken,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
