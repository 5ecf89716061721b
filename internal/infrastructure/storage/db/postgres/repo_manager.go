package postgresdb

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"

	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	postgresDriver             = "postgres"
	insecureDataSourceTemplate = "postgresql://%s:%s@%s:%d/%s?sslmode=disable"
)

//go:embed migration/*.sql
var migrations embed.FS

type repoManager struct {
	pgxPool *pgxpool.Pool

	userRepository   *userRepositoryPg
	cosignRepository *cosignRepositoryPg

	userEventHandlers *handlerMap
}

func NewRepoManager(dbConfig DbConfig) (ports.RepoManager, error) {
	dataSource := insecureDataSourceStr(dbConfig)

	pgxPool, err := connect(dataSource)
	if err != nil {
		return nil, err
	}

	if err = migrateDb(dataSource, dbConfig.MigrationSourceURL); err != nil {
		pgxPool.Close()
		return nil, err
	}

	rm := &repoManager{
		pgxPool:           pgxPool,
		userRepository:    newUserRepositoryPg(pgxPool),
		cosignRepository:  newCosignRepositoryPg(pgxPool),
		userEventHandlers: newHandlerMap(),
	}

	go rm.listenToUserEvents()

	return rm, nil
}

// DbConfig holds the connection params. When MigrationSourceURL is empty the
// embedded migrations are applied.
type DbConfig struct {
	DbUser             string
	DbPassword         string
	DbHost             string
	DbPort             int
	DbName             string
	MigrationSourceURL string
}

func (rm *repoManager) UserRepository() domain.UserRepository {
	return rm.userRepository
}

func (rm *repoManager) CosignRepository() domain.CosignRepository {
	return rm.cosignRepository
}

func (rm *repoManager) RegisterHandlerForUserEvent(
	eventType domain.UserEventType, handler ports.UserEventHandler,
) {
	rm.userEventHandlers.set(int(eventType), handler)
}

func (rm *repoManager) listenToUserEvents() {
	for event := range rm.userRepository.chEvents {
		if handlers, ok := rm.userEventHandlers.get(int(event.EventType)); ok {
			for i := range handlers {
				handler := handlers[i]
				go handler.(ports.UserEventHandler)(event)
			}
		}
	}
}

func (rm *repoManager) Reset() {
	ctx := context.Background()
	rm.pgxPool.Exec(ctx, "TRUNCATE TABLE users, cosign_requests")
}

func (rm *repoManager) Close() {
	rm.userRepository.close()
	rm.pgxPool.Close()
}

// handlerMap is a util type to prevent race conditions when registering
// or retrieving handlers for events.
type handlerMap struct {
	handlersByEventType map[int][]interface{}
	lock                *sync.RWMutex
}

func newHandlerMap() *handlerMap {
	return &handlerMap{
		handlersByEventType: make(map[int][]interface{}),
		lock:                &sync.RWMutex{},
	}
}

func (m *handlerMap) set(key int, val interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlersByEventType[key] = append(m.handlersByEventType[key], val)
}

func (m *handlerMap) get(key int) ([]interface{}, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	val, ok := m.handlersByEventType[key]
	return val, ok
}

func connect(dataSource string) (*pgxpool.Pool, error) {
	return pgxpool.Connect(context.Background(), dataSource)
}

func migrateDb(dataSource, migrationSourceUrl string) error {
	pg := postgres.Postgres{}

	d, err := pg.Open(dataSource)
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	if len(migrationSourceUrl) > 0 {
		m, err = migrate.NewWithDatabaseInstance(
			migrationSourceUrl, postgresDriver, d,
		)
	} else {
		source, serr := iofs.New(migrations, "migration")
		if serr != nil {
			return serr
		}
		m, err = migrate.NewWithInstance("iofs", source, postgresDriver, d)
	}
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// insecureDataSourceStr converts database configuration params to connection string
func insecureDataSourceStr(dbConfig DbConfig) string {
	return fmt.Sprintf(
		insecureDataSourceTemplate,
		dbConfig.DbUser,
		dbConfig.DbPassword,
		dbConfig.DbHost,
		dbConfig.DbPort,
		dbConfig.DbName,
	)
}
