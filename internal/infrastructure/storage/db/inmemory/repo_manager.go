package inmemory

import (
	"sync"
	"time"

	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

type repoManager struct {
	userRepository   *userRepository
	cosignRepository *cosignRepository

	userEventHandlers *handlerMap
}

// NewRepoManager returns a RepoManager keeping every record in memory.
// Records are lost when the process exits.
func NewRepoManager() ports.RepoManager {
	rm := &repoManager{
		userRepository:    newUserRepository(),
		cosignRepository:  newCosignRepository(),
		userEventHandlers: newHandlerMap(),
	}

	go rm.listenToUserEvents()

	return rm
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

func (rm *repoManager) Reset() {
	rm.userRepository.reset()
	rm.cosignRepository.reset()
}

func (rm *repoManager) Close() {
	rm.userRepository.close()
}

func (rm *repoManager) listenToUserEvents() {
	for event := range rm.userRepository.chEvents {
		time.Sleep(time.Millisecond)

		if handlers, ok := rm.userEventHandlers.get(int(event.EventType)); ok {
			for i := range handlers {
				handler := handlers[i]
				go handler.(ports.UserEventHandler)(event)
			}
		}
	}
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
