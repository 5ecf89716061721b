package application

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

const DefaultListenerBufferSize = 16

// NotificationService fans notification texts out to every listener
// currently subscribed. Delivery never blocks: a listener that is not keeping
// up misses the message, and if nobody is listening the message is lost.
type NotificationService struct {
	listeners  map[string]chan string
	bufferSize int
	metrics    ports.Metrics
	lock       *sync.RWMutex

	log func(format string, a ...interface{})
}

func NewNotificationService(metrics ports.Metrics) *NotificationService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("notification service: %s", format)
		log.Debugf(format, a...)
	}
	return &NotificationService{
		listeners:  make(map[string]chan string),
		bufferSize: DefaultListenerBufferSize,
		metrics:    metrics,
		lock:       &sync.RWMutex{},
		log:        logFn,
	}
}

// Subscribe registers a new listener and returns its id and the channel
// notifications are sent to.
func (ns *NotificationService) Subscribe() (string, <-chan string) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	id := uuid.New().String()
	ch := make(chan string, ns.bufferSize)
	ns.listeners[id] = ch
	ns.log("listener %s subscribed", id)
	return id, ch
}

// Unsubscribe removes the listener and closes its channel.
func (ns *NotificationService) Unsubscribe(id string) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if ch, ok := ns.listeners[id]; ok {
		close(ch)
		delete(ns.listeners, id)
		ns.log("listener %s unsubscribed", id)
	}
}

// Publish broadcasts the message of a received payment.
func (ns *NotificationService) Publish(n domain.PaymentReceived) int {
	return ns.Broadcast(n.Message())
}

// Broadcast sends text to every listener and returns how many got it.
func (ns *NotificationService) Broadcast(text string) int {
	ns.lock.RLock()
	defer ns.lock.RUnlock()

	count := 0
	for id, ch := range ns.listeners {
		select {
		case ch <- text:
			count++
		default:
			ns.log("listener %s is lagging behind, dropped message", id)
		}
	}
	ns.metrics.NotificationsSent(count)
	return count
}

func (ns *NotificationService) NumOfListeners() int {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return len(ns.listeners)
}

// Close unsubscribes every listener.
func (ns *NotificationService) Close() {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	for id, ch := range ns.listeners {
		close(ch)
		delete(ns.listeners, id)
	}
}
