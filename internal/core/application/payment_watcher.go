package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

const (
	DefaultStreamMaxBackoff = time.Minute
	streamInitialBackoff    = time.Second
)

type PaymentWatcherArgs struct {
	Ledger      ports.Ledger
	RepoManager ports.RepoManager
	Notifier    ports.Notifier
	Metrics     ports.Metrics
	Receiver    string
	// MaxRetries bounds the consecutive reconnections, 0 means forever.
	MaxRetries uint64
	MaxBackoff time.Duration
}

func (a PaymentWatcherArgs) validate() error {
	if a.Ledger == nil {
		return ErrMissingLedger
	}
	if a.RepoManager == nil {
		return ErrMissingRepoManager
	}
	if a.Notifier == nil {
		return ErrMissingNotifier
	}
	if a.Receiver == "" {
		return ErrMissingReceiver
	}
	return wallet.ValidateAddress(a.Receiver)
}

// PaymentWatcher follows the live feed of payments of the receiver account
// and notifies each one received.
//
// The position in the feed is recorded in the user record of the receiver
// before notifying, so that after a restart, or a reconnection, the feed
// resumes right after the last event seen. Events not coming after the
// recorded position are skipped.
//
// When the feed breaks, the watcher reconnects with exponential backoff,
// reset after every delivered event. If MaxRetries consecutive attempts fail
// it gives up and goes back to idle.
type PaymentWatcher struct {
	ledger      ports.Ledger
	repoManager ports.RepoManager
	notifier    ports.Notifier
	metrics     ports.Metrics
	receiver    string
	maxRetries  uint64
	maxBackoff  time.Duration

	state  WatcherState
	cursor string
	stopFn context.CancelFunc
	chDone chan struct{}
	lock   *sync.RWMutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewPaymentWatcher(args PaymentWatcherArgs) (*PaymentWatcher, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	metrics := args.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	maxBackoff := args.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultStreamMaxBackoff
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("payment watcher: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("payment watcher: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &PaymentWatcher{
		ledger:      args.Ledger,
		repoManager: args.RepoManager,
		notifier:    args.Notifier,
		metrics:     metrics,
		receiver:    args.Receiver,
		maxRetries:  args.MaxRetries,
		maxBackoff:  maxBackoff,
		state:       WatcherIdle,
		lock:        &sync.RWMutex{},
		log:         logFn,
		warn:        warnFn,
	}, nil
}

// Start moves the watcher from idle to streaming. It doesn't block.
func (w *PaymentWatcher) Start(ctx context.Context) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.state == WatcherStreaming {
		return ErrWatcherRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	w.stopFn = cancel
	w.chDone = make(chan struct{})
	w.state = WatcherStreaming
	w.metrics.WatcherStreaming(true)

	go w.run(ctx, w.chDone)

	w.log("start watching payments of %s", w.receiver)
	return nil
}

// Stop closes the feed and waits for the watcher to be idle.
func (w *PaymentWatcher) Stop() {
	w.lock.RLock()
	stop, chDone := w.stopFn, w.chDone
	w.lock.RUnlock()

	if stop == nil {
		return
	}
	stop()
	<-chDone
	w.log("stop watching payments of %s", w.receiver)
}

func (w *PaymentWatcher) State() WatcherState {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.state
}

// Cursor returns the position of the last event seen.
func (w *PaymentWatcher) Cursor() string {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.cursor
}

func (w *PaymentWatcher) run(ctx context.Context, chDone chan struct{}) {
	defer func() {
		w.lock.Lock()
		w.state = WatcherIdle
		w.stopFn = nil
		w.lock.Unlock()
		w.metrics.WatcherStreaming(false)
		close(chDone)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = streamInitialBackoff
	if w.maxBackoff < bo.InitialInterval {
		bo.InitialInterval = w.maxBackoff
	}
	bo.MaxInterval = w.maxBackoff
	bo.MaxElapsedTime = 0
	var policy backoff.BackOff = bo
	if w.maxRetries > 0 {
		policy = backoff.WithMaxRetries(bo, w.maxRetries)
	}
	policy.Reset()

	for {
		err := w.stream(ctx, policy)
		if ctx.Err() != nil {
			return
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			w.warn(err, "giving up after %d reconnections", w.maxRetries)
			return
		}
		w.warn(err, "feed broke, reconnecting in %s", next)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}
	}
}

// stream opens the feed right after the recorded cursor and blocks until it
// breaks.
func (w *PaymentWatcher) stream(ctx context.Context, policy backoff.BackOff) error {
	cursor, err := w.lastPagingToken(ctx)
	if err != nil {
		return err
	}
	// The recorded cursor may lag behind if recording it failed.
	if current := w.Cursor(); current != "" {
		if cursor == "" || !(domain.Payment{PagingToken: cursor}).IsAfter(current) {
			cursor = current
		}
	}
	w.setCursor(cursor)

	err = w.ledger.StreamPayments(
		ctx, w.receiver, cursor, func(p domain.Payment) {
			if w.handlePayment(ctx, p) {
				policy.Reset()
			}
		},
	)
	if err == nil && ctx.Err() == nil {
		err = fmt.Errorf("%w: feed closed", domain.ErrStream)
	}
	return err
}

// handlePayment returns whether the event was a new one.
func (w *PaymentWatcher) handlePayment(ctx context.Context, p domain.Payment) bool {
	if !p.IsAfter(w.Cursor()) {
		w.log("skipping already seen event %s", p.PagingToken)
		return false
	}

	if _, err := w.repoManager.UserRepository().UpsertUser(
		ctx, w.receiver, domain.UserUpdate{LastPagingToken: p.PagingToken},
	); err != nil {
		w.warn(err, "failed to record cursor %s", p.PagingToken)
	}
	w.setCursor(p.PagingToken)

	if p.To != w.receiver {
		return true
	}

	log.Infof(
		"payment watcher: %s %s from %s token: %s",
		p.Amount, p.Asset, p.From, p.PagingToken,
	)
	w.metrics.PaymentReceived()

	if err := w.notifier.Notify(ctx, domain.NewPaymentReceived(p)); err != nil {
		w.warn(err, "failed to notify payment %s", p.ID)
	}
	return true
}

func (w *PaymentWatcher) lastPagingToken(ctx context.Context) (string, error) {
	user, err := w.repoManager.UserRepository().GetUserByAddress(ctx, w.receiver)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.LastPagingToken, nil
}

func (w *PaymentWatcher) setCursor(cursor string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.cursor = cursor
}
