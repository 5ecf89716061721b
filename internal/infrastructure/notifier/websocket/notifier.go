package ws_notifier

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
)

const writeTimeout = 10 * time.Second

var (
	ErrMissingURL = fmt.Errorf("missing notification socket url")
	ErrInvalidURL = fmt.Errorf("invalid notification socket url")
)

type notifier struct {
	addr   string
	dialer *websocket.Dialer
	conn   *websocket.Conn
	lock   *sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewNotifier returns a ports.Notifier that sends payment_received events to
// a remote notification socket. The connection is opened on first use and
// reopened after a failed write.
func NewNotifier(addr string) (ports.Notifier, error) {
	if addr == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(addr)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return nil, fmt.Errorf("%w %s", ErrInvalidURL, addr)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("ws notifier: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("ws notifier: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &notifier{
		addr:   addr,
		dialer: websocket.DefaultDialer,
		lock:   &sync.Mutex{},
		log:    logFn,
		warn:   warnFn,
	}, nil
}

func (n *notifier) Notify(ctx context.Context, p domain.PaymentReceived) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	msg := domain.NewPaymentReceivedMessage(p)

	// A stale connection is only detected on write, so give it a second go.
	var err error
	for i := 0; i < 2; i++ {
		if err = n.connect(ctx); err != nil {
			break
		}
		if err = n.write(msg); err == nil {
			n.log("sent payment of %s", p.Address)
			return nil
		}
		n.warn(err, "failed to write to socket")
		n.closeConn()
	}
	return fmt.Errorf("%w: %s", domain.ErrTransport, err)
}

func (n *notifier) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.conn != nil {
		// nolint
		n.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
	}
	n.closeConn()
}

func (n *notifier) connect(ctx context.Context) error {
	if n.conn != nil {
		return nil
	}
	conn, _, err := n.dialer.DialContext(ctx, n.addr, nil)
	if err != nil {
		return err
	}
	n.conn = conn
	n.log("connected to %s", n.addr)
	go n.readMessages(conn)
	return nil
}

// readMessages drains the frames sent by the remote socket so control frames
// get processed, and drops the connection once reading fails.
func (n *notifier) readMessages(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			n.lock.Lock()
			defer n.lock.Unlock()
			if n.conn == conn {
				n.warn(err, "connection with %s broken", n.addr)
				n.closeConn()
			}
			return
		}
	}
}

func (n *notifier) write(msg domain.SocketMessage) error {
	// nolint
	n.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return n.conn.WriteJSON(msg)
}

func (n *notifier) closeConn() {
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}
