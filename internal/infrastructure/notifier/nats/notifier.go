package nats_notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const (
	DefaultSubject = "relay.payment_received"
	clientName     = "multisig-relay"
)

var (
	ErrMissingURL = fmt.Errorf("missing nats server url")
)

// ServiceArgs configures the connection to the nats server.
type ServiceArgs struct {
	URL     string
	Subject string
	Token   string
}

func (a ServiceArgs) validate() error {
	if a.URL == "" {
		return ErrMissingURL
	}
	if _, err := url.Parse(a.URL); err != nil {
		return fmt.Errorf("invalid nats server url: %s", err)
	}
	return nil
}

// Service publishes payment notifications on a nats subject, and lets a
// daemon listen for the ones published by other processes.
type Service struct {
	conn    *nats.Conn
	subject string

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(args ServiceArgs) (*Service, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	subject := args.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	opts := []nats.Option{nats.Name(clientName)}
	if args.Token != "" {
		opts = append(opts, nats.Token(args.Token))
	}
	conn, err := nats.Connect(args.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransport, err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("nats notifier: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("nats notifier: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &Service{
		conn, subject, logFn, warnFn,
	}, nil
}

func (s *Service) Notify(_ context.Context, p domain.PaymentReceived) error {
	buf, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, buf); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrTransport, err)
	}
	s.log("published payment of %s on %s", p.Address, s.subject)
	return nil
}

// Listen calls handler for every notification published on the subject.
func (s *Service) Listen(handler func(domain.PaymentReceived)) error {
	_, err := s.conn.Subscribe(s.subject, func(m *nats.Msg) {
		p := domain.PaymentReceived{}
		if err := json.Unmarshal(m.Data, &p); err != nil {
			s.warn(err, "failed to parse message")
			return
		}
		handler(p)
	})
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrTransport, err)
	}
	s.log("listening on %s", s.subject)
	return nil
}

// Close drains pending messages of both publisher and subscriptions before
// disconnecting.
func (s *Service) Close() {
	if err := s.conn.Drain(); err != nil {
		s.warn(err, "failed to drain connection")
	}
}
