package http_interface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	appconfig "github.com/vulpemventures/multisig-relay/internal/app-config"
	"github.com/vulpemventures/multisig-relay/internal/core/application"
	http_handler "github.com/vulpemventures/multisig-relay/internal/interfaces/http/handler"
)

const shutdownTimeout = 10 * time.Second

type service struct {
	config                   ServiceConfig
	appConfig                *appconfig.AppConfig
	server                   *http.Server
	watcher                  *application.PaymentWatcher
	chCloseStreamConnections chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(config ServiceConfig, appConfig *appconfig.AppConfig) (*service, error) {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.Infof(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	chCloseStreamConnections := make(chan struct{})
	return &service{
		config:                   config,
		appConfig:                appConfig,
		chCloseStreamConnections: chCloseStreamConnections,
		log:                      logFn,
		warn:                     warnFn,
	}, nil
}

func (s *service) Start() error {
	handler := http_handler.NewHandler(
		s.appConfig.CosignerService(), s.appConfig.NotificationService(),
		s.chCloseStreamConnections,
	)
	s.log(
		"cosigning with secondary signer %s",
		s.appConfig.CosignerService().SecondaryAddress(),
	)

	lis, err := net.Listen("tcp", s.config.address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %s", s.config.address(), err)
	}
	s.server = &http.Server{
		Handler:           http_handler.NewServeMux(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(lis); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.warn(err, "http server stopped unexpectedly")
		}
	}()
	s.log("start listening on %s", s.config.address())

	if s.config.NoWatcher {
		return nil
	}
	if s.appConfig.Receiver() == "" {
		s.log("no receiver address configured, payment watcher disabled")
		return nil
	}
	watcher, err := s.appConfig.PaymentWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize payment watcher: %s", err)
	}
	if err := watcher.Start(context.Background()); err != nil {
		return err
	}
	s.watcher = watcher
	s.log("started payment watcher for %s", s.appConfig.Receiver())
	return nil
}

func (s *service) Stop() {
	close(s.chCloseStreamConnections)
	s.log("closed stream connections")

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.warn(err, "failed to gracefully stop http server")
		}
		s.log("stopped http server")
	}

	if s.watcher != nil {
		s.watcher.Stop()
		s.log("stopped payment watcher")
	}

	s.appConfig.Close()
	s.log("closed connection with db")
	s.log("shutdown")
}
