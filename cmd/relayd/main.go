package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	appconfig "github.com/vulpemventures/multisig-relay/internal/app-config"
	"github.com/vulpemventures/multisig-relay/internal/config"
	nats_notifier "github.com/vulpemventures/multisig-relay/internal/infrastructure/notifier/nats"
	postgresdb "github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/postgres"
	"github.com/vulpemventures/multisig-relay/internal/interfaces"
	http_interface "github.com/vulpemventures/multisig-relay/internal/interfaces/http"
	"github.com/vulpemventures/multisig-relay/pkg/profiler"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars.
	dbType           = config.GetString(config.DatabaseTypeKey)
	notifierType     = config.GetString(config.NotifierTypeKey)
	logLevel         = config.GetInt(config.LogLevelKey)
	datadir          = config.GetDatadir()
	network          = config.GetString(config.NetworkKey)
	horizonURL       = config.GetHorizonURL()
	port             = config.GetInt(config.PortKey)
	profilerPort     = config.GetInt(config.ProfilerPortKey)
	noWatcher        = config.GetBool(config.NoWatcherKey)
	noProfiler       = config.GetBool(config.NoProfilerKey)
	dbDir            = filepath.Join(datadir, config.DbLocation)
	profilerDir      = filepath.Join(datadir, config.ProfilerLocation)
	statsInterval    = time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
	primarySecret    = config.GetString(config.PrimarySecretKey)
	secondarySecret  = config.GetString(config.SecondarySecretKey)
	receiverAddress  = config.GetString(config.ReceiverAddressKey)
	cosignerURL      = config.GetString(config.CosignerURLKey)
	paymentAmount    = config.GetString(config.PaymentAmountKey)
	baseFee          = int64(config.GetInt(config.BaseFeeKey))
	txTimeout        = time.Duration(config.GetInt(config.TxTimeoutKey)) * time.Second
	cosignTimeout    = time.Duration(config.GetInt(config.CosignTimeoutKey)) * time.Second
	cosignMaxRetries = config.GetUint64(config.CosignMaxRetriesKey)
	streamMaxRetries = config.GetUint64(config.StreamMaxRetriesKey)
	streamMaxBackoff = time.Duration(config.GetInt(config.StreamMaxBackoffKey)) * time.Second
)

func main() {
	log.SetLevel(log.Level(logLevel))

	registry := prometheus.NewRegistry()
	metrics, err := profiler.NewMetrics(registry)
	if err != nil {
		log.WithError(err).Fatal("profiler: error while registering metrics")
	}

	if profilerEnabled := !noProfiler; profilerEnabled {
		profilerSvc, err := profiler.NewService(profiler.ServiceOpts{
			Port:          profilerPort,
			StatsInterval: statsInterval,
			Datadir:       profilerDir,
			Gatherer:      registry,
		})
		if err != nil {
			log.WithError(err).Fatal("profiler: error while starting")
		}

		profilerSvc.Start()
		defer func() {
			profilerSvc.Stop()
		}()
	}

	serviceCfg := http_interface.ServiceConfig{
		Port:      port,
		NoWatcher: noWatcher,
	}
	appCfg := &appconfig.AppConfig{
		Version:           version,
		Commit:            commit,
		Date:              date,
		Network:           network,
		HorizonURL:        horizonURL,
		PrimarySecret:     primarySecret,
		SecondarySecret:   secondarySecret,
		ReceiverAddress:   receiverAddress,
		CosignerURL:       cosignerURL,
		PaymentAmount:     paymentAmount,
		BaseFee:           baseFee,
		TxTimeout:         txTimeout,
		CosignTimeout:     cosignTimeout,
		CosignMaxRetries:  cosignMaxRetries,
		StreamMaxRetries:  streamMaxRetries,
		StreamMaxBackoff:  streamMaxBackoff,
		RepoManagerType:   dbType,
		NotifierType:      notifierType,
		RepoManagerConfig: repoManagerConfig(),
		NotifierConfig:    notifierConfig(),
		Metrics:           metrics,
	}

	serviceManager, err := interfaces.NewHttpServiceManager(serviceCfg, appCfg)
	if err != nil {
		log.WithError(err).Fatal("service: error while initializing")
	}
	defer func() {
		serviceManager.Service.Stop()
	}()

	if err := serviceManager.Service.Start(); err != nil {
		log.WithError(err).Fatal("service: error while starting")
	}
	log.Infof("relayd %s started on %s network", version, network)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down relayd")
}

func repoManagerConfig() interface{} {
	switch dbType {
	case "postgres":
		return postgresdb.DbConfig{
			DbUser:             config.GetString(config.DbUserKey),
			DbPassword:         config.GetString(config.DbPassKey),
			DbHost:             config.GetString(config.DbHostKey),
			DbPort:             config.GetInt(config.DbPortKey),
			DbName:             config.GetString(config.DbNameKey),
			MigrationSourceURL: config.GetString(config.DbMigrationPath),
		}
	default:
		return dbDir
	}
}

func notifierConfig() interface{} {
	switch notifierType {
	case "websocket":
		return config.GetString(config.NotifierURLKey)
	case "nats":
		return nats_notifier.ServiceArgs{
			URL:     config.GetString(config.NatsURLKey),
			Subject: config.GetString(config.NatsSubjectKey),
			Token:   config.GetString(config.NatsTokenKey),
		}
	default:
		return nil
	}
}
