package appconfig

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/config"
	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	http_cosigner "github.com/vulpemventures/multisig-relay/internal/infrastructure/cosigner/http"
	"github.com/vulpemventures/multisig-relay/internal/infrastructure/ledger/horizon"
	local_notifier "github.com/vulpemventures/multisig-relay/internal/infrastructure/notifier/local"
	nats_notifier "github.com/vulpemventures/multisig-relay/internal/infrastructure/notifier/nats"
	ws_notifier "github.com/vulpemventures/multisig-relay/internal/infrastructure/notifier/websocket"
	dbbadger "github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/badger"
	"github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/jsonfile"
	postgresdb "github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/postgres"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

// AppConfig is the struct holding all configuration options for
// every application service (account, transaction, cosigner, watcher and
// notification). This data structure acts also as a factory of the mentioned
// application services and the portable services used by them.
// Public config args:
//   - Network - (required) The ledger network (testnet, public).
//   - HorizonURL - (required) The url of the Horizon server to connect to.
//   - PrimarySecret - (optional) Secret of the primary key, required to send payments and link accounts.
//   - SecondarySecret - (optional) Secret of the secondary key, a random one is generated if missing.
//   - ReceiverAddress - (optional) Address watched for incoming payments, defaults to the primary one.
//   - CosignerURL - (optional) Url of the remote cosigner daemon, required to send multisig payments.
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - NotifierType - (required) One of the supported notifier types.
//   - RepoManagerConfig - (optional) Custom config args for the repository manager based on its type.
//   - NotifierConfig - (optional) Custom config args for the notifier based on its type.
//   - Metrics - (optional) Collector of the relay counters.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	Network          string
	HorizonURL       string
	PrimarySecret    string
	SecondarySecret  string
	ReceiverAddress  string
	CosignerURL      string
	PaymentAmount    string
	BaseFee          int64
	TxTimeout        time.Duration
	CosignTimeout    time.Duration
	CosignMaxRetries uint64
	StreamMaxRetries uint64
	StreamMaxBackoff time.Duration

	RepoManagerType   string
	NotifierType      string
	RepoManagerConfig interface{}
	NotifierConfig    interface{}
	Metrics           ports.Metrics

	primaryKey   *wallet.Keypair
	secondaryKey *wallet.Keypair
	ledger       ports.Ledger
	rm           ports.RepoManager
	cosigner     ports.Cosigner
	notifier     ports.Notifier
	natsSvc      *nats_notifier.Service
	accountSvc   *application.AccountService
	txSvc        *application.TransactionService
	cosignerSvc  *application.CosignerService
	notifySvc    *application.NotificationService
	watcher      *application.PaymentWatcher
}

func (c *AppConfig) Validate() error {
	if len(c.Network) == 0 {
		return fmt.Errorf("missing network")
	}
	if _, err := horizon.PassphraseForNetwork(c.Network); err != nil {
		return err
	}
	if len(c.HorizonURL) == 0 {
		return fmt.Errorf("missing horizon url")
	}
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if len(c.NotifierType) == 0 {
		return fmt.Errorf("missing notifier type")
	}
	if _, ok := config.SupportedNotifiers[c.NotifierType]; !ok {
		return fmt.Errorf(
			"notifier type not supported, must be one of: %s",
			config.SupportedNotifiers,
		)
	}
	if c.PaymentAmount != "" {
		if _, err := wallet.ParseAmount(c.PaymentAmount); err != nil {
			return err
		}
	}
	if c.ReceiverAddress != "" {
		if err := wallet.ValidateAddress(c.ReceiverAddress); err != nil {
			return err
		}
	}
	if err := c.keys(); err != nil {
		return err
	}
	if _, err := c.ledgerService(); err != nil {
		return err
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if c.CosignerURL != "" {
		if _, err := c.cosignerClient(); err != nil {
			return err
		}
	}

	return nil
}

func (c *AppConfig) Ledger() ports.Ledger {
	return c.ledger
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	return c.rm
}

func (c *AppConfig) PrimaryKey() *wallet.Keypair {
	return c.primaryKey
}

func (c *AppConfig) SecondaryKey() *wallet.Keypair {
	return c.secondaryKey
}

// Receiver returns the address watched for incoming payments.
func (c *AppConfig) Receiver() string {
	if c.ReceiverAddress != "" {
		return c.ReceiverAddress
	}
	if c.primaryKey != nil {
		return c.primaryKey.Address()
	}
	return ""
}

func (c *AppConfig) AccountService() *application.AccountService {
	return c.accountService()
}

func (c *AppConfig) TransactionService() (*application.TransactionService, error) {
	return c.transactionService()
}

func (c *AppConfig) CosignerService() *application.CosignerService {
	return c.cosignerService()
}

func (c *AppConfig) NotificationService() *application.NotificationService {
	return c.notificationService()
}

func (c *AppConfig) PaymentWatcher() (*application.PaymentWatcher, error) {
	return c.paymentWatcher()
}

// Close releases the connections held by the notifier and the repositories.
func (c *AppConfig) Close() {
	if c.notifier != nil {
		c.notifier.Close()
	}
	if c.natsSvc != nil && c.notifier == nil {
		c.natsSvc.Close()
	}
	if c.notifySvc != nil {
		c.notifySvc.Close()
	}
	if c.rm != nil {
		c.rm.Close()
	}
}

func (c *AppConfig) keys() error {
	if c.PrimarySecret != "" && c.primaryKey == nil {
		key, err := wallet.NewKeypairFromSecret(c.PrimarySecret)
		if err != nil {
			return fmt.Errorf("invalid primary secret: %w", err)
		}
		c.primaryKey = key
	}
	if c.secondaryKey != nil {
		return nil
	}
	if c.SecondarySecret != "" {
		key, err := wallet.NewKeypairFromSecret(c.SecondarySecret)
		if err != nil {
			return fmt.Errorf("invalid secondary secret: %w", err)
		}
		c.secondaryKey = key
		return nil
	}
	key, err := wallet.NewKeypair()
	if err != nil {
		return err
	}
	log.Warnf(
		"app config: missing secondary secret, using ephemeral key %s",
		key.Address(),
	)
	c.secondaryKey = key
	return nil
}

func (c *AppConfig) ledgerService() (ports.Ledger, error) {
	if c.ledger != nil {
		return c.ledger, nil
	}

	passphrase, err := horizon.PassphraseForNetwork(c.Network)
	if err != nil {
		return nil, err
	}
	ledger, err := horizon.NewService(horizon.ServiceArgs{
		HorizonURL: c.HorizonURL,
		Passphrase: passphrase,
	})
	if err != nil {
		return nil, err
	}
	c.ledger = ledger
	return c.ledger, nil
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "json":
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := jsonfile.NewRepoManager(datadir)
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	case "postgres":
		dbConfig, ok := c.RepoManagerConfig.(postgresdb.DbConfig)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be postgresdb.DbConfig")
		}

		rm, err := postgresdb.NewRepoManager(dbConfig)
		if err != nil {
			return nil, err
		}

		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

func (c *AppConfig) cosignerClient() (ports.Cosigner, error) {
	if c.cosigner != nil {
		return c.cosigner, nil
	}

	cosigner, err := http_cosigner.NewService(http_cosigner.ServiceArgs{
		URL:        c.CosignerURL,
		Timeout:    c.CosignTimeout,
		MaxRetries: c.CosignMaxRetries,
	})
	if err != nil {
		return nil, err
	}
	c.cosigner = cosigner
	return c.cosigner, nil
}

func (c *AppConfig) notifierService() (ports.Notifier, error) {
	if c.notifier != nil {
		return c.notifier, nil
	}

	switch c.NotifierType {
	case "local":
		notifier, err := local_notifier.NewNotifier(c.notificationService())
		if err != nil {
			return nil, err
		}
		c.notifier = notifier
		return c.notifier, nil
	case "websocket":
		addr, ok := c.NotifierConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid notifier config type, must be string")
		}
		notifier, err := ws_notifier.NewNotifier(addr)
		if err != nil {
			return nil, err
		}
		c.notifier = notifier
		return c.notifier, nil
	case "nats":
		natsSvc, err := c.natsService()
		if err != nil {
			return nil, err
		}
		c.notifier = natsSvc
		return c.notifier, nil
	default:
		return nil, fmt.Errorf("unknown notifier type")
	}
}

func (c *AppConfig) natsService() (*nats_notifier.Service, error) {
	if c.natsSvc != nil {
		return c.natsSvc, nil
	}

	args, ok := c.NotifierConfig.(nats_notifier.ServiceArgs)
	if !ok {
		return nil, fmt.Errorf(
			"invalid notifier config type, must be nats_notifier.ServiceArgs",
		)
	}
	natsSvc, err := nats_notifier.NewService(args)
	if err != nil {
		return nil, err
	}
	c.natsSvc = natsSvc
	return c.natsSvc, nil
}

func (c *AppConfig) accountService() *application.AccountService {
	if c.accountSvc != nil {
		return c.accountSvc
	}

	ledger, _ := c.ledgerService()
	c.accountSvc, _ = application.NewAccountService(ledger)
	return c.accountSvc
}

func (c *AppConfig) transactionService() (*application.TransactionService, error) {
	if c.txSvc != nil {
		return c.txSvc, nil
	}

	ledger, _ := c.ledgerService()
	rm, _ := c.repoManager()
	args := application.TransactionServiceArgs{
		Ledger:      ledger,
		RepoManager: rm,
		PrimaryKey:  c.primaryKey,
		Amount:      c.PaymentAmount,
		BaseFee:     c.BaseFee,
		TxTimeout:   c.TxTimeout,
	}
	if c.CosignerURL != "" {
		cosigner, err := c.cosignerClient()
		if err != nil {
			return nil, err
		}
		args.Cosigner = cosigner
	}

	txSvc, err := application.NewTransactionService(args)
	if err != nil {
		return nil, err
	}
	c.txSvc = txSvc
	return c.txSvc, nil
}

func (c *AppConfig) cosignerService() *application.CosignerService {
	if c.cosignerSvc != nil {
		return c.cosignerSvc
	}

	ledger, _ := c.ledgerService()
	rm, _ := c.repoManager()
	c.cosignerSvc, _ = application.NewCosignerService(
		application.CosignerServiceArgs{
			Ledger:       ledger,
			RepoManager:  rm,
			SecondaryKey: c.secondaryKey,
			Metrics:      c.Metrics,
		},
	)
	return c.cosignerSvc
}

func (c *AppConfig) notificationService() *application.NotificationService {
	if c.notifySvc != nil {
		return c.notifySvc
	}

	c.notifySvc = application.NewNotificationService(c.Metrics)

	// Notifications published by watchers of other processes reach the local
	// listeners through the bus.
	if c.NotifierType == "nats" {
		natsSvc, err := c.natsService()
		if err != nil {
			log.WithError(err).Warn("app config: failed to connect to nats")
			return c.notifySvc
		}
		notifySvc := c.notifySvc
		if err := natsSvc.Listen(func(p domain.PaymentReceived) {
			notifySvc.Publish(p)
		}); err != nil {
			log.WithError(err).Warn("app config: failed to listen to nats")
		}
	}
	return c.notifySvc
}

func (c *AppConfig) paymentWatcher() (*application.PaymentWatcher, error) {
	if c.watcher != nil {
		return c.watcher, nil
	}

	ledger, _ := c.ledgerService()
	rm, _ := c.repoManager()
	notifier, err := c.notifierService()
	if err != nil {
		return nil, err
	}
	watcher, err := application.NewPaymentWatcher(application.PaymentWatcherArgs{
		Ledger:      ledger,
		RepoManager: rm,
		Notifier:    notifier,
		Metrics:     c.Metrics,
		Receiver:    c.Receiver(),
		MaxRetries:  c.StreamMaxRetries,
		MaxBackoff:  c.StreamMaxBackoff,
	})
	if err != nil {
		return nil, err
	}
	c.watcher = watcher
	return c.watcher, nil
}
