package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stellar/go/keypair"
)

const (
	// DatadirKey is the key to customize the relay datadir.
	DatadirKey = "DATADIR"
	// NetworkKey is the key to customize the ledger network.
	NetworkKey = "NETWORK"
	// HorizonURLKey is the key to customize the Horizon server to connect to.
	HorizonURLKey = "HORIZON_URL"
	// PrimarySecretKey is the key to set the secret of the primary signer.
	PrimarySecretKey = "PRIMARY_SECRET"
	// SecondarySecretKey is the key to set the secret of the secondary signer
	// used by the cosigner. A random one is used if not set.
	SecondarySecretKey = "SECONDARY_SECRET"
	// ReceiverAddressKey is the key to set the account watched for incoming
	// payments.
	ReceiverAddressKey = "RECEIVER_ADDR"
	// CosignerURLKey is the key to set the url of the remote cosigner.
	CosignerURLKey = "COSIGNER_URL"
	// PortKey is the key to customize the port where the relay will be
	// listening to.
	PortKey = "PORT"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// NotifierTypeKey is the key to customize the channel payment
	// notifications are relayed through.
	NotifierTypeKey = "NOTIFIER_TYPE"
	// NotifierURLKey is the key to set the notification socket of a remote
	// relay, used by the websocket notifier.
	NotifierURLKey = "NOTIFIER_URL"
	// NatsURLKey is the key to set the nats server used by the nats notifier.
	NatsURLKey = "NATS_URL"
	// NatsSubjectKey is the key to customize the nats subject.
	NatsSubjectKey = "NATS_SUBJECT"
	// NatsTokenKey is the key to set the nats authentication token.
	NatsTokenKey = "NATS_TOKEN"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// NoWatcherKey is the key to disable the payment watcher.
	NoWatcherKey = "NO_WATCHER"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// StatsIntervalKey is the key to customize the interval for the profiled to
	// gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"
	// PaymentAmountKey is the key to customize the default payment amount.
	PaymentAmountKey = "PAYMENT_AMOUNT"
	// BaseFeeKey is the key to customize the base fee in stroops.
	BaseFeeKey = "BASE_FEE"
	// TxTimeoutKey is the key to customize the validity window of
	// transactions in seconds.
	TxTimeoutKey = "TX_TIMEOUT"
	// CosignTimeoutKey is the key to customize how long, in seconds, to keep
	// retrying a cosign request.
	CosignTimeoutKey = "COSIGN_TIMEOUT"
	// CosignMaxRetriesKey is the key to customize the max number of retries of
	// a cosign request.
	CosignMaxRetriesKey = "COSIGN_MAX_RETRIES"
	// StreamMaxRetriesKey is the key to bound the consecutive reconnections of
	// the payment watcher, 0 means forever.
	StreamMaxRetriesKey = "STREAM_MAX_RETRIES"
	// StreamMaxBackoffKey is the key to customize the max wait, in seconds,
	// between reconnections of the payment watcher.
	StreamMaxBackoffKey = "STREAM_MAX_BACKOFF"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"
	// DbUserKey is user used to connect to db
	DbUserKey = "DB_USER"
	// DbPassKey is password used to connect to db
	DbPassKey = "DB_PASS"
	// DbHostKey is host where db is installed
	DbHostKey = "DB_HOST"
	// DbPortKey is port on which db is listening
	DbPortKey = "DB_PORT"
	// DbNameKey is name of database
	DbNameKey = "DB_NAME"
	// DbMigrationPath is the path to migration files, embedded ones are used
	// if not set.
	DbMigrationPath = "DB_MIGRATION_PATH"

	minPort = 1024
	maxPort = 49151
)

var (
	vip *viper.Viper

	defaultDatadir          = btcutil.AppDataDir("relayd", false)
	defaultNetwork          = "testnet"
	defaultDbType           = "json"
	defaultNotifierType     = "local"
	defaultPort             = 3001
	defaultProfilerPort     = 3002
	defaultLogLevel         = 4
	defaultStatsInterval    = 600 // 10 minutes
	defaultPaymentAmount    = "100"
	defaultBaseFee          = 100
	defaultTxTimeout        = 300
	defaultCosignTimeout    = 30
	defaultCosignMaxRetries = 3
	defaultStreamMaxBackoff = 60

	horizonURLByNetwork = map[string]string{
		"testnet": "https://horizon-testnet.stellar.org",
		"public":  "https://horizon.stellar.org",
	}
	SupportedDbs = supportedType{
		"json":     {},
		"badger":   {},
		"postgres": {},
	}
	SupportedNotifiers = supportedType{
		"local":     {},
		"websocket": {},
		"nats":      {},
	}
)

func init() {
	// Values from the environment always win over the ones in the file.
	_ = godotenv.Load()

	vip = viper.New()
	vip.SetEnvPrefix("RELAY")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(NotifierTypeKey, defaultNotifierType)
	vip.SetDefault(PortKey, defaultPort)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NoWatcherKey, false)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)
	vip.SetDefault(PaymentAmountKey, defaultPaymentAmount)
	vip.SetDefault(BaseFeeKey, defaultBaseFee)
	vip.SetDefault(TxTimeoutKey, defaultTxTimeout)
	vip.SetDefault(CosignTimeoutKey, defaultCosignTimeout)
	vip.SetDefault(CosignMaxRetriesKey, defaultCosignMaxRetries)
	vip.SetDefault(StreamMaxRetriesKey, 0)
	vip.SetDefault(StreamMaxBackoffKey, defaultStreamMaxBackoff)
	vip.SetDefault(DbUserKey, "root")
	vip.SetDefault(DbPassKey, "secret")
	vip.SetDefault(DbHostKey, "127.0.0.1")
	vip.SetDefault(DbPortKey, 5432)
	vip.SetDefault(DbNameKey, "relayd-db-pg")

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	net := GetString(NetworkKey)
	if len(net) == 0 {
		return fmt.Errorf("network must not be null")
	}
	if _, ok := horizonURLByNetwork[net]; !ok {
		nets := make([]string, 0, len(horizonURLByNetwork))
		for net := range horizonURLByNetwork {
			nets = append(nets, net)
		}
		return fmt.Errorf("unknown network, must be one of: %v", nets)
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	notifierType := GetString(NotifierTypeKey)
	if _, ok := SupportedNotifiers[notifierType]; !ok {
		return fmt.Errorf(
			"unsupported notifier type, must be one of %s", SupportedNotifiers,
		)
	}
	if notifierType == "websocket" && len(GetString(NotifierURLKey)) == 0 {
		return fmt.Errorf("notifier url must not be null")
	}
	if notifierType == "nats" && len(GetString(NatsURLKey)) == 0 {
		return fmt.Errorf("nats url must not be null")
	}

	port := GetInt(PortKey)
	if port < minPort || port > maxPort {
		return fmt.Errorf("port must be in range [%d, %d]", minPort, maxPort)
	}
	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		profilerPort := GetInt(ProfilerPortKey)
		if port == profilerPort {
			return fmt.Errorf("port and profiler port must not be equal")
		}
	}

	for _, key := range []string{PrimarySecretKey, SecondarySecretKey} {
		if secret := GetString(key); len(secret) > 0 {
			if _, err := keypair.ParseFull(secret); err != nil {
				return fmt.Errorf("invalid %s", strings.ToLower(key))
			}
		}
	}
	if receiver := GetString(ReceiverAddressKey); len(receiver) > 0 {
		if _, err := keypair.ParseAddress(receiver); err != nil {
			return fmt.Errorf("invalid receiver address")
		}
	}

	amount, err := decimal.NewFromString(GetString(PaymentAmountKey))
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("payment amount must be a positive decimal")
	}

	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

// GetHorizonURL returns the configured Horizon server, or the public one of
// the configured network.
func GetHorizonURL() string {
	if url := GetString(HorizonURLKey); url != "" {
		return url
	}
	return horizonURLByNetwork[GetString(NetworkKey)]
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if noProfiler {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
