// Package config loads the bridger configuration from YAML, .env files and the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/ClipFinance/stargate-bridger/scheduler"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvKeysFile     = "BRIDGER_KEYS_FILE"
	EnvLogLevel     = "BRIDGER_LOG_LEVEL"
	EnvRPCPrefix    = "BRIDGER_RPC_"
	EnvJournalDSN   = "BRIDGER_JOURNAL_DSN"
	EnvKafkaBrokers = "BRIDGER_KAFKA_BROKERS"
)

const (
	// DefaultKeysFile is read when no key file is configured.
	DefaultKeysFile = "private_keys.txt"
	// maxAmountDecimals bounds amount_precision so random amounts stay exact in int64 steps.
	maxAmountDecimals = 6
)

// LoggingConfig selects the log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file"`   // optional append-mode log file
}

// WalletsConfig locates the key file.
type WalletsConfig struct {
	KeysFile string `yaml:"keys_file"`
}

// BridgeConfig tunes every bridging leg.
type BridgeConfig struct {
	AmountMin       float64       `yaml:"amount_min"`
	AmountMax       float64       `yaml:"amount_max"`
	AmountPrecision uint8         `yaml:"amount_precision"`
	Slippage        float64       `yaml:"slippage"`
	ApproveGasLimit uint64        `yaml:"approve_gas_limit"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	StartJitterMin  time.Duration `yaml:"start_jitter_min"`
	StartJitterMax  time.Duration `yaml:"start_jitter_max"`
	StopIfZero      bool          `yaml:"stop_if_zero"`
	Repeat          int           `yaml:"repeat"`
	RecorderTimeout time.Duration `yaml:"recorder_timeout"`
}

// PollerConfig tunes the wait for funds.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	LogEvery int           `yaml:"log_every"`
}

// RotationStep is one leg of the rotation plan.
type RotationStep struct {
	Route    string        `yaml:"route"`
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`
}

// RPCConfig is applied to every chain client.
type RPCConfig struct {
	RateLimit           float64       `yaml:"rate_limit"`
	Burst               int           `yaml:"burst"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `yaml:"receipt_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// RefuelConfig tunes native refuel.
type RefuelConfig struct {
	USDAmount      float64       `yaml:"usd_amount"`
	LimitsURL      string        `yaml:"limits_url"`
	PriceURL       string        `yaml:"price_url"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
}

// BalancesConfig tunes the balance report.
type BalancesConfig struct {
	Concurrency int     `yaml:"concurrency"`
	Dust        float64 `yaml:"dust"`
}

// ServerConfig enables the status API.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JournalConfig enables the postgres leg journal.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// KafkaConfig enables leg events.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Config is the whole configuration of a run.
type Config struct {
	Logging  LoggingConfig                    `yaml:"logging"`
	Wallets  WalletsConfig                    `yaml:"wallets"`
	Bridge   BridgeConfig                     `yaml:"bridge"`
	Poller   PollerConfig                     `yaml:"poller"`
	Rotation []RotationStep                   `yaml:"rotation"`
	RPC      RPCConfig                        `yaml:"rpc"`
	Chains   map[string]chainmanager.Override `yaml:"chains"`
	Refuel   RefuelConfig                     `yaml:"refuel"`
	Balances BalancesConfig                   `yaml:"balances"`
	Server   ServerConfig                     `yaml:"server"`
	Journal  JournalConfig                    `yaml:"journal"`
	Kafka    KafkaConfig                      `yaml:"kafka"`
}

// Load reads the configuration.
//
// A .env file in the working directory is loaded first if present. An empty path
// skips the YAML file and yields the defaults with environment overrides.
//
// Parameters:
// - path: the YAML file.
//
// Returns:
// - *Config: the validated configuration.
// - error: ErrInvalidConfig wrapped with the offending field.
func Load(path string) (*Config, error) {
	// A missing .env is fine, variables may be set externally.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "failed to parse %s: %v", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvKeysFile); v != "" {
		c.Wallets.KeysFile = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvJournalDSN); v != "" {
		c.Journal.DSN = v
	}
	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	for _, name := range types.AllChainNames {
		v := os.Getenv(EnvRPCPrefix + strings.ToUpper(name.String()))
		if v == "" {
			continue
		}
		if c.Chains == nil {
			c.Chains = make(map[string]chainmanager.Override)
		}
		o := c.Chains[name.String()]
		o.RpcUrl = v
		c.Chains[name.String()] = o
	}
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Wallets.KeysFile == "" {
		c.Wallets.KeysFile = DefaultKeysFile
	}

	b := &c.Bridge
	if b.AmountMin == 0 && b.AmountMax == 0 {
		b.AmountMin, b.AmountMax = 6, 9
	}
	if b.Slippage == 0 {
		b.Slippage = 0.005
	}
	if b.ApproveGasLimit == 0 {
		b.ApproveGasLimit = 150_000
	}
	if b.SettleDelay == 0 {
		b.SettleDelay = 30 * time.Second
	}
	if b.StartJitterMin == 0 && b.StartJitterMax == 0 {
		b.StartJitterMin, b.StartJitterMax = time.Second, 200*time.Second
	}
	if b.Repeat == 0 {
		b.Repeat = 1
	}
	if b.RecorderTimeout == 0 {
		b.RecorderTimeout = scheduler.DefaultRecorderTimeout
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = 30 * time.Second
	}
	if c.Poller.LogEvery == 0 {
		c.Poller.LogEvery = 3
	}

	if len(c.Rotation) == 0 {
		for _, step := range scheduler.DefaultRotation() {
			c.Rotation = append(c.Rotation, RotationStep{
				Route:    step.Route.Code,
				DelayMin: step.DelayAfter.Min,
				DelayMax: step.DelayAfter.Max,
			})
		}
	}

	r := &c.RPC
	if r.RateLimit == 0 {
		r.RateLimit = 10
	}
	if r.Burst == 0 {
		r.Burst = 5
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelay == 0 {
		r.RetryDelay = 500 * time.Millisecond
	}
	if r.ReceiptPollInterval == 0 {
		r.ReceiptPollInterval = 2 * time.Second
	}
	if r.HealthCheckInterval == 0 {
		r.HealthCheckInterval = time.Minute
	}

	f := &c.Refuel
	if f.USDAmount == 0 {
		f.USDAmount = 2
	}
	if f.LimitsURL == "" {
		f.LimitsURL = "https://refuel.socket.tech/chains"
	}
	if f.PriceURL == "" {
		f.PriceURL = "https://min-api.cryptocompare.com/data/price"
	}
	if f.CacheTTL == 0 {
		f.CacheTTL = 5 * time.Minute
	}
	if f.RequestTimeout == 0 {
		f.RequestTimeout = 10 * time.Second
	}
	if f.RateLimit == 0 {
		f.RateLimit = 2
	}

	if c.Balances.Concurrency == 0 {
		c.Balances.Concurrency = 8
	}
	if c.Balances.Dust == 0 {
		c.Balances.Dust = 0.01
	}

	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "bridger.legs"
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = time.Second
	}
}

// Validate checks ranges and references.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, format, args...)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid("logging.format %q", c.Logging.Format)
	}

	b := c.Bridge
	if b.AmountMin <= 0 || b.AmountMax < b.AmountMin {
		return invalid("bridge amount range [%v, %v]", b.AmountMin, b.AmountMax)
	}
	if b.AmountPrecision > maxAmountDecimals {
		return invalid("bridge.amount_precision %d above %d", b.AmountPrecision, maxAmountDecimals)
	}
	if b.Slippage < 0 || b.Slippage >= 1 {
		return invalid("bridge.slippage %v outside [0, 1)", b.Slippage)
	}
	if b.StartJitterMin < 0 || b.StartJitterMax < b.StartJitterMin {
		return invalid("bridge start jitter [%s, %s]", b.StartJitterMin, b.StartJitterMax)
	}
	if b.RecorderTimeout < 0 {
		return invalid("bridge.recorder_timeout %s", b.RecorderTimeout)
	}
	if b.Repeat < 1 {
		return invalid("bridge.repeat %d", b.Repeat)
	}
	if c.Poller.Interval < 0 || c.Poller.Timeout < 0 {
		return invalid("poller durations must not be negative")
	}

	for i, step := range c.Rotation {
		if _, err := route.Parse(step.Route); err != nil {
			return invalid("rotation[%d]: %v", i, err)
		}
		if step.DelayMin < 0 || step.DelayMax < step.DelayMin {
			return invalid("rotation[%d] delay [%s, %s]", i, step.DelayMin, step.DelayMax)
		}
	}
	for name := range c.Chains {
		if _, ok := types.ParseChainName(name); !ok {
			return invalid("chains: unknown chain %q", name)
		}
	}

	if c.RPC.RateLimit < 0 || c.RPC.MaxRetries < 0 {
		return invalid("rpc limits must not be negative")
	}
	if c.Refuel.USDAmount <= 0 {
		return invalid("refuel.usd_amount %v", c.Refuel.USDAmount)
	}
	if c.Balances.Concurrency < 1 {
		return invalid("balances.concurrency %d", c.Balances.Concurrency)
	}
	return nil
}

// Definitions builds the chain table with every override and the RPC settings applied.
func (c *Config) Definitions() (*chainmanager.Definitions, error) {
	defs := chainmanager.DefaultDefinitions()
	defs.SetRPC(types.RPCSettings{
		RateLimit:           c.RPC.RateLimit,
		Burst:               c.RPC.Burst,
		MaxRetries:          c.RPC.MaxRetries,
		RetryDelay:          c.RPC.RetryDelay,
		ReceiptPollInterval: c.RPC.ReceiptPollInterval,
		ReceiptTimeout:      c.RPC.ReceiptTimeout,
		HealthCheckInterval: c.RPC.HealthCheckInterval,
	})
	for name, o := range c.Chains {
		chain, _ := types.ParseChainName(name)
		if err := defs.Apply(chain, o); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// RotationPlan builds the rotation plan from the configured steps.
func (c *Config) RotationPlan() (scheduler.Plan, error) {
	plan := scheduler.Plan{Name: "rotation", Repeat: c.Bridge.Repeat}
	for i, step := range c.Rotation {
		r, err := route.Parse(step.Route)
		if err != nil {
			return scheduler.Plan{}, errors.Wrapf(err, "rotation[%d]", i)
		}
		plan.Steps = append(plan.Steps, scheduler.Step{
			Route:      r,
			DelayAfter: scheduler.DelayRange{Min: step.DelayMin, Max: step.DelayMax},
		})
	}
	return plan, nil
}

// SchedulerOptions maps the bridge section onto scheduler options.
func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		StartJitter: scheduler.DelayRange{Min: c.Bridge.StartJitterMin, Max: c.Bridge.StartJitterMax},
		StopIfZero:  c.Bridge.StopIfZero,
		Amount: scheduler.AmountRange{
			Min:       c.Bridge.AmountMin,
			Max:       c.Bridge.AmountMax,
			Precision: c.Bridge.AmountPrecision,
		},
		RecorderTimeout: c.Bridge.RecorderTimeout,
	}
}
