package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "PMP_CONFIG_FILE"
	envPrefix         = "PMP"
)

const (
	NotifierSNS   = "sns"
	NotifierKafka = "kafka"
)

var ErrInvalidConfig = errors.New("invalid config")

type Catalog struct {
	Name             string        `mapstructure:"name"`
	Region           string        `mapstructure:"region"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts  int           `mapstructure:"poll_max_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
}

type CrossAccount struct {
	SessionName string        `mapstructure:"session_name"`
	Duration    time.Duration `mapstructure:"duration"`
}

type TLS struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

func (t TLS) Enabled() bool {
	return t.CA != "" || t.Cert != "" || t.Key != ""
}

type Notifier struct {
	Kind               string   `mapstructure:"kind"`
	SeedBrokers        []string `mapstructure:"seed_brokers"`
	Topic              string   `mapstructure:"topic"`
	SchemaRegistryURLs []string `mapstructure:"schema_registry_urls"`
	TLS                TLS      `mapstructure:"tls"`
}

type Config struct {
	LogLevel     slog.Level   `mapstructure:"log_level"`
	Region       string       `mapstructure:"region"`
	SSMPrefix    string       `mapstructure:"ssm_prefix"`
	Catalog      Catalog      `mapstructure:"catalog"`
	CrossAccount CrossAccount `mapstructure:"cross_account"`
	Notifier     Notifier     `mapstructure:"notifier"`
}

// Load reads the config file given by --config or PMP_CONFIG_FILE, if
// any, and applies environment overrides. It exits the process on error.
func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile is Load with an explicit config file. An empty path reads
// defaults and environment only.
func LoadFile(path string) (Config, error) {
	const op = "config.LoadFile"

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("log_level", "PMP_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("ssm_prefix", "PMP_SSM_PREFIX", "SSM_PREFIX")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")
	v.SetDefault("region", "")
	v.SetDefault("ssm_prefix", "/pmp/")

	v.SetDefault("catalog.name", "AWSMarketplace")
	v.SetDefault("catalog.region", "us-east-1")
	v.SetDefault("catalog.batch_size", 50)
	v.SetDefault("catalog.poll_interval", 5*time.Second)
	v.SetDefault("catalog.poll_max_attempts", 60)
	v.SetDefault("catalog.retry_delay", 30*time.Second)
	v.SetDefault("catalog.retry_max_attempts", -1)

	v.SetDefault("cross_account.session_name", "RoleSessionName")
	v.SetDefault("cross_account.duration", 15*time.Minute)

	v.SetDefault("notifier.kind", NotifierSNS)
	v.SetDefault("notifier.seed_brokers", []string{})
	v.SetDefault("notifier.topic", "pmp-products-updated")
	v.SetDefault("notifier.schema_registry_urls", []string{})
	v.SetDefault("notifier.tls.ca", "")
	v.SetDefault("notifier.tls.cert", "")
	v.SetDefault("notifier.tls.key", "")
}

func (c Config) Validate() error {
	if c.Catalog.BatchSize <= 0 {
		return fmt.Errorf("%w: catalog.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Catalog.RetryMaxAttempts == 0 || c.Catalog.RetryMaxAttempts < -1 {
		return fmt.Errorf(
			"%w: catalog.retry_max_attempts must be positive or -1", ErrInvalidConfig,
		)
	}

	kinds := []string{NotifierSNS, NotifierKafka}
	if !slices.Contains(kinds, c.Notifier.Kind) {
		return fmt.Errorf(
			"%w: notifier.kind %q is not one of %q", ErrInvalidConfig, c.Notifier.Kind, kinds,
		)
	}

	if c.Notifier.Kind == NotifierKafka {
		if len(c.Notifier.SeedBrokers) == 0 || c.Notifier.Topic == "" {
			return fmt.Errorf(
				"%w: kafka notifier requires seed_brokers and topic", ErrInvalidConfig,
			)
		}
		if len(c.Notifier.SchemaRegistryURLs) == 0 {
			return fmt.Errorf(
				"%w: kafka notifier requires schema_registry_urls", ErrInvalidConfig,
			)
		}
	}
	return nil
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cmdLine.ParseErrorsWhitelist.UnknownFlags = true
	arg := cmdLine.String("config", "", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config: %v\n", err)
	os.Exit(2)
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("logLevel", c.LogLevel.String()),
		slog.String("region", c.Region),
		slog.String("ssmPrefix", c.SSMPrefix),
		slog.Group("catalog",
			slog.String("name", c.Catalog.Name),
			slog.String("region", c.Catalog.Region),
			slog.Int("batchSize", c.Catalog.BatchSize),
			slog.Duration("pollInterval", c.Catalog.PollInterval),
			slog.Int("pollMaxAttempts", c.Catalog.PollMaxAttempts),
			slog.Duration("retryDelay", c.Catalog.RetryDelay),
			slog.Int("retryMaxAttempts", c.Catalog.RetryMaxAttempts),
		),
		slog.Group("crossAccount",
			slog.String("sessionName", c.CrossAccount.SessionName),
			slog.Duration("duration", c.CrossAccount.Duration),
		),
		slog.Group("notifier",
			slog.String("kind", c.Notifier.Kind),
			slog.Any("seedBrokers", c.Notifier.SeedBrokers),
			slog.String("topic", c.Notifier.Topic),
			slog.Any("schemaRegistryURLs", c.Notifier.SchemaRegistryURLs),
			slog.Bool("tls", c.Notifier.TLS.Enabled()),
		),
	)
}
