package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"prod"`
	Polling PollingConfig `yaml:"polling"`
	Checks  ChecksConfig  `yaml:"checks"`
	Sender  SenderConfig  `yaml:"sender"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Health  HealthConfig  `yaml:"health"`
	Log     LogConfig     `yaml:"log"`
}

type PollingConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"60s"`
	Timeout  time.Duration `yaml:"timeout" env-default:"30s"`
}

type SenderConfig struct {
	Type     string         `yaml:"type" env:"SENDER_TYPE" env-default:"statsd"`
	Statsd   StatsdConfig   `yaml:"statsd"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type StatsdConfig struct {
	Address   string   `yaml:"address" env:"DD_DOGSTATSD_ADDRESS" env-default:"127.0.0.1:8125"`
	Namespace string   `yaml:"namespace"`
	Tags      []string `yaml:"tags"`
}

type InfluxDBConfig struct {
	URL    string `yaml:"url" env-default:"http://127.0.0.1:8086"`
	Token  string `yaml:"token" env:"INFLUXDB_TOKEN"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type MQTTConfig struct {
	Broker      string        `yaml:"broker" env-default:"tcp://127.0.0.1:1883"`
	ClientID    string        `yaml:"client_id" env-default:"homechecks"`
	Username    string        `yaml:"username" env:"MQTT_USERNAME"`
	Password    string        `yaml:"password" env:"MQTT_PASSWORD"`
	TopicPrefix string        `yaml:"topic_prefix" env-default:"homechecks"`
	QoS         int           `yaml:"qos"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
}

type HTTPConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token" env:"SENDER_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"60s"`
}

type BufferConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path" env-default:"/var/lib/homechecks/buffer.db"`
	MaxAge  time.Duration `yaml:"max_age" env-default:"24h"`

	// MaxPending is the queue depth above which health turns degraded.
	MaxPending int64 `yaml:"max_pending" env-default:"1000"`
}

type HealthConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

const (
	SenderStatsd     = "statsd"
	SenderPrometheus = "prometheus"
	SenderInfluxDB   = "influxdb"
	SenderMQTT       = "mqtt"
	SenderHTTP       = "http"
	SenderLog        = "log"
)

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Polling.Interval <= 0 {
		errs = append(errs, errors.New("polling.interval must be positive"))
	}
	if c.Polling.Timeout <= 0 {
		errs = append(errs, errors.New("polling.timeout must be positive"))
	}

	if !c.Checks.Cozytouch.Enabled && !c.Checks.Netatmo.Enabled && !c.Checks.SBFspot.Enabled {
		errs = append(errs, errors.New("at least one check must be enabled"))
	}
	errs = append(errs, c.Checks.validate()...)

	switch c.Sender.Type {
	case SenderStatsd, SenderPrometheus, SenderLog:
	case SenderInfluxDB:
		if c.Sender.InfluxDB.Org == "" || c.Sender.InfluxDB.Bucket == "" {
			errs = append(errs, errors.New("sender.influxdb.org and sender.influxdb.bucket are required"))
		}
	case SenderMQTT:
		if c.Sender.MQTT.QoS < 0 || c.Sender.MQTT.QoS > 2 {
			errs = append(errs, errors.New("sender.mqtt.qos must be 0, 1, or 2"))
		}
	case SenderHTTP:
		if c.Sender.HTTP.URL == "" {
			errs = append(errs, errors.New("sender.http.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sender type %q", c.Sender.Type))
	}

	return errors.Join(errs...)
}
