package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/util"
)

// ModelSpec locates one pretrained model.
// Kind "native" reads Path from disk, kind "remote" posts to URL.
type ModelSpec struct {
	Kind string `yaml:"kind" default:"native"`
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`

		// TrustedProxies may set X-Forwarded-For; empty means the peer address is the client.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`
	Log struct {
		Level        string `yaml:"level" default:"info"`
		Format       string `yaml:"format" default:"console"`
		Output       string `yaml:"output" default:"stdout"`
		CollectTopic string `yaml:"collect_topic"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/prometheus"`
	} `yaml:"metrics"`
	Forecast struct {
		Symbol          string  `yaml:"symbol" default:"ETH/USDT"`
		Timeframe       string  `yaml:"timeframe" default:"1h"`
		SeqLen          int     `yaml:"seq_len" default:"168"`
		HistoryMargin   int     `yaml:"history_margin" default:"5"`
		FetchLimit      int     `yaml:"fetch_limit" default:"500"`
		DefaultHorizons string  `yaml:"default_horizons" default:"1,10,24,48,72"`
		MaxHorizonHours int     `yaml:"max_horizon_hours" default:"720"`
		ReuseTrajectory bool    `yaml:"reuse_trajectory"`
		RateCapacity    float64 `yaml:"rate_capacity" default:"10"`
		RateRefill      float64 `yaml:"rate_refill_per_sec" default:"1"`
	} `yaml:"forecast"`
	Models struct {
		Dir      string        `yaml:"dir" default:"models"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		Tabular  ModelSpec     `yaml:"tabular"`
		Sequence ModelSpec     `yaml:"sequence"`
		Meta     ModelSpec     `yaml:"meta"`
	} `yaml:"models"`
	Exchange struct {
		Source  string `yaml:"source" default:"binance"`
		Binance struct {
			BaseURL           string        `yaml:"base_url"`
			APIKey            string        `yaml:"api_key"`
			SecretKey         string        `yaml:"secret_key"`
			RequestsPerMinute int           `yaml:"requests_per_minute" default:"600"`
			Timeout           time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"binance"`
		Stream struct {
			Enabled        bool          `yaml:"enabled"`
			URL            string        `yaml:"url" default:"wss://stream.binance.com:9443/ws"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
			StaleAfter     time.Duration `yaml:"stale_after" default:"2m"`

			// Persist writes finished live candles to ClickHouse.
			Persist       bool          `yaml:"persist"`
			BatchSize     int           `yaml:"batch_size" default:"10"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			BufferSize    int           `yaml:"buffer_size" default:"1000"`
		} `yaml:"stream"`
	} `yaml:"exchange"`
	Reference struct {
		MetricsPath    string `yaml:"metrics_path" default:"data/metrics_eth.csv"`
		EvalSeriesPath string `yaml:"eval_series_path" default:"data/eval_series_eth.csv"`
	} `yaml:"reference"`
	Cache struct {
		Type       string        `yaml:"type" default:"memory"`
		TTL        time.Duration `yaml:"ttl" default:"1m"`
		MemorySize int           `yaml:"memory_size" default:"1000"`
		Redis      struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"forecaster"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Backend struct {
		Type string `yaml:"type" default:"none"`
	} `yaml:"backend"`
	Archive struct {
		Consume bool `yaml:"consume"`
	} `yaml:"archive"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"forecasts"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"forecast-archive"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		CandlesTable     string        `yaml:"candles_table" default:"candles"`
		ForecastsTable   string        `yaml:"forecasts_table" default:"forecasts"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file. Zero fields take their
// default tag value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.overrideFromEnv()
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) overrideFromEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)
	if v := os.Getenv("FORECAST_SYMBOL"); v != "" {
		c.Forecast.Symbol = v
	}
	if v := os.Getenv("FORECAST_TIMEFRAME"); v != "" {
		c.Forecast.Timeframe = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Exchange.Binance.SecretKey = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			c.Cache.Redis.Host = host
			c.Cache.Redis.Port = util.ParseIntDefault(port, c.Cache.Redis.Port)
		}
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply config defaults: %w", err)
	}
	for _, m := range []struct {
		spec *ModelSpec
		file string
		name string
	}{
		{&c.Models.Tabular, "lgbm.json", "lgbm"},
		{&c.Models.Sequence, "gru.json", "gru"},
		{&c.Models.Meta, "meta.json", "meta"},
	} {
		if m.spec.Path == "" {
			m.spec.Path = filepath.Join(c.Models.Dir, m.file)
		}
		if m.spec.Name == "" {
			m.spec.Name = m.name
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Forecast.Symbol == "" {
		return fmt.Errorf("forecast.symbol is required")
	}
	if _, err := repository.Timeframe(c.Forecast.Timeframe).Hours(); err != nil {
		return fmt.Errorf("forecast.timeframe: %w", err)
	}
	if _, err := xhttp.ParseCIDRs(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if c.Forecast.SeqLen <= 0 {
		return fmt.Errorf("forecast.seq_len must be positive")
	}
	if c.Forecast.FetchLimit < c.Forecast.SeqLen+c.Forecast.HistoryMargin {
		return fmt.Errorf("forecast.fetch_limit %d cannot cover seq_len %d + margin %d",
			c.Forecast.FetchLimit, c.Forecast.SeqLen, c.Forecast.HistoryMargin)
	}
	for name, m := range map[string]ModelSpec{
		"tabular": c.Models.Tabular, "sequence": c.Models.Sequence, "meta": c.Models.Meta,
	} {
		switch m.Kind {
		case "native":
		case "remote":
			if m.URL == "" {
				return fmt.Errorf("models.%s.url is required for remote models", name)
			}
		default:
			return fmt.Errorf("models.%s.kind must be 'native' or 'remote', got '%s'", name, m.Kind)
		}
	}
	switch c.Exchange.Source {
	case "binance", "clickhouse":
	default:
		return fmt.Errorf("exchange.source must be 'binance' or 'clickhouse', got '%s'", c.Exchange.Source)
	}
	switch c.Cache.Type {
	case "none", "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.type must be one of none, memory, redis, layered; got '%s'", c.Cache.Type)
	}
	switch c.Backend.Type {
	case "none", "kafka", "clickhouse":
	default:
		return fmt.Errorf("backend.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if (c.Backend.Type == "kafka" || c.Archive.Consume || c.Log.CollectTopic != "") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	return nil
}
