package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. STOCKCAST_PORT. The bare names (PORT, GROQ_API_KEY) are read as a fallback.
const EnvPrefix = "STOCKCAST"

// Config is the service configuration. Booleans have no defaults: creasty/defaults
// cannot tell an explicit false from an unset field.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		AllowOrigins    []string      `yaml:"allow_origins" default:"[\"*\"]"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"stockcast.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Forecast struct {
		MaxHorizon int           `yaml:"max_horizon" default:"365" validate:"gt=0"`
		CacheTTL   time.Duration `yaml:"cache_ttl" default:"10m"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"forecast"`
	Artifacts struct {
		Dir           string   `yaml:"dir" default:"models" validate:"required"`
		Symbols       []string `yaml:"symbols" default:"[\"AAPL\",\"GOOGL\",\"MSFT\",\"AMZN\",\"TSLA\"]"`
		ModelPattern  string   `yaml:"model_pattern" default:"{symbol}_lstm_model.json" validate:"contains={symbol}"`
		ScalerPattern string   `yaml:"scaler_pattern" default:"{symbol}_minmax_scaler.json" validate:"contains={symbol}"`
		GenericModel  string   `yaml:"generic_model" default:"stock_lstm_model.json"`
		GenericScaler string   `yaml:"generic_scaler" default:"stock_minmax_scaler.json"`
		Concurrency   int      `yaml:"concurrency" default:"4" validate:"gt=0"`
		RequireAny    bool     `yaml:"require_any"`
	} `yaml:"artifacts"`
	MarketData struct {
		BaseURL         string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		Timeout         time.Duration `yaml:"timeout" default:"10s"`
		RatePerSecond   float64       `yaml:"rate_per_second" default:"2" validate:"gt=0"`
		Burst           int           `yaml:"burst" default:"4"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"1h"`
		DefaultLookback int           `yaml:"default_lookback" default:"250" validate:"gt=0"`
		Breaker         struct {
			MaxRequests  uint32        `yaml:"max_requests" default:"1"`
			Interval     time.Duration `yaml:"interval" default:"60s"`
			Timeout      time.Duration `yaml:"timeout" default:"30s"`
			FailureRatio float64       `yaml:"failure_ratio" default:"0.6" validate:"gt=0,lte=1"`
			MinRequests  uint32        `yaml:"min_requests" default:"5"`
		} `yaml:"breaker"`
	} `yaml:"market_data"`
	Report struct {
		Provider string        `yaml:"provider" default:"groq" validate:"oneof=groq gemini"`
		Timeout  time.Duration `yaml:"timeout" default:"90s"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"30m"`
		Groq     struct {
			BaseURL     string  `yaml:"base_url" default:"https://api.groq.com/openai/v1"`
			APIKey      string  `yaml:"api_key"`
			Model       string  `yaml:"model" default:"llama-3.3-70b-versatile"`
			Temperature float64 `yaml:"temperature" default:"0.3"`
		} `yaml:"groq"`
		Gemini struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model" default:"gemini-2.0-flash"`
		} `yaml:"gemini"`
	} `yaml:"report"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"stockcast"`
	} `yaml:"redis"`
	Cache struct {
		MemorySize int           `yaml:"memory_size" default:"10000" validate:"gt=0"`
		MemoryTTL  time.Duration `yaml:"memory_ttl" default:"5m"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Forecasts string `yaml:"forecasts" default:"stockcast.forecasts"`
			Artifacts string `yaml:"artifacts" default:"stockcast.artifacts"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"stockcast"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Queue struct {
		Workers      int           `yaml:"workers" default:"2"`
		BufferSize   int           `yaml:"buffer_size" default:"64"`
		MaxRetries   int           `yaml:"max_retries" default:"2"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"5s"`
		JobTTL       time.Duration `yaml:"job_ttl" default:"24h"`

		// requeue jobs stranded by a crashed worker; only for a single consumer instance
		RecoverOnStart bool `yaml:"recover_on_start"`
	} `yaml:"queue"`
	RateLimit struct {
		Enabled       bool    `yaml:"enabled"`
		RatePerSecond float64 `yaml:"rate_per_second" default:"10"`
		Burst         int     `yaml:"burst" default:"20"`
	} `yaml:"rate_limit"`
	WebSocket struct {
		MaxMessageBytes int64         `yaml:"max_message_bytes" default:"65536"`
		PingInterval    time.Duration `yaml:"ping_interval" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"websocket"`
}

// envOverrides lists the settings that may be overridden from the environment.
// Unset variables leave the YAML/default value untouched.
type envOverrides struct {
	Environment    *string  `envconfig:"ENVIRONMENT"`
	ServerPort     *int     `envconfig:"PORT"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	ArtifactsDir   *string  `envconfig:"MODEL_DIR"`
	Symbols        []string `envconfig:"SYMBOLS"`
	ReportProvider *string  `envconfig:"REPORT_PROVIDER"`
	GroqAPIKey     *string  `envconfig:"GROQ_API_KEY"`
	GeminiAPIKey   *string  `envconfig:"GEMINI_API_KEY"`
	RedisEnabled   *bool    `envconfig:"REDIS_ENABLED"`
	RedisAddr      *string  `envconfig:"REDIS_ADDR"`
	RedisPassword  *string  `envconfig:"REDIS_PASSWORD"`
	KafkaEnabled   *bool    `envconfig:"KAFKA_ENABLED"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	CHEnabled      *bool    `envconfig:"CLICKHOUSE_ENABLED"`
	CHHost         *string  `envconfig:"CLICKHOUSE_HOST"`
	CHPassword     *string  `envconfig:"CLICKHOUSE_PASSWORD"`
}

// Load reads a YAML file (optional when path is empty), applies defaults, .env and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setString(&c.Environment, env.Environment)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Artifacts.Dir, env.ArtifactsDir)
	setString(&c.Report.Provider, env.ReportProvider)
	setString(&c.Report.Groq.APIKey, env.GroqAPIKey)
	setString(&c.Report.Gemini.APIKey, env.GeminiAPIKey)
	setString(&c.Redis.Addr, env.RedisAddr)
	setString(&c.Redis.Password, env.RedisPassword)
	setString(&c.ClickHouse.Host, env.CHHost)
	setString(&c.ClickHouse.Password, env.CHPassword)
	if env.ServerPort != nil {
		c.Server.Port = *env.ServerPort
	}
	if env.RedisEnabled != nil {
		c.Redis.Enabled = *env.RedisEnabled
	}
	if env.KafkaEnabled != nil {
		c.Kafka.Enabled = *env.KafkaEnabled
	}
	if env.CHEnabled != nil {
		c.ClickHouse.Enabled = *env.CHEnabled
	}
	if len(env.Symbols) > 0 {
		c.Artifacts.Symbols = env.Symbols
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Log.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.collector requires kafka to be enabled")
	}
	return nil
}
