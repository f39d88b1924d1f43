package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	xutil "AutoEye/pkg/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTO_EYE_"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Log         struct {
		Level      string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string        `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string        `yaml:"output" default:"stdout"`
		Collect    bool          `yaml:"collect"`
		FlushEvery time.Duration `yaml:"flush_every" default:"30s"`
	} `yaml:"log"`
	Engine struct {
		Symbols           []string          `yaml:"symbols" validate:"required,min=1,dive,required"`
		SymbolMap         map[string]string `yaml:"symbol_map"`
		Timeframes        []string          `yaml:"timeframes" default:"[\"M5\"]" validate:"min=1"`
		Elements          []string          `yaml:"elements" default:"[\"fvg\"]" validate:"min=1,dive,oneof=fvg snr rb fractal"`
		OutputDir         string            `yaml:"output_dir" default:"output/auto_eye" validate:"required"`
		HistoryDays       int               `yaml:"history_days" default:"30" validate:"min=1"`
		HistoryBufferDays int               `yaml:"history_buffer_days" default:"5" validate:"min=0"`
		IncrementalBars   int               `yaml:"incremental_bars" default:"500" validate:"min=20"`
		PollSeconds       int               `yaml:"scheduler_poll_seconds" default:"60" validate:"min=10"`
		InitialFullScan   bool              `yaml:"initial_full_scan"`
		LockTTL           time.Duration     `yaml:"lock_ttl" default:"10m"`
		ExportFormat      string            `yaml:"export_format" validate:"omitempty,oneof=csv parquet"`
		BacktestDir       string            `yaml:"backtest_dir"`
		WarmupBars        int               `yaml:"warmup_bars" default:"500" validate:"min=50"`
	} `yaml:"engine"`
	Detectors struct {
		MinGapPoints          float64 `yaml:"min_gap_points" validate:"min=0"`
		RequireDisplacement   bool    `yaml:"require_displacement"`
		DisplacementK         float64 `yaml:"displacement_k" default:"1.5" validate:"gt=0"`
		ATRPeriod             int     `yaml:"atr_period" default:"14" validate:"min=1"`
		MedianBodyPeriod      int     `yaml:"median_body_period" default:"20" validate:"min=1"`
		FillRule              string  `yaml:"fill_rule" default:"both" validate:"oneof=touch full both"`
		SNRDepartureStart     string  `yaml:"snr_departure_start" default:"pivot" validate:"oneof=pivot confirm"`
		SNRIncludeBreakCandle bool    `yaml:"snr_include_break_candle"`
		RBBreakMode           string  `yaml:"rb_break_mode" default:"close" validate:"oneof=close wick"`
	} `yaml:"detectors"`
	Trend struct {
		Timeframe    string `yaml:"timeframe" default:"H1"`
		HistoryLimit int    `yaml:"history_limit" default:"50" validate:"min=1"`
	} `yaml:"trend"`
	Scenario struct {
		ExpiryHours   int  `yaml:"expiry_hours" default:"12" validate:"min=1"`
		TPPreferZones bool `yaml:"tp_prefer_zones" default:"true"`
		RequireTP     bool `yaml:"require_tp"`
	} `yaml:"scenario"`
	Source struct {
		Type           string             `yaml:"type" default:"clickhouse" validate:"oneof=clickhouse parquet"`
		ParquetDir     string             `yaml:"parquet_dir"`
		QuoteTimeframe string             `yaml:"quote_timeframe" default:"M1"`
		PointSizes     map[string]float64 `yaml:"point_sizes"`
	} `yaml:"source"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"30s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" validate:"min=0"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"20" validate:"min=0"`
	} `yaml:"server"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventTopic   string   `yaml:"event_topic" default:"auto_eye.events"`
		LogTopic     string   `yaml:"log_topic" default:"auto_eye.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"market"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		ProposalSink     bool          `yaml:"proposal_sink"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"auto_eye"`
		PoolSize     int           `yaml:"pool_size" default:"10" validate:"min=1"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2" validate:"min=0"`
		LocalTTL     time.Duration `yaml:"local_ttl" default:"5s"`
		LocalSize    int           `yaml:"local_size" default:"1000" validate:"min=1"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads a YAML file over the tag defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes. Keys absent from the document keep their defaults.
func Parse(b []byte) (*Config, error) {
	return parse(b, nil)
}

// LoadWithEnv loads config from YAML and overrides with AUTO_EYE_* environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, os.LookupEnv)
}

func parse(b []byte, lookup func(string) (string, bool)) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if lookup != nil {
		if err := c.applyEnv(lookup); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("SYMBOLS"); ok {
		c.Engine.Symbols = xutil.SplitList(v)
	}
	if v, ok := get("OUTPUT_DIR"); ok {
		c.Engine.OutputDir = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = xutil.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v, ok := get("CLICKHOUSE_HOST"); ok {
		c.ClickHouse.Host = v
	}
	if v, ok := get("CLICKHOUSE_PASSWORD"); ok {
		c.ClickHouse.Password = v
	}
	if v, ok := get("REDIS_HOST"); ok {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v, ok := get("SERVER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_PORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate runs the tag rules and the cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	for _, tf := range c.Engine.Timeframes {
		if !isTimeframe(tf) {
			return fmt.Errorf("engine.timeframes: unknown timeframe %q", tf)
		}
	}
	if !isTimeframe(c.Trend.Timeframe) {
		return fmt.Errorf("trend.timeframe: unknown timeframe %q", c.Trend.Timeframe)
	}
	if c.Source.Type == "parquet" && strings.TrimSpace(c.Source.ParquetDir) == "" {
		return fmt.Errorf("source.parquet_dir is required when source.type is parquet")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.EventTopic == "" {
			return fmt.Errorf("kafka.event_topic is required when kafka is enabled")
		}
	}
	if c.Log.Collect && !c.Kafka.Enabled {
		return fmt.Errorf("log.collect needs kafka.enabled")
	}
	if c.Server.Enabled && c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl cannot be negative")
	}
	return nil
}

// UsesClickHouse reports whether any component needs a ClickHouse connection.
func (c *Config) UsesClickHouse() bool {
	return c.Source.Type == "clickhouse" || c.ClickHouse.ProposalSink
}

var knownTimeframes = map[string]struct{}{
	"M1": {}, "M2": {}, "M3": {}, "M4": {}, "M5": {}, "M6": {}, "M10": {}, "M12": {}, "M15": {},
	"M20": {}, "M30": {}, "H1": {}, "H2": {}, "H3": {}, "H4": {}, "H6": {}, "H8": {}, "H12": {},
	"D1": {}, "W1": {}, "MN1": {},
}

func isTimeframe(tf string) bool {
	_, ok := knownTimeframes[strings.ToUpper(strings.TrimSpace(tf))]
	return ok
}
