package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/content-engine/constants"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Search    SearchConfig    `yaml:"search"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SubmitRateLimit caps job submissions per client per minute; 0 disables it. Needs Redis.
	SubmitRateLimit int `yaml:"submit_rate_limit"`
}

// DatabaseConfig holds job store configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// RedisConfig holds Redis connection settings shared by the Redis job store and the insight cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	JobTTL   time.Duration `yaml:"job_ttl"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CacheInsight caches keyword insight replies in Redis.
	CacheInsight bool `yaml:"cache_insight"`
}

// OracleConfig describes one generation oracle backend.
type OracleConfig struct {
	Name          string        `yaml:"name"`
	Provider      string        `yaml:"provider"` // openai | anthropic | ollama
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Temperature   float32       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	CostPer1K     float64       `yaml:"cost_per_1k"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LLMConfig holds generation oracle configuration
type LLMConfig struct {
	Oracles []OracleConfig `yaml:"oracles"`
	// DefaultChain is the ordered fallback list for single-oracle calls.
	DefaultChain []string `yaml:"default_chain"`
	// Consensus names the oracles fanned out to when consensus drafting is enabled.
	Consensus     []string      `yaml:"consensus"`
	MergeStrategy string        `yaml:"merge_strategy"`
	Summarizer    string        `yaml:"summarizer"`
	OracleTimeout time.Duration `yaml:"oracle_timeout"`
	// InsightOracle backs the keyword insight service; empty uses the default chain head.
	InsightOracle string `yaml:"insight_oracle"`
}

// PipelineConfig holds orchestrator limits
type PipelineConfig struct {
	StageTimeout         time.Duration `yaml:"stage_timeout"`
	PipelineTimeout      time.Duration `yaml:"pipeline_timeout"`
	ReadabilityThreshold float64       `yaml:"readability_threshold"`
	MaxInterlinks        int           `yaml:"max_interlinks"`
}

// JobsConfig holds job manager and worker settings
type JobsConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	QueueSize     int           `yaml:"queue_size"`
	StageEstimate time.Duration `yaml:"stage_estimate"`
}

// SearchConfig configures the HTTP search oracle.
type SearchConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Depth    int           `yaml:"depth"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ArtifactsConfig selects where finished articles are archived.
type ArtifactsConfig struct {
	Dir            string `yaml:"dir"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioSecure    bool   `yaml:"minio_secure"`
}

// CorpusConfig points at the default interlinking corpus.
type CorpusConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
	// FromStore reads the corpus from the SQL content_items table instead of a file.
	FromStore bool `yaml:"from_store"`
}

// TelemetryConfig holds logging and tracing settings
type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	TraceStdout bool   `yaml:"trace_stdout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          string(constants.StoreMemory),
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			JobTTL:   24 * time.Hour,
			CacheTTL: 6 * time.Hour,
		},
		LLM: LLMConfig{
			MergeStrategy: string(constants.MergeLongest),
			OracleTimeout: 90 * time.Second,
		},
		Pipeline: PipelineConfig{
			StageTimeout:         3 * time.Minute,
			PipelineTimeout:      10 * time.Minute,
			ReadabilityThreshold: 60,
			MaxInterlinks:        10,
		},
		Jobs: JobsConfig{
			Concurrency:   4,
			QueueSize:     256,
			StageEstimate: 20 * time.Second,
		},
		Search: SearchConfig{
			Depth:   5,
			Timeout: 20 * time.Second,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// LoadConfig loads configuration: defaults, then the YAML file named by CONFIG_FILE,
// then environment variables (a .env file in the working directory is read first).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "read .env", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse config file "+path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.SubmitRateLimit = getEnvAsInt("SUBMIT_RATE_LIMIT", c.Server.SubmitRateLimit)

	c.Database.Driver = getEnv("JOB_STORE", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.JobTTL = getEnvAsDuration("REDIS_JOB_TTL", c.Redis.JobTTL)
	c.Redis.CacheTTL = getEnvAsDuration("REDIS_CACHE_TTL", c.Redis.CacheTTL)
	c.Redis.CacheInsight = getEnvAsBool("REDIS_CACHE_INSIGHT", c.Redis.CacheInsight)

	c.LLM.Oracles = mergeEnvOracles(c.LLM.Oracles)
	c.LLM.DefaultChain = getEnvAsList("LLM_DEFAULT_CHAIN", c.LLM.DefaultChain)
	c.LLM.Consensus = getEnvAsList("LLM_CONSENSUS", c.LLM.Consensus)
	c.LLM.MergeStrategy = getEnv("LLM_MERGE_STRATEGY", c.LLM.MergeStrategy)
	c.LLM.Summarizer = getEnv("LLM_SUMMARIZER", c.LLM.Summarizer)
	c.LLM.OracleTimeout = getEnvAsDuration("LLM_ORACLE_TIMEOUT", c.LLM.OracleTimeout)
	c.LLM.InsightOracle = getEnv("LLM_INSIGHT_ORACLE", c.LLM.InsightOracle)

	c.Pipeline.StageTimeout = getEnvAsDuration("STAGE_TIMEOUT", c.Pipeline.StageTimeout)
	c.Pipeline.PipelineTimeout = getEnvAsDuration("PIPELINE_TIMEOUT", c.Pipeline.PipelineTimeout)
	c.Pipeline.ReadabilityThreshold = getEnvAsFloat64("READABILITY_THRESHOLD", c.Pipeline.ReadabilityThreshold)
	c.Pipeline.MaxInterlinks = getEnvAsInt("MAX_INTERLINKS", c.Pipeline.MaxInterlinks)

	c.Jobs.Concurrency = getEnvAsInt("JOBS_CONCURRENCY", c.Jobs.Concurrency)
	c.Jobs.QueueSize = getEnvAsInt("JOBS_QUEUE_SIZE", c.Jobs.QueueSize)
	c.Jobs.StageEstimate = getEnvAsDuration("JOBS_STAGE_ESTIMATE", c.Jobs.StageEstimate)

	c.Search.Endpoint = getEnv("SEARCH_ENDPOINT", c.Search.Endpoint)
	c.Search.APIKey = getEnv("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.Depth = getEnvAsInt("SEARCH_DEPTH", c.Search.Depth)
	c.Search.Timeout = getEnvAsDuration("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Artifacts.Dir = getEnv("ARTIFACT_DIR", c.Artifacts.Dir)
	c.Artifacts.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.Artifacts.MinioEndpoint)
	c.Artifacts.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.Artifacts.MinioAccessKey)
	c.Artifacts.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.Artifacts.MinioSecretKey)
	c.Artifacts.MinioBucket = getEnv("MINIO_BUCKET", c.Artifacts.MinioBucket)
	c.Artifacts.MinioSecure = getEnvAsBool("MINIO_SECURE", c.Artifacts.MinioSecure)

	c.Corpus.File = getEnv("CORPUS_FILE", c.Corpus.File)
	c.Corpus.Watch = getEnvAsBool("CORPUS_WATCH", c.Corpus.Watch)
	c.Corpus.FromStore = getEnvAsBool("CORPUS_FROM_STORE", c.Corpus.FromStore)

	c.Telemetry.LogLevel = getEnv("LOG_LEVEL", c.Telemetry.LogLevel)
	c.Telemetry.LogFormat = getEnv("LOG_FORMAT", c.Telemetry.LogFormat)
	c.Telemetry.TraceStdout = getEnvAsBool("TRACE_STDOUT", c.Telemetry.TraceStdout)
}

// mergeEnvOracles adds one oracle per provider whose credentials are present in the
// environment, unless an oracle with that name is already configured.
func mergeEnvOracles(existing []OracleConfig) []OracleConfig {
	have := make(map[string]int, len(existing))
	for i, o := range existing {
		have[o.Name] = i
	}
	upsert := func(o OracleConfig) {
		if i, ok := have[o.Name]; ok {
			if existing[i].APIKey == "" {
				existing[i].APIKey = o.APIKey
			}
			return
		}
		have[o.Name] = len(existing)
		existing = append(existing, o)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		upsert(OracleConfig{
			Name:          "openai",
			Provider:      "openai",
			APIKey:        key,
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:   getEnvAsFloat32("OPENAI_TEMPERATURE", 0.7),
			CostPer1K:     getEnvAsFloat64("OPENAI_COST_PER_1K", 0.0006),
			RatePerMinute: getEnvAsInt("OPENAI_RATE_PER_MINUTE", 0),
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		upsert(OracleConfig{
			Name:          "anthropic",
			Provider:      "anthropic",
			APIKey:        key,
			BaseURL:       getEnv("ANTHROPIC_BASE_URL", ""),
			Model:         getEnv("CLAUDE_MODEL", "claude-3-5-sonnet-20240620"),
			Temperature:   getEnvAsFloat32("ANTHROPIC_TEMPERATURE", 0.7),
			CostPer1K:     getEnvAsFloat64("ANTHROPIC_COST_PER_1K", 0.003),
			RatePerMinute: getEnvAsInt("ANTHROPIC_RATE_PER_MINUTE", 0),
		})
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
		upsert(OracleConfig{
			Name:     "ollama",
			Provider: "ollama",
			BaseURL:  base,
			Model:    getEnv("OLLAMA_MODEL", "llama3.1"),
		})
	}
	return existing
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch constants.StoreDriver(c.Database.Driver) {
	case constants.StoreMemory:
	case constants.StorePostgres, constants.StoreSQLite:
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the "+c.Database.Driver+" job store", ErrInvalidInput)
		}
	case constants.StoreRedis:
		if c.Redis.Addr == "" {
			return NewAppError("CONFIG_ERROR", "REDIS_ADDR is required for the redis job store", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown JOB_STORE %q", c.Database.Driver), ErrInvalidInput)
	}
	if len(c.LLM.Oracles) == 0 {
		return NewAppError("CONFIG_ERROR", "at least one oracle is required (set OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_BASE_URL)", ErrInvalidInput)
	}
	names := make(map[string]struct{}, len(c.LLM.Oracles))
	for _, o := range c.LLM.Oracles {
		if o.Name == "" {
			return NewAppError("CONFIG_ERROR", "oracle name is required", ErrInvalidInput)
		}
		if _, dup := names[o.Name]; dup {
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("duplicate oracle %q", o.Name), ErrInvalidInput)
		}
		names[o.Name] = struct{}{}
	}
	for _, list := range [][]string{c.LLM.DefaultChain, c.LLM.Consensus} {
		for _, n := range list {
			if _, ok := names[n]; !ok {
				return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown oracle %q", n), ErrInvalidInput)
			}
		}
	}
	if _, ok := constants.ParseMergeStrategy(c.LLM.MergeStrategy); !ok {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_MERGE_STRATEGY %q", c.LLM.MergeStrategy), ErrInvalidInput)
	}
	if c.Jobs.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "JOBS_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Pipeline.PipelineTimeout > 0 && c.Pipeline.StageTimeout > c.Pipeline.PipelineTimeout {
		return NewAppError("CONFIG_ERROR", "STAGE_TIMEOUT must not exceed PIPELINE_TIMEOUT", ErrInvalidInput)
	}
	return nil
}
