package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Source  SourceConfig
	Ingest  IngestConfig
	Status  StatusConfig
	LLM     LLMConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Zilliz  ZillizConfig
	Neo4j   Neo4jConfig
	Notify  NotifyConfig
	Server  ServerConfig
	Logging LoggingConfig
}

// SourceConfig points at the National Assembly open API.
type SourceConfig struct {
	BaseURL           string
	APIKey            string
	BillEndpoint      string
	ProposerEndpoint  string
	Age               int
	TimeoutSec        int
	RequestsPerSecond float64
}

type IngestConfig struct {
	BackfillSize      int
	RefreshSize       int
	IntervalSec       int
	ProposerBatchSize int
	FallbackProposer  string
	DefaultCommittee  string
	DefaultStatus     string
	DefaultDate       string
}

type StatusConfig struct {
	LinkTemplate string
}

type LLMConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	Temperature         float32
	SummaryMaxTokens    int
	PredictionMaxTokens int
	TermMaxTokens       int
	TimeoutSec          int
	EmbeddingModel      string
	EmbeddingDim        int
	EmbeddingTimeoutSec int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Password        string
	DB              int
	EmbeddingTTLSec int
}

type ZillizConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

// NotifyConfig configures the recommendation cache refresh hook. An empty
// URL disables it.
type NotifyConfig struct {
	RecommendURL string
	TimeoutSec   int
}

type ServerConfig struct {
	Enabled       bool
	Host          string
	Port          int
	ReadTimeout   int
	WriteTimeout  int
	TriggerPerMin int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (c IngestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c RedisConfig) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbeddingTTLSec) * time.Second
}

func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from the default search
// locations when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/billpipe")
	}

	v.SetEnvPrefix("BILLPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Ingest.BackfillSize <= 0 || c.Ingest.RefreshSize <= 0 {
		return fmt.Errorf("ingest page sizes must be positive")
	}
	if c.Ingest.IntervalSec <= 0 {
		return fmt.Errorf("ingest.intervalSec must be positive")
	}
	if c.LLM.EmbeddingDim <= 0 {
		return fmt.Errorf("llm.embeddingDim must be positive")
	}
	if c.Zilliz.Enabled && c.Zilliz.VectorDim != c.LLM.EmbeddingDim {
		return fmt.Errorf("zilliz.vectorDim (%d) must match llm.embeddingDim (%d)", c.Zilliz.VectorDim, c.LLM.EmbeddingDim)
	}
	if !strings.Contains(c.Status.LinkTemplate, "%s") {
		return fmt.Errorf("status.linkTemplate must contain %%s")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.baseURL", "https://open.assembly.go.kr/portal/openapi")
	v.SetDefault("source.apiKey", "")
	v.SetDefault("source.billEndpoint", "nzmimeepazxkubdpn")
	v.SetDefault("source.proposerEndpoint", "nwvrqwxyaytdsfvhu")
	v.SetDefault("source.age", 22)
	v.SetDefault("source.timeoutSec", 20)
	v.SetDefault("source.requestsPerSecond", 2.0)

	v.SetDefault("ingest.backfillSize", 200)
	v.SetDefault("ingest.refreshSize", 10)
	v.SetDefault("ingest.intervalSec", 10800)
	v.SetDefault("ingest.proposerBatchSize", 300)
	v.SetDefault("ingest.fallbackProposer", "기타")
	v.SetDefault("ingest.defaultCommittee", "미정")
	v.SetDefault("ingest.defaultStatus", "미정")
	v.SetDefault("ingest.defaultDate", "2000-01-01")

	v.SetDefault("status.linkTemplate", "https://likms.assembly.go.kr/bill/billDetail.do?billId=%s")

	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.summaryMaxTokens", 800)
	v.SetDefault("llm.predictionMaxTokens", 800)
	v.SetDefault("llm.termMaxTokens", 500)
	v.SetDefault("llm.timeoutSec", 20)
	v.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	v.SetDefault("llm.embeddingDim", 1536)
	v.SetDefault("llm.embeddingTimeoutSec", 15)

	v.SetDefault("sqlite.path", "./data/billpipe.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embeddingTTLSec", 86400)

	v.SetDefault("zilliz.enabled", false)
	v.SetDefault("zilliz.endpoint", "localhost:19530")
	v.SetDefault("zilliz.collectionName", "bills")
	v.SetDefault("zilliz.vectorDim", 1536)

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("notify.recommendURL", "")
	v.SetDefault("notify.timeoutSec", 5)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 600)
	v.SetDefault("server.triggerPerMin", 6)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
