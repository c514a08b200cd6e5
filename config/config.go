package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the platform.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Language    LanguageConfig    `mapstructure:"language"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Index       IndexConfig       `mapstructure:"index"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig groups database connections.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the Postgres connection.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN assembles a postgres connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig describes the Redis connection used for the ingest stream.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (r RedisConfig) Validate() error {
	if r.Host == "" || r.Port == "" {
		return fmt.Errorf("redis not configured (storage.redis.host/port)")
	}
	return nil
}

// EngineConfig describes the external retrieval engine.
type EngineConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ContextTopK  int           `mapstructure:"context_top_k"`
	AnswerTopK   int           `mapstructure:"answer_top_k"`
	HistoryDepth int           `mapstructure:"history_depth"`
}

func (e EngineConfig) Validate() error {
	if e.BaseURL == "" {
		return fmt.Errorf("retrieval engine not configured (engine.base_url)")
	}
	return nil
}

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the correction model.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// LanguageConfig externalises the language-specific heuristics. The defaults
// target the Norwegian deployment; other languages swap these lists in config.
type LanguageConfig struct {
	Stopwords      []string `mapstructure:"stopwords"`
	Greetings      []string `mapstructure:"greetings"`
	GenericPhrases []string `mapstructure:"generic_phrases"`
}

// AttributionConfig exposes the tunable scoring knobs of the source pipeline.
type AttributionConfig struct {
	SourceLimit        int `mapstructure:"source_limit"`
	HeaderCandidateCap int `mapstructure:"header_candidate_cap"`
	EntityWeight       int `mapstructure:"entity_weight"`
	KeywordWeight      int `mapstructure:"keyword_weight"`
	QueryBonus         int `mapstructure:"query_bonus"`
	MinRelevanceScore  int `mapstructure:"min_relevance_score"`
	ContextSegments    int `mapstructure:"context_segments"`
	CorrectionSources  int `mapstructure:"correction_sources"`
}

// IndexConfig controls the per-organization full-text index.
type IndexConfig struct {
	Path        string `mapstructure:"path"`
	RebuildCron string `mapstructure:"rebuild_cron"`
}

// WorkerConfig controls the transcript ingest worker.
type WorkerConfig struct {
	Stream   string        `mapstructure:"stream"`
	Group    string        `mapstructure:"group"`
	Consumer string        `mapstructure:"consumer"`
	Block    time.Duration `mapstructure:"block"`
}

// LoadConfig reads configuration from a JSON file plus KILDESPOR_* env vars.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":8000")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("engine.timeout", "120s")
	viper.SetDefault("engine.context_top_k", 10)
	viper.SetDefault("engine.answer_top_k", 5)
	viper.SetDefault("engine.history_depth", 10)
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.2)
	viper.SetDefault("providers.openai.timeout", "60s")
	viper.SetDefault("attribution.source_limit", 5)
	viper.SetDefault("attribution.header_candidate_cap", 20)
	viper.SetDefault("attribution.entity_weight", 3)
	viper.SetDefault("attribution.keyword_weight", 1)
	viper.SetDefault("attribution.query_bonus", 2)
	viper.SetDefault("attribution.min_relevance_score", 2)
	viper.SetDefault("attribution.context_segments", 2)
	viper.SetDefault("attribution.correction_sources", 3)
	viper.SetDefault("index.path", "./index")
	viper.SetDefault("index.rebuild_cron", "0 4 * * *")
	viper.SetDefault("worker.stream", "kildespor:transcripts")
	viper.SetDefault("worker.group", "ingest")
	viper.SetDefault("worker.consumer", "worker-1")
	viper.SetDefault("worker.block", "5s")
	viper.SetDefault("language.stopwords", defaultStopwords)
	viper.SetDefault("language.greetings", defaultGreetings)
	viper.SetDefault("language.generic_phrases", defaultGenericPhrases)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			viper.AddConfigPath(exeDir)
			viper.AddConfigPath(filepath.Join(exeDir, ".."))
			viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("KILDESPOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: unmarshal: %v\n", err)
	}
	return &cfg
}

// Norwegian function words the keyword heuristics ignore.
var defaultStopwords = []string{
	"som", "det", "er", "og", "har", "kan", "for", "med", "den", "til",
	"der", "sitt", "sin", "sine", "han", "hun", "de", "en", "et",
	"på", "av", "ved", "om", "i", "jobb", "arbeid", "hva", "hvem",
	"hvor", "hvorfor", "hvordan", "når", "du", "deg", "din", "ditt",
	"meg", "seg", "oss", "dere", "jeg", "vi",
}

var defaultGreetings = []string{
	"hi", "hello", "hej", "hei", "hey", "hallo", "hallo der", "hei der", "heisann",
}

var defaultGenericPhrases = []string{
	"kan hjelpe", "hjelpe deg", "hjelpe deg med", "assist", "help you",
	"hva kan jeg hjelpe", "hva kan jeg hjelpe deg", "hva kan jeg hjelpe deg med",
	"hvordan kan jeg", "hvordan kan jeg hjelpe", "how can i help",
}
