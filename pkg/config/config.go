package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Vector   VectorConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	DSL      DSLConfig
	Upstream UpstreamConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type LLMConfig struct {
	Model          string
	Temperature    float32
	MaxTokens      int
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type VectorConfig struct {
	Endpoint       string
	CollectionName string `mapstructure:"collection_name"`
	Dim            int
	TopK           int `mapstructure:"top_k"`
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type DSLConfig struct {
	Dir string
}

// UpstreamConfig points at the API the generated queries can be executed
// against. Both URLs empty means the execute endpoint is disabled.
type UpstreamConfig struct {
	GraphQLURL  string `mapstructure:"graphql_url"`
	RESTBaseURL string `mapstructure:"rest_base_url"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nl2api")

	viper.SetEnvPrefix("NL2API")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate fails fast on settings that would otherwise surface as a
// mid-request provider error.
func (c *Config) Validate() error {
	if c.LLM.OpenAIAPIKey == "" {
		return errors.New("llm.openai_api_key is not set (config file or NL2API_LLM_OPENAI_API_KEY)")
	}
	if viper.IsSet("chroma.persist_directory") {
		return errors.New("chroma.persist_directory is no longer supported; configure vector.endpoint and vector.collection_name instead")
	}
	if c.Vector.TopK <= 0 {
		return fmt.Errorf("vector.top_k must be positive, got %d", c.Vector.TopK)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")

	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collection_name", "api_dsl")
	viper.SetDefault("vector.dim", 1536)
	viper.SetDefault("vector.top_k", 3)

	viper.SetDefault("sqlite.path", "./data/nl2api.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("dsl.dir", "./generated_dsl")

	viper.SetDefault("upstream.timeout_sec", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
