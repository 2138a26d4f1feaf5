package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/grounding"
	"github.com/spigell/talentcore/internal/indexer"
	"github.com/spigell/talentcore/internal/matching"
	"github.com/spigell/talentcore/internal/rag"
	"github.com/spigell/talentcore/internal/recommend"
	"github.com/spigell/talentcore/internal/server"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "talentcore"
	envPrefix = "TALENTCORE"
)

type Config struct {
	Provider    string               `mapstructure:"provider" validate:"oneof=gemini ollama"`
	Gemini      *GeminiConfig        `mapstructure:"gemini" validate:"required_if=Provider gemini"`
	Ollama      *OllamaConfig        `mapstructure:"ollama" validate:"required_if=Provider ollama"`
	Database    DatabaseConfig       `mapstructure:"database"`
	VectorIndex VectorIndexConfig    `mapstructure:"vector-index"`
	Embedding   EmbeddingConfig      `mapstructure:"embedding"`
	Matching    MatchingConfig       `mapstructure:"matching"`
	Recommend   recommend.Options    `mapstructure:"recommend"`
	Grounding   grounding.Thresholds `mapstructure:"grounding"`
	RAG         rag.Options          `mapstructure:"rag"`
	Analytics   AnalyticsConfig      `mapstructure:"analytics"`
	Indexer     indexer.Options      `mapstructure:"indexer"`
	Server      server.Config        `mapstructure:"server"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding-model"`
	MaxRetries     int           `mapstructure:"max-retries" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
}

type OllamaConfig struct {
	URL            string        `mapstructure:"url" validate:"required,url"`
	Token          string        `mapstructure:"token"`
	TokenFile      string        `mapstructure:"token-file"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding-model"`
	MaxRetries     int           `mapstructure:"max-retries" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig points at the PostgreSQL database holding jobs, candidates,
// knowledge documents, applications and feedback. Without a DSN the service
// runs on empty in-memory stores.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
	Migrate bool   `mapstructure:"migrate"`
}

type VectorIndexConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory pgvector"`
	DSN     string        `mapstructure:"dsn"`
	DSNFile string        `mapstructure:"dsn-file"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	Dimensions           int           `mapstructure:"dimensions" validate:"min=1"`
	CacheSize            int           `mapstructure:"cache-size" validate:"gte=0"`
	CostPerMillionTokens float64       `mapstructure:"cost-per-million-tokens" validate:"gte=0"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

type MatchingConfig struct {
	Policy    matching.Policy `mapstructure:"policy"`
	CacheTTL  time.Duration   `mapstructure:"cache-ttl"`
	CacheSize int             `mapstructure:"cache-size" validate:"gte=0"`
}

type AnalyticsConfig struct {
	Store             string `mapstructure:"store" validate:"oneof=memory postgres sqlite"`
	SQLitePath        string `mapstructure:"sqlite-path" validate:"required_if=Store sqlite"`
	analytics.Options `mapstructure:",squash"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talentcore matches candidates to jobs, recommends jobs and answers questions from a knowledge base",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talentcore.yaml in current directory or $HOME/.config/talentcore)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so the usual overrides are bound explicitly.
	for _, key := range []string{
		"provider",
		"database.dsn",
		"vector-index.backend",
		"vector-index.dsn",
		"ollama.url",
		"analytics.store",
		"analytics.sqlite-path",
		"server.listen",
	} {
		if err := viper.BindEnv(key); err != nil {
			log.Fatalf("binding environment variable for %s: %v", key, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/" + app)
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Only an explicitly requested file is mandatory.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Provider: "gemini",
		VectorIndex: VectorIndexConfig{
			Backend: "memory",
			Timeout: 10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 768,
		},
		Matching: MatchingConfig{
			Policy: matching.DefaultPolicy(),
		},
		Recommend: recommend.DefaultOptions(),
		Grounding: grounding.DefaultThresholds(),
		RAG:       rag.DefaultOptions(),
		Analytics: AnalyticsConfig{Store: "memory"},
		Server:    server.Config{Listen: ":8080"},
	}
}

func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if config.Provider == "gemini" && config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := config.Matching.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("validating matching policy: %w", err)
	}

	return config, nil
}
