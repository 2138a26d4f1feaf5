package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spigell/talentcore/internal/logger"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// setup builds the logger, loads the config and wires the application.
// Every failure here is fatal for a command.
func setup(ctx context.Context, command string) (*application, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the "+app, zap.String("command", command), zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	application, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring components", zap.Error(err))
	}

	return application, logger
}

func redacted(config *Config) Config {
	out := *config
	if out.Gemini != nil {
		gemini := *out.Gemini
		gemini.APIKey = mask(gemini.APIKey)
		out.Gemini = &gemini
	}
	if out.Ollama != nil {
		ollama := *out.Ollama
		ollama.Token = mask(ollama.Token)
		out.Ollama = &ollama
	}
	out.Database.DSN = mask(out.Database.DSN)
	out.VectorIndex.DSN = mask(out.VectorIndex.DSN)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
