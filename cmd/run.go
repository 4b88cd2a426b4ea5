package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spigell/job-agent/internal/ai/gemini"
	"github.com/spigell/job-agent/internal/conversation"
	"github.com/spigell/job-agent/internal/document"
	"github.com/spigell/job-agent/internal/jobboard"
	"github.com/spigell/job-agent/internal/logger"
	"github.com/spigell/job-agent/internal/profile"
	"github.com/spigell/job-agent/internal/secrets"
	"github.com/spigell/job-agent/internal/store"
	"github.com/spigell/job-agent/internal/telegram"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the job-agent bot",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run is the main command for the bot.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-file"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-agent", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	token, err := secrets.Load(secrets.Source{
		Name: "telegram token",
		File: config.Telegram.TokenFile,
		Env:  "TELEGRAM_TOKEN",
	})
	if err != nil {
		logger.Fatal(
			"loading telegram token",
			zap.Error(err),
			zap.String("hint", "set TELEGRAM_TOKEN_FILE environment variable or the 'telegram.token-file' key in the configuration file"),
		)
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai generator", zap.Error(err))
	}

	fileStore, err := store.NewFileStore(config.Storage.Root, logger)
	if err != nil {
		logger.Fatal("preparing the storage root", zap.Error(err))
	}

	bot, err := telegram.NewBot(token, logger)
	if err != nil {
		logger.Fatal("creating the telegram bot", zap.Error(err))
	}

	analyzer := profile.NewAnalyzer(generator, logger, config.AI.Gemini.MaxLogLength)
	extractor := document.NewExtractor(logger)

	manager := conversation.NewManager(extractor, analyzer, fileStore, jobboard.Unimplemented{}, bot, logger)
	bot.SetManager(manager)

	if err := bot.Run(ctx); err != nil {
		logger.Fatal("running the telegram bot", zap.Error(err))
	}
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxLogLength, genLogger)
}
