package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spigell/job-agent/internal/logger"
	"github.com/spigell/job-agent/internal/profile"
	"github.com/spigell/job-agent/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var assessCmd = &cobra.Command{
	Use:   "assess <user-id> <job-description-file>",
	Short: "Assess how well a saved profile fits a job description",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		assess(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().BoolP("cover-letter", "c", false, "also generate a short cover letter snippet")
}

func assess(cmd *cobra.Command, userID, jobFile string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-file"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	fileStore, err := store.NewFileStore(config.Storage.Root, logger)
	if err != nil {
		logger.Fatal("preparing the storage root", zap.Error(err))
	}

	record, err := fileStore.LoadProfile(userID)
	if err != nil {
		logger.Fatal("loading profile", zap.Error(err))
	}
	if record == nil {
		logger.Fatal("no saved profile for user", zap.String("user_id", userID))
	}

	jobDescription, err := os.ReadFile(jobFile)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai generator", zap.Error(err))
	}

	assessor := profile.NewAssessor(generator, config.AI.MinimumFitScore, config.AI.Gemini.MaxLogLength, logger)

	assessment, err := assessor.Evaluate(ctx, record.Analysis, record.Preferences, string(jobDescription))
	if err != nil {
		logger.Fatal("evaluating fit", zap.Error(err))
	}

	logger.Info("fit assessment",
		zap.Bool("fit", assessment.Fit),
		zap.Float64("score", assessment.Score),
		zap.String("justification", assessment.Justification),
	)

	if cmd.Flag("cover-letter").Value.String() != "true" {
		return
	}

	snippet, err := assessor.CoverLetterSnippet(ctx, record.Analysis, record.Preferences, string(jobDescription))
	if err != nil {
		logger.Fatal("generating cover letter snippet", zap.Error(err))
	}

	logger.Info("cover letter snippet", zap.String("text", snippet))
}
