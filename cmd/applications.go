package cmd

import (
	"fmt"
	"log"

	"github.com/spigell/job-agent/internal/logger"
	"github.com/spigell/job-agent/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const PromptBack = "back"

var applicationsCmd = &cobra.Command{
	Use:   "applications <user-id>",
	Short: "Review and update tracked job applications for a user",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		applications(args[0])
	},
}

func init() {
	rootCmd.AddCommand(applicationsCmd)
}

func applications(userID string) {
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

	for {
		records, err := fileStore.ListApplications(userID)
		if err != nil {
			logger.Fatal("listing applications", zap.Error(err))
		}

		if len(records) == 0 {
			logger.Info("exiting", zap.String("reason", "no tracked applications for user"), zap.String("user_id", userID))
			return
		}

		items := make([]string, 0, len(records)+1)
		for _, r := range records {
			label := fmt.Sprintf("%s %s / %s / %s",
				r.JobID, r.Details["title"], r.Details["company"], r.Status,
			)
			items = append(items, label)
		}

		applicationPrompt := promptui.Select{
			Label: "Choose an application and press ENTER",
			Items: append(items, PromptBack),
		}

		index, selected, err := applicationPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if selected == PromptBack {
			return
		}

		record := records[index]

		statusPrompt := promptui.Select{
			Label: fmt.Sprintf("New status for %s (current: %s)", record.JobID, record.Status),
			Items: append(statusLabels(), PromptBack),
		}

		_, statusSelected, err := statusPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if statusSelected == PromptBack {
			continue
		}

		status, err := store.ParseStatus(statusSelected)
		if err != nil {
			logger.Fatal("parsing status", zap.Error(err))
		}

		updated, err := fileStore.UpdateStatus(userID, record.JobID, status)
		if err != nil {
			logger.Fatal("updating status", zap.Error(err))
		}

		if !updated {
			logger.Warn("application disappeared during update", zap.String("job_id", record.JobID))
			continue
		}

		logger.Info("status updated",
			zap.String("job_id", record.JobID),
			zap.String("status", string(status)),
		)
	}
}

func statusLabels() []string {
	statuses := store.Statuses()
	labels := make([]string, 0, len(statuses))
	for _, s := range statuses {
		labels = append(labels, string(s))
	}
	return labels
}
