package cli

import (
	"context"
	"fmt"

	"cvmatch/internal/ai"
	"cvmatch/internal/common"
	"cvmatch/internal/impact"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [cv-file]",
	Short: "Extract contact details from a CV",
	Long: `Extract the name, email, phone number and address of the candidate.
Fields that cannot be found are reported as "Non renseigné".`,
	Args:    cobra.ExactArgs(1),
	PreRunE: resolveFormat(&infoConfig),
	RunE:    runInfo,
}

var infoConfig common.CommandConfig

func init() {
	addOutputFlags(infoCmd, &infoConfig)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	aiService, err := ai.NewService(cfg, impact.NewTracker(nil), logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	createInput := func(_ context.Context, texts []string) (string, error) {
		return texts[0], nil
	}

	if err := common.RunAICommand(cmd.Context(), logger, cfg.App.MaxFileSize, infoConfig, args,
		createInput, aiService.ExtractPersonalInfo, nil); err != nil {
		return fmt.Errorf("failed to extract personal information: %w", err)
	}
	return nil
}
