package cli

import (
	"context"
	"fmt"

	"cvmatch/internal/ai"
	"cvmatch/internal/common"
	"cvmatch/internal/impact"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract a structured profile from a CV or job posting",
	Long: `Extract the formation, skills, experiences and header of a CV or a job
posting. The file may be plain text, Markdown, PDF (first page) or DOCX.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: resolveFormat(&extractConfig),
	RunE:    runExtract,
}

var (
	extractConfig common.CommandConfig
	extractKind   string
)

func init() {
	addOutputFlags(extractCmd, &extractConfig)
	extractCmd.Flags().StringVar(&extractKind, "kind", string(types.KindCV), "Document kind: cv or job")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	kind, err := types.ParseProfileKind(extractKind)
	if err != nil {
		return err
	}

	aiService, err := ai.NewService(cfg, impact.NewTracker(nil), logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	createInput := func(_ context.Context, texts []string) (types.ExtractProfileInput, error) {
		return types.ExtractProfileInput{Text: texts[0], Kind: kind}, nil
	}

	logDetails := func(input types.ExtractProfileInput, cc common.CommandConfig) {
		logger.Info("Starting profile extraction",
			"kind", input.Kind,
			"chars", len(input.Text),
			"output_format", cc.OutputFormat)
	}

	extract := func(ctx context.Context, input types.ExtractProfileInput) (types.StructuredProfile, *ai.TokenUsage, error) {
		return aiService.ExtractProfile(ctx, input.Text, input.Kind)
	}

	if err := common.RunAICommand(cmd.Context(), logger, cfg.App.MaxFileSize, extractConfig, args,
		createInput, extract, logDetails); err != nil {
		return fmt.Errorf("failed to extract profile: %w", err)
	}
	logger.Info("Profile extraction completed successfully")
	return nil
}
