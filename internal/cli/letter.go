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

var letterCmd = &cobra.Command{
	Use:   "letter [cv-file] [job-file]",
	Short: "Write a cover letter for a job posting",
	Long: `Extract the candidate's contact details and write a French cover letter
for the job posting, dated today. The posting is read from job-file or
downloaded with --job-url.`,
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: resolveFormat(&letterConfig),
	RunE:    runLetter,
}

var (
	letterConfig common.CommandConfig
	letterJobURL string
)

func init() {
	addOutputFlags(letterCmd, &letterConfig)
	letterCmd.Flags().StringVar(&letterJobURL, "job-url", "", "Download the job posting from this URL")
}

func runLetter(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	src, err := newJobSource(args, letterJobURL, "")
	if err != nil {
		return err
	}

	tracker := impact.NewTracker(nil)
	aiService, err := ai.NewService(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	createInput := func(ctx context.Context, texts []string) (types.CoverLetterInput, error) {
		job, err := src.resolve(ctx, cfg, logger, texts)
		if err != nil {
			return types.CoverLetterInput{}, err
		}
		return types.CoverLetterInput{CVText: texts[0], JobText: job}, nil
	}

	logDetails := func(input types.CoverLetterInput, cc common.CommandConfig) {
		logger.Info("Starting cover letter generation",
			"cv_chars", len(input.CVText),
			"job_chars", len(input.JobText),
			"output_format", cc.OutputFormat)
	}

	if err := common.RunAICommand(cmd.Context(), logger, cfg.App.MaxFileSize, letterConfig, src.files(args[0]),
		createInput, aiService.GenerateCoverLetter, logDetails); err != nil {
		return fmt.Errorf("failed to generate cover letter: %w", err)
	}

	logger.Info("Cover letter generated successfully", "model_calls", tracker.Calls())
	return nil
}
