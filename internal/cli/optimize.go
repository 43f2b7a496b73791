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

var optimizeCmd = &cobra.Command{
	Use:   "optimize [cv-file] [job-file]",
	Short: "Rewrite a CV to fit a job posting",
	Long: `Rewrite the CV in French with Profil, Formation, Expériences and
Compétences sections, putting forward what the job posting asks for.
The posting is read from job-file, --job-text or --job-url.`,
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: resolveFormat(&optimizeConfig),
	RunE:    runOptimize,
}

var (
	optimizeConfig  common.CommandConfig
	optimizeJobURL  string
	optimizeJobText string
)

func init() {
	addOutputFlags(optimizeCmd, &optimizeConfig)
	optimizeCmd.Flags().StringVar(&optimizeJobURL, "job-url", "", "Download the job posting from this URL")
	optimizeCmd.Flags().StringVar(&optimizeJobText, "job-text", "", "Job posting text")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	src, err := newJobSource(args, optimizeJobURL, optimizeJobText)
	if err != nil {
		return err
	}

	tracker := impact.NewTracker(nil)
	aiService, err := ai.NewService(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	createInput := func(ctx context.Context, texts []string) (types.OptimizeCVInput, error) {
		job, err := src.resolve(ctx, cfg, logger, texts)
		if err != nil {
			return types.OptimizeCVInput{}, err
		}
		return types.OptimizeCVInput{CVText: texts[0], JobText: job}, nil
	}

	logDetails := func(input types.OptimizeCVInput, cc common.CommandConfig) {
		logger.Info("Starting CV optimisation",
			"cv_chars", len(input.CVText),
			"job_chars", len(input.JobText),
			"output_format", cc.OutputFormat)
	}

	if err := common.RunAICommand(cmd.Context(), logger, cfg.App.MaxFileSize, optimizeConfig, src.files(args[0]),
		createInput, aiService.OptimizeCV, logDetails); err != nil {
		return fmt.Errorf("failed to optimize CV: %w", err)
	}

	logger.Info("CV optimized successfully", "model_calls", tracker.Calls())
	return nil
}
