package cli

import (
	"context"
	"fmt"
	"strings"

	"cvmatch/internal/ai"
	"cvmatch/internal/common"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/jobsource"
	"cvmatch/internal/matching"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match [cv-file] [job-file]",
	Short: "Match a CV against a job posting",
	Long: `Extract both profiles, score the formation, skills, experiences and header
sections with sentence embeddings and recommend Good or Weak.

The job posting is read from job-file, or given with --job-text, or downloaded
with --job-url. Exactly one source must be used.`,
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: resolveFormat(&matchConfig),
	RunE:    runMatch,
}

var (
	matchConfig    common.CommandConfig
	matchJobURL    string
	matchJobText   string
	matchThreshold float64
)

func init() {
	addOutputFlags(matchCmd, &matchConfig)
	matchCmd.Flags().StringVar(&matchJobURL, "job-url", "", "Download the job posting from this URL")
	matchCmd.Flags().StringVar(&matchJobText, "job-text", "", "Job posting text")
	matchCmd.Flags().Float64Var(&matchThreshold, "threshold", 0, "Override matching.threshold")
}

// jobSource describes where the job posting of a command comes from
type jobSource struct {
	file string
	url  string
	text string
}

func newJobSource(args []string, url, text string) (jobSource, error) {
	src := jobSource{url: url, text: text}
	if len(args) > 1 {
		src.file = args[1]
	}

	count := 0
	for _, set := range []bool{src.file != "", src.url != "", src.text != ""} {
		if set {
			count++
		}
	}
	if count != 1 {
		return jobSource{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"provide exactly one job posting: a file argument, --job-text or --job-url", nil)
	}
	return src, nil
}

// files lists the documents RunAICommand must read
func (j jobSource) files(cvFile string) []string {
	if j.file != "" {
		return []string{cvFile, j.file}
	}
	return []string{cvFile}
}

// resolve returns the job text, downloading it when a URL was given
func (j jobSource) resolve(ctx context.Context, cfg *config.Config, logger *errors.Logger, texts []string) (string, error) {
	switch {
	case j.file != "":
		return texts[1], nil
	case j.text != "":
		return j.text, nil
	}

	posting, err := jobsource.NewFetcher(cfg.JobSource, logger).Fetch(ctx, j.url)
	if err != nil {
		return "", err
	}
	logger.Info("Job posting downloaded", "url", posting.URL, "title", posting.Title, "chars", len(posting.Text))
	return posting.Text, nil
}

type matchInput struct {
	CV  string
	Job string
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	src, err := newJobSource(args, matchJobURL, matchJobText)
	if err != nil {
		return err
	}

	threshold := cfg.Matching.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = matchThreshold
	}

	tracker := impact.NewTracker(nil)
	aiService, err := ai.NewService(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	simService, _, closeCache, err := newSimilarityService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(logger, "embedding cache", closeCache)

	engine := matching.NewEngine(aiService,
		matching.NewMatcher(simService, cfg.Matching.Parallel, logger),
		threshold, tracker, logger)

	createInput := func(ctx context.Context, texts []string) (matchInput, error) {
		job, err := src.resolve(ctx, cfg, logger, texts)
		if err != nil {
			return matchInput{}, err
		}
		if strings.TrimSpace(job) == "" {
			return matchInput{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "job posting is empty", nil)
		}
		return matchInput{CV: texts[0], Job: job}, nil
	}

	logDetails := func(input matchInput, cc common.CommandConfig) {
		logger.Info("Starting CV matching",
			"cv_chars", len(input.CV),
			"job_chars", len(input.Job),
			"threshold", threshold,
			"output_format", cc.OutputFormat)
	}

	match := func(ctx context.Context, input matchInput) (types.MatchResult, *ai.TokenUsage, error) {
		result, err := engine.MatchTexts(ctx, input.CV, input.Job)
		return result, nil, err
	}

	if err := common.RunAICommand(cmd.Context(), logger, cfg.App.MaxFileSize, matchConfig, src.files(args[0]),
		createInput, match, logDetails); err != nil {
		return fmt.Errorf("failed to match CV: %w", err)
	}

	impactTotals := tracker.Metrics()
	logger.Info("CV matching completed successfully",
		"model_calls", tracker.Calls(),
		"energy_kwh", impactTotals.EnergyUsage,
		"gwp_kgco2eq", impactTotals.GWP)
	return nil
}
