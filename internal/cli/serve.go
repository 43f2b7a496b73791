package cli

import (
	"fmt"

	"cvmatch/internal/ai"
	"cvmatch/internal/impact"
	"cvmatch/internal/jobsource"
	"cvmatch/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing the matching engine.

Available endpoints:
- POST /extract: Extract a structured profile
- POST /match: Match a CV against a job posting
- POST /similarity: Similarity of two texts
- POST /personal-info: Contact details of a CV
- POST /cover-letter: Generate a cover letter
- POST /optimize-cv: Rewrite a CV to fit a job posting
- GET /impact, POST /impact/reset: Cumulative impact of model calls
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().Bool("watch-prompts", false, "Reload prompt files when they change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	// configuration is loaded before flags are parsed, so overrides are applied here
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("watch-prompts") {
		cfg.Server.WatchPrompts, _ = cmd.Flags().GetBool("watch-prompts")
	}

	om, err := server.InitializeObservability(cfg, Version)
	if err != nil {
		return err
	}

	tracker := impact.NewTracker(om)
	aiService, err := ai.NewService(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer closeWithLog(logger, "AI service", aiService.Close)

	simService, cache, closeCache, err := newSimilarityService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(logger, "embedding cache", closeCache)

	deps := server.Dependencies{
		AI:      aiService,
		Scorer:  simService.WithObserver(om),
		Fetcher: jobsource.NewFetcher(cfg.JobSource, logger),
		Tracker: tracker,
		Cache:   cache,
	}

	srv := server.NewServer(cfg, server.ServerConfigFromApp(cfg, Version), deps, logger)
	return srv.Start(om)
}
