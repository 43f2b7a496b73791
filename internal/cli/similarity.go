package cli

import (
	"fmt"

	"cvmatch/internal/common"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity [text-a] [text-b]",
	Short: "Semantic similarity of two texts",
	Long: `Embed two texts and print their cosine similarity. With --files the
arguments are read as documents instead of literal texts.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: resolveFormat(&similarityConfig),
	RunE:    runSimilarity,
}

var (
	similarityConfig common.CommandConfig
	similarityFiles  bool
)

func init() {
	addOutputFlags(similarityCmd, &similarityConfig)
	similarityCmd.Flags().BoolVar(&similarityFiles, "files", false, "Treat the arguments as file paths")
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	texts := args
	if similarityFiles {
		var err error
		if texts, err = common.NewFileProcessor(cfg.App.MaxFileSize, logger).ReadDocuments(args...); err != nil {
			return err
		}
	}

	service, _, closeCache, err := newSimilarityService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(logger, "embedding cache", closeCache)

	score, err := service.Similarity(cmd.Context(), texts[0], texts[1])
	if err != nil {
		return fmt.Errorf("failed to compute similarity: %w", err)
	}
	logger.Debug("Similarity computed", "score", score)

	return common.NewOutputHandler(logger).HandleOutput(types.SimilarityResult{Score: score}, similarityConfig)
}
