package common

import (
	"context"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
)

// CreateInputFunc builds the operation input from the extracted document texts.
type CreateInputFunc[Input any] func(ctx context.Context, texts []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// AIOperationFunc is a generic function signature for any AI operation with context and token usage.
type AIOperationFunc[Input, Output any] func(context.Context, Input) (Output, *ai.TokenUsage, error)

// RunAICommand encapsulates the common logic for file-based CLI commands:
// read documents, build the input, run the operation, report usage and write the result.
func RunAICommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	maxFileSize int64,
	cmdConfig CommandConfig,
	files []string,
	createInput CreateInputFunc[Input],
	aiOperation AIOperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(maxFileSize, logger)
	outputHandler := NewOutputHandler(logger)

	texts, err := fileProcessor.ReadDocuments(files...)
	if err != nil {
		return err
	}

	input, err := createInput(ctx, texts)
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, tokenUsage, err := aiOperation(ctx, input)
	if err != nil {
		return err
	}

	if tokenUsage != nil {
		logger.Info("AI token usage",
			"input_tokens", tokenUsage.InputTokens,
			"output_tokens", tokenUsage.OutputTokens,
			"total_tokens", tokenUsage.TotalTokens)
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
