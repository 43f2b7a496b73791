package matching

import (
	"context"

	"cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/types"

	"golang.org/x/sync/errgroup"
)

// ProfileExtractor turns document text into a structured profile
type ProfileExtractor interface {
	ExtractProfile(ctx context.Context, text string, kind types.ProfileKind) (types.StructuredProfile, *impact.Usage, error)
}

// Engine runs the full pipeline: extraction, section matching and aggregation
type Engine struct {
	extractor ProfileExtractor
	matcher   *Matcher
	threshold float64
	tracker   *impact.Tracker
	logger    *errors.Logger
}

// NewEngine wires the pipeline. tracker supplies the impact totals attached to results.
func NewEngine(extractor ProfileExtractor, matcher *Matcher, threshold float64, tracker *impact.Tracker, logger *errors.Logger) *Engine {
	return &Engine{
		extractor: extractor,
		matcher:   matcher,
		threshold: threshold,
		tracker:   tracker,
		logger:    logger,
	}
}

// Threshold returns the score a match must exceed to be Good
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// MatchTexts extracts both profiles concurrently and matches them
func (e *Engine) MatchTexts(ctx context.Context, cvText, jobText string) (types.MatchResult, error) {
	var cv, job types.StructuredProfile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cv, _, err = e.extractor.ExtractProfile(gctx, cvText, types.KindCV)
		return err
	})
	g.Go(func() error {
		var err error
		job, _, err = e.extractor.ExtractProfile(gctx, jobText, types.KindJobPosting)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.MatchResult{}, err
	}

	return e.MatchProfiles(ctx, cv, job)
}

// MatchProfiles matches two already extracted profiles
func (e *Engine) MatchProfiles(ctx context.Context, cv, job types.StructuredProfile) (types.MatchResult, error) {
	report, err := e.matcher.Match(ctx, cv, job)
	if err != nil {
		return types.MatchResult{}, err
	}

	result := Aggregate(report, e.threshold)
	e.logger.Info("Match computed",
		"overall", result.Overall,
		"recommendation", result.Recommendation,
		"threshold", result.Threshold)

	return types.MatchResult{
		Report:     result,
		CVProfile:  &cv,
		JobProfile: &job,
		Impact:     e.tracker.Metrics(),
	}, nil
}
