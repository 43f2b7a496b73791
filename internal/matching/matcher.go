// Package matching compares a CV profile with a job posting profile section by section.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"cvmatch/internal/errors"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Scorer returns the similarity of two texts
type Scorer interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Matcher scores the four sections of two profiles
type Matcher struct {
	scorer   Scorer
	parallel bool
	logger   *errors.Logger
}

// NewMatcher creates a matcher. When parallel is set the sections are scored concurrently.
func NewMatcher(scorer Scorer, parallel bool, logger *errors.Logger) *Matcher {
	return &Matcher{scorer: scorer, parallel: parallel, logger: logger}
}

// SerializeSection returns the canonical text of section s of p.
// Absent lists serialise as [] and absent strings as null, so two empty
// sections always produce the same text.
func SerializeSection(p types.StructuredProfile, s types.Section) (string, error) {
	data, err := json.Marshal(p.Normalize().SectionValue(s))
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternal,
			fmt.Sprintf("cannot serialise section %s", s), err)
	}
	return string(data), nil
}

// Match scores each CV section against the same job section.
// If any section fails the whole match fails and no report is returned.
func (m *Matcher) Match(ctx context.Context, cv, job types.StructuredProfile) (types.SimilarityReport, error) {
	ctx, span := otel.Tracer("cvmatch.matching").Start(ctx, "matching.match")
	defer span.End()

	var pairs [len(types.Sections)][2]string
	for i, s := range types.Sections {
		cvText, err := SerializeSection(cv, s)
		if err != nil {
			return types.SimilarityReport{}, err
		}
		jobText, err := SerializeSection(job, s)
		if err != nil {
			return types.SimilarityReport{}, err
		}
		pairs[i] = [2]string{cvText, jobText}
	}

	var scores [len(types.Sections)]float64
	score := func(ctx context.Context, i int) error {
		v, err := m.scorer.Similarity(ctx, pairs[i][0], pairs[i][1])
		if err != nil {
			m.logger.LogError(err, "Section similarity failed", "section", types.Sections[i])
			return err
		}
		scores[i] = v
		return nil
	}

	if m.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range types.Sections {
			g.Go(func() error { return score(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			return types.SimilarityReport{}, err
		}
	} else {
		for i := range types.Sections {
			if err := score(ctx, i); err != nil {
				span.RecordError(err)
				return types.SimilarityReport{}, err
			}
		}
	}

	var report types.SimilarityReport
	for i, s := range types.Sections {
		report.Set(s, scores[i])
		span.SetAttributes(attribute.Float64("score."+string(s), scores[i]))
	}
	return report, nil
}

// Aggregate averages the section scores with equal weights. The match is Good
// only when the mean is strictly above threshold.
func Aggregate(report types.SimilarityReport, threshold float64) types.MatchReport {
	var sum float64
	for _, s := range types.Sections {
		sum += report.Get(s)
	}
	// drop summation noise so a mean meant to equal the threshold compares equal
	overall := math.Round(sum/float64(len(types.Sections))*1e12) / 1e12

	recommendation := types.RecommendationWeak
	if overall > threshold {
		recommendation = types.RecommendationGood
	}

	return types.MatchReport{
		PerSection:     report,
		Overall:        overall,
		Recommendation: recommendation,
		Threshold:      threshold,
	}
}
