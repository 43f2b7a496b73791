package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordImpact adds one model call's estimated cost to the impact counters
func (om *ObservabilityManager) RecordImpact(energy, gwp float64) {
	m := om.GetMetrics()
	if m.ImpactEnergy == nil {
		return
	}
	if om.fullConfig != nil && !om.fullConfig.Observability.CustomMetrics.AIOperations.TrackImpact {
		return
	}
	ctx := context.Background()
	if energy > 0 {
		m.ImpactEnergy.Add(ctx, energy)
	}
	if gwp > 0 {
		m.ImpactGWP.Add(ctx, gwp)
	}
}

// RecordCacheLookup counts an embedding cache hit or miss
func (om *ObservabilityManager) RecordCacheLookup(ctx context.Context, hit bool) {
	m := om.GetMetrics()
	if m.EmbeddingCacheLookups == nil {
		return
	}
	if om.fullConfig != nil && !om.fullConfig.Observability.CustomMetrics.Infrastructure.TrackCache {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbeddingCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordUndefinedSimilarity counts similarity requests rejected for a zero-norm embedding
func (om *ObservabilityManager) RecordUndefinedSimilarity(ctx context.Context) {
	addInt(ctx, om.GetMetrics().SimilarityUndefined, nil)
}
