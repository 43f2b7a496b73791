package matching

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/similarity"
	"cvmatch/internal/types"
)

// tokenEmbedder is a deterministic bag-of-tokens embedder
type tokenEmbedder struct{}

func (tokenEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, 64)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return strings.ContainsRune(` []{}":,`, r)
	})
	for _, f := range fields {
		h := fnv.New32a()
		_, _ = h.Write([]byte(f))
		v[h.Sum32()%64]++
	}
	v[0] += 0.1
	return v, nil
}

type failingScorer struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (f *failingScorer) Similarity(_ context.Context, a, _ string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if strings.Contains(a, f.failOn) {
		return 0, errors.NewServiceUnavailableError("huggingface", 503, "down", nil)
	}
	return 0.9, nil
}

func strPtr(s string) *string { return &s }

func newMatcher(parallel bool) *Matcher {
	scorer := similarity.NewService(tokenEmbedder{}, nil, errors.NewNopLogger())
	return NewMatcher(scorer, parallel, errors.NewNopLogger())
}

func sampleProfile(skills ...string) types.StructuredProfile {
	return types.StructuredProfile{
		Formation:   []types.FormationEntry{{NiveauEtudes: strPtr("Master"), DomaineEtudes: []string{"Informatique"}}},
		Competences: skills,
		Experiences: []types.ExperienceEntry{{DomaineActivite: []string{"Tech"}, PosteOccupe: strPtr("Développeur"), Duree: strPtr("2 ans")}},
		Profil:      types.ProfileHeader{Titre: strPtr("Développeur Backend")},
	}
}

func TestMatchReportsFourSectionsInRange(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		report, err := newMatcher(parallel).Match(context.Background(),
			sampleProfile("Python", "SQL"), sampleProfile("Go", "Kubernetes"))
		require.NoError(t, err)

		for _, s := range types.Sections {
			score := report.Get(s)
			assert.GreaterOrEqual(t, score, -1.0, "section %s", s)
			assert.LessOrEqual(t, score, 1.0, "section %s", s)
		}
		// identical sections score as self-similarity
		assert.InDelta(t, 1.0, report.Formation, 1e-6)
		assert.InDelta(t, 1.0, report.Profil, 1e-6)
	}
}

func TestMatchPartialSkillOverlap(t *testing.T) {
	m := newMatcher(true)
	ctx := context.Background()

	partial, err := m.Match(ctx, sampleProfile("Python", "SQL"), sampleProfile("Python", "Java"))
	require.NoError(t, err)
	unrelated, err := m.Match(ctx, sampleProfile("Python", "SQL"), sampleProfile("Plomberie", "Soudure"))
	require.NoError(t, err)

	assert.Greater(t, partial.Competences, unrelated.Competences)
	assert.Less(t, partial.Competences, 1.0)
}

func TestMatchEmptyExperiencesIsDeterministic(t *testing.T) {
	m := newMatcher(true)
	cv := sampleProfile("Go")
	cv.Experiences = nil
	job := sampleProfile("Go")
	job.Experiences = []types.ExperienceEntry{}

	first, err := m.Match(context.Background(), cv, job)
	require.NoError(t, err)
	second, err := m.Match(context.Background(), cv, job)
	require.NoError(t, err)

	assert.Equal(t, first.Experiences, second.Experiences)
	// both sides serialise to [] so the score is the self-similarity
	assert.InDelta(t, 1.0, first.Experiences, 1e-6)
}

func TestSerializeSectionEmptyForms(t *testing.T) {
	empty := types.StructuredProfile{}
	tests := map[types.Section]string{
		types.SectionFormation:   `[]`,
		types.SectionCompetences: `[]`,
		types.SectionExperiences: `[]`,
		types.SectionProfil:      `{"titre":null,"disponibilite":null}`,
	}
	for section, want := range tests {
		got, err := SerializeSection(empty, section)
		require.NoError(t, err)
		assert.Equal(t, want, got, "section %s", section)
	}

	got, err := SerializeSection(types.StructuredProfile{Formation: []types.FormationEntry{{}}}, types.SectionFormation)
	require.NoError(t, err)
	assert.Equal(t, `[{"niveau_etudes":null,"domaine_etudes":[]}]`, got)
}

func TestMatchFailsAtomically(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		scorer := &failingScorer{failOn: "Python"}
		m := NewMatcher(scorer, parallel, errors.NewNopLogger())

		report, err := m.Match(context.Background(), sampleProfile("Python"), sampleProfile("Go"))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrServiceUnavailable)
		assert.Equal(t, types.SimilarityReport{}, report)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		report  types.SimilarityReport
		want    float64
		verdict types.Recommendation
	}{
		{"mean on threshold is weak", types.SimilarityReport{Formation: 0.6, Competences: 0.6, Experiences: 0.4, Profil: 0.4}, 0.5, types.RecommendationWeak},
		{"just above", types.SimilarityReport{Formation: 0.6, Competences: 0.6, Experiences: 0.4, Profil: 0.41}, 0.5025, types.RecommendationGood},
		{"below", types.SimilarityReport{Formation: 0.1, Competences: 0.2, Experiences: 0.3, Profil: 0.4}, 0.25, types.RecommendationWeak},
		{"all ones", types.SimilarityReport{Formation: 1, Competences: 1, Experiences: 1, Profil: 1}, 1, types.RecommendationGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.report, 0.5)
			assert.InDelta(t, tt.want, got.Overall, 1e-12)
			assert.Equal(t, tt.verdict, got.Recommendation)
			assert.Equal(t, tt.report, got.PerSection)
			assert.Equal(t, 0.5, got.Threshold)
		})
	}
}

func TestAggregateCustomThreshold(t *testing.T) {
	report := types.SimilarityReport{Formation: 0.7, Competences: 0.7, Experiences: 0.7, Profil: 0.7}
	assert.Equal(t, types.RecommendationGood, Aggregate(report, 0.6).Recommendation)
	assert.Equal(t, types.RecommendationWeak, Aggregate(report, 0.75).Recommendation)
}

type stubExtractor struct {
	profiles map[types.ProfileKind]types.StructuredProfile
	err      error
	tracker  *impact.Tracker
}

func (s *stubExtractor) ExtractProfile(_ context.Context, _ string, kind types.ProfileKind) (types.StructuredProfile, *impact.Usage, error) {
	energy := 0.25
	s.tracker.RecordCall(nil, &energy)
	if s.err != nil {
		return types.StructuredProfile{}, nil, s.err
	}
	return s.profiles[kind], &impact.Usage{TotalTokens: 10}, nil
}

func TestEngineMatchTexts(t *testing.T) {
	tracker := impact.NewTracker(nil)
	extractor := &stubExtractor{
		tracker: tracker,
		profiles: map[types.ProfileKind]types.StructuredProfile{
			types.KindCV:         sampleProfile("Go", "SQL"),
			types.KindJobPosting: sampleProfile("Go", "SQL"),
		},
	}
	engine := NewEngine(extractor, newMatcher(true), 0.5, tracker, errors.NewNopLogger())

	result, err := engine.MatchTexts(context.Background(), "cv", "offre")
	require.NoError(t, err)

	assert.Equal(t, types.RecommendationGood, result.Report.Recommendation)
	assert.InDelta(t, 1.0, result.Report.Overall, 1e-6)
	require.NotNil(t, result.CVProfile)
	assert.Equal(t, []string{"Go", "SQL"}, result.CVProfile.Competences)
	assert.InDelta(t, 0.5, result.Impact.EnergyUsage, 1e-12)
	assert.Zero(t, result.Impact.GWP)
}

func TestEngineExtractionFailure(t *testing.T) {
	tracker := impact.NewTracker(nil)
	extractor := &stubExtractor{
		tracker: tracker,
		err:     errors.NewSchemaParseError("bad answer", "{", nil),
	}
	engine := NewEngine(extractor, newMatcher(true), 0.5, tracker, errors.NewNopLogger())

	_, err := engine.MatchTexts(context.Background(), "cv", "offre")
	assert.ErrorIs(t, err, errors.ErrSchemaParse)
}
