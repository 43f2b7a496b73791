package ai

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/types"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

type fakeModels struct {
	mu      sync.Mutex
	answers []string
	err     error
	usage   *genai.GenerateContentResponseUsageMetadata
	prompts []string
	configs []*genai.GenerateContentConfig
	getErr  error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}

	answer := ""
	if len(f.answers) > 0 {
		answer = f.answers[0]
		f.answers = f.answers[1:]
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: genai.NewContentFromText(answer, genai.RoleModel)}},
		UsageMetadata: f.usage,
	}, nil
}

func (f *fakeModels) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &genai.Model{Name: model, DisplayName: "Gemini Test", Version: "001"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Provider:         "gemini",
			Model:            "gemini-test",
			APIKey:           "test-key",
			Timeout:          5 * time.Second,
			Temperature:      0.01,
			MaxOutputTokens:  1500,
			UseSystemPrompts: true,
		},
	}
}

func newTestService(models *fakeModels, factors impact.Factors) (*Service, *impact.Tracker) {
	logger := errors.NewNopLogger()
	provider := newGeminiProviderWithModels(testConfig(), models, logger)
	tracker := impact.NewTracker(nil)
	return NewServiceWithProvider(provider, tracker, impact.NewEstimator(factors), logger), tracker
}

func TestExtractProfile(t *testing.T) {
	models := &fakeModels{
		answers: []string{validProfile},
		usage:   &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 800, CandidatesTokenCount: 200, TotalTokenCount: 1000},
	}
	svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 0.5, CarbonIntensity: 0.2})

	profile, usage, err := svc.ExtractProfile(context.Background(), "Jean Dupont, développeur Go", types.KindCV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profile.Competences) != 2 {
		t.Errorf("Competences = %v", profile.Competences)
	}
	if usage == nil || usage.TotalTokens != 1000 {
		t.Errorf("usage = %+v", usage)
	}

	m := tracker.Metrics()
	if m.EnergyUsage != 0.5 || m.GWP != 0.1 {
		t.Errorf("impact = %+v, want energy 0.5 and gwp 0.1", m)
	}

	cfg := models.configs[0]
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Error("extraction must request JSON output with a schema")
	}
	if cfg.MaxOutputTokens != 1500 {
		t.Errorf("MaxOutputTokens = %d", cfg.MaxOutputTokens)
	}
	if !strings.Contains(models.prompts[0], "Texte du CV") || !strings.Contains(models.prompts[0], "Jean Dupont, développeur Go") {
		t.Errorf("CV prompt not built from the CV template: %s", models.prompts[0])
	}
}

func TestExtractProfileJobPrompt(t *testing.T) {
	models := &fakeModels{answers: []string{validProfile}}
	svc, _ := newTestService(models, impact.Factors{})

	if _, _, err := svc.ExtractProfile(context.Background(), "Offre: développeur Go", types.KindJobPosting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := models.prompts[0]
	if !strings.Contains(prompt, "De plus la disponibilité correspond à la date de début du poste.") {
		t.Error("job prompt is missing the start date instruction")
	}
	if !strings.Contains(prompt, "Texte de l'offre d'emploi") {
		t.Error("job prompt is missing the posting label")
	}
}

func TestExtractProfileCountsCallsWithoutFactors(t *testing.T) {
	models := &fakeModels{
		answers: []string{validProfile, validProfile},
		usage:   &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 1200},
	}
	svc, tracker := newTestService(models, impact.Factors{})

	for _, kind := range []types.ProfileKind{types.KindCV, types.KindJobPosting} {
		if _, _, err := svc.ExtractProfile(context.Background(), "texte", kind); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if tracker.Calls() != 2 {
		t.Errorf("recorded calls = %d, want 2", tracker.Calls())
	}
	if m := tracker.Metrics(); m.EnergyUsage != 0 || m.GWP != 0 {
		t.Errorf("impact = %+v, want zero totals without factors", m)
	}
}

func TestExtractProfileMalformedOutput(t *testing.T) {
	raw := `{"Formation": [{"niveau_etudes": "Master"`
	models := &fakeModels{
		answers: []string{raw},
		usage:   &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 2000},
	}
	svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 1})

	profile, _, err := svc.ExtractProfile(context.Background(), "un CV", types.KindCV)
	if err == nil {
		t.Fatalf("expected schema error, got profile %+v", profile)
	}
	if got, ok := errors.RawOutput(err); !ok || got != raw {
		t.Errorf("raw output = %q, want %q", got, raw)
	}
	if profile.Competences != nil || profile.Formation != nil {
		t.Errorf("no partial profile may be returned: %+v", profile)
	}
	// the call happened, so it is still accounted for
	if m := tracker.Metrics(); m.EnergyUsage != 2 {
		t.Errorf("energy = %v, want 2", m.EnergyUsage)
	}
}

func TestExtractProfileUpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"overloaded", &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"}, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := &fakeModels{err: tt.err}
			svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 1})

			_, usage, err := svc.ExtractProfile(context.Background(), "un CV", types.KindCV)
			if !errors.HasType(err, errors.ErrorTypeService) {
				t.Fatalf("expected service error, got %v", err)
			}
			if status, _ := errors.UpstreamStatus(err); status != tt.wantStatus {
				t.Errorf("upstream status = %d, want %d", status, tt.wantStatus)
			}
			if usage != nil || tracker.Calls() != 0 {
				t.Error("a failed call must not be recorded")
			}
		})
	}
}

func TestExtractProfileEmptyText(t *testing.T) {
	models := &fakeModels{}
	svc, _ := newTestService(models, impact.Factors{})

	_, _, err := svc.ExtractProfile(context.Background(), "  \n", types.KindCV)
	if !errors.HasType(err, errors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(models.prompts) != 0 {
		t.Error("model must not be called for empty text")
	}
}

func TestUsageCountedLocallyWhenNotReported(t *testing.T) {
	models := &fakeModels{answers: []string{validProfile}}
	svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 1})

	_, usage, err := svc.ExtractProfile(context.Background(), "Développeur Go", types.KindCV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage == nil || usage.InputTokens == 0 || usage.OutputTokens == 0 {
		t.Fatalf("expected locally counted usage, got %+v", usage)
	}
	if tracker.Metrics().EnergyUsage <= 0 {
		t.Error("estimated usage should feed the tracker")
	}
}

func TestConfiguredPromptOverride(t *testing.T) {
	models := &fakeModels{answers: []string{validProfile}}
	cfg := testConfig()
	cfg.AI.ExtractCV.Prompts.User = "CUSTOM %s"
	logger := errors.NewNopLogger()
	svc := NewServiceWithProvider(newGeminiProviderWithModels(cfg, models, logger), nil, nil, logger)

	if _, _, err := svc.ExtractProfile(context.Background(), "texte", types.KindCV); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if models.prompts[0] != "CUSTOM texte" {
		t.Errorf("prompt = %q", models.prompts[0])
	}
}

func TestGenerateCoverLetter(t *testing.T) {
	models := &fakeModels{
		answers: []string{
			`{"nom_prenom": "Jean Dupont", "email": "jean@mail.fr", "telephone": null, "adresse": "Lyon"}`,
			"  Madame, Monsieur,\nJe me permets...  ",
		},
		usage: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 500},
	}
	svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 1})
	svc.now = func() time.Time { return time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC) }

	letter, usage, err := svc.GenerateCoverLetter(context.Background(), types.CoverLetterInput{
		CVText:  "Jean Dupont, Lyon",
		JobText: "Développeur Go chez Acme",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if letter.Date != "18 octobre 2026" {
		t.Errorf("Date = %q", letter.Date)
	}
	if letter.Candidate.Telephone != types.MissingValue {
		t.Errorf("Telephone = %q", letter.Candidate.Telephone)
	}
	if letter.Letter != "Madame, Monsieur,\nJe me permets..." {
		t.Errorf("Letter = %q", letter.Letter)
	}
	if usage.TotalTokens != 1000 {
		t.Errorf("usage should sum both calls, got %+v", usage)
	}
	if tracker.Calls() != 2 {
		t.Errorf("recorded calls = %d, want 2", tracker.Calls())
	}

	prompt := models.prompts[1]
	for _, want := range []string{"Nom : Jean Dupont", "Date : 18 octobre 2026", "Développeur Go chez Acme"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("letter prompt is missing %q", want)
		}
	}
	if strings.Contains(prompt, "%!") {
		t.Errorf("letter prompt has formatting errors: %s", prompt)
	}
}

func TestGetModelInfo(t *testing.T) {
	models := &fakeModels{}
	logger := errors.NewNopLogger()
	provider := newGeminiProviderWithModels(testConfig(), models, logger)

	info := provider.GetModelInfo(context.Background())
	if !info.Available || info.DisplayName != "Gemini Test" {
		t.Errorf("info = %+v", info)
	}

	models.getErr = &googleapi.Error{Code: http.StatusNotFound}
	info = provider.GetModelInfo(context.Background())
	if info.Available || info.Error == "" {
		t.Errorf("expected unavailable model, got %+v", info)
	}
}

func TestFrenchDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC), "18 octobre 2026"},
		{time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC), "03 février 2025"},
		{time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC), "31 août 2024"},
	}
	for _, tt := range tests {
		if got := FrenchDate(tt.in); got != tt.want {
			t.Errorf("FrenchDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptimizeCV(t *testing.T) {
	models := &fakeModels{
		answers: []string{"\n**Profil** : Développeur Go\n**Compétences** : Go, SQL\n"},
		usage:   &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 900, CandidatesTokenCount: 100, TotalTokenCount: 1000},
	}
	svc, tracker := newTestService(models, impact.Factors{EnergyPerKTokens: 1})

	out, usage, err := svc.OptimizeCV(context.Background(), types.OptimizeCVInput{
		CVText:  "Jean Dupont, développeur Python",
		JobText: "Développeur Go chez Acme",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CV != "**Profil** : Développeur Go\n**Compétences** : Go, SQL" {
		t.Errorf("CV = %q", out.CV)
	}
	if usage.TotalTokens != 1000 || tracker.Calls() != 1 {
		t.Errorf("usage = %+v, calls = %d", usage, tracker.Calls())
	}

	prompt := models.prompts[0]
	for _, want := range []string{"Jean Dupont, développeur Python", "Développeur Go chez Acme", "**Nouveau CV optimisé :**"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("optimisation prompt is missing %q", want)
		}
	}
	if strings.Contains(prompt, "%!") {
		t.Errorf("optimisation prompt has formatting errors: %s", prompt)
	}
	if got := models.configs[0].MaxOutputTokens; got != 1500 {
		t.Errorf("MaxOutputTokens = %d, want 1500", got)
	}
}

func TestOptimizeCVRejectsMissingInput(t *testing.T) {
	models := &fakeModels{}
	svc, _ := newTestService(models, impact.Factors{})

	_, _, err := svc.OptimizeCV(context.Background(), types.OptimizeCVInput{CVText: "un CV"})
	if !errors.HasType(err, errors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(models.prompts) != 0 {
		t.Error("model must not be called without a job posting")
	}
}

func TestOptimizeCVEmptyAnswer(t *testing.T) {
	models := &fakeModels{answers: []string{"   "}}
	svc, _ := newTestService(models, impact.Factors{})

	_, _, err := svc.OptimizeCV(context.Background(), types.OptimizeCVInput{CVText: "un CV", JobText: "une offre"})
	if !errors.HasType(err, errors.ErrorTypeSchema) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestZeroTemperatureIsSent(t *testing.T) {
	models := &fakeModels{answers: []string{validProfile}}
	cfg := testConfig()
	cfg.AI.Temperature = 0
	logger := errors.NewNopLogger()
	svc := NewServiceWithProvider(newGeminiProviderWithModels(cfg, models, logger), nil, nil, logger)

	if _, _, err := svc.ExtractProfile(context.Background(), "un CV", types.KindCV); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	temp := models.configs[0].Temperature
	if temp == nil || *temp != 0 {
		t.Errorf("temperature = %v, want an explicit 0", temp)
	}
}

func TestNewServiceRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.APIKey = ""

	_, err := NewService(cfg, nil, errors.NewNopLogger())
	if !errors.HasType(err, errors.ErrorTypeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Code != errors.ErrCodeMissingAPIKey {
		t.Errorf("code = %s, want %s", appErr.Code, errors.ErrCodeMissingAPIKey)
	}
}
