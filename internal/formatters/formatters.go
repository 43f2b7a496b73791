package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cvmatch/internal/types"

	"gopkg.in/yaml.v3"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})

	registry.RegisterFormatter("text", "StructuredProfile", typed("StructuredProfile", profileText))
	registry.RegisterFormatter("markdown", "StructuredProfile", typed("StructuredProfile", profileMarkdown))
	registry.RegisterFormatter("text", "MatchResult", typed("MatchResult", matchText))
	registry.RegisterFormatter("markdown", "MatchResult", typed("MatchResult", matchMarkdown))
	registry.RegisterFormatter("text", "SimilarityResult", typed("SimilarityResult", similarityText))
	registry.RegisterFormatter("markdown", "SimilarityResult", typed("SimilarityResult", similarityMarkdown))
	registry.RegisterFormatter("text", "PersonalInfo", typed("PersonalInfo", personalInfoText))
	registry.RegisterFormatter("markdown", "PersonalInfo", typed("PersonalInfo", personalInfoMarkdown))
	registry.RegisterFormatter("text", "CoverLetter", typed("CoverLetter", coverLetterText))
	registry.RegisterFormatter("markdown", "CoverLetter", typed("CoverLetter", coverLetterMarkdown))
	registry.RegisterFormatter("text", "OptimizedCV", typed("OptimizedCV", optimizedCVText))
	registry.RegisterFormatter("markdown", "OptimizedCV", typed("OptimizedCV", optimizedCVText))
	registry.RegisterFormatter("text", "ImpactMetrics", typed("ImpactMetrics", impactText))
	registry.RegisterFormatter("markdown", "ImpactMetrics", typed("ImpactMetrics", impactMarkdown))

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.StructuredProfile:
		return "StructuredProfile"
	case types.MatchResult:
		return "MatchResult"
	case types.SimilarityResult:
		return "SimilarityResult"
	case types.PersonalInfo:
		return "PersonalInfo"
	case types.CoverLetter:
		return "CoverLetter"
	case types.OptimizedCV:
		return "OptimizedCV"
	case types.ImpactMetrics:
		return "ImpactMetrics"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

// typedFormatter renders one concrete type
type typedFormatter[T any] struct {
	name   string
	render func(T) string
}

func typed[T any](name string, render func(T) string) *typedFormatter[T] {
	return &typedFormatter[T]{name: name, render: render}
}

func (tf *typedFormatter[T]) Format(data any) (string, error) {
	v, ok := data.(T)
	if !ok {
		return "", fmt.Errorf("expected %s, got %T", tf.name, data)
	}
	return tf.render(v), nil
}

func (tf *typedFormatter[T]) SupportedType() string {
	return tf.name
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func profileText(p types.StructuredProfile) string {
	var out strings.Builder

	out.WriteString("=== PROFIL ===\n")
	fmt.Fprintf(&out, "Titre: %s\n", orDash(p.Profil.Titre))
	fmt.Fprintf(&out, "Disponibilité: %s\n\n", orDash(p.Profil.Disponibilite))

	out.WriteString("=== FORMATION ===\n")
	if len(p.Formation) == 0 {
		out.WriteString("-\n")
	}
	for _, f := range p.Formation {
		fmt.Fprintf(&out, "- %s (%s)\n", orDash(f.NiveauEtudes), listOrDash(f.DomaineEtudes))
	}

	out.WriteString("\n=== COMPETENCES ===\n")
	out.WriteString(listOrDash(p.Competences))
	out.WriteString("\n\n=== EXPERIENCES ===\n")
	if len(p.Experiences) == 0 {
		out.WriteString("-\n")
	}
	for _, e := range p.Experiences {
		fmt.Fprintf(&out, "- %s, %s (%s)\n", orDash(e.PosteOccupe), orDash(e.Duree), listOrDash(e.DomaineActivite))
	}

	return out.String()
}

func profileMarkdown(p types.StructuredProfile) string {
	var out strings.Builder

	out.WriteString("# Profil extrait\n\n")
	fmt.Fprintf(&out, "**Titre:** %s  \n", orDash(p.Profil.Titre))
	fmt.Fprintf(&out, "**Disponibilité:** %s\n\n", orDash(p.Profil.Disponibilite))

	out.WriteString("## Formation\n\n")
	out.WriteString("| Niveau | Domaines |\n|---|---|\n")
	for _, f := range p.Formation {
		fmt.Fprintf(&out, "| %s | %s |\n", orDash(f.NiveauEtudes), listOrDash(f.DomaineEtudes))
	}

	out.WriteString("\n## Compétences\n\n")
	if len(p.Competences) == 0 {
		out.WriteString("-\n")
	}
	for _, c := range p.Competences {
		fmt.Fprintf(&out, "- %s\n", c)
	}

	out.WriteString("\n## Expériences\n\n")
	out.WriteString("| Poste | Durée | Domaines |\n|---|---|---|\n")
	for _, e := range p.Experiences {
		fmt.Fprintf(&out, "| %s | %s | %s |\n", orDash(e.PosteOccupe), orDash(e.Duree), listOrDash(e.DomaineActivite))
	}

	return out.String()
}

func matchText(r types.MatchResult) string {
	var out strings.Builder

	out.WriteString("=== MATCH REPORT ===\n")
	for _, s := range types.Sections {
		fmt.Fprintf(&out, "%-12s %.4f\n", s+":", r.Report.PerSection.Get(s))
	}
	fmt.Fprintf(&out, "\nOverall: %.4f (threshold %.2f)\n", r.Report.Overall, r.Report.Threshold)
	fmt.Fprintf(&out, "Recommendation: %s\n\n", r.Report.Recommendation)
	out.WriteString(impactText(r.Impact))

	return out.String()
}

func matchMarkdown(r types.MatchResult) string {
	var out strings.Builder

	out.WriteString("# Match Report\n\n")
	out.WriteString("| Section | Score |\n|---|---|\n")
	for _, s := range types.Sections {
		fmt.Fprintf(&out, "| %s | %.4f |\n", s, r.Report.PerSection.Get(s))
	}
	fmt.Fprintf(&out, "\n**Overall:** %.4f (threshold %.2f)  \n", r.Report.Overall, r.Report.Threshold)
	fmt.Fprintf(&out, "**Recommendation:** %s\n\n", r.Report.Recommendation)
	out.WriteString(impactMarkdown(r.Impact))

	return out.String()
}

func similarityText(r types.SimilarityResult) string {
	return fmt.Sprintf("Similarity: %.4f\n", r.Score)
}

func similarityMarkdown(r types.SimilarityResult) string {
	return fmt.Sprintf("**Similarity:** %.4f\n", r.Score)
}

func personalInfoText(p types.PersonalInfo) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Nom: %s\n", p.NomPrenom)
	fmt.Fprintf(&out, "Email: %s\n", p.Email)
	fmt.Fprintf(&out, "Téléphone: %s\n", p.Telephone)
	fmt.Fprintf(&out, "Adresse: %s\n", p.Adresse)
	return out.String()
}

func personalInfoMarkdown(p types.PersonalInfo) string {
	var out strings.Builder
	out.WriteString("| Champ | Valeur |\n|---|---|\n")
	fmt.Fprintf(&out, "| Nom | %s |\n", p.NomPrenom)
	fmt.Fprintf(&out, "| Email | %s |\n", p.Email)
	fmt.Fprintf(&out, "| Téléphone | %s |\n", p.Telephone)
	fmt.Fprintf(&out, "| Adresse | %s |\n", p.Adresse)
	return out.String()
}

func coverLetterText(c types.CoverLetter) string {
	return strings.TrimRight(c.Letter, "\n") + "\n"
}

func coverLetterMarkdown(c types.CoverLetter) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# Lettre de motivation (%s)\n\n", c.Date)
	out.WriteString(strings.TrimRight(c.Letter, "\n"))
	out.WriteString("\n")
	return out.String()
}

// the model already answers with markdown sections
func optimizedCVText(c types.OptimizedCV) string {
	return strings.TrimRight(c.CV, "\n") + "\n"
}

func impactText(m types.ImpactMetrics) string {
	return fmt.Sprintf("Impact: %.6g kgCO2eq, %.6g kWh\n", m.GWP, m.EnergyUsage)
}

func impactMarkdown(m types.ImpactMetrics) string {
	return fmt.Sprintf("**Impact:** %.6g kgCO2eq, %.6g kWh\n", m.GWP, m.EnergyUsage)
}

// GlobalRegistry is the registry used by the CLI output handler
var GlobalRegistry = NewFormatterRegistry()
