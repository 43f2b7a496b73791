package types

import (
	"fmt"
	"strings"
)

// ProfileKind selects which document family a profile is extracted from
type ProfileKind string

const (
	KindCV         ProfileKind = "cv"
	KindJobPosting ProfileKind = "job"
)

// ParseProfileKind accepts the CLI/API spellings of a kind
func ParseProfileKind(s string) (ProfileKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cv", "resume":
		return KindCV, nil
	case "job", "offer", "job-posting":
		return KindJobPosting, nil
	default:
		return "", fmt.Errorf("unknown profile kind %q (expected cv or job)", s)
	}
}

// FormationEntry is one education line of a profile
type FormationEntry struct {
	NiveauEtudes  *string  `json:"niveau_etudes" yaml:"niveau_etudes"`
	DomaineEtudes []string `json:"domaine_etudes" yaml:"domaine_etudes"`
}

// ExperienceEntry is one work experience line of a profile
type ExperienceEntry struct {
	DomaineActivite []string `json:"domaine_activite" yaml:"domaine_activite"`
	PosteOccupe     *string  `json:"poste_occupe" yaml:"poste_occupe"`
	Duree           *string  `json:"duree" yaml:"duree"`
}

// ProfileHeader holds the headline title and availability date (dd-mm-yyyy)
type ProfileHeader struct {
	Titre         *string `json:"titre" yaml:"titre"`
	Disponibilite *string `json:"disponibilite" yaml:"disponibilite"`
}

// StructuredProfile is the structured record extracted from a CV or a job posting.
// Absent values stay nil or empty, they are never filled in.
type StructuredProfile struct {
	Formation   []FormationEntry  `json:"Formation" yaml:"Formation"`
	Competences []string          `json:"Competences" yaml:"Competences"`
	Experiences []ExperienceEntry `json:"Experiences" yaml:"Experiences"`
	Profil      ProfileHeader     `json:"Profil" yaml:"Profil"`
}

// Normalize replaces nil lists with empty ones so every profile
// serialises with the same shape.
func (p StructuredProfile) Normalize() StructuredProfile {
	out := StructuredProfile{
		Formation:   make([]FormationEntry, 0, len(p.Formation)),
		Competences: make([]string, 0, len(p.Competences)),
		Experiences: make([]ExperienceEntry, 0, len(p.Experiences)),
		Profil:      p.Profil,
	}
	for _, f := range p.Formation {
		if f.DomaineEtudes == nil {
			f.DomaineEtudes = []string{}
		}
		out.Formation = append(out.Formation, f)
	}
	out.Competences = append(out.Competences, p.Competences...)
	for _, e := range p.Experiences {
		if e.DomaineActivite == nil {
			e.DomaineActivite = []string{}
		}
		out.Experiences = append(out.Experiences, e)
	}
	return out
}

// Section names one of the four comparable parts of a profile
type Section string

const (
	SectionFormation   Section = "formation"
	SectionCompetences Section = "competences"
	SectionExperiences Section = "experiences"
	SectionProfil      Section = "profil"
)

// Sections lists the comparable sections in report order
var Sections = [4]Section{SectionFormation, SectionCompetences, SectionExperiences, SectionProfil}

// SectionValue returns the sub-structure of p for section s
func (p StructuredProfile) SectionValue(s Section) any {
	switch s {
	case SectionFormation:
		return p.Formation
	case SectionCompetences:
		return p.Competences
	case SectionExperiences:
		return p.Experiences
	case SectionProfil:
		return p.Profil
	default:
		return nil
	}
}

// SimilarityReport holds one cosine score per section, always all four
type SimilarityReport struct {
	Formation   float64 `json:"formation" yaml:"formation"`
	Competences float64 `json:"competences" yaml:"competences"`
	Experiences float64 `json:"experiences" yaml:"experiences"`
	Profil      float64 `json:"profil" yaml:"profil"`
}

// Get returns the score of section s
func (r SimilarityReport) Get(s Section) float64 {
	switch s {
	case SectionFormation:
		return r.Formation
	case SectionCompetences:
		return r.Competences
	case SectionExperiences:
		return r.Experiences
	case SectionProfil:
		return r.Profil
	}
	return 0
}

// Set stores the score of section s
func (r *SimilarityReport) Set(s Section, score float64) {
	switch s {
	case SectionFormation:
		r.Formation = score
	case SectionCompetences:
		r.Competences = score
	case SectionExperiences:
		r.Experiences = score
	case SectionProfil:
		r.Profil = score
	}
}

// Recommendation is the binary outcome of a match
type Recommendation string

const (
	RecommendationGood Recommendation = "Good"
	RecommendationWeak Recommendation = "Weak"
)

// MatchReport is the aggregated result of comparing a CV with a job posting
type MatchReport struct {
	PerSection     SimilarityReport `json:"per_section" yaml:"per_section"`
	Overall        float64          `json:"overall" yaml:"overall"`
	Recommendation Recommendation   `json:"recommendation" yaml:"recommendation"`
	Threshold      float64          `json:"threshold" yaml:"threshold"`
}

// ImpactMetrics is the cumulative environmental cost of model calls
type ImpactMetrics struct {
	GWP         float64 `json:"gwp" yaml:"gwp"`
	EnergyUsage float64 `json:"energy_usage" yaml:"energy_usage"`
}

// MissingValue marks a personal information field not found in the CV
const MissingValue = "Non renseigné"

// PersonalInfo is the contact block used to head a cover letter
type PersonalInfo struct {
	NomPrenom string `json:"nom_prenom" yaml:"nom_prenom"`
	Email     string `json:"email" yaml:"email"`
	Telephone string `json:"telephone" yaml:"telephone"`
	Adresse   string `json:"adresse" yaml:"adresse"`
}

// FillMissing replaces blank fields with MissingValue
func (p PersonalInfo) FillMissing() PersonalInfo {
	fill := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return MissingValue
		}
		return strings.TrimSpace(s)
	}
	return PersonalInfo{
		NomPrenom: fill(p.NomPrenom),
		Email:     fill(p.Email),
		Telephone: fill(p.Telephone),
		Adresse:   fill(p.Adresse),
	}
}

// ExtractProfileInput represents the input for structured extraction
type ExtractProfileInput struct {
	Text string      `json:"text" yaml:"text"`
	Kind ProfileKind `json:"kind" yaml:"kind"`
}

// CoverLetterInput represents the input for cover letter generation
type CoverLetterInput struct {
	CVText  string `json:"cvText" yaml:"cvText"`
	JobText string `json:"jobText" yaml:"jobText"`
}

// CoverLetter is a generated motivation letter
type CoverLetter struct {
	Letter    string       `json:"letter" yaml:"letter"`
	Candidate PersonalInfo `json:"candidate" yaml:"candidate"`
	Date      string       `json:"date" yaml:"date"`
}

// OptimizeCVInput represents the input for CV optimisation
type OptimizeCVInput struct {
	CVText  string `json:"cvText" yaml:"cvText"`
	JobText string `json:"jobText" yaml:"jobText"`
}

// OptimizedCV is a CV rewritten to fit one job posting. CV holds the
// sectioned text produced by the model.
type OptimizedCV struct {
	CV string `json:"cv" yaml:"cv"`
}

// MatchResult is what the match command and endpoint return
type MatchResult struct {
	Report     MatchReport        `json:"report" yaml:"report"`
	CVProfile  *StructuredProfile `json:"cvProfile,omitempty" yaml:"cvProfile,omitempty"`
	JobProfile *StructuredProfile `json:"jobProfile,omitempty" yaml:"jobProfile,omitempty"`
	Impact     ImpactMetrics      `json:"impact" yaml:"impact"`
}

// SimilarityResult is the score between two free texts
type SimilarityResult struct {
	Score float64 `json:"score" yaml:"score"`
}
