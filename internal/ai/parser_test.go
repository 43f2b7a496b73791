package ai

import (
	"testing"

	"cvmatch/internal/errors"
	"cvmatch/internal/types"
)

const validProfile = `{
  "Formation": [{"niveau_etudes": "Master", "domaine_etudes": ["Informatique"]}],
  "Competences": ["Go", "SQL"],
  "Experiences": [{"domaine_activite": ["Tech"], "poste_occupe": "Développeur", "duree": null}],
  "Profil": {"titre": "Développeur Backend", "disponibilite": null}
}`

func TestParseStructuredProfile(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", validProfile},
		{"fenced", "```json\n" + validProfile + "\n```"},
		{"fence without tag", "```\n" + validProfile + "\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := ParseStructuredProfile(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(profile.Competences) != 2 || profile.Competences[0] != "Go" {
				t.Errorf("Competences = %v", profile.Competences)
			}
			if profile.Profil.Titre == nil || *profile.Profil.Titre != "Développeur Backend" {
				t.Errorf("Titre = %v", profile.Profil.Titre)
			}
			if profile.Experiences[0].Duree != nil {
				t.Errorf("null duree must stay nil, got %q", *profile.Experiences[0].Duree)
			}
		})
	}
}

func TestParseStructuredProfileKeepsAbsentValuesEmpty(t *testing.T) {
	raw := `{"Formation": null, "Competences": [], "Experiences": [], "Profil": {"titre": null, "disponibilite": null}}`

	profile, err := ParseStructuredProfile(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Formation == nil || len(profile.Formation) != 0 {
		t.Errorf("Formation should be an empty list, got %#v", profile.Formation)
	}
	if profile.Profil.Titre != nil || profile.Profil.Disponibilite != nil {
		t.Errorf("Profil should stay null: %+v", profile.Profil)
	}
}

func TestParseStructuredProfileRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"Formation": [`},
		{"empty", "   "},
		{"prose", "Voici le JSON demandé"},
		{"missing section", `{"Formation": [], "Competences": [], "Experiences": []}`},
		{"extra section", `{"Formation": [], "Competences": [], "Experiences": [], "Profil": null, "Langues": []}`},
		{"extra nested key", `{"Formation": [{"niveau_etudes": "Master", "ecole": "X"}], "Competences": [], "Experiences": [], "Profil": null}`},
		{"wrong type", `{"Formation": [], "Competences": "Go, SQL", "Experiences": [], "Profil": null}`},
		{"trailing object", validProfile + ` {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := ParseStructuredProfile(tt.raw)
			if err == nil {
				t.Fatalf("expected error, got profile %+v", profile)
			}
			if !errors.HasType(err, errors.ErrorTypeSchema) {
				t.Errorf("expected schema error, got %v", err)
			}
			raw, ok := errors.RawOutput(err)
			if !ok || raw != tt.raw {
				t.Errorf("raw output = %q, %v; want the model answer", raw, ok)
			}
		})
	}
}

func TestParsePersonalInfo(t *testing.T) {
	raw := `{"nom_prenom": "Jean Dupont", "email": "jean. dupont@mail.fr", "telephone": "Non réseigner", "adresse": null}`

	info, err := ParsePersonalInfo(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := types.PersonalInfo{
		NomPrenom: "Jean Dupont",
		Email:     "jean.dupont@mail.fr",
		Telephone: types.MissingValue,
		Adresse:   types.MissingValue,
	}
	if info != want {
		t.Errorf("got %+v, want %+v", info, want)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```json {\"a\":1}```":    `{"a":1}`,
		"  \n{\"a\":1}\n  ":       `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
