package types

import (
	"encoding/json"
	"testing"
)

func TestNormalizeKeepsAllKeys(t *testing.T) {
	data, err := json.Marshal(StructuredProfile{}.Normalize())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Formation":[],"Competences":[],"Experiences":[],"Profil":{"titre":null,"disponibilite":null}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := StructuredProfile{Formation: []FormationEntry{{}}}
	out := in.Normalize()

	if in.Formation[0].DomaineEtudes != nil {
		t.Error("input profile was mutated")
	}
	if out.Formation[0].DomaineEtudes == nil {
		t.Error("output domaine_etudes should be an empty list")
	}
}

func TestSimilarityReportHasFourKeys(t *testing.T) {
	var r SimilarityReport
	for i, s := range Sections {
		r.Set(s, float64(i)/10)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m) != 4 {
		t.Fatalf("expected 4 keys, got %d: %v", len(m), m)
	}
	for i, s := range Sections {
		if m[string(s)] != float64(i)/10 || r.Get(s) != float64(i)/10 {
			t.Errorf("section %s: got %v", s, m[string(s)])
		}
	}
}

func TestParseProfileKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProfileKind
		wantErr bool
	}{
		{"cv", KindCV, false},
		{"CV", KindCV, false},
		{"job", KindJobPosting, false},
		{"offer", KindJobPosting, false},
		{"letter", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProfileKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseProfileKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPersonalInfoFillMissing(t *testing.T) {
	got := PersonalInfo{NomPrenom: " Jean Dupont ", Email: ""}.FillMissing()
	if got.NomPrenom != "Jean Dupont" {
		t.Errorf("NomPrenom = %q", got.NomPrenom)
	}
	if got.Email != MissingValue || got.Telephone != MissingValue || got.Adresse != MissingValue {
		t.Errorf("missing fields not filled: %+v", got)
	}
}
