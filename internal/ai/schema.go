package ai

import "google.golang.org/genai"

func nullable() *bool {
	b := true
	return &b
}

func nullableString() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Nullable: nullable()}
}

func stringList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

// profileResponseSchema constrains Gemini JSON mode to the four-section profile
func profileResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"Formation": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"niveau_etudes":  nullableString(),
						"domaine_etudes": stringList(),
					},
					Required: []string{"niveau_etudes", "domaine_etudes"},
				},
			},
			"Competences": stringList(),
			"Experiences": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"domaine_activite": stringList(),
						"poste_occupe":     nullableString(),
						"duree":            nullableString(),
					},
					Required: []string{"domaine_activite", "poste_occupe", "duree"},
				},
			},
			"Profil": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"titre":         nullableString(),
					"disponibilite": nullableString(),
				},
				Required: []string{"titre", "disponibilite"},
			},
		},
		Required: []string{"Formation", "Competences", "Experiences", "Profil"},
	}
}

func personalInfoResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"nom_prenom": nullableString(),
			"email":      nullableString(),
			"telephone":  nullableString(),
			"adresse":    nullableString(),
		},
		Required: []string{"nom_prenom", "email", "telephone", "adresse"},
	}
}

// profileJSONSchema is enforced on every model answer before decoding.
// Lists and strings may be null, unknown keys are rejected.
const profileJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Formation", "Competences", "Experiences", "Profil"],
  "additionalProperties": false,
  "definitions": {
    "nullableString": {"type": ["string", "null"]},
    "stringList": {"type": ["array", "null"], "items": {"type": "string"}}
  },
  "properties": {
    "Formation": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "niveau_etudes": {"$ref": "#/definitions/nullableString"},
          "domaine_etudes": {"$ref": "#/definitions/stringList"}
        }
      }
    },
    "Competences": {"$ref": "#/definitions/stringList"},
    "Experiences": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "domaine_activite": {"$ref": "#/definitions/stringList"},
          "poste_occupe": {"$ref": "#/definitions/nullableString"},
          "duree": {"$ref": "#/definitions/nullableString"}
        }
      }
    },
    "Profil": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "titre": {"$ref": "#/definitions/nullableString"},
        "disponibilite": {"$ref": "#/definitions/nullableString"}
      }
    }
  }
}`

const personalInfoJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "nom_prenom": {"type": ["string", "null"]},
    "email": {"type": ["string", "null"]},
    "telephone": {"type": ["string", "null"]},
    "adresse": {"type": ["string", "null"]}
  }
}`
