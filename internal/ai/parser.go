package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"cvmatch/internal/errors"
	"cvmatch/internal/types"

	"github.com/xeipuuv/gojsonschema"
)

var (
	profileSchema      = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compileSchema(profileJSONSchema) })
	personalInfoSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compileSchema(personalInfoJSONSchema) })
)

func compileSchema(src string) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
}

// ParseStructuredProfile turns raw model output into a profile.
// Output that is not exactly the four-section schema is rejected with a
// SCHEMA_PARSE_FAILED error carrying raw; nothing is repaired or guessed.
func ParseStructuredProfile(raw string) (types.StructuredProfile, error) {
	var profile types.StructuredProfile
	if err := decodeStrict(raw, profileSchema, &profile); err != nil {
		return types.StructuredProfile{}, err
	}
	return profile.Normalize(), nil
}

// ParsePersonalInfo turns raw model output into contact details.
// Missing or placeholder values become types.MissingValue.
func ParsePersonalInfo(raw string) (types.PersonalInfo, error) {
	var info types.PersonalInfo
	if err := decodeStrict(raw, personalInfoSchema, &info); err != nil {
		return types.PersonalInfo{}, err
	}

	info.Email = strings.Join(strings.Fields(info.Email), "")
	for _, field := range []*string{&info.NomPrenom, &info.Email, &info.Telephone, &info.Adresse} {
		if isPlaceholder(*field) {
			*field = ""
		}
	}
	return info.FillMissing(), nil
}

// isPlaceholder matches the "not provided" spellings models answer with
func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "none", "n/a", "non renseigné", "non renseigne", "non réseigner", "non renseigner":
		return true
	}
	return false
}

func decodeStrict(raw string, schema func() (*gojsonschema.Schema, error), out any) error {
	payload := stripCodeFence(raw)
	if payload == "" {
		return errors.NewSchemaParseError("model returned an empty answer", raw, nil)
	}

	compiled, err := schema()
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "invalid built-in JSON schema", err)
	}

	result, err := compiled.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return errors.NewSchemaParseError("model answer is not valid JSON", raw, err)
	}
	if !result.Valid() {
		return errors.NewSchemaParseError("model answer does not match the expected schema", raw,
			schemaViolations(result.Errors()))
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.NewSchemaParseError("model answer could not be decoded", raw, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.NewSchemaParseError("model answer has trailing content", raw, err)
	}
	return nil
}

type schemaViolations []gojsonschema.ResultError

func (v schemaViolations) Error() string {
	var buf bytes.Buffer
	for i, e := range v {
		if i > 0 {
			buf.WriteString("; ")
		}
		field := e.Field()
		if field == "" {
			field = "(root)"
		}
		fmt.Fprintf(&buf, "%s: %s", field, e.Description())
	}
	return buf.String()
}

// stripCodeFence removes a markdown ``` fence around a JSON answer
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
