package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator rejects request bodies that are not valid JSON or do
// not match a schema, before the handler sees them.
type JSONSchemaValidator struct {
	schema *jsonschema.Schema
	// Code is the error code written for malformed or non-conforming bodies.
	Code string
}

func NewJSONSchemaValidator(schemaJSON string) (*JSONSchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, err
	}

	return &JSONSchemaValidator{schema: schema, Code: "invalid_request"}, nil
}

// MustJSONSchemaValidator is NewJSONSchemaValidator for schemas compiled into the binary.
func MustJSONSchemaValidator(schemaJSON, code string) *JSONSchemaValidator {
	v, err := NewJSONSchemaValidator(schemaJSON)
	if err != nil {
		panic("security: compile schema: " + err.Error())
	}
	if code != "" {
		v.Code = code
	}
	return v
}

// Validate checks an already decoded document. Numbers must be json.Number.
func (v *JSONSchemaValidator) Validate(doc interface{}) error {
	return v.schema.Validate(doc)
}

func (v *JSONSchemaValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			WriteJSONError(w, r, http.StatusBadRequest, v.Code)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				WriteJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
				return
			}
			WriteJSONError(w, r, http.StatusBadRequest, v.Code)
			return
		}
		_ = r.Body.Close()

		var payload interface{}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			WriteJSONError(w, r, http.StatusBadRequest, v.Code)
			return
		}

		if err := v.Validate(payload); err != nil {
			WriteJSONError(w, r, http.StatusBadRequest, v.Code)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
