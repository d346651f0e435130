package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/lexivisual/internal/ai"
)

var (
	textSchema = mustSchema(`{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text": {"type": "string"}
		}
	}`)

	answersSchema = mustSchema(`{
		"type": "object",
		"required": ["answers"],
		"properties": {
			"answers": {
				"type": "object",
				"additionalProperties": {"type": "string"}
			}
		}
	}`)

	exportSchema = mustSchema(`{
		"type": "object",
		"required": ["answers", "analysis"],
		"properties": {
			"answers": {
				"type": "object",
				"minProperties": 1,
				"additionalProperties": {"type": "string"}
			},
			"analysis": {"type": "string"}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return s
}

// errBodyTooLarge is returned when a body exceeds the configured cap.
var errBodyTooLarge = errors.New("request body too large")

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// decodeJSON checks data against schema and unmarshals it into dst.
// Shape problems come back as validation errors.
func decodeJSON(data []byte, schema *gojsonschema.Schema, dst any) error {
	if !json.Valid(data) {
		return ai.NewValidationError("Request body must be valid JSON")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return ai.NewValidationError("Request body must be valid JSON")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return ai.NewValidationError("Invalid request body: " + strings.Join(errs, "; "))
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return ai.NewValidationError("Invalid request body: " + err.Error())
	}
	return nil
}

// decodeRequest reads and decodes the request body, writing the error
// response itself when it fails.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	data, err := readBody(w, r, s.maxBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
			return err
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Could not read request body"})
		return err
	}
	if err := decodeJSON(data, schema, dst); err != nil {
		writeError(w, r, err, http.StatusInternalServerError, msgInternal)
		return err
	}
	return nil
}
