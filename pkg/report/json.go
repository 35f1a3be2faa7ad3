package report

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned by ValidateJSON for documents that do not
// match the summary schema.
var ErrSchemaViolation = errors.New("report does not match schema")

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema of the json report.
func Schema() []byte {
	return schemaJSON
}

func renderJSON(w io.Writer, sum Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

// ValidateJSON checks a rendered json report against the embedded schema.
func ValidateJSON(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate json report: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
