package relayer

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// submissionSchema constrains the submission envelope before any
// decoding. Request fields are validated per payload type after the
// type switch.
const submissionSchema = `{
	"type": "object",
	"required": ["request", "signature", "type"],
	"properties": {
		"request": {"type": "object"},
		"signature": {
			"type": "string",
			"pattern": "^0x[0-9a-fA-F]{130}$"
		},
		"type": {
			"type": "string",
			"enum": ["forward", "permit"]
		}
	}
}`

// ValidateSubmission checks a raw submission body against the
// submission schema, returning an error naming every violation.
func ValidateSubmission(body []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(submissionSchema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		details = append(details, violation.String())
	}
	return fmt.Errorf("invalid submission: %s", strings.Join(details, "; "))
}
