package ranking

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// recomputeSchema describes the body of POST /jobs/{id}/recompute.
const recomputeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["candidatePool"],
  "properties": {
    "candidatePool": {
      "type": "array",
      "items": {"type": "string", "maxLength": 128},
      "maxItems": 10000
    }
  },
  "additionalProperties": false
}`

var recomputeSchemaLoader = gojsonschema.NewStringLoader(recomputeSchema)

// validateRecomputeBody checks raw JSON against recomputeSchema.
func validateRecomputeBody(body []byte) error {
	res, err := gojsonschema.Validate(recomputeSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ValidationError{Msg: "invalid request: " + strings.Join(msgs, "; ")}
}
