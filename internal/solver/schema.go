package solver

import "github.com/santhosh-tekuri/jsonschema/v5"

// outputSchemaJSON is the solver stdout contract. max_R, peak_R2 and
// violations are required; max_R_time is optional because the upstream
// solver does not always know the peak timestamp.
const outputSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["max_R", "peak_R2", "violations"],
  "properties": {
    "max_R": {"type": "number"},
    "peak_R2": {"type": "number"},
    "max_R_time": {"type": "number"},
    "violations": {
      "type": "array",
      "items": {
        "type": "array",
        "items": {"type": "number"},
        "minItems": 2,
        "maxItems": 2
      }
    }
  }
}`

var outputSchema = jsonschema.MustCompileString("solver-output.schema.json", outputSchemaJSON)
