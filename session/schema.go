package session

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"ctxguard/budget"
)

var histogramType = reflect.TypeOf(budget.Histogram{})

// Schema describes the persisted session record. Unknown properties are
// allowed so older binaries can read newer files.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t != histogramType {
				return nil
			}
			return &jsonschema.Schema{
				Type:        "object",
				Description: "Count per key, in first-seen order.",
				AdditionalProperties: &jsonschema.Schema{
					Type:    "integer",
					Minimum: json.Number("0"),
				},
			}
		},
	}
	s := r.Reflect(&budget.State{})
	s.Title = "ctxguard session state"
	return s
}
