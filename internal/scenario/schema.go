package scenario

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// scenarioSchema is the CUE contract every scenario document must
// satisfy. Definitions are closed, so unknown fields fail unification
// before the strict YAML decode even runs.
const scenarioSchema = `
#Scenario: {
	name:        string & !=""
	description: string & !=""
	start_time:  string & !=""
	channels:    [...#Channel] & [_, ...]
	events?:     [...#Event]
	script:      [...#Step] & [_, ...]
	assertions?: [...#Assertion]
}

#Channel: {
	name:      string & !=""
	capacity?: int & >=0
}

#Event: {
	channel:   string & !=""
	after?:    string
	priority?: int & >=0 & <=100
	action:    "add" | "remove" | "update" | "clear"
	entry?:    #Entry
	entry_id?: string
	agent_id?: string
}

#Entry: {
	id:    string & !=""
	body?: string
	tags?: [...string]
}

#Step: {
	advance?:         string
	set_time?:        string
	execute_skipped?: bool
	skip_to_next?:    bool
	undo?:            int & >=1
	redo?:            int & >=1
}

#Assertion: {
	type:     "status_count" | "entry_count" | "clock_at" | "undo_depth" | "redo_depth"
	status?:  string
	channel?: string
	at?:      string
	count?:   int & >=0
}
`

// ValidateDocument checks a decoded YAML document against the scenario
// schema. The document is unified with the closed #Scenario definition,
// so both missing required fields and unknown fields are rejected.
func ValidateDocument(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	val := ctx.Encode(normalizeValue(doc))
	if err := val.Err(); err != nil {
		return fmt.Errorf("cannot encode document: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// normalizeValue rewrites YAML-decoded values into shapes CUE encodes
// predictably: timestamps back to RFC 3339 strings, interface-keyed
// maps to string-keyed ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeValue(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprintf("%v", k)] = normalizeValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	default:
		return v
	}
}

// formatCUEError returns the first CUE error with its position, which
// reads far better than the concatenated multi-error default.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return fmt.Errorf("%s (at %s)", first.Error(), positions[0])
	}
	return fmt.Errorf("%s", first.Error())
}
