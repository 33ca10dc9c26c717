package composition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outputSchemaDoc describes the supergraph binary's JSON envelope (spec.md
// §6): either `{"Ok": {"supergraphSdl": "...", "hints": [...]}}` or
// `{"Err": {"errors": [...], "is_config": bool}}`, and nothing else.
const outputSchemaDoc = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"minProperties": 1,
	"maxProperties": 1,
	"properties": {
		"Ok": {
			"type": "object",
			"required": ["supergraphSdl"],
			"properties": {
				"supergraphSdl": {"type": "string"},
				"hints": {"type": "array", "items": {"type": "string"}}
			}
		},
		"Err": {
			"type": "object",
			"required": ["errors"],
			"properties": {
				"errors": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["message"],
						"properties": {
							"message": {"type": "string"},
							"code": {"type": "string"},
							"subgraph": {"type": "string"}
						}
					}
				},
				"is_config": {"type": "boolean"}
			}
		}
	}
}`

var (
	outputSchemaOnce sync.Once
	outputSchema     *jsonschema.Schema
	outputSchemaErr  error
)

func compiledOutputSchema() (*jsonschema.Schema, error) {
	outputSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("supergraph-output.json", strings.NewReader(outputSchemaDoc)); err != nil {
			outputSchemaErr = fmt.Errorf("compile supergraph output schema: %w", err)
			return
		}
		outputSchema, outputSchemaErr = compiler.Compile("supergraph-output.json")
	})
	return outputSchema, outputSchemaErr
}

// rawOutputErr is the `Err` variant's `errors[]` entries, decoded before
// being converted into BuildIssue.
type rawOutputErr struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	Subgraph string `json:"subgraph"`
}

type rawOutput struct {
	Ok *struct {
		SupergraphSDL string   `json:"supergraphSdl"`
		Hints         []string `json:"hints"`
	} `json:"Ok"`
	Err *struct {
		Errors   []rawOutputErr `json:"errors"`
		IsConfig bool           `json:"is_config"`
	} `json:"Err"`
}

// parsedOutput is the decoded `Ok` branch of the supergraph binary's
// output document.
type parsedOutput struct {
	SupergraphSDL string
	Hints         []string
}

// parseOutput validates raw against the supergraph binary's JSON schema and
// decodes it into either a parsedOutput (Ok) or a *BuildError (Err). Schema
// or shape failures surface as *OutputParseError (spec.md §7 "OutputParse").
func parseOutput(raw []byte) (*parsedOutput, *BuildError, error) {
	schema, err := compiledOutputSchema()
	if err != nil {
		return nil, nil, &OutputParseError{Err: err}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, nil, &OutputParseError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := schema.Validate(generic); err != nil {
		return nil, nil, &OutputParseError{Err: fmt.Errorf("output does not match expected shape: %w", err)}
	}

	var doc rawOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &OutputParseError{Err: err}
	}

	switch {
	case doc.Ok != nil:
		return &parsedOutput{SupergraphSDL: doc.Ok.SupergraphSDL, Hints: doc.Ok.Hints}, nil, nil
	case doc.Err != nil:
		issues := make([]BuildIssue, len(doc.Err.Errors))
		for i, e := range doc.Err.Errors {
			issues[i] = BuildIssue{Message: e.Message, Code: e.Code, Subgraph: e.Subgraph}
		}
		return nil, &BuildError{Issues: issues, IsConfig: doc.Err.IsConfig}, nil
	default:
		return nil, nil, &OutputParseError{Err: fmt.Errorf("output has neither Ok nor Err")}
	}
}
