package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/netbirdio/netbird-updater/updater/status"
)

const schemaURL = "plan.schema.json"

//go:embed schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func planSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile plan schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Encode serializes the plan for the handoff channel
func Encode(p *Plan) ([]byte, error) {
	if p == nil {
		return nil, status.Errorf(status.Transport, "cannot encode a nil plan")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, status.Wrap(status.Transport, err, "encode plan")
	}
	return data, nil
}

// Decode validates data against the plan schema and deserializes it. Plan invariants
// are checked separately by Validate.
func Decode(data []byte) (*Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, status.Errorf(status.Transport, "empty plan payload")
	}

	sch, err := planSchema()
	if err != nil {
		return nil, status.Wrap(status.Transport, err, "load plan schema")
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, status.Wrap(status.Transport, err, "malformed plan payload")
	}

	if err := sch.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return nil, status.Wrap(status.Transport, validationErr, "plan payload failed schema validation")
		}
		return nil, status.Wrap(status.Transport, err, "plan payload failed schema validation")
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, status.Wrap(status.Transport, err, "decode plan")
	}
	return &p, nil
}
