package invocation

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/photon-run/photon/internal/photonerr"
)

// validateArguments checks raw tool call arguments against a JSON Schema
// fragment derived by the analyzer. An empty schema accepts anything; the
// empty-properties object schema of a method that takes no argument struct
// accepts any object.
func validateArguments(schema map[string]any, arguments map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	// The analyzer builds "required" and "enum" as []string; jsonschema only
	// understands JSON-decoded values, so normalize through a JSON round trip.
	raw, err := json.Marshal(schema)
	if err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "invalid generated argument schema")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "invalid generated argument schema")
	}
	compiler := jsonschema.NewCompiler()
	const resourceURL = "photon://tool-arguments"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "invalid generated argument schema")
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "compile argument schema")
	}
	if err := sch.Validate(toInterfaceMap(arguments)); err != nil {
		return photonerr.Newf(photonerr.InvalidArguments, "arguments failed schema validation: %s", describeValidationError(err))
	}
	return nil
}

// toInterfaceMap converts map[string]any into the map[string]interface{}
// shape jsonschema/v6 expects; in modern Go these are the same type, but
// the explicit conversion documents the contract at the call site.
func toInterfaceMap(m map[string]any) any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// describeValidationError renders a jsonschema validation error as a single
// line suitable for an isError tool result.
func describeValidationError(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		return ve.Error()
	}
	return fmt.Sprintf("%v", err)
}
