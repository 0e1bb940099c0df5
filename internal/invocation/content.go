package invocation

import "encoding/json"

// ContentBlock is one block of an MCP tools/call result, mirroring the
// protocol's {"type": "text"|"json"|"markdown"|"html", ...} content union.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// CallResult is the full tools/call response: a content block list plus
// the isError flag the protocol uses instead of a transport-level error
// for expected failures (spec section 7: thrown errors map to isError).
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// coerceResult converts a tool method's Go return value into content
// blocks according to its declared OutputFormat. A string return is used
// verbatim for text/markdown/html; for those formats anything else ([]byte
// included) is marshaled to JSON text, since the analyzer cannot prove a
// return type prints sensibly as markdown or HTML. The json format carries
// the value as-is in the block's Data field.
func coerceResult(format string, value any) (CallResult, error) {
	if value == nil {
		return CallResult{Content: []ContentBlock{{Type: "text", Text: ""}}}, nil
	}

	switch format {
	case "json":
		return CallResult{Content: []ContentBlock{{Type: "json", Data: value}}}, nil
	case "markdown", "html":
		if s, ok := value.(string); ok {
			return CallResult{Content: []ContentBlock{{Type: format, Text: s}}}, nil
		}
		return marshalAsJSON(value)
	default: // "text"
		if s, ok := value.(string); ok {
			return CallResult{Content: []ContentBlock{{Type: "text", Text: s}}}, nil
		}
		return marshalAsJSON(value)
	}
}

func marshalAsJSON(value any) (CallResult, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return CallResult{}, err
	}
	return CallResult{Content: []ContentBlock{{Type: "text", Text: string(b)}}}, nil
}

// errorResult builds an isError=true CallResult from a failure, per the
// spec's "errors thrown from a tool method become isError results, not
// protocol-level failures" rule.
func errorResult(message string) CallResult {
	return CallResult{Content: []ContentBlock{{Type: "text", Text: message}}, IsError: true}
}
