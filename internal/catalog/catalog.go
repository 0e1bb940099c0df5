// Package catalog defines the sum-typed records a Photon exposes: tools,
// prompts, and resources. Per the design notes, these are modeled as
// variants of one "exposed member" record rather than a class hierarchy.
package catalog

import "fmt"

// MemberKind tags which protocol surface an exposed member belongs to.
type MemberKind string

const (
	KindTool     MemberKind = "tool"
	KindPrompt   MemberKind = "prompt"
	KindResource MemberKind = "resource"
)

// OutputFormat hints how a tool's return value should be rendered.
type OutputFormat string

const (
	OutputText     OutputFormat = "text"
	OutputJSON     OutputFormat = "json"
	OutputMarkdown OutputFormat = "markdown"
	OutputHTML     OutputFormat = "html"
)

// Flags captures the boolean annotation tags recognized by the analyzer.
type Flags struct {
	Autorun  bool
	IsStatic bool
	Internal bool
}

// Member is the single tagged-union record for tools, prompts, and
// resources. Which fields are meaningful depends on Kind:
//   - KindTool/KindPrompt: MethodName, InputSchema, OutputFormat, LinkedUI, Flags.
//   - KindResource: MethodName, URITemplate, MIMEType.
type Member struct {
	Kind MemberKind

	// MethodName is the user class method this member was derived from.
	MethodName string
	// Name is the protocol-facing name (method name, possibly overridden).
	Name string
	// Description is the first docblock paragraph, or an override.
	Description string

	// InputSchema is the JSON Schema object for the method's single
	// parameter object. Present for tools and prompts.
	InputSchema map[string]any

	// OutputFormat hints how a tool's return value renders. Tools only.
	OutputFormat OutputFormat
	// LinkedUI names a resource that should render this tool's result.
	LinkedUI string
	// LayoutHints is opaque metadata passed through unmodified.
	LayoutHints map[string]any

	Flags Flags

	// URITemplate is the RFC-6570-style template for resources, e.g. "foo://{id}".
	URITemplate string
	// MIMEType is the declared resource content type.
	MIMEType string
}

// QualifiedName returns the protocol namespace name "{photonName}/{methodName}"
// used for tools per the data model invariants.
func QualifiedName(photonName, methodName string) string {
	return fmt.Sprintf("%s/%s", photonName, methodName)
}

// ConfigParam describes one constructor parameter, mapped to an environment
// variable at load time.
type ConfigParam struct {
	Name     string
	Type     string // "string", "number", "boolean", "enum", "object", "array"
	Required bool
	Default  any
	// DefaultSymbol records a well-known default expression (e.g. "homedir()")
	// symbolically instead of evaluating it, per the analyzer's numeric and
	// edge policies.
	DefaultSymbol string
	EnumValues    []string
	Description   string
}

// Spec is the in-memory Photon Spec, rebuilt on every load per the data
// model. It is owned by the loader and referenced read-only elsewhere.
type Spec struct {
	Name        string
	DisplayName string
	Description string
	Version     string
	Icon        string

	Tools     []Member
	Prompts   []Member
	Resources []Member

	ConfigSchema []ConfigParam

	SourceHash string
	SourcePath string
}

// Tool looks up a tool by its protocol-facing Name (the method name unless
// overridden by a //photon:name directive).
func (s *Spec) Tool(name string) (Member, bool) {
	for _, m := range s.Tools {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Prompt looks up a prompt by its protocol-facing Name (the method name
// unless overridden by a //photon:name directive).
func (s *Spec) Prompt(name string) (Member, bool) {
	for _, m := range s.Prompts {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// MatchResource finds the resource whose URI template matches uri and
// returns it together with the extracted placeholder values.
func (s *Spec) MatchResource(uri string) (Member, map[string]string, bool) {
	for _, m := range s.Resources {
		if params, ok := matchTemplate(m.URITemplate, uri); ok {
			return m, params, true
		}
	}
	return Member{}, nil, false
}
