// Package analyzer implements the Source Analyzer: given one Go source
// file it produces a Photon Spec skeleton without executing any of the
// user's code. It operates purely on the parsed syntax tree.
//
// A photon source file declares one root struct type (its "class"); the
// struct's exported fields become constructor parameters and its exported
// methods become tools, prompts, or resources depending on //photon:
// directive comments, the textual counterpart of the original design's
// decorators.
package analyzer

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photonerr"
)

// Span locates a byte range in the analyzed source, attached to analyzer
// errors so a caller can point at the offending text.
type Span struct {
	Line   int
	Column int
}

// SpecSkeleton is the output of Analyze: everything the Source Analyzer can
// derive without running user code. The loader fills in Name (when not
// overridden), SourceHash, and SourcePath after analysis.
type SpecSkeleton struct {
	Name         string
	Description  string
	Tools        []catalog.Member
	Prompts      []catalog.Member
	Resources    []catalog.Member
	ConfigSchema []catalog.ConfigParam
}

// Analyze parses sourceText and extracts a SpecSkeleton. It is a pure
// function of its input: identical source always yields an identical
// skeleton (field order included), which is what makes content-addressed
// compilation caching in the loader sound.
func Analyze(sourceText string) (*SpecSkeleton, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "photon.go", sourceText, parser.ParseComments)
	if err != nil {
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			span := Span{Line: list[0].Pos.Line, Column: list[0].Pos.Column}
			return nil, photonerr.Newf(photonerr.LoadError, "source is not valid Go at line %d, column %d: %v", span.Line, span.Column, list[0].Msg).WithDetail(span)
		}
		return nil, photonerr.Wrap(photonerr.LoadError, err, "source is not valid Go")
	}

	root, rootDecl := findRootType(file)
	if root == "" {
		return nil, photonerr.New(photonerr.LoadError, "no photon root type found: declare exactly one exported struct with exported methods, or mark one with a \"photon:root\" comment")
	}

	enums := collectEnums(file)
	skeleton := &SpecSkeleton{Name: toKebabCase(root)}

	if rootDecl.Doc != nil {
		desc, dirLines := splitDoc(rawDocLines(rootDecl.Doc))
		skeleton.Description = desc
		if d := parseDirectives(dirLines); d.Name != "" {
			skeleton.Name = d.Name
		}
	}

	skeleton.ConfigSchema = configParams(rootDecl)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		if receiverTypeName(fn.Recv.List[0].Type) != root {
			continue
		}
		if !fn.Name.IsExported() {
			continue // non-underscore-prefixed in the TS source maps to exported in Go
		}
		member, kind, err := analyzeMethod(file, fn, enums)
		if err != nil {
			return nil, err
		}
		switch kind {
		case catalog.KindPrompt:
			skeleton.Prompts = append(skeleton.Prompts, member)
		case catalog.KindResource:
			skeleton.Resources = append(skeleton.Resources, member)
		default:
			skeleton.Tools = append(skeleton.Tools, member)
		}
	}

	return skeleton, nil
}

// findRootType locates the photon's root struct: the one exported struct
// type whose doc comment carries "photon:root", or, if none is tagged,
// the sole exported struct type declared in the file that has at least one
// exported method.
func findRootType(file *ast.File) (string, *ast.GenDecl) {
	type candidate struct {
		name string
		decl *ast.GenDecl
	}
	var tagged *candidate
	var candidates []candidate

	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok.String() != "type" {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, ok := ts.Type.(*ast.StructType); !ok {
				continue
			}
			if !ts.Name.IsExported() {
				continue
			}
			if gd.Doc != nil && hasRootDirective(gd.Doc) {
				tagged = &candidate{ts.Name.Name, gd}
			}
			candidates = append(candidates, candidate{ts.Name.Name, gd})
		}
	}
	if tagged != nil {
		return tagged.name, tagged.decl
	}

	var withMethods []candidate
	for _, c := range candidates {
		if hasExportedMethod(file, c.name) {
			withMethods = append(withMethods, c)
		}
	}
	if len(withMethods) == 1 {
		return withMethods[0].name, withMethods[0].decl
	}
	return "", nil
}

func hasExportedMethod(file *ast.File, typeName string) bool {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		if receiverTypeName(fn.Recv.List[0].Type) == typeName && fn.Name.IsExported() {
			return true
		}
	}
	return false
}

func receiverTypeName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// configParams derives constructor parameters from the root struct's
// exported fields. Each becomes an environment-configured ConfigParam per
// spec section 6: "{PHOTONNAME}_{PARAM_NAME}".
func configParams(gd *ast.GenDecl) []catalog.ConfigParam {
	var st *ast.StructType
	for _, spec := range gd.Specs {
		if ts, ok := spec.(*ast.TypeSpec); ok {
			if s, ok := ts.Type.(*ast.StructType); ok {
				st = s
			}
		}
	}
	if st == nil {
		return nil
	}
	var params []catalog.ConfigParam
	for _, f := range st.Fields.List {
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			p := catalog.ConfigParam{Name: name.Name, Type: goTypeName(f.Type), Required: true}
			if f.Doc != nil {
				p.Description, _ = splitDoc(rawDocLines(f.Doc))
			}
			if f.Tag != nil {
				tag := strings.Trim(f.Tag.Value, "`")
				if def, ok := lookupTag(tag, "default"); ok {
					p.Default = def
					p.Required = false
				}
				if sym, ok := lookupTag(tag, "defaultsym"); ok {
					p.DefaultSymbol = sym
					p.Required = false
				}
			}
			if _, isPtr := f.Type.(*ast.StarExpr); isPtr {
				p.Required = false
			}
			params = append(params, p)
		}
	}
	return params
}

func goTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return goTypeName(t.X)
	case *ast.Ident:
		switch t.Name {
		case "bool":
			return "boolean"
		case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
			return "number"
		default:
			return "string"
		}
	case *ast.ArrayType:
		return "array"
	default:
		return "object"
	}
}

// analyzeMethod derives one catalog.Member from a method declaration.
func analyzeMethod(file *ast.File, fn *ast.FuncDecl, enums enumTable) (catalog.Member, catalog.MemberKind, error) {
	var description string
	var d directives
	if fn.Doc != nil {
		var dirLines []string
		description, dirLines = splitDoc(rawDocLines(fn.Doc))
		d = parseDirectives(dirLines)
	} else {
		d = directives{Unknown: map[string]string{}, ParamDocs: map[string]string{}}
	}

	member := catalog.Member{
		MethodName:  fn.Name.Name,
		Name:        fn.Name.Name,
		Description: description,
		LinkedUI:    d.LinkedUI,
		Flags: catalog.Flags{
			Autorun:  d.Autorun,
			Internal: d.Internal,
			IsStatic: d.Static != "",
		},
	}
	if d.Name != "" {
		member.Name = d.Name
	}

	kind := catalog.KindTool
	switch {
	case d.Template:
		kind = catalog.KindPrompt
	case d.Static != "":
		kind = catalog.KindResource
		member.Kind = kind
		member.URITemplate = d.Static
		member.MIMEType = d.Output
		if member.MIMEType == "" {
			member.MIMEType = "text/plain"
		}
		return member, kind, nil
	}
	member.Kind = kind

	switch d.Output {
	case "markdown":
		member.OutputFormat = catalog.OutputMarkdown
	case "html":
		member.OutputFormat = catalog.OutputHTML
	case "json":
		member.OutputFormat = catalog.OutputJSON
	default:
		member.OutputFormat = catalog.OutputText
	}

	schema, err := paramSchema(file, fn, d, enums)
	if err != nil {
		return catalog.Member{}, "", err
	}
	member.InputSchema = schema
	return member, kind, nil
}

// paramSchema derives the JSON Schema for a method's single parameter
// object. A method with no non-context, non-receiver parameter gets an
// empty-object schema. A photon.Context invocation-surface parameter is
// skipped the same way context.Context is: it carries no client-supplied
// data and contributes nothing to the tool's input schema.
func paramSchema(file *ast.File, fn *ast.FuncDecl, d directives, enums enumTable) (map[string]any, error) {
	var paramType ast.Expr
	for _, field := range fn.Type.Params.List {
		if isContextType(field.Type) || isSurfaceType(field.Type) {
			continue
		}
		paramType = field.Type
		break
	}
	if paramType == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}

	name := receiverTypeName(paramType)
	if name == "" {
		return nil, photonerr.Newf(photonerr.LoadError, "method %s: unsupported parameter type, expected a named struct", fn.Name.Name)
	}
	st := findStructType(file, name)
	if st == nil {
		return nil, photonerr.Newf(photonerr.LoadError, "method %s: parameter type %s is not declared in this file", fn.Name.Name, name)
	}
	schema := structSchema(st, enums, file)
	if props, ok := schema["properties"].(map[string]any); ok {
		for pname, text := range d.ParamDocs {
			if frag, ok := props[pname].(map[string]any); ok {
				if _, has := frag["description"]; !has {
					frag["description"] = text
				}
			}
		}
	}
	return schema, nil
}

func isContextType(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

// isSurfaceType recognizes a parameter declared as photon.Context, the
// invocation surface the loader vendors into every photon's own isolated
// build (see loader.sdkSource). It is matched by import alias and type
// name rather than by the engine's reflection-time structural check,
// since the analyzer only ever sees syntax, never a resolved type.
func isSurfaceType(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "photon" && sel.Sel.Name == "Context"
}

func toKebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
