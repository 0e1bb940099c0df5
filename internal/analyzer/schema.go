package analyzer

import (
	"go/ast"
	"strconv"
	"strings"
)

// enumTable maps a locally-declared named string type to its const literal
// values, e.g. "type Color string" with a const block of Color values
// becomes enumTable["Color"] = []string{"red", "green"}. This is the
// Go-idiomatic counterpart of "union of literal strings becomes enum".
type enumTable map[string][]string

// collectEnums scans top-level const declarations in the file for blocks
// whose declared type is a locally-defined named string type.
func collectEnums(file *ast.File) enumTable {
	enums := enumTable{}
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok.String() != "const" {
			continue
		}
		var lastType string
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			if vs.Type != nil {
				if ident, ok := vs.Type.(*ast.Ident); ok {
					lastType = ident.Name
				}
			}
			if lastType == "" {
				continue
			}
			for i, name := range vs.Names {
				if i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.BasicLit)
				if !ok || lit.Kind.String() != "STRING" {
					continue
				}
				val, err := strconv.Unquote(lit.Value)
				if err != nil {
					continue
				}
				_ = name
				enums[lastType] = append(enums[lastType], val)
			}
		}
	}
	return enums
}

// findStructType locates the *ast.StructType declared under the given type
// name within file, returning nil if not found. Analysis is restricted to
// the single source file; a param type declared in another file or package
// cannot be resolved.
func findStructType(file *ast.File, name string) *ast.StructType {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok.String() != "type" {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || ts.Name.Name != name {
				continue
			}
			if st, ok := ts.Type.(*ast.StructType); ok {
				return st
			}
		}
	}
	return nil
}

// fieldSchema builds a JSON-Schema fragment for one struct field's type.
func fieldSchema(expr ast.Expr, enums enumTable, file *ast.File) map[string]any {
	switch t := expr.(type) {
	case *ast.StarExpr:
		// Pointer fields are optional; the underlying schema is unchanged.
		return fieldSchema(t.X, enums, file)
	case *ast.Ident:
		switch t.Name {
		case "string":
			return map[string]any{"type": "string"}
		case "bool":
			return map[string]any{"type": "boolean"}
		case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
			return map[string]any{"type": "integer"}
		case "float32", "float64":
			return map[string]any{"type": "number"}
		default:
			if vals, ok := enums[t.Name]; ok {
				return map[string]any{"type": "string", "enum": append([]string{}, vals...)}
			}
			if st := findStructType(file, t.Name); st != nil {
				return structSchema(st, enums, file)
			}
			// Unknown named type with no local declaration: treat as opaque object.
			return map[string]any{"type": "object"}
		}
	case *ast.ArrayType:
		return map[string]any{
			"type":  "array",
			"items": fieldSchema(t.Elt, enums, file),
		}
	case *ast.MapType:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": fieldSchema(t.Value, enums, file),
		}
	case *ast.StructType:
		return structSchema(t, enums, file)
	case *ast.InterfaceType:
		return map[string]any{}
	default:
		return map[string]any{"type": "object"}
	}
}

// structSchema builds a JSON-Schema object fragment from a struct's
// exported fields. A field is optional (absent from "required") when its
// type is a pointer, its json tag carries ",omitempty", or it carries a
// `photon:"optional"` struct tag.
func structSchema(st *ast.StructType, enums enumTable, file *ast.File) map[string]any {
	props := map[string]any{}
	var required []string
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			continue // embedded field, not addressable by JSON name
		}
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			jsonName, optional := fieldJSONName(f, name.Name)
			if jsonName == "-" {
				continue
			}
			schema := fieldSchema(f.Type, enums, file)
			if doc := fieldDoc(f); doc != "" {
				schema["description"] = doc
			}
			props[jsonName] = schema
			_, isPointer := f.Type.(*ast.StarExpr)
			if !isPointer && !optional {
				required = append(required, jsonName)
			}
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// fieldJSONName resolves the JSON property name for a struct field from its
// `json:"..."` tag, falling back to the Go field name, and reports whether
// the tag marked the field optional via ",omitempty" or a trailing
// `photon:"optional"` tag.
func fieldJSONName(f *ast.Field, goName string) (name string, optional bool) {
	name = goName
	if f.Tag == nil {
		return name, false
	}
	tag := strings.Trim(f.Tag.Value, "`")
	if jsonTag, ok := lookupTag(tag, "json"); ok {
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, p := range parts[1:] {
			if p == "omitempty" {
				optional = true
			}
		}
	}
	if photonTag, ok := lookupTag(tag, "photon"); ok && strings.Contains(photonTag, "optional") {
		optional = true
	}
	return name, optional
}

// fieldDoc returns the field's doc comment text, used as a JSON Schema
// "description", the Go-idiomatic counterpart of a "@param name text" line.
func fieldDoc(f *ast.Field) string {
	if f.Doc == nil {
		return ""
	}
	var parts []string
	for _, c := range f.Doc.List {
		parts = append(parts, strings.TrimSpace(strings.TrimPrefix(c.Text, "//")))
	}
	return strings.Join(parts, " ")
}

// lookupTag is a minimal struct tag reader (avoids importing reflect.StructTag,
// which requires a real struct value rather than source text).
func lookupTag(tag, key string) (string, bool) {
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}
		i = 0
		for i < len(tag) && tag[i] != ':' && tag[i] != ' ' {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		name := tag[:i]
		tag = tag[i+2:]
		i = 0
		for i < len(tag) && tag[i] != '"' {
			i++
		}
		if i >= len(tag) {
			break
		}
		value := tag[:i]
		tag = tag[i+1:]
		if name == key {
			return value, true
		}
	}
	return "", false
}
