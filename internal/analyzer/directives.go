package analyzer

import (
	"go/ast"
	"strings"
)

// directives holds the parsed //photon: tags found in one doc comment,
// plus any unrecognized tags preserved verbatim per the analyzer's failure
// policy: unknown tags are metadata, never errors.
type directives struct {
	Template    bool
	Static      string // uriTemplate, set when the method produces a resource
	Internal    bool
	Autorun     bool
	LinkedUI    string
	Output      string
	Name        string // //photon:name override
	Unknown     map[string]string
	ParamDocs   map[string]string // //photon:param <name> <text>
}

// parseDirectives scans the doc comment lines of a declaration for
// "//photon:tag [value]" directives. Lines that are not directives
// contribute to the description paragraph returned separately by the
// caller; parseDirectives only extracts tag lines.
func parseDirectives(lines []string) directives {
	d := directives{Unknown: map[string]string{}, ParamDocs: map[string]string{}}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "photon:") {
			continue
		}
		rest := strings.TrimPrefix(trimmed, "photon:")
		tag, value, _ := strings.Cut(rest, " ")
		tag = strings.TrimSpace(tag)
		value = strings.TrimSpace(value)
		switch tag {
		case "template":
			d.Template = true
		case "static":
			d.Static = value
		case "internal":
			d.Internal = true
		case "autorun":
			d.Autorun = true
		case "linkedui":
			d.LinkedUI = value
		case "output":
			d.Output = value
		case "name":
			d.Name = value
		case "param":
			name, text, ok := strings.Cut(value, " ")
			if ok {
				d.ParamDocs[name] = strings.TrimSpace(text)
			}
		default:
			if tag != "" {
				d.Unknown[tag] = value
			}
		}
	}
	return d
}

// splitDoc separates a doc comment's raw lines (already stripped of the
// leading "//") into (description lines, directive lines). Directive lines
// are any line whose trimmed content begins with "photon:"; everything
// else is description text. The first paragraph (text up to the first
// blank line or directive) is the docblock "description" per the data
// model.
//
// Lines must come from rawDocLines rather than ast.CommentGroup.Text():
// Text() treats "photon:tag" lines as Go directive comments (the same
// class as "go:generate") and silently strips them.
func splitDoc(lines []string) (description string, directiveLines []string) {
	var descLines []string
	descDone := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "photon:") {
			directiveLines = append(directiveLines, trimmed)
			if len(descLines) > 0 {
				descDone = true
			}
			continue
		}
		if trimmed == "" {
			if len(descLines) > 0 {
				descDone = true
			}
			continue
		}
		if descDone {
			continue
		}
		descLines = append(descLines, trimmed)
	}
	return strings.Join(descLines, " "), directiveLines
}

// hasRootDirective reports whether a type's doc comment carries a bare
// "photon:root" directive, used to disambiguate which struct is the
// photon's root when a file declares more than one exported struct.
func hasRootDirective(cg *ast.CommentGroup) bool {
	for _, line := range rawDocLines(cg) {
		if strings.TrimSpace(line) == "photon:root" {
			return true
		}
	}
	return false
}

// rawDocLines extracts the raw text of each line in a doc comment group,
// stripping only the leading "//" marker and one following space. Unlike
// ast.CommentGroup.Text(), it never drops directive-shaped lines.
func rawDocLines(cg *ast.CommentGroup) []string {
	if cg == nil {
		return nil
	}
	lines := make([]string, 0, len(cg.List))
	for _, c := range cg.List {
		text := strings.TrimPrefix(c.Text, "//")
		text = strings.TrimPrefix(text, " ")
		lines = append(lines, text)
	}
	return lines
}
