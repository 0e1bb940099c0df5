package loader

import (
	"go/parser"
	"go/token"
	"strings"
)

// parseDependencies extracts "photon:require <module> <version>" directives
// from the file-level doc comment (the comment block immediately preceding
// the package clause). These are not part of the catalog the analyzer
// produces; they exist purely to tell the loader what to add to the
// generated build's go.mod before compiling.
func parseDependencies(sourceText string) ([]Dependency, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "photon.go", sourceText, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	if file.Doc == nil {
		return nil, nil
	}
	var deps []Dependency
	for _, c := range file.Doc.List {
		line := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		if !strings.HasPrefix(line, "photon:require ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "photon:require "))
		if len(fields) != 2 {
			continue
		}
		deps = append(deps, Dependency{Module: fields[0], Version: fields[1]})
	}
	return deps, nil
}
