package catalog

import "strings"

// matchTemplate matches uri against an RFC-6570-style template whose only
// supported construct is a simple "{name}" placeholder that matches exactly
// one path segment (no slashes). "foo://{id}" matches "foo://abc" but not
// "foo://abc/def", per the data model's boundary behavior.
func matchTemplate(template, uri string) (map[string]string, bool) {
	tplScheme, tplRest, ok := strings.Cut(template, "://")
	if !ok {
		return nil, false
	}
	uriScheme, uriRest, ok := strings.Cut(uri, "://")
	if !ok || uriScheme != tplScheme {
		return nil, false
	}

	tplSegs := strings.Split(tplRest, "/")
	uriSegs := strings.Split(uriRest, "/")
	if len(tplSegs) != len(uriSegs) {
		return nil, false
	}

	params := make(map[string]string)
	for i, tplSeg := range tplSegs {
		uriSeg := uriSegs[i]
		if strings.HasPrefix(tplSeg, "{") && strings.HasSuffix(tplSeg, "}") {
			name := strings.TrimSuffix(strings.TrimPrefix(tplSeg, "{"), "}")
			if uriSeg == "" {
				return nil, false
			}
			params[name] = uriSeg
			continue
		}
		if tplSeg != uriSeg {
			return nil, false
		}
	}
	return params, true
}
