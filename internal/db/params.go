package db

import (
	"fmt"
	"regexp"
	"time"
)

var paramPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// referencedParams returns the distinct parameter names used by stmt in order
// of first appearance.
func referencedParams(stmt string) []string {
	matches := paramPattern.FindAllStringSubmatch(stmt, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// bindParams checks that every referenced parameter is supplied and returns
// the subset of params the statement uses.
func bindParams(stmt string, params Params) (Params, error) {
	names := referencedParams(stmt)
	bound := make(Params, len(names))
	for _, name := range names {
		v, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("missing value for parameter @%s", name)
		}
		bound[name] = normalizeValue(v)
	}
	return bound, nil
}

// normalizeValue converts values to representations both drivers bind the
// same way.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *bool:
		if t == nil {
			return nil
		}
		return *t
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
