package policy

import (
	"reflect"
	"strings"
)

// matchPattern reports whether value matches pattern.
// "*" matches anything, a trailing "*" matches by prefix, and anything
// else is an exact match.
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}

// matchAnyPattern reports whether value matches any pattern.
// An empty pattern list matches everything.
func matchAnyPattern(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matchPattern(p, value) {
			return true
		}
	}
	return false
}

// matchAnyRole reports whether the subject holds any of the rule's
// roles. An empty role list matches everything.
func matchAnyRole(ruleRoles, subjectRoles []string) bool {
	if len(ruleRoles) == 0 {
		return true
	}
	for _, want := range ruleRoles {
		for _, have := range subjectRoles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// matchResource matches a resource pattern against a server/tool pair.
// A pattern has one or two slash-separated parts:
//
//	"*"           any resource
//	"search"      tool "search" on any server
//	"payments/*"  every tool on the payments server
//	"*/delete"    tool "delete" on any server
//
// Each part supports the same wildcards as matchPattern.
func matchResource(pattern string, res Resource) bool {
	if pattern == "*" {
		return true
	}
	server, tool, found := strings.Cut(pattern, "/")
	if !found {
		return matchPattern(pattern, res.Tool)
	}
	return matchPattern(server, res.Server) && matchPattern(tool, res.Tool)
}

// matchAnyResource reports whether the resource matches any pattern.
// An empty pattern list matches everything.
func matchAnyResource(patterns []string, res Resource) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matchResource(p, res) {
			return true
		}
	}
	return false
}

// holds reports whether the condition is satisfied by the attributes.
// A missing attribute never satisfies a condition.
func (c condition) holds(attrs map[string]any) bool {
	val, ok := attrs[c.attribute]
	if !ok {
		return false
	}
	switch c.operator {
	case opEq:
		return equalValues(val, c.value)
	case opIn:
		for _, want := range c.values {
			if equalValues(val, want) {
				return true
			}
		}
	}
	return false
}

// equalValues compares attribute values. Numbers compare by magnitude
// so callers may pass Go ints where rule documents carry JSON numbers.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
