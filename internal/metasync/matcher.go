// Package metasync synchronizes descriptive table metadata from YAML
// documents onto warehouse tables selected by wildcard patterns.
package metasync

import "strings"

// Match reports whether a table name matches a glob-style pattern.
// '*' matches any run of characters, '?' matches exactly one.
func Match(pattern, name string) bool {
	return matchHere(pattern, name)
}

func matchHere(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars, then try every split point.
			rest := strings.TrimLeft(pattern, "*")
			if rest == "" {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchHere(rest, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if name == "" {
				return false
			}
		default:
			if name == "" || pattern[0] != name[0] {
				return false
			}
		}
		pattern = pattern[1:]
		name = name[1:]
	}
	return name == ""
}

// Filter returns the candidates matching the pattern, preserving input order.
func Filter(pattern string, candidates []string) []string {
	matched := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if Match(pattern, name) {
			matched = append(matched, name)
		}
	}
	return matched
}
