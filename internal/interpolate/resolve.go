// Package interpolate expands {{NAME}} placeholders against environment variables.
package interpolate

import (
	"regexp"
	"strings"

	"github.com/artpar/apiary/internal/core"
)

// placeholderPattern matches a {{name}} token. Names may contain anything but braces.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Resolve replaces every literal {{key}} in text with the value of each enabled
// variable, in order. Keys are matched case-sensitively and never interpreted
// as patterns. Placeholders without an enabled variable are left verbatim.
func Resolve(text string, vars []core.Variable) string {
	for _, v := range vars {
		if !v.Enabled || v.Key == "" {
			continue
		}
		text = strings.ReplaceAll(text, "{{"+v.Key+"}}", v.Value)
	}
	return text
}

// ExtractVariables returns the distinct placeholder names found in text, in
// order of first appearance.
func ExtractVariables(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var result []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}

	return result
}

// IsKnownVariable reports whether name is among the available keys.
func IsKnownVariable(name string, keys []string) bool {
	for _, k := range keys {
		if k == name {
			return true
		}
	}
	return false
}

// UnknownVariables returns the placeholder names in text that no enabled
// variable resolves.
func UnknownVariables(text string, vars []core.Variable) []string {
	keys := make([]string, 0, len(vars))
	for _, v := range vars {
		if v.Enabled {
			keys = append(keys, v.Key)
		}
	}

	var unknown []string
	for _, name := range ExtractVariables(text) {
		if !IsKnownVariable(name, keys) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
