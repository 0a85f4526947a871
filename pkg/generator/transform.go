package generator

import (
	"fmt"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/scope"
)

// Apply runs the replacements of t over name in order. Replacement
// strings are interpolated against c first, so they may reference
// context values with ${path} or ${path/regex/replacement}; regexp
// group references use the $1 form.
func Apply(t *ast.Transformation, name string, c *scope.Context) (string, error) {
	for _, r := range t.Replace {
		repl, err := c.Interpolate(r.Replacement)
		if err != nil {
			return "", fmt.Errorf("transformation %q: %w", t.Name, err)
		}
		name = r.Regex.ReplaceAllString(name, repl)
	}
	return name, nil
}
