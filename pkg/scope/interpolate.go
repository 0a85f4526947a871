package scope

import (
	"fmt"
	"regexp"
	"strings"
)

// Interpolate replaces ${path} with the text of the value at path and
// ${path/regex/replacement} with that text after a regex substitution.
// A slash inside regex or replacement is written \/.
func (c *Context) Interpolate(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable in %q", s)
		}
		end += start
		b.WriteString(s[:start])
		text, err := c.substitute(s[start+2 : end])
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		s = s[end+1:]
	}
}

func (c *Context) substitute(ref string) (string, error) {
	parts := splitRef(ref)
	v, ok, err := c.Lookup(parts[0])
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: ${%s} is not set", ErrUnresolvablePath, ref)
	}
	text := v.Value.String()
	if len(parts) == 1 {
		return text, nil
	}
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed substitution ${%s}", ref)
	}
	re, err := regexp.Compile(parts[1])
	if err != nil {
		return "", fmt.Errorf("substitution ${%s}: %w", ref, err)
	}
	return re.ReplaceAllString(text, parts[2]), nil
}

// splitRef splits a reference on unescaped slashes and unescapes \/.
func splitRef(ref string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(ref); i++ {
		switch {
		case ref[i] == '\\' && i+1 < len(ref) && ref[i+1] == '/':
			cur.WriteByte('/')
			i++
		case ref[i] == '/':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ref[i])
		}
	}
	return append(parts, cur.String())
}
