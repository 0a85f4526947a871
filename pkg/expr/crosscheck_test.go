package expr

import (
	"strings"
	"testing"

	exprlang "github.com/expr-lang/expr"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// On the two-valued fragment (every variable bound, no null/contains) the
// guard language must agree with expr-lang's boolean semantics.
func TestCrossCheck_ExprLang(t *testing.T) {
	env := map[string]any{
		"flavor": "se",
		"docker": true,
		"ci":     false,
		"name":   "demo",
	}
	lookup := func(name string) (value.Value, bool, error) {
		raw, ok := env[name]
		if !ok {
			return value.Empty, false, nil
		}
		v, err := value.FromAny(raw)
		return v, true, err
	}

	cases := []string{
		"true",
		"!false",
		"true && false || true",
		"true && (false || true)",
		"!true == false",
		"$flavor == 'se'",
		"$flavor != 'ee' && $docker",
		"!$ci && ($name == 'demo' || $flavor == 'ee')",
		"$docker == true && $ci == false",
		"!($docker && $ci) || $name != 'demo'",
		"$ci || $docker && $flavor == 'ee'",
		"'a' == 'a' && 'a' != 'b'",
	}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			got, err := Eval(text, lookup)
			if err != nil {
				t.Fatal(err)
			}

			program, err := exprlang.Compile(strings.ReplaceAll(text, "$", ""), exprlang.Env(env), exprlang.AsBool())
			if err != nil {
				t.Fatalf("expr-lang compile: %v", err)
			}
			out, err := exprlang.Run(program, env)
			if err != nil {
				t.Fatalf("expr-lang run: %v", err)
			}
			if want := out.(bool); got != want {
				t.Errorf("archetype = %v, expr-lang = %v", got, want)
			}
		})
	}
}
