package scenario

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluate checks every expectation of spec against obs. Each
// expectation produces one result, in a stable order.
func Evaluate(spec *Spec, obs *Observed) []AssertionResult {
	var results []AssertionResult

	want := spec.ExpectState
	if want == "" {
		want = "ready"
	}
	results = append(results, evalState(want, obs.State))

	if spec.ExpectUnresolved != "" {
		results = append(results, evalUnresolved(spec.ExpectUnresolved, obs.Unresolved))
	}

	paths := make([]string, 0, len(spec.ExpectFiles))
	for p := range spec.ExpectFiles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		results = append(results, evalFile(p, spec.ExpectFiles[p], obs.Files))
	}

	for _, p := range spec.ExpectNoFiles {
		results = append(results, evalNoFile(p, obs.Files))
	}

	for _, a := range spec.Assert {
		results = append(results, evalAssert(a, obs))
	}
	return results
}

// HasFailures returns true if any assertion in the slice failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func evalState(expected, actual string) AssertionResult {
	passed := strings.EqualFold(expected, actual)
	msg := ""
	if !passed {
		msg = fmt.Sprintf("expected state %q, got %q", expected, actual)
	}
	return AssertionResult{
		Type:     "state",
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalUnresolved(expected, actual string) AssertionResult {
	passed := expected == actual
	msg := ""
	if !passed {
		msg = fmt.Sprintf("expected to stop at %q, stopped at %q", expected, actual)
	}
	return AssertionResult{
		Type:     "unresolved",
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalFile(p, matcher string, files map[string]string) AssertionResult {
	content, exists := files[p]
	if !exists {
		return AssertionResult{
			Type:     "file",
			Key:      p,
			Expected: matcher,
			Passed:   false,
			Message:  fmt.Sprintf("file %q was not generated", p),
		}
	}
	passed, msg := matchContent(matcher, content)
	return AssertionResult{
		Type:     "file",
		Key:      p,
		Expected: matcher,
		Passed:   passed,
		Message:  msg,
	}
}

func evalNoFile(p string, files map[string]string) AssertionResult {
	_, exists := files[p]
	msg := ""
	if exists {
		msg = fmt.Sprintf("file %q should not be generated", p)
	}
	return AssertionResult{
		Type:    "no_file",
		Key:     p,
		Passed:  !exists,
		Message: msg,
	}
}

// matchContent checks file content against a matcher:
//   - empty:   any content
//   - regex:   "/pattern/"
//   - other:   substring
func matchContent(matcher, content string) (bool, string) {
	if matcher == "" {
		return true, ""
	}
	if len(matcher) >= 2 && matcher[0] == '/' && matcher[len(matcher)-1] == '/' {
		pattern := matcher[1 : len(matcher)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", pattern, err)
		}
		if re.MatchString(content) {
			return true, ""
		}
		return false, fmt.Sprintf("content does not match pattern %s", matcher)
	}
	if strings.Contains(content, matcher) {
		return true, ""
	}
	return false, fmt.Sprintf("content does not contain %q", matcher)
}

// Env returns the variables assertions are evaluated against.
func Env(obs *Observed) map[string]any {
	return map[string]any{
		"state":  obs.State,
		"values": obs.Values,
		"model":  obs.Model,
		"files":  obs.Files,
	}
}

func evalAssert(text string, obs *Observed) AssertionResult {
	result := AssertionResult{Type: "assert", Expected: text}
	env := Env(obs)
	program, err := expr.Compile(text, expr.Env(env), expr.AsBool())
	if err != nil {
		result.Message = fmt.Sprintf("compile assertion: %v", err)
		return result
	}
	output, err := expr.Run(program, env)
	if err != nil {
		result.Message = fmt.Sprintf("eval assertion: %v", err)
		return result
	}
	passed, ok := output.(bool)
	if !ok {
		result.Message = fmt.Sprintf("assertion did not return bool (got %T)", output)
		return result
	}
	result.Passed = passed
	result.Actual = fmt.Sprint(passed)
	if !passed {
		result.Message = "assertion is false"
	}
	return result
}
