package scenario

// Status values of a scenario result.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Result captures the outcome of running one scenario.
type Result struct {
	Script     string            `json:"script"`
	Scenario   string            `json:"scenario"`
	Dir        string            `json:"dir"`
	Status     string            `json:"status"`
	DurationMs int64             `json:"duration_ms"`
	Assertions []AssertionResult `json:"assertions"`
	Error      string            `json:"error,omitempty"`
}

// AssertionResult is the outcome of a single check.
type AssertionResult struct {
	Type     string `json:"type"` // state, unresolved, file, no_file, assert
	Key      string `json:"key,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Summary aggregates results across scenarios.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Output is the report of archetype test --json.
type Output struct {
	Script    string   `json:"script"`
	Scenarios []Result `json:"scenarios"`
	Summary   Summary  `json:"summary"`
}

// Observed is what a replay produced, the input to Evaluate.
type Observed struct {
	State      string
	Unresolved string
	Values     map[string]any
	Model      any
	Files      map[string]string
}
