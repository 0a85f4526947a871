package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/archetype/pkg/scenario"
)

var (
	testScenario string
	testJSON     bool
	testFailFast bool
	testTimeout  string
)

var testCmd = &cobra.Command{
	Use:   "test [script.yaml...]",
	Short: "Run scenario tests for archetype scripts",
	Long: `Discover scenarios for each script, replay their answers and check the
expectations in scenario.yaml.

Scenarios are discovered by convention at:
  {script-dir}/scenarios/{script-name}/*/scenario.yaml

Scenario directories without scenario.yaml are reported as skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	timeout := 30 * time.Second
	if testTimeout != "" {
		d, err := time.ParseDuration(testTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", testTimeout, err)
		}
		timeout = d
	}

	runner := &scenario.Runner{Timeout: timeout}
	out := cmd.OutOrStdout()
	failed := 0

	for _, scriptPath := range args {
		var output *scenario.Output
		if testScenario != "" {
			res, err := runner.RunScenario(cmd.Context(), scriptPath, testScenario)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "  ✗ %s: %v\n", scriptPath, err)
				failed++
				continue
			}
			output = single(scriptPath, *res)
		} else {
			var err error
			if output, err = runner.RunAll(cmd.Context(), scriptPath, testFailFast); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "  ✗ %s: %v\n", scriptPath, err)
				failed++
				continue
			}
		}

		if testJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.Encode(output)
		} else {
			printTestOutput(out, output)
		}

		failed += output.Summary.Failed + output.Summary.Errors
		if testFailFast && failed > 0 {
			break
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func single(scriptPath string, res scenario.Result) *scenario.Output {
	out := &scenario.Output{Script: scriptPath, Scenarios: []scenario.Result{res}, Summary: scenario.Summary{Total: 1}}
	switch res.Status {
	case scenario.StatusPassed:
		out.Summary.Passed = 1
	case scenario.StatusFailed:
		out.Summary.Failed = 1
	case scenario.StatusSkipped:
		out.Summary.Skipped = 1
	default:
		out.Summary.Errors = 1
	}
	return out
}

func printTestOutput(w io.Writer, output *scenario.Output) {
	fmt.Fprintf(w, "\n  %s\n", output.Script)
	for _, s := range output.Scenarios {
		switch s.Status {
		case scenario.StatusPassed:
			fmt.Fprintf(w, "    ✓ %-30s %dms\n", s.Scenario, s.DurationMs)
		case scenario.StatusFailed:
			fmt.Fprintf(w, "    ✗ %-30s %dms\n", s.Scenario, s.DurationMs)
			for _, a := range s.Assertions {
				if !a.Passed {
					fmt.Fprintf(w, "        %s: %s\n", a.Type, a.Message)
				}
			}
		case scenario.StatusSkipped:
			fmt.Fprintf(w, "    ○ %-30s (no scenario.yaml)\n", s.Scenario)
		case scenario.StatusError:
			fmt.Fprintf(w, "    ✗ %-30s ERROR: %s\n", s.Scenario, s.Error)
		}
	}
	fmt.Fprintf(w, "\n  %d scenarios, %d passed, %d failed, %d skipped\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed, output.Summary.Skipped)
	if output.Summary.Errors > 0 {
		fmt.Fprintf(w, "  %d errors\n", output.Summary.Errors)
	}
}

func init() {
	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Run only the named scenario (default: all)")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTimeout, "timeout", "30s", "Per-scenario timeout (e.g. 30s, 1m)")
}
