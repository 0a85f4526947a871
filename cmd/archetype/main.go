package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/archetype/pkg/script"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "archetype",
	Short: "Archetype script interpreter",
	Long:  "archetype resolves the inputs of an archetype script interactively or from answers, then generates the project it describes.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [script.yaml]",
	Short: "Validate an archetype script against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	fsys, name := scriptFS(args[0])
	doc, errs := script.ValidateFile(fsys, name)
	var errors []*script.ValidationError
	for _, e := range errs {
		if e.Severity == script.SeverityWarning {
			fmt.Fprintf(cmd.ErrOrStderr(), "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "    at: %s\n", e.Path)
			}
			continue
		}
		errors = append(errors, e)
	}
	if len(errors) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}
	label := doc.Name
	if label == "" {
		label = name
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d statements)\n", label, len(doc.Body))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the archetype/v1 JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := script.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "archetype %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newInputsCmd())
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(newTraceCmd())
}
