package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reflex/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	RuleCount int                        `json:"rule_count"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Compile and validate CUE rule files",
		Long: `Compile every .cue file in a directory and run schema validation.

Catches syntax errors, unknown operators, operand-shape mismatches, and
unreachable actions before rules are loaded into a running engine.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	compiled, err := compiler.CompileDir(rulesDir)
	if err != nil {
		_ = formatter.Error("E001", err.Error(), nil)
		return WrapExitError(ExitCommandError, "compilation failed", err)
	}

	formatter.VerboseLog("Compiled %d rule(s) from %s", len(compiled), rulesDir)

	if len(compiled) == 0 {
		_ = formatter.Error("E001", "no rules found in "+rulesDir, nil)
		return NewExitError(ExitCommandError, "no rules found")
	}

	validationErrors := compiler.Validate(compiled)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(compiled), validationErrors)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, RuleCount: len(compiled)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d rule(s) valid\n", len(compiled))
	return nil
}

// outputValidationErrors outputs validation errors and maps them to exit
// code 1 (rules rejected).
func outputValidationErrors(formatter *OutputFormatter, ruleCount int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:     false,
				RuleCount: ruleCount,
				Errors:    errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
