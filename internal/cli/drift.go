package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reflex/internal/drift"
)

// DriftWindows is the JSON input to the drift command.
type DriftWindows struct {
	Baseline  []float64 `json:"baseline"`
	Current   []float64 `json:"current"`
	Threshold float64   `json:"threshold,omitempty"`
}

// DriftReport is the drift command output.
type DriftReport struct {
	Drift  bool          `json:"drift"`
	Result *drift.Result `json:"result,omitempty"`
}

// NewDriftCommand creates the drift command.
func NewDriftCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drift <windows.json>",
		Short: "Check two sentiment windows for significant drift",
		Long: `Read a baseline window and a current window of sentiment scores from
a JSON file and report whether the shift in means clears the z-score
threshold. The file may set its own threshold; otherwise the default
applies.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrift(rootOpts, args[0], cmd)
		},
	}
}

func runDrift(opts *RootOptions, windowsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	windows, err := loadWindows(windowsPath)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "windows load failed", err)
	}

	result := drift.Detect(windows.Baseline, windows.Current, windows.Threshold)
	report := DriftReport{Drift: result != nil, Result: result}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	if result == nil {
		fmt.Fprintln(formatter.Writer, "no significant drift")
		return nil
	}
	z := fmt.Sprintf("%.4f", result.ZScore)
	if result.Unbounded {
		z = "unbounded"
	}
	fmt.Fprintf(formatter.Writer, "%s drift: z=%s (baseline %.4f -> current %.4f)\n",
		result.Direction, z, result.BaselineMean, result.CurrentMean)
	return nil
}

func loadWindows(path string) (*DriftWindows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read windows: %w", err)
	}
	var windows DriftWindows
	if err := json.Unmarshal(data, &windows); err != nil {
		return nil, fmt.Errorf("parse windows: %w", err)
	}
	if len(windows.Baseline) < 2 || len(windows.Current) < 1 {
		return nil, fmt.Errorf("windows require at least 2 baseline and 1 current sample")
	}
	return &windows, nil
}
