package cli

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reflex/internal/bandit"
)

// BanditReport summarizes posterior state for an experiment's arms.
type BanditReport struct {
	Arms       []ArmReport         `json:"arms"`
	Allocation []float64           `json:"allocation"`
	Converged  bool                `json:"converged"`
	Winner     *bandit.Convergence `json:"winner,omitempty"`
	Selections []int               `json:"selections,omitempty"`
}

// ArmReport is the per-arm view in a BanditReport.
type ArmReport struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Trials float64 `json:"trials"`
	Mean   float64 `json:"mean"`
}

// NewBanditCommand creates the bandit command.
func NewBanditCommand(rootOpts *RootOptions) *cobra.Command {
	var selections int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "bandit <arms.json>",
		Short: "Inspect Thompson-sampling state for an experiment",
		Long: `Read an experiment's arm posteriors from a JSON file and report
posterior means, traffic allocation, and convergence. With --select N,
also draw N Thompson samples (seeded, so runs are reproducible).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBandit(rootOpts, args[0], selections, seed, cmd)
		},
	}

	cmd.Flags().IntVar(&selections, "select", 0, "draw N Thompson selections")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for --select")

	return cmd
}

func runBandit(opts *RootOptions, armsPath string, selections int, seed uint64, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	arms, err := loadArms(armsPath)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "arms load failed", err)
	}

	report := BanditReport{
		Allocation: bandit.AllocateTraffic(arms),
	}
	for _, arm := range arms {
		report.Arms = append(report.Arms, ArmReport{
			Alpha:  arm.Alpha,
			Beta:   arm.Beta,
			Trials: arm.Trials(),
			Mean:   arm.Mean(),
		})
	}
	if conv, ok := bandit.CheckConvergence(arms); ok {
		report.Converged = true
		report.Winner = &conv
	}

	if selections > 0 {
		sampler := bandit.NewSampler(rand.NewPCG(seed, 0))
		for range selections {
			idx, err := sampler.SelectArm(arms)
			if err != nil {
				_ = formatter.Error("E003", err.Error(), nil)
				return WrapExitError(ExitCommandError, "selection failed", err)
			}
			report.Selections = append(report.Selections, idx)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	writeBanditText(formatter, report)
	return nil
}

func loadArms(path string) ([]bandit.Arm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arms: %w", err)
	}
	var arms []bandit.Arm
	if err := json.Unmarshal(data, &arms); err != nil {
		return nil, fmt.Errorf("parse arms: %w", err)
	}
	if len(arms) == 0 {
		return nil, fmt.Errorf("arms file has no arms")
	}
	for i, arm := range arms {
		if arm.Alpha < 1 || arm.Beta < 1 {
			return nil, fmt.Errorf("arm %d: alpha and beta must be >= 1", i)
		}
	}
	return arms, nil
}

func writeBanditText(formatter *OutputFormatter, report BanditReport) {
	for i, arm := range report.Arms {
		fmt.Fprintf(formatter.Writer, "arm %d: mean=%.4f trials=%.0f allocation=%.2f%%\n",
			i, arm.Mean, arm.Trials, report.Allocation[i]*100)
	}
	if report.Converged {
		fmt.Fprintf(formatter.Writer, "converged: arm %d wins (confidence %.4f)\n",
			report.Winner.Winner, report.Winner.Confidence)
	} else {
		fmt.Fprintln(formatter.Writer, "not converged")
	}
	if len(report.Selections) > 0 {
		counts := make(map[int]int)
		for _, s := range report.Selections {
			counts[s]++
		}
		for i := range report.Arms {
			fmt.Fprintf(formatter.Writer, "selected arm %d: %d time(s)\n", i, counts[i])
		}
	}
}
