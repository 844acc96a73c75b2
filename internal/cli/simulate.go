package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reflex/internal/compiler"
	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

// simClock is the fixed evaluation instant for simulations, so cooldown
// math and traces are reproducible across runs.
var simClock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Fixture is the JSON input to the simulate command: an ambient context
// shared by all events plus the events to replay, in order.
type Fixture struct {
	Context value.Map      `json:"context,omitempty"`
	Events  []FixtureEvent `json:"events"`
}

// FixtureEvent is one event in a simulation fixture.
type FixtureEvent struct {
	TenantID string    `json:"tenantId"`
	Kind     string    `json:"kind"`
	Payload  value.Map `json:"payload"`
}

// TraceEntry records the rule-evaluation outcome for one fixture event.
type TraceEntry struct {
	TenantID  string        `json:"tenantId"`
	Kind      string        `json:"kind"`
	Matched   []string      `json:"matched,omitempty"`
	Gated     bool          `json:"gated"`
	GatedBy   string        `json:"gatedBy,omitempty"`
	Overrides value.Map     `json:"overrides,omitempty"`
	Signals   []TraceSignal `json:"signals,omitempty"`
}

// TraceSignal is one side-channel emission in a trace.
type TraceSignal struct {
	Type   string    `json:"type"` // notify, route, generate
	RuleID string    `json:"ruleId"`
	Target string    `json:"target,omitempty"`
	Params value.Map `json:"params,omitempty"`
}

// SimulationResult is the full output of a simulate run.
type SimulationResult struct {
	RuleCount int          `json:"rule_count"`
	Trace     []TraceEntry `json:"trace"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <rules-dir> <fixture.json>",
		Short: "Replay an event fixture against compiled rules",
		Long: `Compile rules from a directory and evaluate each event in a JSON
fixture against them, printing the decision trace: which rules matched,
whether the run was gated, and what overrides and signals were produced.

Simulation is offline - no pipelines run and nothing external is called.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runSimulate(opts *RootOptions, rulesDir, fixturePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	compiled, err := compiler.CompileDir(rulesDir)
	if err != nil {
		_ = formatter.Error("E001", err.Error(), nil)
		return WrapExitError(ExitCommandError, "compilation failed", err)
	}
	if verrs := compiler.Validate(compiled); len(verrs) > 0 {
		return outputValidationErrors(formatter, len(compiled), verrs)
	}

	fixture, err := loadFixture(fixturePath)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "fixture load failed", err)
	}

	formatter.VerboseLog("Replaying %d event(s) against %d rule(s)", len(fixture.Events), len(compiled))

	result := Simulate(compiled, fixture)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeTraceText(formatter, result)
	return nil
}

// Simulate evaluates every fixture event against the rule set and
// returns the decision trace. Exported for golden tests.
func Simulate(compiled []rules.Rule, fixture *Fixture) SimulationResult {
	result := SimulationResult{RuleCount: len(compiled), Trace: make([]TraceEntry, 0, len(fixture.Events))}
	for _, ev := range fixture.Events {
		out := rules.Evaluate(compiled, ev.Payload, fixture.Context, simClock)

		entry := TraceEntry{
			TenantID: ev.TenantID,
			Kind:     ev.Kind,
			Matched:  out.Matched,
			Gated:    out.Gated,
			GatedBy:  out.GatedBy,
		}
		if len(out.Overrides) > 0 {
			entry.Overrides = out.Overrides
		}
		entry.Signals = append(entry.Signals, traceSignals("notify", out.Notifications)...)
		entry.Signals = append(entry.Signals, traceSignals("route", out.Routes)...)
		entry.Signals = append(entry.Signals, traceSignals("generate", out.Generates)...)

		result.Trace = append(result.Trace, entry)
	}
	return result
}

func traceSignals(kind string, signals []rules.Signal) []TraceSignal {
	out := make([]TraceSignal, len(signals))
	for i, s := range signals {
		out[i] = TraceSignal{Type: kind, RuleID: s.RuleID, Target: s.Target, Params: s.Params}
	}
	return out
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(fixture.Events) == 0 {
		return nil, fmt.Errorf("fixture has no events")
	}
	return &fixture, nil
}

func writeTraceText(formatter *OutputFormatter, result SimulationResult) {
	for i, entry := range result.Trace {
		fmt.Fprintf(formatter.Writer, "[%d] %s %s\n", i, entry.TenantID, entry.Kind)
		if len(entry.Matched) == 0 {
			fmt.Fprintln(formatter.Writer, "    no rules matched")
			continue
		}
		for _, id := range entry.Matched {
			fmt.Fprintf(formatter.Writer, "    matched %s\n", id)
		}
		if entry.Gated {
			fmt.Fprintf(formatter.Writer, "    gated by %s\n", entry.GatedBy)
		}
		for key := range entry.Overrides {
			fmt.Fprintf(formatter.Writer, "    override %s\n", key)
		}
		for _, sig := range entry.Signals {
			fmt.Fprintf(formatter.Writer, "    %s -> %s (%s)\n", sig.Type, sig.Target, sig.RuleID)
		}
	}
}
