package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/launch-predictor/internal/config"
	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/replay"
)

// #region main

// errDrift makes the process exit 1 without printing another error line.
type errDrift struct{ n int }

func (e errDrift) Error() string { return fmt.Sprintf("%d steps drifted", e.n) }

func main() {
	if err := rootCmd().Execute(); err != nil {
		if _, ok := err.(errDrift); ok {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixturePath string
		journalPath string
		configPath  string
		exportPath  string
		last        int
		record      bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a recorded session and report prediction drift",
		Long: `replay --fixture path/to/fixture.json [--record]
replay --journal path/to/journal.db [--config path] [--last N] [--export fixture.json]`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fixturePath == "") == (journalPath == "") {
				return fmt.Errorf("pass exactly one of --fixture or --journal")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var (
				f   *replay.Fixture
				err error
			)
			if fixturePath != "" {
				f, err = replay.LoadFixture(fixturePath)
			} else {
				f, err = journalFixture(ctx, configPath, journalPath, last)
			}
			if err != nil {
				return err
			}
			if exportPath != "" {
				if journalPath == "" {
					return fmt.Errorf("--export needs --journal")
				}
				if err := replay.WriteFixture(exportPath, f); err != nil {
					return err
				}
				fmt.Fprintf(out, "exported %d steps to %s\n", len(f.Steps), exportPath)
				return nil
			}

			results, summary, err := replay.Replay(ctx, f)
			if err != nil {
				return err
			}

			if record {
				if fixturePath == "" {
					return fmt.Errorf("--record needs --fixture")
				}
				f.Expected = replay.Expectations(results)
				if err := replay.WriteFixture(fixturePath, f); err != nil {
					return err
				}
				fmt.Fprintf(out, "recorded %d expectations to %s\n", len(results), fixturePath)
				return nil
			}

			drift := replay.Check(f, results)
			printComparison(out, f, results, summary, drift)
			if len(drift) > 0 {
				return errDrift{n: len(drift)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON (fixture mode)")
	cmd.Flags().StringVar(&journalPath, "journal", "", "path to a cycle journal (journal mode)")
	cmd.Flags().StringVar(&configPath, "config", "", "config file for the store and predictor settings (journal mode)")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the journal-derived fixture to this path instead of replaying")
	cmd.Flags().IntVar(&last, "last", 1000, "replay at most the N most recent journaled cycles")
	cmd.Flags().BoolVar(&record, "record", false, "overwrite the fixture expectations with this run")
	return cmd
}

// #endregion main

// #region journal-mode

// journalFixture rebuilds a fixture from the journal, rewinding the configured
// store's current table to the state before the first exported cycle.
func journalFixture(ctx context.Context, configPath, journalPath string, last int) (*replay.Fixture, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	j, err := logging.OpenJournal(journalPath)
	if err != nil {
		return nil, err
	}
	defer j.Close()
	entries, err := j.Recent(last)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no cycles found in %s", journalPath)
	}
	// Recent is newest first.
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}

	backend, err := occurrence.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	store, err := occurrence.Open(ctx, backend, cfg.Location())
	if err != nil {
		return nil, err
	}
	defer store.Close()
	current, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	f, err := replay.FromJournal(entries, current, cfg.History.Capacity, cfg.Predictor.Seed)
	if err != nil {
		return nil, fmt.Errorf("rebuild start table: %w", err)
	}
	f.Description = fmt.Sprintf("%s (%s)", f.Description, journalPath)
	return f, nil
}

// #endregion journal-mode

// #region output

// printComparison outputs a per-step table followed by the summary.
func printComparison(w io.Writer, f *replay.Fixture, results []replay.StepResult, summary replay.ReplaySummary, drift []replay.Drift) {
	drifted := make(map[int]bool, len(drift))
	for _, d := range drift {
		drifted[d.Index] = true
	}

	fmt.Fprintf(w, "%-5s| %-7s| %-22s| %-22s| %-22s| %s\n", "Step", "Profile", "Expected", "Replayed", "Choice", "Match")
	fmt.Fprintf(w, "%-5s+%-8s+%-23s+%-23s+%-23s+%s\n",
		"-----", "--------", "-----------------------", "-----------------------", "-----------------------", "------")
	for i, r := range results {
		exp := "-"
		if i < len(f.Expected) {
			exp = fmt.Sprintf("%s/%d", orDash(f.Expected[i].Predicted), f.Expected[i].Outcome)
		}
		got := fmt.Sprintf("%s/%d", orDash(r.Predicted), r.Outcome)
		match := "OK"
		if drifted[i] {
			match = "DIFF"
		}
		fmt.Fprintf(w, "%-5d| %-7s| %-22s| %-22s| %-22s| %s\n", i, r.Profile, exp, got, r.Choice, match)
	}

	fmt.Fprintf(w, "\nSummary: %d steps, %d hits, %d misses, %d unknown, %d drift\n",
		summary.TotalSteps, summary.Hits, summary.Misses, summary.Unknown, len(drift))
	fmt.Fprintf(w, "Eval: %s\n", summary.Eval.Reason)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
