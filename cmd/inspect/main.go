package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/launch-predictor/internal/codec"
	"github.com/danielpatrickdp/launch-predictor/internal/config"
	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
)

// #region main

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	backend    string
	store      string
	jsonOut    bool
}

func rootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Read-only views of the occurrence store, cycle journal and a running bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file path (default ~/.launchpredict/config.yaml)")
	root.PersistentFlags().StringVar(&o.backend, "backend", "", "occurrence store backend: csv, sqlite or postgres")
	root.PersistentFlags().StringVar(&o.store, "store", "", "occurrence store path or postgres DSN")
	root.PersistentFlags().BoolVar(&o.jsonOut, "json", false, "output as JSON instead of a table")

	root.AddCommand(tableCmd(o), versionsCmd(o), journalCmd(o), remoteCmd(o))
	return root
}

func (o *options) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if o.store != "" {
		cfg.SetLocation(o.store)
	}
	return cfg, cfg.Validate()
}

// #endregion main

// #region table

type tableRow struct {
	Category    string  `json:"category"`
	Application string  `json:"application"`
	Occurrences int     `json:"occurrences"`
	Score       float64 `json:"score"`
}

func tableCmd(o *options) *cobra.Command {
	var profileLabel string
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Show one profile's records ranked as the predictor sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if profileLabel == "" {
				profileLabel = cfg.Session.Profile
			}
			profile, err := occurrence.ParseProfile(profileLabel)
			if err != nil {
				return err
			}

			backend, err := occurrence.ParseBackend(cfg.Storage.Backend)
			if err != nil {
				return err
			}
			store, err := occurrence.Open(cmd.Context(), backend, cfg.Location())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			records = occurrence.FilterByProfile(records, profile)

			model, err := predictor.Train(records, predictor.Options{
				Seed:            cfg.Predictor.Seed,
				MaxDepth:        cfg.Predictor.MaxDepth,
				MinSamplesSplit: 2,
			})
			if err != nil {
				return err
			}
			scores := make(map[string]float64)
			for _, r := range model.Rank(records) {
				scores[r.Application] = r.Score
			}

			rows := make([]tableRow, len(records))
			for i, r := range records {
				rows[i] = tableRow{
					Category:    r.Category.String(),
					Application: r.Application,
					Occurrences: r.Occurrences,
					Score:       scores[r.Application],
				}
			}
			out := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(out, rows)
			}
			printTable(out, profile, rows, predictor.PredictTop(model, records))
			return nil
		},
	}
	cmd.Flags().StringVar(&profileLabel, "profile", "", "profile to show (default from config)")
	return cmd
}

func printTable(w io.Writer, profile occurrence.Profile, rows []tableRow, p predictor.Prediction) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "no records for profile %s\n", profile)
		return
	}
	fmt.Fprintf(w, "%-12s  %-28s  %11s  %8s\n", "Category", "Application", "Occurrences", "Score")
	fmt.Fprintf(w, "%-12s+-%-28s+-%11s+-%8s\n", "------------", "----------------------------", "-----------", "--------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s  %-28s  %11d  %8.2f\n", r.Category, r.Application, r.Occurrences, r.Score)
	}
	if p.OK {
		fmt.Fprintf(w, "\nPredicted for %s: %s (%.0f%%)\n", profile, p.Application, p.Confidence*100)
	}
}

// #endregion table

// #region versions

type versionRow struct {
	VersionID        string `json:"version_id"`
	ParentID         string `json:"parent_id,omitempty"`
	RowCount         int    `json:"row_count"`
	TotalOccurrences int    `json:"total_occurrences"`
	CreatedAt        string `json:"created_at"`
}

func versionsCmd(o *options) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List saved table snapshots (sqlite backend only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if backend, _ := occurrence.ParseBackend(cfg.Storage.Backend); backend != occurrence.BackendSQLite {
				return fmt.Errorf("versions need the sqlite backend, configured backend is %s", backend)
			}
			store, err := occurrence.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			versions, err := store.Versions(cmd.Context(), last)
			if err != nil {
				return err
			}
			rows := make([]versionRow, len(versions))
			for i, v := range versions {
				rows[i] = versionRow{
					VersionID:        v.VersionID,
					ParentID:         v.ParentID,
					RowCount:         v.RowCount,
					TotalOccurrences: v.TotalOccurrences,
					CreatedAt:        v.CreatedAt.Format("2006-01-02T15:04:05Z"),
				}
			}

			out := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "no versions found")
				return nil
			}
			fmt.Fprintf(out, "%-12s  %-12s  %5s  %11s  %s\n", "Version", "Parent", "Rows", "Occurrences", "Time")
			fmt.Fprintf(out, "%-12s+-%-12s+-%5s+-%11s+-%s\n", "------------", "------------", "-----", "-----------", "--------------------")
			for _, r := range rows {
				fmt.Fprintf(out, "%-12s  %-12s  %5d  %11d  %s\n",
					shortID(r.VersionID), shortID(r.ParentID), r.RowCount, r.TotalOccurrences, r.CreatedAt)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent versions")
	return cmd
}

// #endregion versions

// #region journal

type cycleRow struct {
	CycleID   string               `json:"cycle_id"`
	Profile   string               `json:"profile"`
	Predicted string               `json:"predicted"`
	Chosen    string               `json:"chosen"`
	Outcome   int                  `json:"outcome"`
	Cursor    int                  `json:"cursor"`
	Persisted bool                 `json:"persisted"`
	Reason    string               `json:"reason,omitempty"`
	CreatedAt string               `json:"created_at"`
	Detail    *logging.CycleDetail `json:"detail,omitempty"`
}

func journalCmd(o *options) *cobra.Command {
	var (
		last int
		path string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the most recent prediction cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := o.load()
				if err != nil {
					return err
				}
				path = cfg.Journal.Path
			}
			if path == "" {
				return fmt.Errorf("no journal configured (set journal.path or pass --journal)")
			}
			j, err := logging.OpenJournal(path)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(last)
			if err != nil {
				return err
			}
			rows := make([]cycleRow, len(entries))
			for i, e := range entries {
				rows[i] = cycleRow{
					CycleID:   e.CycleID,
					Profile:   e.Profile,
					Predicted: e.Predicted,
					Chosen:    e.Chosen,
					Outcome:   e.Outcome,
					Cursor:    e.Cursor,
					Persisted: e.Persisted,
					Reason:    e.Reason,
					CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
				}
				if d, err := e.Detail(); err == nil {
					rows[i].Detail = &d
				}
			}

			out := cmd.OutOrStdout()
			if o.jsonOut {
				return printJSON(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "no cycles found")
				return nil
			}
			fmt.Fprintf(out, "%-12s  %-6s  %-22s  %-22s  %3s  %6s  %s\n", "Cycle", "Prof", "Predicted", "Chosen", "Hit", "Cursor", "Time")
			for _, r := range rows {
				predicted := r.Predicted
				if predicted == "" {
					predicted = "-"
				}
				fmt.Fprintf(out, "%-12s  %-6s  %-22s  %-22s  %3d  %6d  %s\n",
					shortID(r.CycleID), r.Profile, predicted, r.Chosen, r.Outcome, r.Cursor, r.CreatedAt)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent cycles")
	cmd.Flags().StringVar(&path, "journal", "", "journal database path (default from config)")
	return cmd
}

// #endregion journal

// #region remote

func remoteCmd(o *options) *cobra.Command {
	var (
		addr string
		tree bool
		dot  bool
	)
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running controller bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := o.load()
				if err != nil {
					return err
				}
				addr = cfg.Bridge.Addr
			}
			client, err := codec.NewPresenterClient(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if tree || dot {
				text, err := client.Tree(cmd.Context(), dot)
				if err != nil {
					return err
				}
				fmt.Fprint(out, text)
				return nil
			}

			st, err := client.State(cmd.Context())
			if err != nil {
				return err
			}
			if o.jsonOut {
				return printJSON(out, st)
			}
			fmt.Fprintf(out, "state:      %s\nprofile:    %s\n", st.State, st.Profile)
			if st.Prediction.OK {
				fmt.Fprintf(out, "prediction: %s (%.0f%%)\n", st.Prediction.Application, st.Prediction.Confidence*100)
			} else {
				fmt.Fprintln(out, "prediction: none")
			}
			fmt.Fprintf(out, "predicted:  %v\nactual:     %v\ncursor:     %d\nhit rate:   %.2f\n",
				st.History.Predicted, st.History.Actual, st.History.Cursor, st.HitRate)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "bridge address (default from config)")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the fitted tree")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the fitted tree as Graphviz DOT")
	return cmd
}

// #endregion remote

// #region helpers

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
