package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// #region main
func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags overrides config values when set on the command line.
type flags struct {
	configPath string
	capacity   int
	backend    string
	storePath  string
	profile    string
	verbose    bool
}

func rootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "controller",
		Short:         "Predict the next application launch per user profile",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "config file path (default ~/.launchpredict/config.yaml)")
	root.PersistentFlags().IntVar(&f.capacity, "capacity", 0, "history buffer slots (default from config, 10)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "occurrence store backend: csv, sqlite or postgres")
	root.PersistentFlags().StringVar(&f.storePath, "store", "", "occurrence store path or postgres DSN")
	root.PersistentFlags().StringVar(&f.profile, "profile", "", "starting profile: Admin, Guest, User1 or User2")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(f), initCmd(f), serveCmd(f))
	return root
}

// #endregion main
