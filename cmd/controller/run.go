package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/launch-predictor/internal/eval"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// #region run-cmd
func runCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Interactive loop: type the application you launched",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.start(ctx); err != nil {
				return err
			}
			return repl(ctx, a.ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// #endregion run-cmd

// #region repl
const replHelp = `Commands:
  profile <name>   switch profile (Admin, Guest, User1, User2)
  tree | dot       show the fitted decision tree
  history          show both history rows and accuracy
  reset            clear the history rows
  launch <name>    record <name> even when it matches a command word
  quit             exit
Anything else is taken as the application you launched.`

func repl(ctx context.Context, ctrl *session.Controller, in io.Reader, out io.Writer) error {
	harness := eval.NewEvalHarness(eval.DefaultEvalConfig())

	fmt.Fprintln(out, "Launch predictor ready. Type 'help' for commands.")
	printPrediction(out, ctrl.Profile(), ctrl.Prediction())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")

		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, replHelp)
		case "profile":
			profile, err := occurrence.ParseProfile(arg)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			p, err := ctrl.SetProfile(ctx, profile)
			if err != nil {
				return err
			}
			printPrediction(out, profile, p)
		case "tree":
			fmt.Fprint(out, predictor.Render(ctrl.Model()))
		case "dot":
			dot, err := predictor.RenderDOT(ctrl.Model())
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprint(out, dot)
		case "history":
			snap := ctrl.History()
			fmt.Fprintln(out, renderHistory(snap))
			fmt.Fprintln(out, renderEval(harness.Run(snap)))
		case "reset":
			ctrl.ResetHistory()
			fmt.Fprintln(out, renderHistory(ctrl.History()))
		case "launch":
			choose(ctx, ctrl, out, strings.TrimSpace(arg))
		default:
			choose(ctx, ctrl, out, line)
		}
	}
	return scanner.Err()
}

func choose(ctx context.Context, ctrl *session.Controller, out io.Writer, application string) {
	res, err := ctrl.Choose(ctx, application)
	switch {
	case errors.Is(err, occurrence.ErrStorageWrite):
		fmt.Fprintf(out, "warning: %v\n", err)
	case err != nil:
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	printCycle(out, res)
	fmt.Fprintln(out, renderHistory(res.History))
	printPrediction(out, res.Profile, res.Next)
}

// #endregion repl

// #region output
func printPrediction(out io.Writer, profile occurrence.Profile, p predictor.Prediction) {
	if !p.OK {
		fmt.Fprintf(out, "[%s] no prediction yet\n", profile)
		return
	}
	fmt.Fprintf(out, "[%s] predicted: %s (%.0f%%)\n", profile, p.Application, p.Confidence*100)
}

func printCycle(out io.Writer, res session.CycleResult) {
	verdict := "miss"
	if res.Hit() {
		verdict = "hit"
	}
	fmt.Fprintf(out, "%s: chose %s", verdict, res.Chosen)
	if res.Unknown && !res.Inserted {
		fmt.Fprint(out, " (no record for this profile, table unchanged)")
	}
	if res.Inserted {
		fmt.Fprint(out, " (added to table)")
	}
	fmt.Fprintln(out)
}

// #endregion output
