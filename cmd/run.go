package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/smartcast/internal/scenario"
	"github.com/gnolang/smartcast/lint"
)

var dumpFlows bool

// runCmd: smartcast run scenario.yaml...
var runCmd = &cobra.Command{
	Use:   "run [scenarios...]",
	Short: "Run engine scenarios and check their expectations",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		failed, err := runScenarios(ctx, logger, config, cmd.OutOrStdout(), args, dumpFlows)
		if err != nil {
			logger.Error("Error running scenarios", zap.Error(err))
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&dumpFlows, "dump", false, "Dump the final flows of each scenario")
}

// runScenarios runs every scenario and returns how many expectations failed.
// Scenarios without their own hierarchy or depth bound take the config's.
func runScenarios(
	ctx context.Context,
	logger *zap.Logger,
	cfg lint.Config,
	w io.Writer,
	paths []string,
	dump bool,
) (int, error) {
	failed := 0
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return failed, err
		}
		if len(sc.Hierarchy) == 0 {
			sc.Hierarchy = cfg.Hierarchy
		}
		if sc.MaxApprovalDepth == 0 {
			sc.MaxApprovalDepth = cfg.Engine.MaxApprovalDepth
		}

		report, err := scenario.Run(ctx, logger, sc)
		if err != nil {
			return failed, fmt.Errorf("%s: %w", path, err)
		}
		printReport(w, report)
		if dump {
			spew.Fdump(w, report.Raw)
		}
		failed += len(report.Failed())
	}
	return failed, nil
}

func printReport(w io.Writer, report *scenario.Report) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed, color.Bold)

	bold.Fprintf(w, "== %s\n", report.Name)
	for _, flow := range report.Flows {
		faint.Fprintf(w, "flow %s\n", flow.Name)
		for _, known := range flow.Known {
			fmt.Fprintf(w, "  %s\n", known)
		}
		for _, s := range flow.Statements {
			faint.Fprintf(w, "  %s\n", s)
		}
		names := make([]string, 0, len(flow.Nilness))
		for name := range flow.Nilness {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			faint.Fprintf(w, "  %s: %s\n", name, flow.Nilness[name])
		}
	}
	for _, res := range report.Results {
		if res.Passed {
			pass.Fprintln(w, res.String())
		} else {
			fail.Fprintln(w, res.String())
		}
	}
}
