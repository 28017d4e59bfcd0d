package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rapidreach/rrops/core/acceptance"
	"github.com/rapidreach/rrops/core/history"
	coremetrics "github.com/rapidreach/rrops/core/metrics"
	"github.com/rapidreach/rrops/core/tracker"
	"github.com/rapidreach/rrops/infra/jira"
	"github.com/rapidreach/rrops/infra/logger"
	_ "github.com/rapidreach/rrops/infra/metrics"
	"github.com/rapidreach/rrops/infra/mqtt"
)

var acceptanceCmd = &cobra.Command{
	Use:   "acceptance",
	Short: "Device acceptance tests over the MQTT CLI bridge",
}

var (
	runCases     []string
	runNoTracker bool
	runReport    string
)

var acceptanceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run acceptance cases and book the results",
	RunE:  runAcceptance,
}

var acceptanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the acceptance cases",
	RunE:  runAcceptanceList,
}

var (
	histCase   string
	histFailed bool
	histSince  time.Duration
	histLimit  int
)

var acceptanceHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded case outcomes",
	RunE:  runAcceptanceHistory,
}

func init() {
	acceptanceRunCmd.Flags().StringSliceVar(&runCases, "case", nil, "case ID to run (repeatable, default all)")
	acceptanceRunCmd.Flags().BoolVar(&runNoTracker, "no-tracker", false, "do not book worklogs or transitions")
	acceptanceRunCmd.Flags().StringVar(&runReport, "report", "", "report file (overrides acceptance.report_path)")

	acceptanceHistoryCmd.Flags().StringVar(&histCase, "case", "", "only this case ID")
	acceptanceHistoryCmd.Flags().BoolVar(&histFailed, "failed", false, "only failed outcomes")
	acceptanceHistoryCmd.Flags().DurationVar(&histSince, "since", 0, "only outcomes newer than this")
	acceptanceHistoryCmd.Flags().IntVar(&histLimit, "limit", 50, "maximum number of records")

	acceptanceCmd.AddCommand(acceptanceRunCmd, acceptanceListCmd, acceptanceHistoryCmd)
	rootCmd.AddCommand(acceptanceCmd)
}

func runAcceptance(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("acceptance")
	out := cmd.OutOrStdout()

	catalog, err := acceptance.LoadCatalog(cfg.Acceptance.CasesFile)
	if err != nil {
		return err
	}
	cases, err := catalog.Select(runCases)
	if err != nil {
		return err
	}

	var trk tracker.Tracker
	if cfg.Acceptance.TrackerUpdates && !runNoTracker {
		if err := cfg.Tracker.RequireCredentials(); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error: Jira environment variables not set")
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Please source ~/.config/rapidreach/jira.env")
			return err
		}
		c, err := jira.New(cfg.Tracker)
		if err != nil {
			return err
		}
		trk = c
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("close history: %v", err)
		}
	}()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	bridge, err := mqtt.NewCLIBridge(ctx, cfg.MQTT, cfg.Device.ID, mqtt.BridgeOptions{
		Wait:   cfg.Acceptance.CommandWait(),
		Settle: cfg.Acceptance.ConnectSettle(),
		Logger: logger.New("cli_bridge"),
	})
	if err != nil {
		return err
	}
	defer bridge.Close()

	runner := acceptance.NewRunner(bridge, acceptance.Options{
		InterCaseDelay:   cfg.Acceptance.InterCaseDelay(),
		MinLoggedMinutes: cfg.Acceptance.MinLoggedMinutes,
		Tracker:          trk,
		Metrics:          sink,
		History:          store,
		Out:              out,
		Logger:           log,
	})
	rep, runErr := runner.Run(ctx, cases)

	path := cfg.Acceptance.ReportPath
	if runReport != "" {
		path = runReport
	}
	if err := acceptance.WriteReport(path, rep); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Detailed results saved to %s\n", path)

	if runErr != nil {
		return runErr
	}
	if rep.Summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", acceptance.ErrCasesFailed, rep.Summary.Failed, rep.Summary.Total)
	}
	return nil
}

func runAcceptanceList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := acceptance.LoadCatalog(cfg.Acceptance.CasesFile)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOMMANDS\tESTIMATE")
	for _, tc := range catalog {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%gm\n", tc.ID, tc.Name, len(tc.Commands), tc.EstimateMinutes)
	}
	return w.Flush()
}

func runAcceptanceHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Backend == "none" {
		return errors.New("history is disabled (history.backend is none)")
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := history.Query{CaseID: strings.ToUpper(histCase), FailedOnly: histFailed, Limit: histLimit}
	if histSince > 0 {
		q.Start = time.Now().Add(-histSince)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tCASE\tRESULT\tMINUTES\tRUN")
	for _, r := range recs {
		result := "PASSED"
		if !r.Passed {
			result = "FAILED"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.CaseID, result, r.ElapsedMinutes, r.RunID)
	}
	return w.Flush()
}
