package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rapidreach/rrops/core/estimate"
	"github.com/rapidreach/rrops/infra/jira"
	"github.com/rapidreach/rrops/infra/logger"
)

var estDryRun bool
var estProject string

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Distribute the hour budget over open sub-tasks by complexity",
	RunE:  runEstimate,
}

func init() {
	estimateCmd.Flags().BoolVar(&estDryRun, "dry-run", false, "print the plan without writing estimates")
	estimateCmd.Flags().StringVar(&estProject, "project", "", "project key (overrides tracker.project)")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := jira.New(cfg.Tracker)
	if err != nil {
		return err
	}
	project := cfg.Tracker.Project
	if estProject != "" {
		project = estProject
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	_, err = estimate.NewUpdater(client, project, cfg.Estimate, estDryRun, cmd.OutOrStdout(), logger.New("estimate")).Run(ctx)
	return err
}
