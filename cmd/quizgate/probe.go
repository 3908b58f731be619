package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/quizgate/config"
	"github.com/unkn0wn-root/quizgate/health"
)

var probeStrict bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "probe every upstream service once and print the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		r := health.NewReporter(health.ReporterOptions{Targets: sortedTargets(cfg)})
		rep := r.Report(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if probeStrict && !rep.Healthy() {
			return fmt.Errorf("gateway dependencies %s", rep.Status)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeStrict, "strict", false, "exit non-zero unless every service is healthy")
}
