package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run and control scan jobs",
}

var scanStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a scan over one or more sources",
	RunE:  runScanStart,
}

var scanPauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a running scan job",
	Args:  cobra.ExactArgs(1),
	RunE:  makeTransition("pause", "paused"),
}

var scanCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a scan job",
	Args:  cobra.ExactArgs(1),
	RunE:  makeTransition("cancel", "canceled"),
}

var scanRestartCmd = &cobra.Command{
	Use:   "restart <job-id>",
	Short: "Restart a paused scan job",
	Args:  cobra.ExactArgs(1),
	RunE:  makeTransition("restart", "restarted"),
}

func init() {
	scanStartCmd.Flags().String("scan-type", "inspect", "Scan type: connect, inspect")
	scanStartCmd.Flags().StringSlice("sources", nil, "Source IDs to scan (required)")
	scanStartCmd.Flags().Int("max-concurrency", 0, "Maximum concurrent host inspections")

	scanCmd.AddCommand(scanStartCmd)
	scanCmd.AddCommand(scanPauseCmd)
	scanCmd.AddCommand(scanCancelCmd)
	scanCmd.AddCommand(scanRestartCmd)
}

func runScanStart(cmd *cobra.Command, args []string) error {
	scanType, _ := cmd.Flags().GetString("scan-type")
	sources, _ := cmd.Flags().GetStringSlice("sources")
	if len(sources) == 0 {
		return fmt.Errorf("--sources is required")
	}

	body := map[string]any{
		"scan_type": scanType,
		"sources":   sources,
	}
	if v, _ := cmd.Flags().GetInt("max-concurrency"); v > 0 {
		body["options"] = map[string]any{"max_concurrency": v}
	}

	data, err := mustClient().Post("/api/v1/jobs", body)
	if err != nil {
		return err
	}

	var job ScanJob
	if err := unmarshal(data, &job); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(job)
	case outputYAML:
		printYAML(job)
	default:
		fmt.Printf("Scan job started.\n")
		fmt.Printf("  ID:     %s\n", job.ID)
		fmt.Printf("  Type:   %s\n", job.ScanType)
		fmt.Printf("  Status: %s\n", job.Status)
		fmt.Printf("  Tasks:  %d\n", len(job.Tasks))
	}
	return nil
}

func makeTransition(action, past string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		data, err := mustClient().Put(fmt.Sprintf("/api/v1/jobs/%s/%s", args[0], action), nil)
		if err != nil {
			return err
		}

		var job ScanJob
		if err := unmarshal(data, &job); err != nil {
			return err
		}

		switch flagOutput {
		case outputJSON:
			printJSON(job)
		case outputYAML:
			printYAML(job)
		default:
			fmt.Printf("Scan job %s %s (status: %s).\n", job.ID, past, job.Status)
		}
		return nil
	}
}
