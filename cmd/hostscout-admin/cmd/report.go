package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch and merge reports",
}

var reportDetailsCmd = &cobra.Command{
	Use:   "details <report-id>",
	Short: "Fetch the raw facts report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportDetails,
}

var reportDeploymentsCmd = &cobra.Command{
	Use:   "deployments <report-id>",
	Short: "Fetch the deduplicated fingerprint report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportDeployments,
}

var reportMergeCmd = &cobra.Command{
	Use:   "merge <report-id> <report-id> [report-id...]",
	Short: "Merge reports into a new one and refingerprint",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runReportMerge,
}

func init() {
	reportDeploymentsCmd.Flags().Bool("mask", false, "Mask identifying facts in the output")
	reportDetailsCmd.Flags().String("file", "", "Write the report to a file instead of stdout")
	reportDeploymentsCmd.Flags().String("file", "", "Write the report to a file instead of stdout")

	reportCmd.AddCommand(reportDetailsCmd)
	reportCmd.AddCommand(reportDeploymentsCmd)
	reportCmd.AddCommand(reportMergeCmd)
}

func runReportDetails(cmd *cobra.Command, args []string) error {
	data, err := mustClient().Get("/api/v1/reports/" + args[0] + "/details")
	if err != nil {
		return err
	}
	return writeReport(cmd, data)
}

func runReportDeployments(cmd *cobra.Command, args []string) error {
	path := "/api/v1/reports/" + args[0] + "/deployments"
	if mask, _ := cmd.Flags().GetBool("mask"); mask {
		path += "?mask=true"
	}
	data, err := mustClient().Get(path)
	if err != nil {
		return err
	}
	return writeReport(cmd, data)
}

func runReportMerge(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		var id int64
		if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
			return fmt.Errorf("invalid report id %q", arg)
		}
		ids = append(ids, id)
	}

	data, err := mustClient().Put("/api/v1/reports/merge/jobs", map[string]any{"reports": ids})
	if err != nil {
		return err
	}

	var job MergeJob
	if err := unmarshal(data, &job); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(job)
	case outputYAML:
		printYAML(job)
	default:
		fmt.Printf("Merge accepted.\n")
		fmt.Printf("  Report: %d\n", job.ReportID)
		fmt.Printf("  Job:    %s (%s)\n", job.ID, job.Status)
	}
	return nil
}

// writeReport emits raw report JSON to stdout or the --file target.
func writeReport(cmd *cobra.Command, data []byte) error {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	}

	var v any
	if err := unmarshal(data, &v); err != nil {
		return err
	}
	if flagOutput == outputYAML {
		printYAML(v)
	} else {
		printJSON(v)
	}
	return nil
}
