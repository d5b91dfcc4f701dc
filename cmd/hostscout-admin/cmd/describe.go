package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show detailed information about a resource",
}

var describeCredentialCmd = &cobra.Command{
	Use:   "credential <id>",
	Short: "Show a credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeCredential,
}

var describeSourceCmd = &cobra.Command{
	Use:   "source <id>",
	Short: "Show a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeSource,
}

var describeJobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show a scan job with its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeJob,
}

func init() {
	describeCmd.AddCommand(describeCredentialCmd)
	describeCmd.AddCommand(describeSourceCmd)
	describeCmd.AddCommand(describeJobCmd)
}

func runDescribeCredential(cmd *cobra.Command, args []string) error {
	data, err := mustClient().Get("/api/v1/credentials/" + args[0])
	if err != nil {
		return err
	}

	var c Credential
	if err := unmarshal(data, &c); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(c)
	case outputYAML:
		printYAML(c)
	default:
		fmt.Printf("Name:       %s\n", c.Name)
		fmt.Printf("ID:         %s\n", c.ID)
		fmt.Printf("Type:       %s\n", c.CredType)
		fmt.Printf("Username:   %s\n", dash(c.Username))
		fmt.Printf("Created:    %s\n", shortTime(c.CreatedAt))
		fmt.Printf("Updated:    %s\n", shortTime(c.UpdatedAt))
	}
	return nil
}

func runDescribeSource(cmd *cobra.Command, args []string) error {
	data, err := mustClient().Get("/api/v1/sources/" + args[0])
	if err != nil {
		return err
	}

	var s Source
	if err := unmarshal(data, &s); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(s)
	case outputYAML:
		printYAML(s)
	default:
		fmt.Printf("Name:          %s\n", s.Name)
		fmt.Printf("ID:            %s\n", s.ID)
		fmt.Printf("Type:          %s\n", s.SourceType)
		fmt.Printf("Port:          %d\n", s.Port)
		fmt.Printf("Hosts:         %s\n", strings.Join(s.Hosts, ", "))
		if len(s.ExcludeHosts) > 0 {
			fmt.Printf("Excluded:      %s\n", strings.Join(s.ExcludeHosts, ", "))
		}
		fmt.Printf("Credentials:   %s\n", strings.Join(s.Credentials, ", "))
		if s.MostRecentConnectScan != nil {
			fmt.Printf("Last connect:  %s\n", *s.MostRecentConnectScan)
		}
		fmt.Printf("Created:       %s\n", shortTime(s.CreatedAt))
	}
	return nil
}

func runDescribeJob(cmd *cobra.Command, args []string) error {
	data, err := mustClient().Get("/api/v1/jobs/" + args[0])
	if err != nil {
		return err
	}

	var j ScanJob
	if err := unmarshal(data, &j); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(j)
	case outputYAML:
		printYAML(j)
	default:
		fmt.Printf("ID:        %s\n", j.ID)
		fmt.Printf("Type:      %s\n", j.ScanType)
		fmt.Printf("Status:    %s\n", j.Status)
		if j.StatusMessage != "" {
			fmt.Printf("Message:   %s\n", j.StatusMessage)
		}
		if j.ReportID != nil {
			fmt.Printf("Report:    %d\n", *j.ReportID)
		}
		fmt.Printf("Systems:   %s found, %s scanned, %s failed\n",
			intOrDash(j.SystemsCount), intOrDash(j.SystemsScanned), intOrDash(j.SystemsFailed))
		if j.StartTime != nil {
			fmt.Printf("Started:   %s\n", shortTime(*j.StartTime))
		}
		if j.EndTime != nil {
			fmt.Printf("Ended:     %s\n", shortTime(*j.EndTime))
		}

		if len(j.Tasks) > 0 {
			fmt.Println("\nTasks:")
			t := newTable("  SEQ", "TYPE", "STATUS", "SCANNED", "MESSAGE")
			for _, task := range j.Tasks {
				t.AddRow(fmt.Sprintf("  %d", task.SequenceNumber), task.ScanType, task.Status,
					fmt.Sprintf("%d/%d", task.SystemsScanned, task.SystemsCount),
					dash(task.StatusMessage))
			}
			t.Flush()
		}
	}
	return nil
}
