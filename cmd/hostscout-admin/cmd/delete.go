package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a resource",
}

var deleteCredentialCmd = &cobra.Command{
	Use:   "credential <id>",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteCredential,
}

var deleteSourceCmd = &cobra.Command{
	Use:   "source <id>",
	Short: "Delete a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteSource,
}

var deleteJobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Delete a settled scan job",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteJob,
}

func init() {
	deleteCmd.AddCommand(deleteCredentialCmd)
	deleteCmd.AddCommand(deleteSourceCmd)
	deleteCmd.AddCommand(deleteJobCmd)
}

func runDeleteCredential(cmd *cobra.Command, args []string) error {
	if err := mustClient().Delete("/api/v1/credentials/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Credential %s deleted.\n", args[0])
	return nil
}

func runDeleteSource(cmd *cobra.Command, args []string) error {
	if err := mustClient().Delete("/api/v1/sources/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Source %s deleted.\n", args[0])
	return nil
}

func runDeleteJob(cmd *cobra.Command, args []string) error {
	if err := mustClient().Delete("/api/v1/jobs/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Scan job %s deleted.\n", args[0])
	return nil
}
