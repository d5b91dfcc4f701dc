package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a resource",
}

var createCredentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Create a credential",
	RunE:  runCreateCredential,
}

var createSourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Create a source",
	RunE:  runCreateSource,
}

func init() {
	createCredentialCmd.Flags().String("name", "", "Credential name (required)")
	createCredentialCmd.Flags().String("cred-type", "", "Credential type: network, vcenter, satellite, openshift, ansible, rhacs (required)")
	createCredentialCmd.Flags().String("username", "", "Username")
	createCredentialCmd.Flags().String("password", "", "Password")
	createCredentialCmd.Flags().String("ssh-keyfile", "", "Path to an SSH private key readable by the server")
	createCredentialCmd.Flags().String("ssh-key-file", "", "Local SSH private key file to embed in the credential")
	createCredentialCmd.Flags().String("ssh-passphrase", "", "SSH key passphrase")
	createCredentialCmd.Flags().String("become-method", "", "Privilege escalation method (sudo, su, pbrun, ...)")
	createCredentialCmd.Flags().String("become-user", "", "Privilege escalation user")
	createCredentialCmd.Flags().String("become-password", "", "Privilege escalation password")
	createCredentialCmd.Flags().String("auth-token", "", "API token for openshift/rhacs credentials")

	createSourceCmd.Flags().String("name", "", "Source name (required)")
	createSourceCmd.Flags().String("source-type", "", "Source type: network, vcenter, satellite, openshift, ansible, rhacs (required)")
	createSourceCmd.Flags().StringSlice("hosts", nil, "Hosts, CIDR blocks or range expressions (required)")
	createSourceCmd.Flags().StringSlice("exclude-hosts", nil, "Hosts to exclude from scanning")
	createSourceCmd.Flags().Int("port", 0, "Connection port (defaults per source type)")
	createSourceCmd.Flags().StringSlice("credentials", nil, "Credential IDs to try in order (required)")
	createSourceCmd.Flags().Bool("disable-ssl", false, "Disable SSL for API sources")

	createCmd.AddCommand(createCredentialCmd)
	createCmd.AddCommand(createSourceCmd)
}

func runCreateCredential(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	credType, _ := cmd.Flags().GetString("cred-type")
	if name == "" {
		return fmt.Errorf("--name is required")
	}
	if credType == "" {
		return fmt.Errorf("--cred-type is required")
	}

	body := map[string]any{
		"name":      name,
		"cred_type": credType,
	}
	setStringFlag(cmd, body, "username", "username")
	setStringFlag(cmd, body, "password", "password")
	setStringFlag(cmd, body, "ssh-keyfile", "ssh_keyfile")
	setStringFlag(cmd, body, "ssh-passphrase", "ssh_passphrase")
	setStringFlag(cmd, body, "become-method", "become_method")
	setStringFlag(cmd, body, "become-user", "become_user")
	setStringFlag(cmd, body, "become-password", "become_password")
	setStringFlag(cmd, body, "auth-token", "auth_token")

	if path, _ := cmd.Flags().GetString("ssh-key-file"); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read ssh key: %w", err)
		}
		body["ssh_key"] = string(key)
	}

	data, err := mustClient().Post("/api/v1/credentials", body)
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
		fmt.Printf("Credential %q created.\n", c.Name)
		fmt.Printf("  ID:   %s\n", c.ID)
		fmt.Printf("  Type: %s\n", c.CredType)
	}
	return nil
}

func runCreateSource(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	sourceType, _ := cmd.Flags().GetString("source-type")
	hosts, _ := cmd.Flags().GetStringSlice("hosts")
	creds, _ := cmd.Flags().GetStringSlice("credentials")

	if name == "" {
		return fmt.Errorf("--name is required")
	}
	if sourceType == "" {
		return fmt.Errorf("--source-type is required")
	}
	if len(hosts) == 0 {
		return fmt.Errorf("--hosts is required")
	}
	if len(creds) == 0 {
		return fmt.Errorf("--credentials is required")
	}

	body := map[string]any{
		"name":        name,
		"source_type": sourceType,
		"hosts":       hosts,
		"credentials": creds,
	}
	if v, _ := cmd.Flags().GetStringSlice("exclude-hosts"); len(v) > 0 {
		body["exclude_hosts"] = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		body["port"] = v
	}
	if v, _ := cmd.Flags().GetBool("disable-ssl"); v {
		body["disable_ssl"] = true
	}

	data, err := mustClient().Post("/api/v1/sources", body)
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
		fmt.Printf("Source %q created.\n", s.Name)
		fmt.Printf("  ID:    %s\n", s.ID)
		fmt.Printf("  Type:  %s\n", s.SourceType)
		fmt.Printf("  Hosts: %s\n", strings.Join(s.Hosts, ", "))
		fmt.Printf("  Port:  %d\n", s.Port)
	}
	return nil
}

func setStringFlag(cmd *cobra.Command, body map[string]any, flag, field string) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		body[field] = v
	}
}
