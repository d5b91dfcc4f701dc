package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
}

var getCredentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"credential", "creds"},
	Short:   "List credentials",
	RunE:    runGetCredentials,
}

var getSourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"source"},
	Short:   "List sources",
	RunE:    runGetSources,
}

var getJobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "List scan jobs",
	RunE:    runGetJobs,
}

func init() {
	getCredentialsCmd.Flags().String("cred-type", "", "Filter by credential type (network, vcenter, satellite, openshift, ansible, rhacs)")
	getCredentialsCmd.Flags().String("name", "", "Filter by name")
	addPageFlags(getCredentialsCmd)

	getSourcesCmd.Flags().String("source-type", "", "Filter by source type")
	getSourcesCmd.Flags().String("name", "", "Filter by name")
	addPageFlags(getSourcesCmd)

	getJobsCmd.Flags().String("status", "", "Filter by status (created, pending, running, paused, canceled, completed, failed)")
	getJobsCmd.Flags().String("scan-type", "", "Filter by scan type (connect, inspect, fingerprint)")
	addPageFlags(getJobsCmd)

	getCmd.AddCommand(getCredentialsCmd)
	getCmd.AddCommand(getSourcesCmd)
	getCmd.AddCommand(getJobsCmd)
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("per-page", 25, "Items per page")
}

func pageParams(cmd *cobra.Command, params url.Values) {
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("per-page"); v > 0 {
		params.Set("per_page", strconv.Itoa(v))
	}
}

func listPath(base string, params url.Values) string {
	if q := params.Encode(); q != "" {
		return base + "?" + q
	}
	return base
}

func runGetCredentials(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("cred-type"); v != "" {
		params.Set("cred_type", v)
	}
	if v, _ := cmd.Flags().GetString("name"); v != "" {
		params.Set("name", v)
	}
	pageParams(cmd, params)

	data, err := client.Get(listPath("/api/v1/credentials", params))
	if err != nil {
		return err
	}

	var resp listEnvelope[Credential]
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("NAME", "TYPE", "USERNAME", "CREATED", "ID")
		for _, c := range resp.Results {
			t.AddRow(c.Name, c.CredType, dash(c.Username), shortTime(c.CreatedAt), c.ID)
		}
		t.Flush()
		printPagination(int(resp.Count), resp.Page, resp.PerPage)
	}
	return nil
}

func runGetSources(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("source-type"); v != "" {
		params.Set("source_type", v)
	}
	if v, _ := cmd.Flags().GetString("name"); v != "" {
		params.Set("name", v)
	}
	pageParams(cmd, params)

	data, err := client.Get(listPath("/api/v1/sources", params))
	if err != nil {
		return err
	}

	var resp listEnvelope[Source]
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("NAME", "TYPE", "HOSTS", "PORT", "CREDENTIALS", "ID")
		for _, s := range resp.Results {
			t.AddRow(s.Name, s.SourceType, summarizeHosts(s.Hosts), strconv.Itoa(s.Port),
				strconv.Itoa(len(s.Credentials)), s.ID)
		}
		t.Flush()
		printPagination(int(resp.Count), resp.Page, resp.PerPage)
	}
	return nil
}

func runGetJobs(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		params.Set("status", v)
	}
	if v, _ := cmd.Flags().GetString("scan-type"); v != "" {
		params.Set("scan_type", v)
	}
	pageParams(cmd, params)

	data, err := client.Get(listPath("/api/v1/jobs", params))
	if err != nil {
		return err
	}

	var resp listEnvelope[ScanJob]
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("ID", "TYPE", "STATUS", "SOURCES", "SCANNED", "CREATED")
		for _, j := range resp.Results {
			t.AddRow(j.ID, j.ScanType, j.Status, strconv.Itoa(len(j.Sources)),
				intOrDash(j.SystemsScanned), shortTime(j.CreatedAt))
		}
		t.Flush()
		printPagination(int(resp.Count), resp.Page, resp.PerPage)
	}
	return nil
}

func summarizeHosts(hosts []string) string {
	if len(hosts) == 0 {
		return "-"
	}
	if len(hosts) <= 2 {
		return strings.Join(hosts, ",")
	}
	return fmt.Sprintf("%s,... (%d)", hosts[0], len(hosts))
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
