package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodewatch/plugind/internal/cli/output"
)

var (
	pluginsOutput  string
	pluginsAPIPort int
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List plugins known to the running collector",
	Long: `Query the control API for every registered plugin and its health
counters (successful collections, serial failures, enabled/obsolete flags).

Requires a running collector with the control API enabled.`,
	RunE: runPlugins,
}

func init() {
	pluginsCmd.Flags().IntVar(&pluginsAPIPort, "api-port", 8080, "control API port")
	pluginsCmd.Flags().StringVarP(&pluginsOutput, "output", "o", "table", "output format (table|json|yaml)")
}

// pluginRow mirrors pkg/api handlers' plugin.Snapshot JSON, decoded loosely
// here since the CLI has no dependency on the API package.
type pluginRow struct {
	ID                    string `json:"id" yaml:"id"`
	Filename              string `json:"filename" yaml:"filename"`
	FullPath              string `json:"full_path" yaml:"full_path"`
	PID                   int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	UpdateEvery           int    `json:"update_every" yaml:"update_every"`
	SuccessfulCollections uint64 `json:"successful_collections" yaml:"successful_collections"`
	SerialFailures        int    `json:"serial_failures" yaml:"serial_failures"`
	Enabled               bool   `json:"enabled" yaml:"enabled"`
	Obsolete              bool   `json:"obsolete" yaml:"obsolete"`
}

type pluginsResponse struct {
	Status string      `json:"status"`
	Data   []pluginRow `json:"data"`
	Error  string      `json:"error"`
}

func runPlugins(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(pluginsOutput)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/v1/plugins", pluginsAPIPort))
	if err != nil {
		return fmt.Errorf("control API unreachable on port %d (is the collector running?): %w", pluginsAPIPort, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var pr pluginsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return fmt.Errorf("failed to decode control API response: %w", err)
	}
	if pr.Error != "" {
		return fmt.Errorf("control API error: %s", pr.Error)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, pr.Data)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, pr.Data)
	default:
		return printPluginsTable(pr.Data)
	}
}

func printPluginsTable(rows []pluginRow) error {
	if len(rows) == 0 {
		fmt.Println("no plugins registered")
		return nil
	}

	table := output.NewTableData("ID", "PID", "COLLECTIONS", "FAILURES", "ENABLED", "OBSOLETE")
	for _, row := range rows {
		pid := "-"
		if row.PID != 0 {
			pid = strconv.Itoa(row.PID)
		}
		table.AddRow(
			row.ID,
			pid,
			strconv.FormatUint(row.SuccessfulCollections, 10),
			strconv.Itoa(row.SerialFailures),
			strconv.FormatBool(row.Enabled),
			strconv.FormatBool(row.Obsolete),
		)
	}
	return output.PrintTable(os.Stdout, table)
}
