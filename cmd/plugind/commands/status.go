package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodewatch/plugind/internal/cli/output"
	"github.com/nodewatch/plugind/internal/cli/timeutil"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collector status",
	Long: `Display the current status of the plugind collector.

Checks the PID file and the control API's /healthz endpoint and reports
whether the process is running, healthy, and for how long.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "path to PID file (default: $XDG_STATE_HOME/plugind/plugind.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "control API port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table|json|yaml)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pluginsCmd)
}

// collectorStatus is the CLI-facing view of a running plugind process.
type collectorStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message   string `json:"message" yaml:"message"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Plugins   int    `json:"plugins" yaml:"plugins"`
}

// healthResponse mirrors pkg/api/handlers.Response wrapping livenessData,
// decoded loosely here since the CLI has no dependency on the API package.
type healthResponse struct {
	Status string `json:"status"`
	Data   struct {
		Service   string `json:"service"`
		Plugins   int    `json:"plugins"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
	} `json:"data"`
	Error string `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := collectorStatus{Message: "collector is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = defaultPidFile()
	}
	if pidData, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(pidData))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/healthz", statusAPIPort))
	if err == nil {
		defer func() { _ = resp.Body.Close() }()
		var hr healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&hr); err == nil {
			status.Running = true
			status.Healthy = hr.Status == "healthy"
			status.StartedAt = hr.Data.StartedAt
			status.Uptime = hr.Data.Uptime
			status.Plugins = hr.Data.Plugins
			if status.Healthy {
				status.Message = "collector is running and healthy"
			} else {
				status.Message = fmt.Sprintf("collector is running but unhealthy: %s", hr.Error)
			}
		}
	} else if status.Running {
		status.Message = "collector process exists but the control API is unreachable"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
		return nil
	}
}

func printStatusTable(status collectorStatus) {
	p := output.DefaultPrinter()
	p.Println()
	p.Println("plugind Collector Status")
	p.Println("========================")
	p.Println()

	if status.Running {
		if status.Healthy {
			p.Success(fmt.Sprintf("  Status:     Running (PID %d)", status.PID))
		} else {
			p.Warning(fmt.Sprintf("  Status:     Running, unhealthy (PID %d)", status.PID))
		}
		if status.StartedAt != "" {
			p.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			p.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
		p.Printf("  Plugins:    %d\n", status.Plugins)
	} else {
		p.Error("  Status:     Stopped")
	}

	p.Println()
	p.Printf("  %s\n", status.Message)
	p.Println()
}

func defaultPidFile() string {
	return defaultStateDir() + "/plugind.pid"
}
