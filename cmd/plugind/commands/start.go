package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/history"
	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/memsink"
	"github.com/nodewatch/plugind/internal/plugin"
	"github.com/nodewatch/plugind/internal/plugindir"
	"github.com/nodewatch/plugind/internal/telemetry"
	"github.com/nodewatch/plugind/pkg/api"
	"github.com/nodewatch/plugind/pkg/api/auth"
	"github.com/nodewatch/plugind/pkg/config"
	"github.com/nodewatch/plugind/pkg/metrics"
	prometheuscollector "github.com/nodewatch/plugind/pkg/metrics/prometheus"
)

const functionSweepInterval = time.Second

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the plugind collector",
	Long: `Start the plugind collector with the specified configuration.

By default, the process runs in the background (daemon mode). Use
--foreground to run in the foreground for debugging or when managed by a
process supervisor.

Examples:
  # Start in background (default)
  plugind start

  # Start in foreground
  plugind start --foreground

  # Start with custom config file
  plugind start --config /etc/plugind/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "path to PID file (default: $XDG_STATE_HOME/plugind/plugind.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "path to log file for daemon mode (default: $XDG_STATE_HOME/plugind/plugind.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "plugind",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "plugind",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("plugind starting", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	var metricsCollector metrics.Collector
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsCollector = prometheuscollector.NewCollector()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() {
		if err := hist.Close(); err != nil {
			logger.Error("history store close error", logger.Err(err))
		}
	}()

	var jwtService *auth.JWTService
	if cfg.API.JWTSecret != "" {
		jwtService, err = auth.NewJWTService(auth.JWTConfig{Secret: cfg.API.JWTSecret})
		if err != nil {
			return fmt.Errorf("failed to initialize JWT service: %w", err)
		}
	}

	supervisor := plugin.NewSupervisor()

	sup := &pluginSupervision{
		cfg:        cfg,
		supervisor: supervisor,
		history:    hist,
		metrics:    metricsCollector,
	}

	scanner := plugindir.NewScanner(cfg.Directories)
	descriptors, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan plugin directories: %w", err)
	}

	var wg sync.WaitGroup
	for _, d := range descriptors {
		sup.spawn(ctx, d, &wg)
	}
	logger.Info("initial plugin scan complete", "plugins", len(descriptors))

	discovered, err := scanner.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch plugin directories: %w", err)
	}
	go func() {
		for d := range discovered {
			logger.Info("plugin discovered at runtime", logger.PluginID(d.Name))
			sup.spawn(ctx, d, &wg)
		}
	}()

	serverDone := make(chan error, 1)
	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, supervisor, jwtService, cfg.FunctionDefaultTimeout, hist)
		go func() {
			serverDone <- apiServer.Start(ctx)
		}()
		logger.Info("control API configured", "port", cfg.API.Port)
	} else {
		logger.Info("control API disabled")
	}

	metricsDone := make(chan error, 1)
	if metricsServer != nil {
		go func() {
			metricsDone <- metricsServer.Start(ctx)
		}()
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("plugind is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("control API failed", logger.Err(err))
		}
	case err := <-metricsDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("metrics server failed", logger.Err(err))
		}
	}

	wg.Wait()
	logger.Info("plugind stopped")
	return nil
}

// pluginSupervision bundles everything spawn needs so runStart's body stays
// focused on startup sequencing.
type pluginSupervision struct {
	cfg        *config.Config
	supervisor *plugin.Supervisor
	history    *history.Store
	metrics    metrics.Collector
}

// spawn execs descriptor.Path, wires its stdout/stdin to a new Record and
// in-flight function registry, registers the record with the supervisor,
// and drives its Loop on a dedicated goroutine tracked by wg.
func (s *pluginSupervision) spawn(ctx context.Context, d plugindir.Descriptor, wg *sync.WaitGroup) {
	// Per-plugin context: cancelled when this plugin's loop exits, so the
	// sweep goroutine and the child process never outlive the session.
	pluginCtx, cancelPlugin := context.WithCancel(ctx)

	cmd := exec.CommandContext(pluginCtx, d.Path)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("failed to open plugin stdout", logger.PluginID(d.Name), logger.Err(err))
		cancelPlugin()
		return
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("failed to open plugin stdin", logger.PluginID(d.Name), logger.Err(err))
		cancelPlugin()
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Error("failed to start plugin", logger.PluginID(d.Name), logger.Err(err))
		cancelPlugin()
		return
	}

	rec := plugin.NewRecord(d.Name, d.Name+plugindir.PluginSuffix, d.Path, d.Path, 1)
	if cmd.Process != nil {
		rec.PID = cmd.Process.Pid
	}
	if err := s.supervisor.Register(rec); err != nil {
		logger.Error("failed to register plugin", logger.PluginID(d.Name), logger.Err(err))
		_ = cmd.Process.Kill()
		cancelPlugin()
		return
	}

	fnRegistry := functions.NewRegistry().WithCollector(s.metrics)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancelPlugin()
		loopCfg := plugin.LoopConfig{
			LineMax:                int(s.cfg.Limits.LineMax),
			DeferredBufferCap:      int(s.cfg.Limits.DeferredBufferCap),
			SerialFailureThreshold: s.cfg.SerialFailureThreshold,
			Metrics:                s.metrics,
			History:                s.history,
			CommandWriter:          stdin,
		}
		if err := plugin.Run(rec, stdout, memsink.New(), fnRegistry, loopCfg); err != nil {
			logger.Error("plugin loop exited with error", logger.PluginID(d.Name), logger.Err(err))
		}
		_ = cmd.Wait()
	}()

	go sweepFunctions(pluginCtx, fnRegistry)
}

// sweepFunctions periodically reaps timed-out in-flight function calls for
// a single plugin's registry until ctx is cancelled.
func sweepFunctions(ctx context.Context, fn *functions.Registry) {
	ticker := time.NewTicker(functionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn.Sweep(now)
		}
	}
}

// startDaemon re-execs the current binary in foreground mode, detached
// into the background, and writes its PID/log files under the XDG state
// directory.
func startDaemon() error {
	stateDir := defaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "plugind.pid")
	}

	if _, err := os.Stat(pidPath); err == nil {
		if data, err := os.ReadFile(pidPath); err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(data), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("plugind is already running (PID %d)", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(stateDir, "plugind.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFileHandle.Close() }()

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("plugind started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	return nil
}

func defaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "plugind")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "plugind")
}
