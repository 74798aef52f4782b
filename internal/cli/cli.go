// Package cli implements the all-smi command-line surface: the "api"
// subcommand (run the local exporter) and the "view" subcommand (print
// a rolling snapshot, locally or aggregated across a cluster).
//
// Grounded on the teacher's pkg/collector/cli.go CEEMSExporter: the same
// kingpin.Application, promslog logging setup, security.Manager
// privilege drop, signal-driven graceful shutdown shape, generalized
// from one exporter binary into two subcommands sharing one app.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/promslog"
	"github.com/prometheus/common/promslog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"

	hostruntime "github.com/accelmetrics/all-smi/internal/runtime"
	"github.com/accelmetrics/all-smi/internal/security"
	"github.com/accelmetrics/all-smi/pkg/aggregator"
	"github.com/accelmetrics/all-smi/pkg/collector"
	"github.com/accelmetrics/all-smi/pkg/exporter"
	"github.com/accelmetrics/all-smi/pkg/history"
	"github.com/accelmetrics/all-smi/pkg/mockgen"
	"github.com/accelmetrics/all-smi/pkg/model"
)

// AppName is the kingpin application name.
const AppName = "all-smi"

// historyRingCapacity bounds how many cluster reductions "view" keeps
// in memory; spec requires an explicit cap with FIFO eviction, no
// unbounded growth.
const historyRingCapacity = 120

// App wraps the kingpin application and dispatches to the api/view
// subcommands.
type App struct {
	kp             *kingpin.Application
	promslogConfig *promslog.Config
}

// New builds the CLI application and registers its subcommands.
func New() *App {
	kp := kingpin.New(AppName, "Cross-vendor accelerator telemetry collector.")
	kp.Version(version.Print(AppName))
	kp.HelpFlag.Short('h')

	promslogConfig := &promslog.Config{}
	flag.AddFlags(kp, promslogConfig)

	return &App{kp: kp, promslogConfig: promslogConfig}
}

// Run parses os.Args and executes the selected subcommand. The returned
// int is the process exit code per spec §6 (0 success, 1 fatal startup
// error, 2 usage error).
func (a *App) Run(args []string) int {
	apiCmd := newAPICommand(a.kp, a.promslogConfig)
	viewCmd := newViewCommand(a.kp, a.promslogConfig)

	cmd, err := a.kp.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 2
	}

	switch cmd {
	case apiCmd.fullCommand:
		if err := apiCmd.run(); err != nil {
			fmt.Fprintln(os.Stderr, err)

			return 1
		}
	case viewCmd.fullCommand:
		if err := viewCmd.run(); err != nil {
			fmt.Fprintln(os.Stderr, err)

			return 1
		}
	default:
		return 2
	}

	return 0
}

type apiCommand struct {
	fullCommand string

	port            int
	webAddresses    []string
	metricsPath     string
	selfMetricsPath string
	maxRequests     int
	rateLimit       int
	runAsUser       string
	dropPrivileges  bool
	mock            bool
	mockGPUCount    int

	promslogConfig *promslog.Config
}

func newAPICommand(kp *kingpin.Application, promslogConfig *promslog.Config) *apiCommand {
	c := &apiCommand{promslogConfig: promslogConfig}

	cmd := kp.Command("api", "Run the local Prometheus-style exporter.")
	c.fullCommand = cmd.FullCommand()

	cmd.Flag("port", "Port to listen on (shorthand for --web.listen-address=:<port>).").
		Default("9999").IntVar(&c.port)
	cmd.Flag("web.listen-address", "Addresses to listen on. Overrides --port when set.").
		StringsVar(&c.webAddresses)
	cmd.Flag("web.telemetry-path", "Path under which to expose metrics.").
		Default("/metrics").StringVar(&c.metricsPath)
	cmd.Flag("web.self-metrics-path", "Path under which to expose exporter self-metrics.").
		Default("/self-metrics").StringVar(&c.selfMetricsPath)
	cmd.Flag("web.max-requests", "Maximum concurrent requests to the self-metrics endpoint; 0 disables the limit.").
		Default("40").IntVar(&c.maxRequests)
	cmd.Flag("web.rate-limit-per-second", "Per-client rate limit on /metrics.").
		Default("5").IntVar(&c.rateLimit)
	cmd.Flag("security.run-as-user", "Drop to this user before the listener is bound, when started as root.").
		Default("nobody").StringVar(&c.runAsUser)
	cmd.Flag("security.drop-privileges", "Drop privileges after startup when run as root.").
		Default("true").BoolVar(&c.dropPrivileges)
	cmd.Flag("mock", "Serve fabricated telemetry instead of reading real hardware.").
		Default("false").BoolVar(&c.mock)
	cmd.Flag("mock.gpu-count", "Number of fabricated GPUs when --mock is set.").
		Default("2").IntVar(&c.mockGPUCount)

	return c
}

func (c *apiCommand) run() error {
	logger := promslog.New(c.promslogConfig)

	logger.Info("starting "+AppName, "version", version.Info())
	logger.Info("operational information",
		"build_context", version.BuildContext(),
		"host_details", hostruntime.Uname(),
		"fd_limits", hostruntime.FdLimits(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshotter, shutdownCollector, err := c.buildSnapshotter(ctx, logger)
	if err != nil {
		return err
	}

	addresses := c.webAddresses
	if len(addresses) == 0 {
		addresses = []string{fmt.Sprintf(":%d", c.port)}
	}

	srv, err := exporter.New(&exporter.Config{
		Logger:    logger,
		Collector: snapshotter,
		Web: exporter.WebConfig{
			Addresses:          addresses,
			MetricsPath:        c.metricsPath,
			SelfMetricsPath:    c.selfMetricsPath,
			MaxRequests:        c.maxRequests,
			RateLimitPerSecond: c.rateLimit,
			LandingConfig: &web.LandingConfig{
				Name:        AppName,
				Description: "Cross-vendor accelerator telemetry collector",
				Version:     version.Info(),
				Links: []web.LandingLinks{
					{Address: c.metricsPath, Text: "Metrics"},
				},
			},
		},
	})
	if err != nil {
		logger.Error("failed to build exporter server", "err", err)

		return err
	}

	if err := c.dropPrivilegesIfRequested(logger); err != nil {
		return err
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("exporter server exited", "err", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shut down server", "err", err)
	}

	if shutdownCollector != nil {
		if err := shutdownCollector(shutdownCtx); err != nil {
			logger.Error("failed to shut down collector sessions", "err", err)
		}
	}

	logger.Info("see you next time")

	return nil
}

func (c *apiCommand) buildSnapshotter(ctx context.Context, logger *slog.Logger) (exporter.Snapshotter, func(context.Context) error, error) {
	if c.mock {
		logger.Info("serving fabricated telemetry (--mock)", "gpu_count", c.mockGPUCount)

		hostname, _ := os.Hostname()

		return &mockSnapshotter{
			gen: mockgen.New(mockgen.Config{
				Hostname: hostname,
				GPUCount: c.mockGPUCount,
				Rand:     rand.New(rand.NewSource(1)),
			}),
		}, nil, nil
	}

	facade, err := collector.New(ctx, logger)
	if err != nil {
		logger.Error("failed to initialize collector facade", "err", err)

		return nil, nil, err
	}

	return facade, facade.Shutdown, nil
}

func (c *apiCommand) dropPrivilegesIfRequested(logger *slog.Logger) error {
	if !c.dropPrivileges || runtime.GOOS != "linux" {
		return nil
	}

	securityManager, err := security.NewManager(&security.Config{RunAsUser: c.runAsUser}, logger)
	if err != nil {
		logger.Error("failed to create security manager", "err", err)

		return err
	}

	if err := securityManager.DropPrivileges(false); err != nil {
		logger.Error("failed to drop privileges", "err", err)

		return err
	}

	return nil
}

// mockSnapshotter adapts a mockgen.Generator to exporter.Snapshotter.
type mockSnapshotter struct {
	gen  *mockgen.Generator
	last *model.HostSnapshot
}

func (m *mockSnapshotter) Snapshot(context.Context) (*model.HostSnapshot, error) {
	m.last = m.gen.Snapshot()

	return m.last, nil
}

func (m *mockSnapshotter) Last() *model.HostSnapshot {
	return m.last
}

type viewCommand struct {
	fullCommand string

	hosts    []string
	hostfile string
	interval time.Duration

	promslogConfig *promslog.Config
}

func newViewCommand(kp *kingpin.Application, promslogConfig *promslog.Config) *viewCommand {
	c := &viewCommand{promslogConfig: promslogConfig}

	cmd := kp.Command("view", "Print a rolling telemetry snapshot, locally or across a cluster.")
	c.fullCommand = cmd.FullCommand()

	cmd.Flag("hosts", "Exporter endpoint URLs to aggregate across the cluster. Omit for a local-only view.").
		StringsVar(&c.hosts)
	cmd.Flag("hostfile", "Newline-delimited file of exporter endpoints (# comments allowed).").
		Default("").StringVar(&c.hostfile)
	cmd.Flag("interval", "Refresh interval.").
		Default("5s").Envar("ALL_SMI_SAMPLING_INTERVAL").DurationVar(&c.interval)

	return c
}

func (c *viewCommand) run() error {
	logger := promslog.New(c.promslogConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoints := c.hosts

	if c.hostfile != "" {
		fromFile, err := aggregator.LoadHostfile(c.hostfile)
		if err != nil {
			logger.Error("failed to load hostfile", "err", err)

			return err
		}

		endpoints = append(endpoints, fromFile...)
	}

	ring := history.NewRing(historyRingCapacity)

	if len(endpoints) == 0 {
		return c.runLocal(ctx, logger, ring)
	}

	return c.runCluster(ctx, logger, endpoints, ring)
}

func (c *viewCommand) runLocal(ctx context.Context, logger *slog.Logger, ring *history.Ring) error {
	facade, err := collector.New(ctx, logger)
	if err != nil {
		logger.Error("failed to initialize collector facade", "err", err)

		return err
	}
	defer facade.Shutdown(ctx) //nolint:errcheck

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := facade.Snapshot(ctx)
			if err != nil {
				logger.Error("snapshot failed", "err", err)

				continue
			}

			cluster := &model.ClusterSnapshot{
				Time:    snap.Time,
				GPUs:    snap.GPUs,
				CPUs:    snap.CPUs,
				Memory:  snap.Memory,
				Storage: snap.Storage,
				Chassis: snap.Chassis,
			}

			m := history.Reduce(cluster, snap.Time)
			ring.Push(m)
			printClusterMetrics(m)
		}
	}
}

func (c *viewCommand) runCluster(ctx context.Context, logger *slog.Logger, endpoints []string, ring *history.Ring) error {
	agg := aggregator.New(&aggregator.Config{
		Logger:       logger,
		Endpoints:    endpoints,
		BaseInterval: c.interval,
	})

	go agg.Run(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := agg.Last()
			if snap == nil {
				continue
			}

			m := history.Reduce(snap, snap.Time)
			ring.Push(m)
			printClusterMetrics(m)
		}
	}
}

func printClusterMetrics(m history.ClusterMetrics) {
	fmt.Printf(
		"%s  gpus=%d util=%.1f%% temp=%.1fC(+/-%.1f)  cpus=%d util=%.1f%%  mem=%d util=%.1f%%\n",
		m.Time.Format(time.RFC3339),
		m.GPU.Count, m.GPU.MeanUtilization, m.GPU.MeanTemperature, m.GPU.TemperatureStddev,
		m.CPU.Count, m.CPU.MeanUtilization,
		m.Memory.Count, m.Memory.MeanUtilization,
	)
}
