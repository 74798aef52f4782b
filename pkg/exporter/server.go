// Package exporter implements the Exporter Service (C5): an HTTP server
// exposing the Collector Facade's latest HostSnapshot through the
// Metric Builder's hand-rolled text body at /metrics, plus a separate
// self-metrics endpoint for process/Go runtime stats.
//
// Grounded on the teacher's pkg/collector/server.go CEEMSExporterServer:
// the same mux router / web.FlagConfig / health-endpoint / graceful
// Shutdown shape, but the metrics handler serves a cached hand-built
// body instead of promhttp.HandlerFor.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"

	"github.com/accelmetrics/all-smi/pkg/metrics"
	"github.com/accelmetrics/all-smi/pkg/model"
)

// AppName identifies this exporter to the self-metrics version collector.
const AppName = "all_smi_exporter"

// pollInterval matches the Cache-Control max-age spec §4.5 requires: the
// body served to clients is never older than this.
const pollInterval = 2 * time.Second

// Snapshotter is the subset of the Collector Facade the server depends
// on, so this package does not import pkg/collector directly.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*model.HostSnapshot, error)
	Last() *model.HostSnapshot
}

// WebConfig carries the HTTP listener configuration.
type WebConfig struct {
	Addresses          []string
	WebSystemdSocket   bool
	WebConfigFile      string
	MetricsPath        string
	SelfMetricsPath    string
	MaxRequests        int
	RateLimitPerSecond int
	LandingConfig      *web.LandingConfig
}

// Config assembles a Server.
type Config struct {
	Logger    *slog.Logger
	Collector Snapshotter
	Web       WebConfig
}

// Server is the all-smi HTTP exporter.
type Server struct {
	logger    *slog.Logger
	server    *http.Server
	webConfig *web.FlagConfig
	collector Snapshotter

	selfRegistry *prometheus.Registry

	cached atomic.Pointer[cachedBody]

	stop chan struct{}
	done chan struct{}
}

type cachedBody struct {
	body       []byte
	renderedAt time.Time
}

// New builds a Server and registers its routes. It does not start
// listening or polling; call Start for that.
func New(c *Config) (*Server, error) {
	if c.Web.MetricsPath == "" {
		c.Web.MetricsPath = "/metrics"
	}

	if c.Web.SelfMetricsPath == "" {
		c.Web.SelfMetricsPath = "/self-metrics"
	}

	router := mux.NewRouter()

	s := &Server{
		logger:    c.Logger,
		collector: c.Collector,
		server: &http.Server{
			Addr:              c.Web.Addresses[0],
			Handler:           router,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
		},
		webConfig: &web.FlagConfig{
			WebListenAddresses: &c.Web.Addresses,
			WebSystemdSocket:   &c.Web.WebSystemdSocket,
			WebConfigFile:      &c.Web.WebConfigFile,
		},
		selfRegistry: prometheus.NewRegistry(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	s.selfRegistry.MustRegister(
		version.NewCollector(AppName),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
		promcollectors.NewGoCollector(),
	)

	s.cached.Store(&cachedBody{body: []byte{}})

	if c.Web.LandingConfig != nil {
		landingPage, err := web.NewLandingPage(*c.Web.LandingConfig)
		if err != nil {
			return nil, fmt.Errorf("exporter: landing page: %w", err)
		}

		router.Handle("/", landingPage)
	}

	rateLimit := c.Web.RateLimitPerSecond
	if rateLimit <= 0 {
		rateLimit = 20
	}

	metricsHandler := http.HandlerFunc(s.serveMetrics)
	router.Handle(c.Web.MetricsPath, httprate.LimitByIP(rateLimit, time.Second)(metricsHandler))

	router.Handle(c.Web.SelfMetricsPath, promhttp.HandlerFor(s.selfRegistry, promhttp.HandlerOpts{
		ErrorLog:            slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: c.Web.MaxRequests,
	}))

	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("all-smi exporter is healthy"))
	})

	return s, nil
}

// Start runs the background snapshot poller and begins serving HTTP.
// It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	go s.pollLoop(ctx)

	s.logger.Info("starting " + AppName)

	if err := web.ListenAndServe(s.server, s.webConfig, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("exporter HTTP server failed", "err", err)

		return err
	}

	return nil
}

// Shutdown stops the HTTP server and the background poller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping " + AppName)

	close(s.stop)
	<-s.done

	return s.server.Shutdown(ctx)
}

func (s *Server) pollLoop(ctx context.Context) {
	defer close(s.done)

	s.renderOnce(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.renderOnce(ctx)
		}
	}
}

func (s *Server) renderOnce(ctx context.Context) {
	snap, err := s.collector.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("snapshot failed, serving last known body", "err", err)

		return
	}

	body := metrics.RenderHost(snap)
	s.cached.Store(&cachedBody{body: []byte(body), renderedAt: time.Now()})
}

// serveMetrics serves the most recently rendered body. It never blocks
// on a fresh collection: if the current tick is still in flight, the
// last successful render is served instead, per spec §4.5.
func (s *Server) serveMetrics(w http.ResponseWriter, _ *http.Request) {
	c := s.cached.Load()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.body)))
	w.Header().Set("Cache-Control", "max-age=2, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Keep-Alive", "timeout=60, max=1000")
	w.WriteHeader(http.StatusOK)
	w.Write(c.body)
}
