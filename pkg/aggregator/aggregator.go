// Package aggregator implements the Remote Aggregator (C6): a bounded
// fan-out scraper that polls every configured endpoint's /metrics,
// parses the body through pkg/parser, and folds the result into one
// ClusterSnapshot per tick.
//
// Grounded on the teacher's pkg/lb/serverpool (a Manager owning a pool
// of backend servers, each tracked alive/dead) generalized from "pool of
// reverse-proxy targets" to "pool of scrape targets": the semaphore-
// gated worker loop and per-target health bookkeeping follow that
// shape, adapted onto an HTTP GET + parse cycle instead of a reverse
// proxy.
package aggregator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/parser"
)

const (
	defaultConcurrencyCap = 64
	defaultRequestTimeout = 5 * time.Second
	defaultBaseInterval   = 5 * time.Second
)

// Config configures one Aggregator.
type Config struct {
	Logger *slog.Logger

	// Endpoints is the static list of scrape targets, in
	// "http[s]://host:port[/metrics]" form; a bare "host:port" is
	// scraped over http.
	Endpoints []string

	// ConcurrencyCap bounds in-flight scrape tasks; 0 uses
	// ALL_SMI_MAX_CONCURRENT_CONNECTIONS when it holds a positive integer,
	// else the default.
	ConcurrencyCap int
	// RequestTimeout bounds one endpoint's GET; 0 uses the default.
	RequestTimeout time.Duration
	// BaseInterval is the tick period before adaptive widening; 0 uses
	// the default.
	BaseInterval time.Duration
}

// Aggregator periodically scrapes every configured endpoint and
// maintains one merged ClusterSnapshot plus per-endpoint connection
// health.
type Aggregator struct {
	logger *slog.Logger

	endpoints []string
	sem       chan struct{}
	client    *http.Client
	timeout   time.Duration
	interval  time.Duration

	merger *Merger

	connections *ttlcache.Cache[string, model.ConnectionStatus]

	mu   sync.RWMutex
	last *model.ClusterSnapshot
}

// New builds an Aggregator. Call Run to start the scrape loop.
func New(c *Config) *Aggregator {
	cap := c.ConcurrencyCap
	if cap <= 0 {
		cap = defaultConcurrencyCap
		if v, err := strconv.Atoi(os.Getenv("ALL_SMI_MAX_CONCURRENT_CONNECTIONS")); err == nil && v > 0 {
			cap = v
		}
	}

	if len(c.Endpoints) < cap {
		cap = len(c.Endpoints)
	}

	if cap <= 0 {
		cap = 1
	}

	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	interval := adaptiveInterval(c.BaseInterval, len(c.Endpoints), cap, timeout)

	connections := ttlcache.New[string, model.ConnectionStatus]()

	return &Aggregator{
		logger:    c.Logger,
		endpoints: c.Endpoints,
		sem:       make(chan struct{}, cap),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cap * 2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:     timeout,
		interval:    interval,
		merger:      NewMerger(),
		connections: connections,
	}
}

// adaptiveInterval widens the base tick interval for large clusters so
// host_count * per_request_cost stays under interval * concurrency, per
// spec §4.6's adaptive cadence requirement.
func adaptiveInterval(base time.Duration, hostCount, concurrency int, perRequestCost time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBaseInterval
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	minInterval := time.Duration(hostCount) * perRequestCost / time.Duration(concurrency)
	if minInterval > base {
		return minInterval
	}

	return base
}

// Run scrapes every endpoint on a ticker until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	a.tick(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Aggregator) tick(ctx context.Context) {
	a.merger.BeginTick()

	deadline := time.Duration(3) * a.interval

	tickCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var wg sync.WaitGroup

	for _, endpoint := range a.endpoints {
		endpoint := endpoint

		wg.Add(1)

		go func() {
			defer wg.Done()

			select {
			case a.sem <- struct{}{}:
				defer func() { <-a.sem }()
			case <-tickCtx.Done():
				return
			}

			a.scrapeOne(tickCtx, endpoint)
		}()
	}

	wg.Wait()

	conns := map[string]model.ConnectionStatus{}
	for _, endpoint := range a.endpoints {
		if item := a.connections.Get(endpoint); item != nil {
			conns[endpoint] = item.Value()
		}
	}

	snap := a.merger.Snapshot(conns)

	a.mu.Lock()
	a.last = snap
	a.mu.Unlock()
}

func (a *Aggregator) scrapeOne(ctx context.Context, endpoint string) {
	status := a.connectionStatus(endpoint)

	url := endpoint
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}

	if !hasMetricsSuffix(url) {
		url += "/metrics"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		a.recordFailure(endpoint, status, err)

		return
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.recordFailure(endpoint, status, err)

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.recordFailure(endpoint, status, fmt.Errorf("non-2xx status %d", resp.StatusCode))

		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.recordFailure(endpoint, status, err)

		return
	}

	entities, err := parser.Parse(string(body))
	if err != nil {
		a.recordFailure(endpoint, status, err)

		return
	}

	hostname := entities.ActualHostname
	if hostname == "" {
		hostname = endpoint
	}

	status.LastSuccessTime = time.Now()
	status.LastError = ""

	if entities.ActualHostname != "" {
		status.ActualHostname = entities.ActualHostname
	}

	a.connections.Set(endpoint, status, ttlcache.NoTTL)

	for i := range entities.GPUs {
		entities.GPUs[i].HostID = endpoint
	}
	for i := range entities.CPUs {
		entities.CPUs[i].HostID = endpoint
	}
	for i := range entities.Memory {
		entities.Memory[i].HostID = endpoint
	}
	for i := range entities.Storage {
		entities.Storage[i].HostID = endpoint
	}

	a.merger.MergeEndpoint(hostname, entities.GPUs, entities.CPUs, entities.Memory, entities.Storage)
}

func (a *Aggregator) connectionStatus(endpoint string) model.ConnectionStatus {
	if item := a.connections.Get(endpoint); item != nil {
		return item.Value()
	}

	return model.ConnectionStatus{HostID: endpoint, Endpoint: endpoint}
}

func (a *Aggregator) recordFailure(endpoint string, status model.ConnectionStatus, err error) {
	status.LastFailureTime = time.Now()
	status.LastError = err.Error()

	a.connections.Set(endpoint, status, ttlcache.NoTTL)

	a.logger.Warn("scrape failed", "endpoint", endpoint, "err", err)
}

func hasMetricsSuffix(url string) bool {
	n := len(url)

	return n >= 8 && url[n-8:] == "/metrics"
}

// Last returns the most recently merged ClusterSnapshot, or nil before
// the first tick completes.
func (a *Aggregator) Last() *model.ClusterSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.last
}
