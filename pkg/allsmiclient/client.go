// Package allsmiclient implements a small standalone HTTP client for an
// exporter's /metrics endpoint, so the scrape-then-parse pipeline the
// remote aggregator uses internally is independently usable by other Go
// programs. Mirrors the ergonomic, call-one-method-per-entity shape of
// the original Rust crate's public client module.
package allsmiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/parser"
)

const defaultTimeout = 5 * time.Second

// Client fetches and parses one exporter endpoint's /metrics output.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client, e.g. to set custom
// TLS config or a shared transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New returns a Client targeting endpoint, which may be given with or
// without a trailing "/metrics".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) url() string {
	if strings.HasSuffix(c.endpoint, "/metrics") {
		return c.endpoint
	}

	return strings.TrimRight(c.endpoint, "/") + "/metrics"
}

// Fetch performs one scrape and returns the parsed entities.
func (c *Client) Fetch(ctx context.Context) (*parser.Entities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("allsmiclient: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("allsmiclient: fetch %s: %w", c.url(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("allsmiclient: %s returned status %d", c.url(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("allsmiclient: read body: %w", err)
	}

	entities, err := parser.Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("allsmiclient: parse %s: %w", c.url(), err)
	}

	return entities, nil
}

// GPUInfo fetches and returns just the GPU/NPU entities.
func (c *Client) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	e, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	return e.GPUs, nil
}

// CPUInfo fetches and returns just the CPU entities.
func (c *Client) CPUInfo(ctx context.Context) ([]model.CpuInfo, error) {
	e, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	return e.CPUs, nil
}

// MemoryInfo fetches and returns just the memory entities.
func (c *Client) MemoryInfo(ctx context.Context) ([]model.MemoryInfo, error) {
	e, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	return e.Memory, nil
}

// StorageInfo fetches and returns just the storage entities.
func (c *Client) StorageInfo(ctx context.Context) ([]model.StorageInfo, error) {
	e, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	return e.Storage, nil
}
