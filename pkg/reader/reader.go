// Package reader implements the per-vendor accelerator readers (C1) plus
// the host-scoped CPU/memory/storage/chassis readers that share their
// fixed invocation order contract with the Collector Facade.
package reader

import (
	"context"
	"fmt"
	"sync"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

// Vendor is the closed sum-type of accelerator families this build knows
// how to read. It intentionally does not grow an "other" case: an unknown
// device contributes no reader rather than a degraded generic one.
type Vendor string

// Recognized vendors.
const (
	VendorNVIDIA       Vendor = "nvidia"
	VendorAMD          Vendor = "amd"
	VendorAppleSilicon Vendor = "apple_silicon"
	VendorJetson       Vendor = "jetson"
	VendorGaudi        Vendor = "gaudi"
	VendorFuriosa      Vendor = "furiosa"
	VendorRebellions   Vendor = "rebellions"
	VendorTenstorrent  Vendor = "tenstorrent"
	VendorGoogleTPU    Vendor = "google_tpu"
)

// knownVendors enumerates VendorNVIDIA..VendorGoogleTPU in detection order.
// Jetson is checked ahead of NVIDIA discrete since a Jetson board also
// exposes an nvidia-smi-shaped sysfs node that would otherwise double-count.
var knownVendors = []Vendor{
	VendorJetson,
	VendorNVIDIA,
	VendorAMD,
	VendorAppleSilicon,
	VendorGaudi,
	VendorFuriosa,
	VendorRebellions,
	VendorTenstorrent,
	VendorGoogleTPU,
}

// Capabilities describes what a Reader instance can actually produce on
// the current host, so the Collector Facade and metric builder can gate
// vendor-extension blocks without attempting a doomed read first.
type Capabilities struct {
	Vendor             Vendor
	GPUInfo            bool
	ProcessInfo        bool
	PerCoreUtilization bool
}

// Reader is the contract every vendor implementation satisfies. A reader
// that cannot read the device returns an empty slice, never an error —
// per-field sentinels communicate partial failure instead.
type Reader interface {
	// GPUInfo returns one entry per device instance this reader owns. It
	// must return within the soft/hard read budget described in package
	// reader's design: callers apply their own timeout, the reader itself
	// should never block past a single CLI invocation or FFI call.
	GPUInfo(ctx context.Context) ([]model.GpuInfo, error)
	// ProcessInfo returns devices-in-use process attribution, when the
	// vendor exposes it; otherwise an empty slice.
	ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error)
	// Capabilities reports what this instance can produce on this host.
	Capabilities() Capabilities
}

// DetectFunc probes the host for vendor presence and, if present,
// constructs a Reader. It returns (nil, nil) when the vendor is simply
// absent — that is not an error condition. sessions is where a detector
// registers any session.Session it needs kept alive (subprocess, FFI,
// gRPC); the caller of DetectAll owns sessions.Init/Shutdown.
type DetectFunc func(ctx context.Context, sessions *session.Registry) (Reader, error)

var (
	registryMu sync.Mutex
	registry   = map[Vendor]DetectFunc{}
)

// register wires a built-in vendor's detector into the closed enum. Called
// from each vendor file's init().
func register(v Vendor, fn DetectFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[v] = fn
}

// experimentalMu and experimentalReaders back RegisterExperimentalReader,
// the dyn-style escape hatch for vendors outside the closed enum (spec
// Design Note §9). Detectors registered here run after every built-in
// vendor and may return multiple readers for, e.g., several PCIe cards of
// an unreleased architecture probed through a common sysfs convention.
var (
	experimentalMu        sync.Mutex
	experimentalDetectors []func(ctx context.Context, sessions *session.Registry) ([]Reader, error)
)

// RegisterExperimentalReader adds a detector for an accelerator family
// outside the closed Vendor enum. It is the trait-object-style extension
// point: call it from an init() in a build augmented with out-of-tree
// vendor support.
func RegisterExperimentalReader(fn func(ctx context.Context, sessions *session.Registry) ([]Reader, error)) {
	experimentalMu.Lock()
	defer experimentalMu.Unlock()

	experimentalDetectors = append(experimentalDetectors, fn)
}

// DetectAll probes every known vendor plus any registered experimental
// detectors and returns one Reader per vendor present on the host, in
// knownVendors order followed by experimental readers in registration
// order. Detected readers may have registered sessions into sessions;
// the caller must call sessions.Init after DetectAll returns.
func DetectAll(ctx context.Context, sessions *session.Registry) ([]Reader, error) {
	registryMu.Lock()
	detectors := make(map[Vendor]DetectFunc, len(registry))
	for v, fn := range registry {
		detectors[v] = fn
	}
	registryMu.Unlock()

	var readers []Reader

	for _, v := range knownVendors {
		fn, ok := detectors[v]
		if !ok {
			continue
		}

		r, err := fn(ctx, sessions)
		if err != nil {
			return nil, fmt.Errorf("reader: detect %s: %w", v, err)
		}

		if r != nil {
			readers = append(readers, r)
		}
	}

	experimentalMu.Lock()
	extra := append([]func(ctx context.Context, sessions *session.Registry) ([]Reader, error){}, experimentalDetectors...)
	experimentalMu.Unlock()

	for _, fn := range extra {
		rs, err := fn(ctx, sessions)
		if err != nil {
			return nil, fmt.Errorf("reader: experimental detect: %w", err)
		}

		readers = append(readers, rs...)
	}

	return readers, nil
}
