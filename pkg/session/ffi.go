package session

import (
	"context"
	"errors"
	"log/slog"
	goruntime "runtime"
	"sync"
	"time"
)

// ffiCacheKey is the single SampleCache key an FFISession's handle is
// stored under; one handle yields one bundled SocMetrics reading, so
// there is only ever one key per session.
const ffiCacheKey = "soc"

// ffiPollInterval is how often the owning goroutine asks SampleCache for
// a fresh reading. The handle is only actually queried when the cache
// entry has expired, so the real sampling cadence follows SampleCache's
// warm-up/steady-state TTLs rather than this constant.
const ffiPollInterval = 100 * time.Millisecond

// ErrPlatformUnsupported is returned by Initialize on platforms with no
// native FFI handle, for example Linux building the darwin-only IOReport
// and SMC bindings.
var ErrPlatformUnsupported = errors.New("session: ffi handle unsupported on this platform")

// SocMetrics is the set of values a native handle can sample. Not every
// platform populates every field.
type SocMetrics struct {
	CPUPowerWatts float64
	GPUPowerWatts float64
	ANEPowerWatts float64
	GPUFreqMHz    float64
	SocTempC      float64
	ANEOpsPerSec  float64
	ThermalState  int
}

// ffiHandle is the platform-specific native binding FFISession drives. Its
// methods are only ever called from the handle's owning goroutine: Apple's
// IOReport subscription object is not safe to touch from another thread.
type ffiHandle interface {
	open() error
	sample() (SocMetrics, error)
	close()
}

// FFISession wraps a single-thread-affine native handle (IOReport/SMC on
// Apple Silicon). All calls into the handle are funneled through one
// goroutine that never migrates OS threads, since the handle is opened
// against a specific thread's Mach port.
type FFISession struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	latest SocMetrics
	ready  bool
	err    error

	cache *SampleCache

	reqCh  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFFISession constructs an FFISession. The handle is opened lazily from
// Initialize, on the dedicated sampling goroutine.
func NewFFISession(name string, logger *slog.Logger) *FFISession {
	return &FFISession{
		name:   name,
		logger: logger,
		cache:  NewSampleCache(),
		reqCh:  make(chan struct{}, 1),
	}
}

// Name implements Session.
func (s *FFISession) Name() string { return s.name }

// Initialize starts the handle-owning goroutine and opens the native
// handle. A platform without a real implementation returns
// ErrPlatformUnsupported immediately and the session stays permanently
// not-ready; readers treat that the same as "capability absent".
func (s *FFISession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.cache.Start()

	openErrCh := make(chan error, 1)

	go s.run(runCtx, openErrCh)

	return <-openErrCh
}

// Shutdown closes the native handle, stops the owning goroutine, and
// stops the sample cache's eviction loop.
func (s *FFISession) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.cache.Stop()

	return nil
}

// Sample returns the most recently refreshed reading, or an error if the
// handle never opened. It never blocks on the owning goroutine: the
// background loop refreshes latest through SampleCache on its own
// warm-up/steady-state cadence.
func (s *FFISession) Sample() (SocMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return SocMetrics{}, s.err
	}

	return s.latest, nil
}

// run owns the native handle for its entire lifetime: it must execute on
// one OS thread because IOReport subscriptions are bound to the thread
// that created them.
func (s *FFISession) run(ctx context.Context, openErrCh chan<- error) {
	defer close(s.done)

	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	h := newFFIHandle()

	err := h.open()

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	openErrCh <- err

	if err != nil {
		return
	}

	defer h.close()

	ticker := time.NewTicker(ffiPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// h.sample is only ever invoked from this goroutine, so
			// routing it through SampleCache.GetOrLoad is safe despite
			// the handle's single-thread affinity: there is no second
			// caller to race with. The cache decides, via its
			// warm-up/steady-state TTL, whether this tick actually
			// reaches the handle or is served from the last reading.
			v, err := s.cache.GetOrLoad(ffiCacheKey, func() (any, error) {
				return h.sample()
			})

			s.mu.Lock()
			if err != nil {
				s.err = err
			} else {
				m, _ := v.(SocMetrics)
				s.latest = m
				s.ready = true
				s.err = nil
			}
			s.mu.Unlock()

			if err != nil {
				s.logger.Warn("ffi session sample failed", "session", s.name, "err", err)
			}
		}
	}
}
