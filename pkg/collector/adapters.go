package collector

import (
	"log/slog"

	"github.com/accelmetrics/all-smi/pkg/reader"
	"github.com/accelmetrics/all-smi/pkg/session"
)

// appleFFISessionProvider is implemented by the one reader.Reader that
// owns a session.FFISession (Apple Silicon); the facade type-asserts
// detected readers against it so the chassis reader can share the
// session instead of opening a second IOReport/SMC handle.
type appleFFISessionProvider interface {
	FFISession() *session.FFISession
}

func newHostCPUAdapter(logger *slog.Logger) (*readerCPUAdapter, error) {
	r, err := reader.NewHostCPUReader(logger.With("reader", "cpu"))
	if err != nil {
		return nil, err
	}

	return &readerCPUAdapter{r}, nil
}

func newHostMemoryAdapter(logger *slog.Logger) (*readerMemoryAdapter, error) {
	r, err := reader.NewHostMemoryReader(logger.With("reader", "memory"))
	if err != nil {
		return nil, err
	}

	return &readerMemoryAdapter{r}, nil
}

func newHostStorageAdapter(logger *slog.Logger) *readerStorageAdapter {
	return &readerStorageAdapter{reader.NewHostStorageReader(logger.With("reader", "storage"))}
}

func newHostChassisAdapter(logger *slog.Logger, readers []reader.Reader) *readerChassisAdapter {
	var appleFFI *session.FFISession

	for _, r := range readers {
		if p, ok := r.(appleFFISessionProvider); ok {
			appleFFI = p.FFISession()

			break
		}
	}

	return &readerChassisAdapter{reader.NewHostChassisReader(logger.With("reader", "chassis"), appleFFI)}
}

type readerCPUAdapter struct{ *reader.HostCPUReader }

type readerMemoryAdapter struct{ *reader.HostMemoryReader }

type readerStorageAdapter struct{ *reader.HostStorageReader }

type readerChassisAdapter struct{ *reader.HostChassisReader }
