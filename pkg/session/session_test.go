package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSession struct {
	name          string
	initErr       error
	initCalls     int
	shutdownErr   error
	shutdownCalls int
}

func (f *fakeSession) Name() string { return f.name }

func (f *fakeSession) Initialize(ctx context.Context) error {
	f.initCalls++

	return f.initErr
}

func (f *fakeSession) Shutdown(ctx context.Context) error {
	f.shutdownCalls++

	return f.shutdownErr
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())

	require.NoError(t, r.Register(&fakeSession{name: "a"}))
	require.Error(t, r.Register(&fakeSession{name: "a"}))
}

func TestRegistryInitAndShutdownVisitEverySession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())

	a := &fakeSession{name: "a"}
	b := &fakeSession{name: "b"}

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r.Init(ctx)
	require.Equal(t, 1, a.initCalls)
	require.Equal(t, 1, b.initCalls)

	require.NoError(t, r.Shutdown(ctx))
	require.Equal(t, 1, a.shutdownCalls)
	require.Equal(t, 1, b.shutdownCalls)
}

func TestRegistryInitToleratesFailures(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())

	bad := &fakeSession{name: "bad", initErr: context.DeadlineExceeded}
	require.NoError(t, r.Register(bad))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r.Init(ctx)
	require.Equal(t, 1, bad.initCalls)
}
