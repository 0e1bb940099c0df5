package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
)

type fakeReloader struct {
	mu       sync.Mutex
	calls    int
	err      error
	specName string
}

func (f *fakeReloader) Load(ctx context.Context, sourcePath string, configRecord map[string]any) (*loader.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &loader.Result{Spec: catalog.Spec{Name: f.specName}}, nil
}

func (f *fakeReloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newOutcomes() (chan Outcome, func(Outcome)) {
	ch := make(chan Outcome, 8)
	return ch, func(o Outcome) { ch <- o }
}

func TestWatcher_ReloadSwapsInstanceOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photon.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	reloader := &fakeReloader{specName: "v1"}
	holder := photon.NewHolder(photon.New(&loader.Result{Spec: catalog.Spec{Name: "initial"}}))
	outcomes, onReload := newOutcomes()

	w := New(path, nil, reloader, holder, nil)
	w.Debounce = 20 * time.Millisecond
	w.OnReload = onReload

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package main\n// changed\n"), 0o644))

	select {
	case o := <-outcomes:
		assert.True(t, o.Success)
		assert.NoError(t, o.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload outcome")
	}
	assert.Equal(t, "v1", holder.Get().Name())
}

func TestWatcher_FailedReloadKeepsPreviousInstance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photon.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	reloader := &fakeReloader{err: photonerr.New(photonerr.LoadError, "boom")}
	previous := photon.New(&loader.Result{Spec: catalog.Spec{Name: "initial"}})
	holder := photon.NewHolder(previous)
	outcomes, onReload := newOutcomes()

	w := New(path, nil, reloader, holder, nil)
	w.Debounce = 20 * time.Millisecond
	w.OnReload = onReload

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package main\n// broken\n"), 0o644))

	select {
	case o := <-outcomes:
		assert.False(t, o.Success)
		assert.Error(t, o.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload outcome")
	}
	assert.Same(t, previous, holder.Get())
}

func TestWatcher_DebounceCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photon.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	reloader := &fakeReloader{specName: "v1"}
	holder := photon.NewHolder(photon.New(&loader.Result{Spec: catalog.Spec{Name: "initial"}}))
	outcomes, onReload := newOutcomes()

	w := New(path, nil, reloader, holder, nil)
	w.Debounce = 100 * time.Millisecond
	w.OnReload = onReload

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main\n// edit\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-outcomes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload outcome")
	}
	select {
	case <-outcomes:
		t.Fatal("expected rapid writes to coalesce into a single reload")
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, 1, reloader.callCount())
}
