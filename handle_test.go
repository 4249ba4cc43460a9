package hashwatch_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/hashwatch"
)

type fakeTopology struct {
	ch chan hashwatch.TopologyUpdate
}

func newFakeTopology() *fakeTopology {
	return &fakeTopology{ch: make(chan hashwatch.TopologyUpdate, 4)}
}

func (f *fakeTopology) Changed() <-chan hashwatch.TopologyUpdate { return f.ch }

func (f *fakeTopology) publish(paths ...string) {
	f.ch <- hashwatch.TopologyUpdate{Topology: hashwatch.Topology{PackagePaths: paths}}
}

func (f *fakeTopology) fail(err error) {
	f.ch <- hashwatch.TopologyUpdate{Err: err}
}

type fakeEvents struct {
	mu   sync.Mutex
	subs []chan hashwatch.FileEventOrError
}

func (f *fakeEvents) Subscribe(_ context.Context) (<-chan hashwatch.FileEventOrError, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan hashwatch.FileEventOrError, 16)
	f.subs = append(f.subs, ch)
	return ch, func() {}, nil
}

func (f *fakeEvents) change(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- hashwatch.FileEventOrError{Event: hashwatch.FileEvent{Paths: paths}}
	}
}

type fakeFacility struct {
	mu    sync.Mutex
	calls int
	fn    func(packagePath string, calls int) (hashwatch.GitHashes, error)
}

func (f *fakeFacility) Hash(_ context.Context, _, packagePath string, _ hashwatch.GlobSet, _ hashwatch.TelemetrySink) (hashwatch.GitHashes, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(packagePath, n)
	}
	return hashwatch.GitHashes{packagePath: "hash-" + packagePath}, nil
}

func TestHandle_BasicQuery(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}
	facility := &fakeFacility{}

	h := hashwatch.New("/repo", topo, events, facility,
		hashwatch.WithDebounceTimeout(time.Millisecond),
		hashwatch.WithLogger(nil))
	defer h.Close()

	topo.publish("packages/foo")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	hashes, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
	require.NoError(t, err)
	assert.Equal(t, hashwatch.GitHashes{"packages/foo": "hash-packages/foo"}, hashes)
}

func TestHandle_UnknownPackage(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}
	facility := &fakeFacility{}

	h := hashwatch.New("/repo", topo, events, facility, hashwatch.WithLogger(nil))
	defer h.Close()

	topo.publish("packages/foo")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/bar"})
	require.Error(t, err)

	var hwErr *hashwatch.Error
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, hashwatch.KindUnknownPackage, hwErr.Kind)
}

func TestHandle_TopologyErrorIsUnavailable(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}
	facility := &fakeFacility{}

	h := hashwatch.New("/repo", topo, events, facility, hashwatch.WithLogger(nil))
	defer h.Close()

	topo.fail(fmt.Errorf("discovery boom"))

	// Give the loop a moment to apply the failed update before querying.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "anything"})
		var hwErr *hashwatch.Error
		return err != nil && errors.As(err, &hwErr) && hwErr.Kind == hashwatch.KindUnavailable
	}, time.Second, 10*time.Millisecond)
}

func TestHandle_FileChangeTriggersRehash(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}
	facility := &fakeFacility{
		fn: func(packagePath string, calls int) (hashwatch.GitHashes, error) {
			return hashwatch.GitHashes{"n": fmt.Sprintf("%d", calls)}, nil
		},
	}

	h := hashwatch.New("/repo", topo, events, facility,
		hashwatch.WithDebounceTimeout(5*time.Millisecond),
		hashwatch.WithLogger(nil))
	defer h.Close()

	topo.publish("packages/foo")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
	require.NoError(t, err)

	// By the time the first query resolved, watch()'s Subscribe call had
	// already completed (Subscribe runs before the event loop starts), so
	// this is guaranteed to reach a real subscriber.
	events.change("/repo/packages/foo/main.go")

	require.Eventually(t, func() bool {
		got, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
		return err == nil && !reflect.DeepEqual(got, first)
	}, time.Second, 5*time.Millisecond)
}

func TestHandle_PackageRemovedFromTopology(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}
	facility := &fakeFacility{}

	h := hashwatch.New("/repo", topo, events, facility,
		hashwatch.WithDebounceTimeout(time.Millisecond),
		hashwatch.WithLogger(nil))
	defer h.Close()

	topo.publish("packages/foo")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
	require.NoError(t, err)

	topo.publish() // empty topology: packages/foo is now gone

	require.Eventually(t, func() bool {
		qctx, qcancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer qcancel()
		_, err := h.GetFileHashes(qctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
		var hwErr *hashwatch.Error
		return err != nil && errors.As(err, &hwErr) && hwErr.Kind == hashwatch.KindUnknownPackage
	}, time.Second, 10*time.Millisecond)
}

// blockingFacility never returns until its context is canceled, keeping any
// package it is asked to hash Pending indefinitely.
type blockingFacility struct{}

func (blockingFacility) Hash(ctx context.Context, _, _ string, _ hashwatch.GlobSet, _ hashwatch.TelemetrySink) (hashwatch.GitHashes, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHandle_CloseUnblocksPendingQueries(t *testing.T) {
	topo := newFakeTopology()
	events := &fakeEvents{}

	h := hashwatch.New("/repo", topo, events, blockingFacility{}, hashwatch.WithLogger(nil))

	// The facility never returns, so packages/foo stays Pending until Close
	// tears the loop down.
	topo.publish("packages/foo")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := h.GetFileHashes(ctx, hashwatch.HashSpec{PackagePath: "packages/foo"})
		done <- err
	}()

	// Give the query a chance to actually be registered as a waiter.
	time.Sleep(20 * time.Millisecond)
	h.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the pending query")
	}
}
