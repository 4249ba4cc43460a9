// Package filewatch implements hashwatch.FileEventSource on top of
// fsnotify, fanning out a single recursive watch to any number of
// subscribers the way a broadcast channel would, with lag detection for any
// subscriber that falls behind.
package filewatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/joeycumines/hashwatch"
)

// subscriberBufferSize bounds each subscriber's channel. A subscriber that
// falls this far behind is sent Lagged instead of blocking the shared
// watcher goroutine on its pace.
const subscriberBufferSize = 64

// Source is the default hashwatch.FileEventSource.
type Source struct {
	repoRoot string
	fw       *fsnotify.Watcher

	mu     sync.Mutex
	subs   map[int]chan hashwatch.FileEventOrError
	nextID int
	closed bool
}

// New creates a Source that recursively watches repoRoot and starts its
// background fan-out goroutine. Close releases the underlying watcher.
func New(repoRoot string) (*Source, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatch: %w", err)
	}
	s := &Source{
		repoRoot: repoRoot,
		fw:       fw,
		subs:     make(map[int]chan hashwatch.FileEventOrError),
	}
	if err := s.addRecursive(repoRoot); err != nil {
		fw.Close()
		return nil, fmt.Errorf("filewatch: %w", err)
	}
	go s.run()
	return s, nil
}

func (s *Source) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && p != root {
			return filepath.SkipDir
		}
		return s.fw.Add(p)
	})
}

// Subscribe implements hashwatch.FileEventSource.
func (s *Source) Subscribe(ctx context.Context) (<-chan hashwatch.FileEventOrError, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, fmt.Errorf("filewatch: source is closed")
	}

	id := s.nextID
	s.nextID++
	ch := make(chan hashwatch.FileEventOrError, subscriberBufferSize)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *Source) run() {
	defer s.broadcastClosed()
	for {
		select {
		case event, ok := <-s.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = s.addRecursive(event.Name)
				}
			}
			s.broadcast(hashwatch.FileEventOrError{Event: hashwatch.FileEvent{Paths: []string{event.Name}}})

		case err, ok := <-s.fw.Errors:
			if !ok {
				return
			}
			s.broadcast(hashwatch.FileEventOrError{Err: err})
		}
	}
}

func (s *Source) broadcast(msg hashwatch.FileEventOrError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// The buffer is full: discard the oldest queued message to make
			// room, so the Lagged marker itself is never lost.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- hashwatch.FileEventOrError{Lagged: true}:
			default:
			}
		}
	}
}

func (s *Source) broadcastClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, ch := range s.subs {
		select {
		case ch <- hashwatch.FileEventOrError{Closed: true}:
		default:
		}
		close(ch)
	}
}

// Close stops the watcher and releases its resources.
func (s *Source) Close() error {
	return s.fw.Close()
}
