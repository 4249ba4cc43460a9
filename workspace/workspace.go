// Package workspace implements hashwatch.TopologyWatcher by resolving the
// "workspaces" field of a repo's root package.json, the same convention
// npm, yarn, and (via its "packages" array form) pnpm-adjacent tooling use.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/joeycumines/hashwatch"
)

// Watcher is the default hashwatch.TopologyWatcher. It resolves repoRoot's
// workspace topology once at startup and republishes it whenever the
// package.json directly in repoRoot is created, removed, or modified. Only
// repoRoot itself is watched: package.json files in subdirectories do not
// trigger a republish.
type Watcher struct {
	repoRoot string
	changed  chan hashwatch.TopologyUpdate
}

// New starts resolving repoRoot's workspace topology and watching for
// changes that could affect it. The caller must have canceled ctx (or
// otherwise be done with the Watcher) before dropping the last reference,
// so the background goroutine can exit.
func New(ctx context.Context, repoRoot string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if err := fw.Add(repoRoot); err != nil {
		fw.Close()
		return nil, fmt.Errorf("workspace: %w", err)
	}

	w := &Watcher{
		repoRoot: repoRoot,
		changed:  make(chan hashwatch.TopologyUpdate, 1),
	}
	go w.run(ctx, fw)
	return w, nil
}

// Changed implements hashwatch.TopologyWatcher.
func (w *Watcher) Changed() <-chan hashwatch.TopologyUpdate {
	return w.changed
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()
	defer close(w.changed)

	w.publish()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == "package.json" {
				w.publish()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.send(hashwatch.TopologyUpdate{Err: err})
		}
	}
}

func (w *Watcher) publish() {
	topo, err := Resolve(w.repoRoot)
	if err != nil {
		w.send(hashwatch.TopologyUpdate{Err: err})
		return
	}
	w.send(hashwatch.TopologyUpdate{Topology: topo})
}

// send keeps only the latest update buffered: a stale topology sitting in
// the channel is worthless once a newer one exists.
func (w *Watcher) send(upd hashwatch.TopologyUpdate) {
	for {
		select {
		case w.changed <- upd:
			return
		default:
		}
		select {
		case <-w.changed:
		default:
		}
	}
}

// manifest is the subset of package.json Resolve cares about.
type manifest struct {
	Workspaces json.RawMessage `json:"workspaces"`
}

// Resolve expands repoRoot's root package.json "workspaces" field into the
// set of directories that both match a workspace glob and themselves
// contain a package.json.
func Resolve(repoRoot string) (hashwatch.Topology, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, "package.json"))
	if err != nil {
		return hashwatch.Topology{}, fmt.Errorf("workspace: reading root package.json: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return hashwatch.Topology{}, fmt.Errorf("workspace: parsing root package.json: %w", err)
	}

	patterns, err := parseWorkspaces(m.Workspaces)
	if err != nil {
		return hashwatch.Topology{}, err
	}

	fsys := os.DirFS(repoRoot)
	seen := make(map[string]struct{}, len(patterns))
	var paths []string

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return hashwatch.Topology{}, fmt.Errorf("workspace: expanding pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := fs.Stat(fsys, filepath.ToSlash(filepath.Join(m, "package.json"))); err != nil {
				continue
			}
			canon := hashwatch.CanonicalPackagePath(m)
			if _, ok := seen[canon]; ok {
				continue
			}
			seen[canon] = struct{}{}
			paths = append(paths, canon)
		}
	}
	sort.Strings(paths)

	return hashwatch.Topology{PackagePaths: paths}, nil
}

func parseWorkspaces(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var patterns []string
	if err := json.Unmarshal(raw, &patterns); err == nil {
		return patterns, nil
	}
	var withPackages struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &withPackages); err != nil {
		return nil, fmt.Errorf("workspace: unrecognized %q shape: %w", "workspaces", err)
	}
	return withPackages.Packages, nil
}
