package model

import "sort"

// WatchedPath is a file or directory the watcher monitors. The set is fixed
// at startup; only Selected changes afterwards.
type WatchedPath struct {
	Path     string
	Selected bool
}

// NewWatchedPaths builds a selected WatchedPath for each distinct path, sorted.
func NewWatchedPaths(paths []string) []WatchedPath {
	seen := make(map[string]bool, len(paths))
	var out []WatchedPath
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, WatchedPath{Path: p, Selected: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
