// Package source provides the content sources the indexer reads from.
//
// A Source lists candidate files and reads them on demand:
//
//	src, err := source.NewFilesystem("/path/to/project")
//	entries, err := src.List(ctx)
//	file, err := src.Read(ctx, entries[0].Path)
//
// Filesystem walks a directory tree, skipping hidden directories and common
// dependency or build output directories (node_modules, vendor, dist, ...).
// A path beneath the root that cannot be read is listed with Entry.Err set
// instead of aborting the walk.
// Non-UTF-8 files are rejected with a *types.ContentSourceError wrapping
// ErrBinaryContent. Memory holds files in a map and is used by tests and
// embedders of the library.
//
// Filter applies include/exclude glob patterns and a size limit to entries.
// Watcher turns fsnotify events into debounced Change values that drive
// incremental updates.
package source
