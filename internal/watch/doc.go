// Package watch defines the core types, ports, and error taxonomy shared by
// the board watcher's renderer, extractor, identity store, notifier, and
// scheduler.
package watch
