// Package pipeline runs the watch cycle (render, extract, match, dedup,
// notify, persist) and schedules it on a fixed interval with a guard that
// skips a trigger while the previous cycle is still running.
package pipeline
