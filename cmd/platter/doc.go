// Package main hosts the Platter CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into calls
// against the daemon's control socket: queue maintenance, disc detection
// triggers, status rendering, notification tests, and configuration
// scaffolding. Queue commands fall back to direct database access when the
// daemon is not running, so the queue stays inspectable offline.
package main
