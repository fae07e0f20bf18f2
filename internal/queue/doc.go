// Package queue persists disc processing state in SQLite and exposes the
// lifecycle primitives the daemon workflow builds on.
//
// Each inserted disc becomes an Item keyed by a disc fingerprint; items move
// through the pending -> identifying -> identified -> ripping -> ripped ->
// encoding -> encoded -> organizing -> completed pipeline, with failed and
// review as terminal detours. The Store serializes all access through a single
// database handle with WAL journaling and busy retries, so both workflow lanes
// and the CLI can share one queue safely.
//
// Interrupted work is recoverable: processing statuses roll back to the status
// the item held before the stage started, either at daemon startup or when a
// heartbeat goes stale.
package queue
