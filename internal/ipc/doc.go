// Package ipc carries the control protocol between the platter CLI and a
// running platterd: a small JSON-over-HTTP API served on a unix socket.
package ipc
