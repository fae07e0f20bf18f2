// Package daemon ties the workflow manager to disc detection. A udev netlink
// monitor watches the configured optical drive and queues inserted audio CDs
// by their table-of-contents fingerprint. A lock file keeps a second daemon
// instance from racing the first over the drive and queue database.
package daemon
