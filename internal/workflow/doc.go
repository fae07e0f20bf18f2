// Package workflow drives queue items through the processing pipeline:
// pending discs are identified and ripped in the foreground lane while
// encoding and organization run in the background lane. A heartbeat monitor
// reclaims items orphaned by a crashed or killed daemon.
package workflow
