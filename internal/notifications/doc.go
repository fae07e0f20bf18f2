// Package notifications publishes workflow milestone events to an ntfy topic.
// Each event category can be toggled in configuration; when no topic is set
// the service degrades to a noop so callers never branch on configuration.
package notifications
