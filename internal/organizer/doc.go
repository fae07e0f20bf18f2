// Package organizer files encoded FLAC output into the library as
// Artist/Album/NN - Track.flac and cleans up the staging area. Existing
// albums are routed to manual review unless overwriting is enabled.
package organizer
