// Package musicbrainz wraps the MusicBrainz web service and the Cover Art
// Archive.
//
// Lookups go through the discid TOC endpoint, so the server performs the disc
// ID computation from raw track offsets. All requests carry the configured
// User-Agent as required by the MusicBrainz API terms.
package musicbrainz
