// Package flacenc shells out to the flac CLI for encoding, tagging, and
// cover art embedding. Compression and verification stay inside the tool;
// this package only builds arguments and relays progress.
package flacenc
