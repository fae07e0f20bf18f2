// Package metadata models identified albums and tracks between pipeline
// stages.
//
// The Album type is the contract the identification stage writes and the
// encoding/organizing stages read; it travels through the queue as JSON. Tag
// construction for the FLAC encoder lives here so every stage agrees on the
// vorbis comment vocabulary.
package metadata
