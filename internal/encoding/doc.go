// Package encoding converts staged wav rips into tagged FLAC files. Encodes
// run in a bounded worker pool since flac is CPU-bound while ripping is
// drive-bound.
package encoding
