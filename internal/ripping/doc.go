// Package ripping extracts audio tracks from the disc into staging wav files
// using cdparanoia, one invocation per track so progress and failures stay
// track-scoped. The disc is ejected as soon as extraction finishes.
package ripping
